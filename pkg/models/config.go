package models

// CalendarConfig holds the calendar settings read from .pmcalconfig.
type CalendarConfig struct {
	// Timezone is an IANA zone name used for calendar-date comparisons.
	// Empty means the machine's local zone.
	Timezone   string  `yaml:"timezone,omitempty" mapstructure:"timezone"`
	LightHours float64 `yaml:"light_hours" mapstructure:"light_hours"`
	HeavyHours float64 `yaml:"heavy_hours" mapstructure:"heavy_hours"`
}

// AlertConfig holds the alert thresholds. Counts are taken over the trailing
// WindowHours.
type AlertConfig struct {
	WindowHours      int `yaml:"window_hours" mapstructure:"window_hours"`
	MaxLoadFailures  int `yaml:"max_load_failures" mapstructure:"max_load_failures"`
	RepeatedFailures int `yaml:"repeated_failures" mapstructure:"repeated_failures"`
	MaxHeavyDays     int `yaml:"max_heavy_days" mapstructure:"max_heavy_days"`
}

// NotificationConfig configures where `pmcal alerts --notify` sends alerts.
type NotificationConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url,omitempty" mapstructure:"slack_webhook_url"`
}

// GlobalConfig holds system-wide settings read from .pmcalconfig via Viper.
type GlobalConfig struct {
	// DataFile is the workspace snapshot path, relative to the base path
	// unless absolute. A leading ~ is expanded to the home directory.
	DataFile      string `yaml:"data_file" mapstructure:"data_file"`
	EventsEnabled bool   `yaml:"events_enabled" mapstructure:"events_enabled"`
	// StateDir holds the browse view state, relative to the base path
	// unless absolute.
	StateDir      string             `yaml:"state_dir" mapstructure:"state_dir"`
	Calendar      CalendarConfig     `yaml:"calendar" mapstructure:"calendar"`
	Alerts        AlertConfig        `yaml:"alerts" mapstructure:"alerts"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
}
