// Package core contains the business logic for pmcal: calendar bucketing of
// tasks and time logs, the lazily loaded task tree, and configuration.
package core

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mihovilrak/pm-sub004/pkg/models"
	"github.com/spf13/viper"
)

// ConfigFileName is the base name of the configuration file, without
// extension.
const ConfigFileName = ".pmcalconfig"

// ConfigurationManager defines the interface for loading and validating
// configuration from the .pmcalconfig file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the root directory where .pmcalconfig resides.
	basePath string
}

// NewConfigurationManager creates a new ConfigurationManager that reads
// configuration files relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		DataFile:      "workspace.yaml",
		EventsEnabled: true,
		StateDir:      ".pmcal_state",
		Calendar: models.CalendarConfig{
			Timezone:   "",
			LightHours: DefaultModerateHours,
			HeavyHours: DefaultHeavyHours,
		},
		Alerts: models.AlertConfig{
			WindowHours:      24,
			MaxLoadFailures:  5,
			RepeatedFailures: 3,
			MaxHeavyDays:     8,
		},
	}
}

// LoadGlobalConfig reads the .pmcalconfig file from the base path using
// Viper. If the file does not exist, defaults are returned. Environment
// variables prefixed with PMCAL_ override file values (for example
// PMCAL_CALENDAR_TIMEZONE).
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("PMCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("data.file", cfg.DataFile)
	v.SetDefault("events.enabled", cfg.EventsEnabled)
	v.SetDefault("state.dir", cfg.StateDir)
	v.SetDefault("calendar.timezone", cfg.Calendar.Timezone)
	v.SetDefault("calendar.light_hours", cfg.Calendar.LightHours)
	v.SetDefault("calendar.heavy_hours", cfg.Calendar.HeavyHours)
	v.SetDefault("alerts.window_hours", cfg.Alerts.WindowHours)
	v.SetDefault("alerts.max_load_failures", cfg.Alerts.MaxLoadFailures)
	v.SetDefault("alerts.repeated_failures", cfg.Alerts.RepeatedFailures)
	v.SetDefault("alerts.max_heavy_days", cfg.Alerts.MaxHeavyDays)
	v.SetDefault("notifications.slack.webhook_url", "")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	// Map nested YAML keys to GlobalConfig fields.
	cfg.DataFile = v.GetString("data.file")
	cfg.EventsEnabled = v.GetBool("events.enabled")
	cfg.StateDir = v.GetString("state.dir")
	cfg.Calendar.Timezone = v.GetString("calendar.timezone")
	cfg.Calendar.LightHours = v.GetFloat64("calendar.light_hours")
	cfg.Calendar.HeavyHours = v.GetFloat64("calendar.heavy_hours")
	cfg.Alerts.WindowHours = v.GetInt("alerts.window_hours")
	cfg.Alerts.MaxLoadFailures = v.GetInt("alerts.max_load_failures")
	cfg.Alerts.RepeatedFailures = v.GetInt("alerts.repeated_failures")
	cfg.Alerts.MaxHeavyDays = v.GetInt("alerts.max_heavy_days")
	cfg.Notifications.SlackWebhookURL = v.GetString("notifications.slack.webhook_url")

	return cfg, nil
}

// ValidateConfig checks the configuration for invalid values and returns a
// clear error message identifying every problem.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if strings.TrimSpace(cfg.DataFile) == "" {
		errs = append(errs, "data.file must not be empty")
	}

	if cfg.Calendar.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Calendar.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("calendar.timezone %q is not a known zone", cfg.Calendar.Timezone))
		}
	}

	if cfg.Calendar.LightHours <= 0 {
		errs = append(errs, fmt.Sprintf("calendar.light_hours must be positive, got %g", cfg.Calendar.LightHours))
	}

	if cfg.Calendar.HeavyHours <= cfg.Calendar.LightHours {
		errs = append(errs, fmt.Sprintf(
			"calendar.heavy_hours (%g) must be greater than calendar.light_hours (%g)",
			cfg.Calendar.HeavyHours, cfg.Calendar.LightHours,
		))
	}

	if strings.TrimSpace(cfg.StateDir) == "" {
		errs = append(errs, "state.dir must not be empty")
	}

	if cfg.Alerts.WindowHours <= 0 {
		errs = append(errs, fmt.Sprintf("alerts.window_hours must be positive, got %d", cfg.Alerts.WindowHours))
	}
	for key, n := range map[string]int{
		"alerts.max_load_failures": cfg.Alerts.MaxLoadFailures,
		"alerts.repeated_failures": cfg.Alerts.RepeatedFailures,
		"alerts.max_heavy_days":    cfg.Alerts.MaxHeavyDays,
	} {
		if n < 1 {
			errs = append(errs, fmt.Sprintf("%s must be at least 1, got %d", key, n))
		}
	}

	if u := cfg.Notifications.SlackWebhookURL; u != "" && !strings.HasPrefix(u, "https://") {
		errs = append(errs, "notifications.slack.webhook_url must be an https URL")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// CalendarLocation resolves the configured calendar zone, falling back to
// time.Local when unset.
func CalendarLocation(cfg *models.GlobalConfig) (*time.Location, error) {
	if cfg == nil || cfg.Calendar.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading calendar timezone: %w", err)
	}
	return loc, nil
}
