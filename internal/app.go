// Package internal provides the App struct that wires all components of
// pmcal together and initializes the CLI layer.
package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/mihovilrak/pm-sub004/internal/cli"
	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/internal/observability"
	"github.com/mihovilrak/pm-sub004/internal/storage"
	"github.com/mihovilrak/pm-sub004/pkg/models"
)

// EventLogFileName is the event log written under the base path.
const EventLogFileName = ".pmcal_events.jsonl"

// App holds all service dependencies for pmcal.
type App struct {
	BasePath string

	// Configuration
	ConfigMgr core.ConfigurationManager
	Config    *models.GlobalConfig

	// Storage layer
	Workspace  *storage.WorkspaceStore
	ViewStates storage.ViewStateStore

	// Core services
	Calendar    core.CalendarEngine
	CalendarLoc *time.Location

	// Observability
	EventLog    observability.EventLog
	Reporter    *observability.ErrorReporter
	Events      *observability.EventLogger
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
}

// NewApp creates and wires all components of pmcal. basePath is the
// directory holding .pmcalconfig, the event log and, by default, the
// workspace file.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	globalCfg, err := app.ConfigMgr.LoadGlobalConfig()
	if err != nil {
		// Use defaults if the config file cannot be read.
		globalCfg = core.DefaultGlobalConfig()
	}
	if err := app.ConfigMgr.ValidateConfig(globalCfg); err != nil {
		return nil, err
	}
	app.Config = globalCfg

	loc, err := core.CalendarLocation(globalCfg)
	if err != nil {
		return nil, err
	}
	app.CalendarLoc = loc

	// --- Storage layer ---
	dataPath, err := resolvePath(basePath, globalCfg.DataFile)
	if err != nil {
		return nil, fmt.Errorf("resolving data file: %w", err)
	}
	app.Workspace = storage.NewWorkspaceStore(dataPath)
	if err := app.Workspace.Load(); err != nil {
		return nil, err
	}

	stateDir, err := resolvePath(basePath, globalCfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("resolving state dir: %w", err)
	}
	app.ViewStates = storage.NewViewStateStore(stateDir)

	// --- Observability ---
	if globalCfg.EventsEnabled {
		app.EventLog, err = observability.NewJSONLEventLog(filepath.Join(basePath, EventLogFileName))
		if err != nil {
			// Non-fatal: disable observability if the log can't be created.
			app.EventLog = nil
		}
	}
	app.Reporter = observability.NewErrorReporter(app.EventLog)
	app.Events = observability.NewEventLogger(app.EventLog)
	if app.EventLog != nil {
		app.AlertEngine = observability.NewAlertEngine(app.EventLog, alertThresholds(globalCfg.Alerts))
		app.MetricsCalc = observability.NewMetricsCalculator(app.EventLog)
	}
	if url := globalCfg.Notifications.SlackWebhookURL; url != "" {
		app.Notifier = observability.NewSlackNotifier(url)
	}

	// --- Core services ---
	app.Calendar = core.NewCalendarEngine(
		core.WithLocation(loc),
		core.WithLoadThresholds(globalCfg.Calendar.LightHours, globalCfg.Calendar.HeavyHours),
	)

	// --- Wire CLI package-level variables ---
	cli.Workspace = app.Workspace
	cli.Calendar = app.Calendar
	cli.CalendarLoc = loc
	cli.Reporter = app.Reporter
	cli.Events = app.Events
	cli.ViewStates = app.ViewStates
	cli.DataPath = dataPath
	cli.ReloadWorkspace = app.Workspace.Load

	cli.EventLog = app.EventLog
	cli.AlertEngine = app.AlertEngine
	cli.MetricsCalc = app.MetricsCalc
	cli.Notifier = app.Notifier
	cli.Config = globalCfg

	return app, nil
}

// Close releases resources held by the App, such as the event log file handle.
// It is safe to call Close on an App whose EventLog is nil.
func (a *App) Close() error {
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the pmcal base directory. It checks the
// PMCAL_HOME env var, then walks up from the working directory looking for
// .pmcalconfig, and falls back to the working directory.
func ResolveBasePath() string {
	if home := os.Getenv("PMCAL_HOME"); home != "" {
		if expanded, err := homedir.Expand(home); err == nil {
			return expanded
		}
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for d := dir; ; {
		for _, name := range []string{core.ConfigFileName, core.ConfigFileName + ".yaml"} {
			if _, err := os.Stat(filepath.Join(d, name)); err == nil {
				return d
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
		d = parent
	}
	return dir
}

// resolvePath expands a leading ~ and makes p absolute against basePath.
func resolvePath(basePath, p string) (string, error) {
	expanded, err := homedir.Expand(p)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return expanded, nil
	}
	return filepath.Join(basePath, expanded), nil
}

// alertThresholds overlays the configured values on the defaults.
func alertThresholds(cfg models.AlertConfig) observability.AlertThresholds {
	t := observability.DefaultAlertThresholds()
	if cfg.WindowHours > 0 {
		t.WindowHours = cfg.WindowHours
	}
	if cfg.MaxLoadFailures > 0 {
		t.MaxLoadFailures = cfg.MaxLoadFailures
	}
	if cfg.RepeatedFailures > 0 {
		t.RepeatedFailures = cfg.RepeatedFailures
	}
	if cfg.MaxHeavyDays > 0 {
		t.MaxHeavyDays = cfg.MaxHeavyDays
	}
	return t
}
