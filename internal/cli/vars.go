package cli

import (
	"time"

	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/internal/observability"
	"github.com/mihovilrak/pm-sub004/internal/storage"
	"github.com/mihovilrak/pm-sub004/pkg/models"
)

// Core service instances, set during app initialization in app.go.
var (
	Workspace core.Workspace
	Calendar  core.CalendarEngine
	// CalendarLoc is the zone --date values are read in; nil means local.
	CalendarLoc *time.Location
	Reporter    core.ErrorReporter
	Events      core.EventLogger
	ViewStates  storage.ViewStateStore
	// DataPath is the workspace file the browser watches for changes.
	DataPath string
	// ReloadWorkspace re-reads DataPath; nil when the store cannot reload.
	ReloadWorkspace func() error
)

// Observability service instances, set during app initialization in app.go.
var (
	EventLog    observability.EventLog
	AlertEngine observability.AlertEngine
	MetricsCalc observability.MetricsCalculator
	Notifier    observability.Notifier
)

// Config is the loaded configuration, used by commands that print settings.
var Config *models.GlobalConfig

// nowFunc is replaced in tests.
var nowFunc = time.Now
