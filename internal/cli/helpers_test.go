package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/internal/observability"
	"github.com/mihovilrak/pm-sub004/internal/storage"
	"github.com/mihovilrak/pm-sub004/pkg/models"
)

const testWorkspace = `
version: "1.0"
tasks:
  - id: 1
    name: Launch website
    project_id: 10
    status: In Progress
    description: |
      ## Goals

      - ship the landing page
    start_date: 2024-01-03T09:00:00Z
    due_date: 2024-01-20T17:00:00Z
  - id: 2
    name: Design
    parent_id: 1
    status: Done
  - id: 3
    name: Build
    parent_id: 1
    start_date: 2024-01-10T08:00:00Z
  - id: 4
    name: Backend
    parent_id: 3
  - id: 5
    name: Unrelated
    project_id: 11
    due_date: 2024-02-15
time_logs:
  - id: 100
    task_id: 3
    created_on: 2024-01-10T12:00:00Z
    spent_time: 2.5
  - id: 101
    task_id: 4
    created_on: 2024-01-11T12:00:00Z
    spent_time: 1
  - id: 102
    task_id: 1
    created_on: 2024-01-10T15:00:00Z
    spent_time: 6
`

var testNow = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

// testEnv wires the package-level services to a temporary workspace and an
// in-memory event log, and restores them when the test ends.
type testEnv struct {
	store *storage.WorkspaceStore
	log   observability.EventLog
	dir   string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "workspace.yaml")
	if err := os.WriteFile(path, []byte(testWorkspace), 0o644); err != nil {
		t.Fatalf("writing workspace: %v", err)
	}
	store := storage.NewWorkspaceStore(path)
	if err := store.Load(); err != nil {
		t.Fatalf("loading workspace: %v", err)
	}
	log := observability.NewMemoryEventLog()

	origWorkspace, origCalendar, origLoc := Workspace, Calendar, CalendarLoc
	origReporter, origEvents, origViewStates := Reporter, Events, ViewStates
	origDataPath, origReload, origNow, origConfig := DataPath, ReloadWorkspace, nowFunc, Config
	t.Cleanup(func() {
		Workspace, Calendar, CalendarLoc = origWorkspace, origCalendar, origLoc
		Reporter, Events, ViewStates = origReporter, origEvents, origViewStates
		DataPath, ReloadWorkspace, nowFunc, Config = origDataPath, origReload, origNow, origConfig
	})

	Workspace = store
	Calendar = core.NewCalendarEngine(
		core.WithLocation(time.UTC),
		core.WithClock(func() time.Time { return testNow }),
	)
	CalendarLoc = time.UTC
	Reporter = observability.NewErrorReporter(log)
	Events = observability.NewEventLogger(log)
	ViewStates = storage.NewViewStateStore(filepath.Join(dir, "state"))
	DataPath = path
	ReloadWorkspace = store.Load
	nowFunc = func() time.Time { return testNow }
	Config = core.DefaultGlobalConfig()

	return &testEnv{store: store, log: log, dir: dir}
}

// events returns the logged events of one type.
func (e *testEnv) events(t *testing.T, eventType string) []observability.Event {
	t.Helper()
	evts, err := e.log.Read(observability.EventFilter{Type: eventType})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	return evts
}

// runCommand executes the root command with args and returns stdout and
// stderr. Command flags are reset afterwards.
func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(resetFlags)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := Execute()
	return stdout.String(), stderr.String(), err
}

func resetFlags() {
	calendarView = models.GranularityMonth
	calendarDate, calendarShift, calendarJSON = "", 0, false
	treeProject, treeExpand, treeAll, treeJSON = 0, nil, false, false
	deleteYes = false
	showJSON = false
	metricsJSON, metricsSince = false, "7d"
	alertsNotify = false
	browseReset = false
	noColor = false
}
