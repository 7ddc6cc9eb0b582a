package cli

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mihovilrak/pm-sub004/internal/observability"
	"github.com/mihovilrak/pm-sub004/internal/storage"
	"github.com/mihovilrak/pm-sub004/pkg/models"
)

// drain runs cmd and every command it leads to, feeding each message back
// into the model. Spinner ticks are dropped so the loop ends.
func drain(t *testing.T, m *browseModel, cmd tea.Cmd) {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 1000 {
			t.Fatal("command loop did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, tea.QuitMsg, nil:
		default:
			_, follow := m.Update(msg)
			queue = append(queue, follow)
		}
	}
}

func press(t *testing.T, m *browseModel, keys ...string) {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		_, cmd := m.Update(msg)
		drain(t, m, cmd)
	}
}

func startBrowse(t *testing.T, state storage.ViewState) *browseModel {
	t.Helper()
	m := newBrowseModel(context.Background(), state)
	drain(t, m, m.Init())
	return m
}

func rowIDs(m *browseModel) []int64 {
	var ids []int64
	for _, r := range m.rows() {
		ids = append(ids, r.Task.ID)
	}
	return ids
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBrowse_Init(t *testing.T) {
	env := setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})

	if got := rowIDs(m); !equalIDs(got, []int64{1, 5}) {
		t.Errorf("rows = %v, want roots 1 and 5", got)
	}
	if m.view.Granularity != models.GranularityMonth || len(m.view.Days) != 42 {
		t.Errorf("view = %s with %d days, want month grid", m.view.Granularity, len(m.view.Days))
	}
	if got := len(env.events(t, observability.TypeCalendarRendered)); got != 1 {
		t.Errorf("expected 1 calendar.rendered event, got %d", got)
	}
}

func TestBrowse_ToggleAndState(t *testing.T) {
	setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})

	press(t, m, "enter")
	if got := rowIDs(m); !equalIDs(got, []int64{1, 2, 3, 5}) {
		t.Fatalf("after expanding 1 rows = %v", got)
	}
	press(t, m, "j", "j", "enter")
	if got := rowIDs(m); !equalIDs(got, []int64{1, 2, 3, 4, 5}) {
		t.Fatalf("after expanding 3 rows = %v", got)
	}

	st := m.state()
	if st.Granularity != "month" || st.Date != "2024-01-15" || !equalIDs(st.Expanded, []int64{1, 3}) {
		t.Errorf("state = %+v", st)
	}

	press(t, m, "k", "k", "enter")
	if got := rowIDs(m); !equalIDs(got, []int64{1, 5}) {
		t.Errorf("after collapsing 1 rows = %v", got)
	}
	if !equalIDs(m.state().Expanded, nil) {
		t.Errorf("collapsed tree still saves %v", m.state().Expanded)
	}
}

func TestBrowse_RestoresState(t *testing.T) {
	setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{Granularity: "week", Date: "2024-01-10", Expanded: []int64{1, 3}})

	if got := rowIDs(m); !equalIDs(got, []int64{1, 2, 3, 4, 5}) {
		t.Errorf("rows = %v, want 1 and 3 expanded", got)
	}
	if m.view.Granularity != models.GranularityWeek {
		t.Fatalf("granularity = %s", m.view.Granularity)
	}
	if want := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC); !m.view.Days[0].Date.Equal(want) {
		t.Errorf("week starts %v, want %v", m.view.Days[0].Date, want)
	}
}

func TestBrowse_CalendarNavigation(t *testing.T) {
	setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})

	press(t, m, "h")
	if m.ref.Month() != time.December || m.ref.Year() != 2023 {
		t.Errorf("after h ref = %v", m.ref)
	}
	press(t, m, "w", "l")
	if m.view.Granularity != models.GranularityWeek {
		t.Errorf("granularity = %s", m.view.Granularity)
	}
	press(t, m, "t", "d")
	if m.view.Granularity != models.GranularityDay || !m.view.Reference.Equal(testNow) {
		t.Errorf("day view of %v, want %v", m.view.Reference, testNow)
	}

	// Tree keys do nothing while the calendar pane has focus.
	press(t, m, "tab", "enter")
	if got := rowIDs(m); !equalIDs(got, []int64{1, 5}) {
		t.Errorf("rows = %v, tree should be untouched", got)
	}
}

func TestBrowse_StaleCalendarIsDropped(t *testing.T) {
	setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})

	// Two quick key presses: the month request answers after the week one.
	_, stale := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	_, fresh := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("w")})
	drain(t, m, fresh)
	drain(t, m, stale)

	if m.view.Granularity != models.GranularityWeek || len(m.view.Days) != 7 {
		t.Errorf("view = %s with %d days, want the later week view", m.view.Granularity, len(m.view.Days))
	}
}

func TestBrowse_DeleteRoot(t *testing.T) {
	env := setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})

	press(t, m, "j", "x")
	if !strings.Contains(m.status, `Delete task #5 "Unrelated"`) {
		t.Fatalf("status = %q", m.status)
	}
	press(t, m, "y")

	if got := rowIDs(m); !equalIDs(got, []int64{1}) {
		t.Errorf("rows = %v, want only 1", got)
	}
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want clamped to 0", m.cursor)
	}
	if _, err := env.store.Task(context.Background(), 5); err == nil {
		t.Error("task 5 should be deleted from the store")
	}
}

func TestBrowse_DeleteChild(t *testing.T) {
	setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})

	press(t, m, "enter", "j", "x", "y")
	if got := rowIDs(m); !equalIDs(got, []int64{1, 3, 5}) {
		t.Errorf("rows = %v, want Design removed", got)
	}
	if m.status != "Deleted task #2" {
		t.Errorf("status = %q", m.status)
	}
}

func TestBrowse_DeleteCanceled(t *testing.T) {
	env := setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})

	press(t, m, "x", "n")
	if m.status != "Delete canceled." {
		t.Errorf("status = %q", m.status)
	}
	if _, err := env.store.Task(context.Background(), 1); err != nil {
		t.Errorf("task 1 should remain: %v", err)
	}
}

func TestBrowse_LoadFailureShowsStatus(t *testing.T) {
	setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})

	drain(t, m, m.toggle(99))
	if !strings.Contains(m.status, "Failed to load subtasks of task 99") {
		t.Errorf("status = %q", m.status)
	}
	m.status = ""
	press(t, m, "enter")
	if m.status != "" {
		t.Errorf("an old failure was shown again: %q", m.status)
	}
	if m.pending != 0 {
		t.Errorf("pending = %d, want 0", m.pending)
	}
}

func TestBrowse_ReloadKeepsExpansion(t *testing.T) {
	env := setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})
	press(t, m, "enter")

	updated := strings.Replace(testWorkspace, "time_logs:", "  - id: 6\n    name: Retro\n    project_id: 10\ntime_logs:", 1)
	if err := os.WriteFile(DataPath, []byte(updated), 0o644); err != nil {
		t.Fatalf("writing workspace: %v", err)
	}
	_, cmd := m.Update(workspaceChangedMsg{})
	drain(t, m, cmd)

	if got := rowIDs(m); !equalIDs(got, []int64{1, 2, 3, 5, 6}) {
		t.Errorf("rows = %v, want new root 6 and task 1 still expanded", got)
	}
	if _, err := env.store.Task(context.Background(), 6); err != nil {
		t.Errorf("store was not reloaded: %v", err)
	}
}

func TestBrowse_ViewAndQuit(t *testing.T) {
	setupTestEnv(t)
	m := startBrowse(t, storage.ViewState{})

	out := m.View()
	for _, want := range []string{"Tasks", "#1 Launch website", "January 2024", "quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestBrowseCmd_NotInitialized(t *testing.T) {
	setupTestEnv(t)
	Calendar = nil

	_, _, err := runCommand(t, "browse")
	if err == nil || !strings.Contains(err.Error(), "workspace not initialized") {
		t.Errorf("error = %v", err)
	}
}
