package cli

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/internal/observability"
)

type treeRowJSON struct {
	Task struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"task"`
	Depth      int    `json:"depth"`
	Expanded   bool   `json:"expanded"`
	Expandable bool   `json:"expandable"`
	State      string `json:"state"`
}

func decodeRows(t *testing.T, out string) []treeRowJSON {
	t.Helper()
	var rows []treeRowJSON
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decoding rows: %v\n%s", err, out)
	}
	return rows
}

func rowShape(rows []treeRowJSON) ([]int64, []int) {
	ids := make([]int64, len(rows))
	depths := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.Task.ID
		depths[i] = r.Depth
	}
	return ids, depths
}

func TestTreeCmd_RootsOnly(t *testing.T) {
	setupTestEnv(t)

	out, _, err := runCommand(t, "tree", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := decodeRows(t, out)
	ids, _ := rowShape(rows)
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 5 {
		t.Fatalf("rows = %v, want roots 1 and 5", ids)
	}
	for _, r := range rows {
		if r.Expanded || !r.Expandable || r.State != "unfetched" {
			t.Errorf("root %d = %+v, want collapsed, expandable, unfetched", r.Task.ID, r)
		}
	}
}

func TestTreeCmd_Expand(t *testing.T) {
	env := setupTestEnv(t)

	out, _, err := runCommand(t, "tree", "--expand", "1,3", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, depths := rowShape(decodeRows(t, out))

	wantIDs := []int64{1, 2, 3, 4, 5}
	wantDepths := []int{0, 1, 1, 2, 0}
	if len(ids) != len(wantIDs) {
		t.Fatalf("rows = %v, want %v", ids, wantIDs)
	}
	for i := range wantIDs {
		if ids[i] != wantIDs[i] || depths[i] != wantDepths[i] {
			t.Errorf("row %d = task %d depth %d, want task %d depth %d", i, ids[i], depths[i], wantIDs[i], wantDepths[i])
		}
	}

	if got := len(env.events(t, observability.TypeChildrenLoaded)); got != 2 {
		t.Errorf("expected 2 children_loaded events, got %d", got)
	}
}

func TestTreeCmd_ChildHiddenUnderCollapsedParent(t *testing.T) {
	setupTestEnv(t)

	out, _, err := runCommand(t, "tree", "--project", "10", "--expand", "3", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids, _ := rowShape(decodeRows(t, out))
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("rows = %v, want only root 1", ids)
	}
}

func TestTreeCmd_All(t *testing.T) {
	setupTestEnv(t)

	out, _, err := runCommand(t, "tree", "--all", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := decodeRows(t, out)
	ids, _ := rowShape(rows)
	if len(ids) != 5 {
		t.Fatalf("rows = %v, want all 5 tasks", ids)
	}
	for _, r := range rows {
		if r.Task.ID == 4 && r.Expandable {
			t.Error("leaf task 4 should be known to have no children")
		}
	}
}

func TestTreeCmd_TextOutput(t *testing.T) {
	setupTestEnv(t)

	out, _, err := runCommand(t, "tree", "--expand", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"TASK", "STATUS", "▾ Launch website", "  ▸ Design", "  ▸ Build", "50%", "2024-01-20"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTreeCmd_LoadFailureWarns(t *testing.T) {
	env := setupTestEnv(t)

	_, stderr, err := runCommand(t, "tree", "--expand", "99")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stderr, "warning: Failed to load subtasks of task 99") {
		t.Errorf("stderr = %q, want a load warning", stderr)
	}
	failures := env.events(t, observability.TypeTreeError)
	if len(failures) != 1 || failures[0].Data["op"] != core.OpLoad {
		t.Errorf("tree.error events = %+v", failures)
	}
}

func TestTreeCmd_LoadFailureWarnsWithNoRows(t *testing.T) {
	setupTestEnv(t)

	out, stderr, err := runCommand(t, "tree", "--project", "404", "--expand", "99")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "No tasks found.") {
		t.Errorf("stdout = %q, want the empty message", out)
	}
	if !strings.Contains(stderr, "warning: Failed to load subtasks of task 99") {
		t.Errorf("stderr = %q, want a load warning", stderr)
	}
}

func TestRowMarker(t *testing.T) {
	tests := []struct {
		name string
		row  core.TreeRow
		want string
	}{
		{"loading", core.TreeRow{Loading: true, Expanded: true}, "…"},
		{"failed", core.TreeRow{State: core.NodeFailed.String(), Expandable: true}, "!"},
		{"expanded", core.TreeRow{Expanded: true, Expandable: true}, "▾"},
		{"collapsed", core.TreeRow{Expandable: true}, "▸"},
		{"leaf", core.TreeRow{}, "•"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rowMarker(tt.row); got != tt.want {
				t.Errorf("rowMarker = %q, want %q", got, tt.want)
			}
		})
	}
}

type recordingReporter struct {
	messages []string
}

func (r *recordingReporter) Error(message string, _ error) {
	r.messages = append(r.messages, message)
}

func TestCaptureReporter_Forwards(t *testing.T) {
	next := &recordingReporter{}
	r := newCaptureReporter(next)

	if r.Last() != "" {
		t.Fatal("new reporter should have no failures")
	}
	r.Error("first", errors.New("a"))
	r.Error("second", errors.New("b"))

	if got := r.Messages(); len(got) != 2 || got[0] != "first: a" {
		t.Errorf("Messages = %v", got)
	}
	if r.Last() != "second: b" {
		t.Errorf("Last = %q", r.Last())
	}
	if len(next.messages) != 2 {
		t.Errorf("forwarded %d failures, want 2", len(next.messages))
	}
}
