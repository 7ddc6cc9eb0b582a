package cli

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestShowCmd_JSON(t *testing.T) {
	setupTestEnv(t)

	out, _, err := runCommand(t, "show", "1", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got struct {
		Task struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"task"`
		Subtasks []struct {
			ID int64 `json:"id"`
		} `json:"subtasks"`
		Progress float64 `json:"subtask_progress"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decoding: %v\n%s", err, out)
	}
	if got.Task.ID != 1 || got.Task.Name != "Launch website" {
		t.Errorf("task = %+v", got.Task)
	}
	if len(got.Subtasks) != 2 || got.Subtasks[0].ID != 2 || got.Subtasks[1].ID != 3 {
		t.Errorf("subtasks = %+v, want 2 and 3", got.Subtasks)
	}
	if got.Progress != 50 {
		t.Errorf("progress = %v, want 50", got.Progress)
	}
}

func TestShowCmd_LeafHasEmptySubtasks(t *testing.T) {
	setupTestEnv(t)

	out, _, err := runCommand(t, "show", "4", "--json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, `"subtasks": []`) {
		t.Errorf("leaf should render an empty subtask list:\n%s", out)
	}
}

func TestShowCmd_Text(t *testing.T) {
	setupTestEnv(t)

	out, _, err := runCommand(t, "show", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"#1 Launch website", "Status:", "In Progress", "Due:", "2024-01-20", "Goals", "ship the landing page", "Subtasks (50% done)", "Design", "Build"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestShowCmd_UnknownTask(t *testing.T) {
	setupTestEnv(t)

	_, _, err := runCommand(t, "show", "42")
	if err == nil || !strings.Contains(err.Error(), "looking up task") {
		t.Errorf("error = %v", err)
	}
}

func TestRenderMarkdown_Plain(t *testing.T) {
	out, err := renderMarkdown("# Title\n\nSome *text*.", 80, false)
	if err != nil {
		t.Fatalf("renderMarkdown: %v", err)
	}
	if !strings.Contains(out, "Title") || !strings.Contains(out, "text") {
		t.Errorf("rendered = %q", out)
	}
}
