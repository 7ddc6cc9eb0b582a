package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseTimestamp_Layouts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-15T09:30:00Z", time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)},
		{"2024-01-15T09:30:00.123Z", time.Date(2024, 1, 15, 9, 30, 0, 123000000, time.UTC)},
		{"2024-01-15T09:30:00", time.Date(2024, 1, 15, 9, 30, 0, 0, time.Local)},
		{"2024-01-15 09:30:00", time.Date(2024, 1, 15, 9, 30, 0, 0, time.Local)},
		{" 2024-01-15 ", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		ts, ok := ParseTimestamp(tt.in)
		if !ok {
			t.Errorf("ParseTimestamp(%q) failed", tt.in)
			continue
		}
		if !ts.Equal(tt.want) {
			t.Errorf("ParseTimestamp(%q) = %s, want %s", tt.in, ts, tt.want)
		}
	}
}

func TestParseTimestamp_ZonelessIsLocal(t *testing.T) {
	prev := time.Local
	time.Local = time.FixedZone("UTC-5", -5*3600)
	t.Cleanup(func() { time.Local = prev })

	ts := MustTimestamp("2024-01-15T00:30:00")
	if ts.Location() != time.Local {
		t.Errorf("location = %v, want Local", ts.Location())
	}
	if y, m, d := ts.Date(); y != 2024 || m != time.January || d != 15 {
		t.Errorf("date = %d-%02d-%02d, want 2024-01-15", y, m, d)
	}
	if want := time.Date(2024, 1, 15, 5, 30, 0, 0, time.UTC); !ts.Equal(want) {
		t.Errorf("instant = %s, want %s", ts.UTC(), want)
	}

	// Dates and zoned datetimes are unaffected.
	if d := MustTimestamp("2024-01-15"); d.Location() != time.UTC {
		t.Errorf("date-only location = %v, want UTC", d.Location())
	}
	if z := MustTimestamp("2024-01-15T00:30:00Z"); z.Location() != time.UTC {
		t.Errorf("RFC 3339 location = %v, want UTC", z.Location())
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "yesterday", "2024-13-45"} {
		if ts, ok := ParseTimestamp(in); ok || !ts.IsZero() {
			t.Errorf("ParseTimestamp(%q) = %v, %v; want zero, false", in, ts, ok)
		}
	}
}

func TestMustTimestamp_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for invalid timestamp")
		}
	}()
	MustTimestamp("not a date")
}

func TestTask_YAMLDecodingIsLenient(t *testing.T) {
	input := `
id: 4
name: Write report
parent_id: 1
start_date: 2024-01-15T09:00:00Z
end_date: garbage
due_date: ""
spent_time: "3.5"
estimated_time: lots
`
	var task Task
	if err := yaml.Unmarshal([]byte(input), &task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ParentID == nil || *task.ParentID != 1 {
		t.Errorf("ParentID = %v, want 1", task.ParentID)
	}
	if task.StartDate.IsZero() {
		t.Error("StartDate should parse")
	}
	if !task.EndDate.IsZero() || !task.DueDate.IsZero() {
		t.Error("malformed dates should decode to zero")
	}
	if task.SpentTime != 3.5 {
		t.Errorf("SpentTime = %v, want 3.5", task.SpentTime)
	}
	if task.EstimatedTime != 0 {
		t.Errorf("EstimatedTime = %v, want 0", task.EstimatedTime)
	}
	if got := len(task.Dates()); got != 1 {
		t.Errorf("Dates() = %d entries, want 1", got)
	}
}

func TestTimeLog_JSONDecodingIsLenient(t *testing.T) {
	input := `[
		{"id": 1, "task_id": 2, "created_on": "2024-01-15T10:00:00Z", "spent_time": "invalid"},
		{"id": 2, "task_id": 2, "created_on": null, "spent_time": 1.25},
		{"id": 3, "task_id": 2, "created_on": 12345, "spent_time": " 2 "}
	]`
	var logs []TimeLog
	if err := json.Unmarshal([]byte(input), &logs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logs[0].SpentTime != 0 || logs[0].CreatedOn.IsZero() {
		t.Errorf("logs[0] = %+v", logs[0])
	}
	if logs[1].SpentTime != 1.25 || !logs[1].CreatedOn.IsZero() {
		t.Errorf("logs[1] = %+v", logs[1])
	}
	if logs[2].SpentTime != 2 || !logs[2].CreatedOn.IsZero() {
		t.Errorf("logs[2] = %+v", logs[2])
	}
}

func TestTimestamp_MarshalZero(t *testing.T) {
	data, err := json.Marshal(struct {
		When Timestamp `json:"when"`
	}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"when":null}` {
		t.Errorf("json = %s", data)
	}

	out, err := yaml.Marshal(Task{ID: 1, Name: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(out), "start_date") {
		t.Errorf("zero dates should be omitted from YAML:\n%s", out)
	}
}

func TestToHours(t *testing.T) {
	tests := []struct {
		in   interface{}
		want Hours
	}{
		{"1.5", 1.5},
		{" 2 ", 2},
		{"invalid", 0},
		{"", 0},
		{"NaN", 0},
		{3, 3},
		{nil, 0},
		{true, 1},
	}
	for _, tt := range tests {
		if got := ToHours(tt.in); got != tt.want {
			t.Errorf("ToHours(%#v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseGranularity(t *testing.T) {
	tests := map[string]Granularity{
		"":      GranularityMonth,
		"month": GranularityMonth,
		"Week":  GranularityWeek,
		" day ": GranularityDay,
	}
	for in, want := range tests {
		got, err := ParseGranularity(in)
		if err != nil || got != want {
			t.Errorf("ParseGranularity(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseGranularity("year"); err == nil {
		t.Error("expected error for unknown view")
	}
}
