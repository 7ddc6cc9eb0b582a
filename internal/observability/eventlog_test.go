package observability

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func openLog(t *testing.T) (EventLog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	log, err := NewJSONLEventLog(path)
	if err != nil {
		t.Fatalf("creating event log: %v", err)
	}
	t.Cleanup(func() { _ = log.Close() })
	return log, path
}

func TestEventLog_WriteAndRead(t *testing.T) {
	log, _ := openLog(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []Event{
		{Time: now, Level: LevelInfo, Type: TypeChildrenLoaded, Message: "loaded", Data: map[string]any{"task_id": 1}},
		{Time: now.Add(time.Second), Level: LevelError, Type: TypeTreeError, Message: "Failed to delete task 2"},
	}
	for _, e := range events {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result))
	}
	if result[0].Type != TypeChildrenLoaded || result[0].Message != "loaded" {
		t.Errorf("first event = %+v", result[0])
	}
	if !result[0].Time.Equal(now) {
		t.Errorf("time = %v, want %v", result[0].Time, now)
	}
	if result[1].Level != LevelError {
		t.Errorf("expected level ERROR, got %s", result[1].Level)
	}
}

func TestEventLog_StampsMissingTime(t *testing.T) {
	log, _ := openLog(t)
	before := time.Now().UTC().Add(-time.Second)
	if err := log.Write(Event{Type: TypeTaskDeleted}); err != nil {
		t.Fatalf("writing event: %v", err)
	}
	result, _ := log.Read(EventFilter{})
	if len(result) != 1 || result[0].Time.Before(before) {
		t.Errorf("event time not stamped: %+v", result)
	}
}

func TestEventLog_Filters(t *testing.T) {
	log, _ := openLog(t)

	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	for _, e := range []Event{
		{Time: base, Level: LevelInfo, Type: TypeChildrenLoaded, Message: "first"},
		{Time: base.Add(time.Hour), Level: LevelError, Type: TypeTreeError, Message: "second"},
		{Time: base.Add(2 * time.Hour), Level: LevelInfo, Type: TypeCalendarRendered, Message: "third"},
		{Time: base.Add(3 * time.Hour), Level: LevelInfo, Type: TypeTaskDeleted, Message: "fourth"},
	} {
		if err := log.Write(e); err != nil {
			t.Fatalf("writing event: %v", err)
		}
	}

	since := base.Add(30 * time.Minute)
	until := base.Add(2*time.Hour + 30*time.Minute)
	tests := []struct {
		name   string
		filter EventFilter
		want   []string
	}{
		{"all", EventFilter{}, []string{"first", "second", "third", "fourth"}},
		{"type", EventFilter{Type: TypeTreeError}, []string{"second"}},
		{"prefix", EventFilter{TypePrefix: "tree."}, []string{"first", "second", "fourth"}},
		{"level", EventFilter{Level: LevelInfo}, []string{"first", "third", "fourth"}},
		{"range", EventFilter{Since: &since, Until: &until}, []string{"second", "third"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := log.Read(tt.filter)
			if err != nil {
				t.Fatalf("reading events: %v", err)
			}
			if len(result) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(result), len(tt.want))
			}
			for i, e := range result {
				if e.Message != tt.want[i] {
					t.Errorf("event %d = %q, want %q", i, e.Message, tt.want[i])
				}
			}
		})
	}
}

func TestEventLog_SkipsMalformedLines(t *testing.T) {
	log, path := openLog(t)
	if err := log.Write(Event{Type: TypeTaskDeleted, Message: "ok"}); err != nil {
		t.Fatalf("writing event: %v", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	_, _ = f.WriteString("{not json\n\n")
	_ = f.Close()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events: %v", err)
	}
	if len(result) != 1 {
		t.Errorf("expected 1 valid event, got %d", len(result))
	}
}

func TestEventLog_EmptyLog(t *testing.T) {
	log, _ := openLog(t)
	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading empty log: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected 0 events from empty log, got %d", len(result))
	}
}

func TestEventLog_ConcurrentWrites(t *testing.T) {
	log, _ := openLog(t)

	const goroutines = 10
	const eventsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for i := 0; i < eventsPerGoroutine; i++ {
				event := Event{
					Level: LevelInfo,
					Type:  TypeChildrenLoaded,
					Data:  map[string]any{"goroutine": id, "index": i},
				}
				if err := log.Write(event); err != nil {
					t.Errorf("concurrent write error: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	result, err := log.Read(EventFilter{})
	if err != nil {
		t.Fatalf("reading events after concurrent writes: %v", err)
	}
	if expected := goroutines * eventsPerGoroutine; len(result) != expected {
		t.Errorf("expected %d events, got %d", expected, len(result))
	}
}

func TestMemoryEventLog(t *testing.T) {
	log := NewMemoryEventLog()
	_ = log.Write(Event{Type: TypeTaskDeleted, Level: LevelInfo})
	_ = log.Write(Event{Type: TypeTreeError, Level: LevelError})

	result, _ := log.Read(EventFilter{Level: LevelError})
	if len(result) != 1 || result[0].Type != TypeTreeError {
		t.Errorf("result = %+v", result)
	}
	if err := log.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
