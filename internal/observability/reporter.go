package observability

import (
	"errors"
	"fmt"
	"time"
)

// treeFailure is implemented by core.TreeError.
type treeFailure interface {
	Operation() string
	Task() int64
}

// ErrorReporter writes failures the task tree absorbs as ERROR events.
type ErrorReporter struct {
	log EventLog
	now func() time.Time
}

// NewErrorReporter returns a reporter that writes tree.error events to log.
// A nil log drops every report.
func NewErrorReporter(log EventLog) *ErrorReporter {
	return &ErrorReporter{log: log, now: time.Now}
}

// Error records message and err. Write failures are ignored; a reporter
// must never turn a handled failure into a new one.
func (r *ErrorReporter) Error(message string, err error) {
	if r == nil || r.log == nil {
		return
	}
	data := map[string]any{}
	if err != nil {
		data["error"] = err.Error()
		var tf treeFailure
		if errors.As(err, &tf) {
			data["op"] = tf.Operation()
			data["task_id"] = tf.Task()
		}
	}
	_ = r.log.Write(Event{
		Time:    r.now().UTC(),
		Level:   LevelError,
		Type:    TypeTreeError,
		Message: message,
		Data:    data,
	})
}

// EventLogger adapts an EventLog to the single-method logger the core
// packages depend on.
type EventLogger struct {
	log EventLog
}

// NewEventLogger wraps log.
func NewEventLogger(log EventLog) *EventLogger {
	return &EventLogger{log: log}
}

// LogEvent writes an INFO event whose message is derived from the type.
func (l *EventLogger) LogEvent(eventType string, data map[string]any) error {
	if l == nil || l.log == nil {
		return nil
	}
	return l.log.Write(Event{
		Time:    time.Now().UTC(),
		Level:   LevelInfo,
		Type:    eventType,
		Message: describe(eventType, data),
		Data:    data,
	})
}

func describe(eventType string, data map[string]any) string {
	switch eventType {
	case TypeChildrenLoaded:
		return fmt.Sprintf("loaded %v subtasks of task %v", data["children"], data["task_id"])
	case TypeTaskDeleted:
		return fmt.Sprintf("deleted task %v", data["task_id"])
	case TypeCalendarRendered:
		return fmt.Sprintf("rendered %v view", data["granularity"])
	default:
		return eventType
	}
}
