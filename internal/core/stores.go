package core

import (
	"context"

	"github.com/mihovilrak/pm-sub004/pkg/models"
)

// TaskSource supplies already-authorized task and time-log data to views.
// This interface is defined locally in core to avoid importing storage.
type TaskSource interface {
	// RootTasks returns tasks without a parent, optionally limited to a
	// project (projectID 0 means all projects).
	RootTasks(ctx context.Context, projectID int64) ([]models.Task, error)
	// TasksInRange returns tasks with a start, end, or due date inside r.
	TasksInRange(ctx context.Context, r DateRange) ([]models.Task, error)
	// TimeLogsInRange returns time logs created inside r.
	TimeLogsInRange(ctx context.Context, r DateRange) ([]models.TimeLog, error)
}

// TaskFinder looks up a single task.
type TaskFinder interface {
	Task(ctx context.Context, taskID int64) (models.Task, error)
}

// Workspace is everything the CLI needs from the backing store.
type Workspace interface {
	TaskSource
	TaskFinder
	ChildLoader
	TaskDeleter
}

// EventLogger records tree activity. observability.EventLogger implements
// it over the event log.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}
