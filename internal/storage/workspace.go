package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mihovilrak/pm-sub004/internal/core"
	"github.com/mihovilrak/pm-sub004/pkg/models"
	"gopkg.in/yaml.v3"
)

// ErrTaskNotFound is returned when a task ID is not in the workspace.
var ErrTaskNotFound = errors.New("task not found")

// WorkspaceFile is the top-level structure of workspace.yaml.
type WorkspaceFile struct {
	Version  string           `yaml:"version"`
	Tasks    []models.Task    `yaml:"tasks"`
	TimeLogs []models.TimeLog `yaml:"time_logs"`
}

// WorkspaceStore serves tasks and time logs from a YAML snapshot. It
// satisfies core.Workspace so the calendar and the task tree can run
// against a local file.
type WorkspaceStore struct {
	mu   sync.RWMutex
	path string
	data WorkspaceFile
}

// NewWorkspaceStore creates a store for the file at path. Call Load before
// use.
func NewWorkspaceStore(path string) *WorkspaceStore {
	return &WorkspaceStore{path: path, data: WorkspaceFile{Version: "1.0"}}
}

// Path returns the snapshot file path.
func (s *WorkspaceStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file yields an empty workspace.
func (s *WorkspaceStore) Load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.data = WorkspaceFile{Version: "1.0"}
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading workspace: %w", err)
	}

	var wf WorkspaceFile
	if err := yaml.Unmarshal(raw, &wf); err != nil {
		return fmt.Errorf("loading workspace: parsing YAML: %w", err)
	}
	if wf.Version == "" {
		wf.Version = "1.0"
	}

	s.mu.Lock()
	s.data = wf
	s.mu.Unlock()
	return nil
}

// Save writes the snapshot atomically while holding an exclusive lock on a
// sibling .lock file.
func (s *WorkspaceStore) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writeLocked(s.data)
}

// writeLocked persists wf. The caller holds s.mu.
func (s *WorkspaceStore) writeLocked(wf WorkspaceFile) error {
	raw, err := yaml.Marshal(wf)
	if err != nil {
		return fmt.Errorf("saving workspace: marshalling YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("saving workspace: creating directory: %w", err)
	}
	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return fmt.Errorf("saving workspace: %w", err)
	}
	defer func() { _ = unlock() }()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("saving workspace: writing file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("saving workspace: replacing file: %w", err)
	}
	return nil
}

// AddTask appends a task. IDs must be unique.
func (s *WorkspaceStore) AddTask(task models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(task.ID) >= 0 {
		return fmt.Errorf("adding task: task %d already exists", task.ID)
	}
	s.data.Tasks = append(s.data.Tasks, task)
	return nil
}

// AddTimeLog appends a time log.
func (s *WorkspaceStore) AddTimeLog(log models.TimeLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.TimeLogs = append(s.data.TimeLogs, log)
}

// Task returns the task with the given ID.
func (s *WorkspaceStore) Task(ctx context.Context, taskID int64) (models.Task, error) {
	if err := ctx.Err(); err != nil {
		return models.Task{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexLocked(taskID)
	if i < 0 {
		return models.Task{}, fmt.Errorf("task %d: %w", taskID, ErrTaskNotFound)
	}
	return s.data.Tasks[i], nil
}

// LoadChildren returns the direct children of parentID in file order.
func (s *WorkspaceStore) LoadChildren(ctx context.Context, parentID int64) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.indexLocked(parentID) < 0 {
		return nil, fmt.Errorf("loading subtasks of %d: %w", parentID, ErrTaskNotFound)
	}
	children := make([]models.Task, 0)
	for _, t := range s.data.Tasks {
		if t.HasParent(parentID) {
			children = append(children, t)
		}
	}
	return children, nil
}

// DeleteTask removes taskID, every descendant, and their time logs, then
// saves the snapshot. The in-memory workspace only changes once the save
// succeeds.
func (s *WorkspaceStore) DeleteTask(ctx context.Context, taskID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(taskID) < 0 {
		return fmt.Errorf("deleting task %d: %w", taskID, ErrTaskNotFound)
	}
	doomed := s.subtreeLocked(taskID)

	next := WorkspaceFile{Version: s.data.Version}
	next.Tasks = make([]models.Task, 0, len(s.data.Tasks))
	for _, t := range s.data.Tasks {
		if !doomed[t.ID] {
			next.Tasks = append(next.Tasks, t)
		}
	}
	next.TimeLogs = make([]models.TimeLog, 0, len(s.data.TimeLogs))
	for _, l := range s.data.TimeLogs {
		if !doomed[l.TaskID] {
			next.TimeLogs = append(next.TimeLogs, l)
		}
	}

	if err := s.writeLocked(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// subtreeLocked returns taskID and all of its descendants.
func (s *WorkspaceStore) subtreeLocked(taskID int64) map[int64]bool {
	doomed := map[int64]bool{taskID: true}
	queue := []int64{taskID}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, t := range s.data.Tasks {
			if t.HasParent(parent) && !doomed[t.ID] {
				doomed[t.ID] = true
				queue = append(queue, t.ID)
			}
		}
	}
	return doomed
}

// RootTasks returns tasks without a parent. projectID 0 means any project.
func (s *WorkspaceStore) RootTasks(ctx context.Context, projectID int64) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	roots := make([]models.Task, 0)
	for _, t := range s.data.Tasks {
		if t.IsRoot() && (projectID == 0 || t.ProjectID == projectID) {
			roots = append(roots, t)
		}
	}
	return roots, nil
}

// TasksInRange returns tasks with a start, end, or due date inside r.
func (s *WorkspaceStore) TasksInRange(ctx context.Context, r core.DateRange) ([]models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Task
	for _, t := range s.data.Tasks {
		for _, d := range t.Dates() {
			if r.Contains(d.Time) {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// TimeLogsInRange returns time logs created inside r.
func (s *WorkspaceStore) TimeLogsInRange(ctx context.Context, r core.DateRange) ([]models.TimeLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TimeLog
	for _, l := range s.data.TimeLogs {
		if !l.CreatedOn.IsZero() && r.Contains(l.CreatedOn.Time) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *WorkspaceStore) indexLocked(taskID int64) int {
	for i, t := range s.data.Tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

var _ core.Workspace = (*WorkspaceStore)(nil)
