package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mihovilrak/pm-sub004/pkg/models"
)

var (
	errNoLoader  = errors.New("no child loader configured")
	errNoDeleter = errors.New("no task deleter configured")
)

// ChildLoader fetches the direct children of a task.
type ChildLoader interface {
	LoadChildren(ctx context.Context, parentID int64) ([]models.Task, error)
}

// TaskDeleter deletes a task in the backing system.
type TaskDeleter interface {
	DeleteTask(ctx context.Context, taskID int64) error
}

// ErrorReporter receives failures the tree absorbs instead of returning.
type ErrorReporter interface {
	Error(message string, err error)
}

// Tree operations named in TreeError.
const (
	OpLoad   = "load"
	OpDelete = "delete"
)

// TreeError is the error handed to the ErrorReporter when a child load or a
// delete fails.
type TreeError struct {
	Op     string
	TaskID int64
	Err    error
}

func (e *TreeError) Error() string {
	return fmt.Sprintf("%s task %d: %v", e.Op, e.TaskID, e.Err)
}

func (e *TreeError) Unwrap() error { return e.Err }

// Operation returns Op. It lets reporters outside this package classify
// failures without importing it.
func (e *TreeError) Operation() string { return e.Op }

// Task returns TaskID.
func (e *TreeError) Task() int64 { return e.TaskID }

// NodeState is the fetch state of a node's children.
type NodeState int

const (
	NodeUnfetched NodeState = iota
	NodeLoading
	NodeLoaded
	NodeFailed
)

// String returns the state's name.
func (s NodeState) String() string {
	switch s {
	case NodeUnfetched:
		return "unfetched"
	case NodeLoading:
		return "loading"
	case NodeLoaded:
		return "loaded"
	case NodeFailed:
		return "failed"
	default:
		return fmt.Sprintf("NodeState(%d)", int(s))
	}
}

// TreeRow is one rendered line of the task tree.
type TreeRow struct {
	Task     models.Task `json:"task"`
	Depth    int         `json:"depth"`
	Expanded bool        `json:"expanded"`
	Loading  bool        `json:"loading"`
	State    string      `json:"state"`
	// Expandable is false only when the node is known to have no children.
	Expandable bool `json:"expandable"`
}

// TaskTree caches the children of task nodes as they are expanded and
// renders the expanded forest as a flat list of indented rows.
//
// Tasks are stored once by ID; each parent maps to an ordered list of child
// IDs. A node's fetch state is tracked separately from whether it is
// expanded, so a node can be expanded while its children are still loading.
// TaskTree is safe for concurrent use; no lock is held while the loader or
// deleter runs.
type TaskTree struct {
	loader   ChildLoader
	deleter  TaskDeleter
	reporter ErrorReporter
	events   EventLogger

	mu       sync.Mutex
	tasks    map[int64]models.Task
	children map[int64][]int64
	state    map[int64]NodeState
	expanded map[int64]bool
}

// TaskTreeOption customises a TaskTree.
type TaskTreeOption func(*TaskTree)

// WithEventLogger records tree activity (children loaded, task deleted).
func WithEventLogger(events EventLogger) TaskTreeOption {
	return func(t *TaskTree) {
		t.events = events
	}
}

// NewTaskTree creates an empty TaskTree. deleter and reporter may be nil;
// without a deleter Delete always fails, without a reporter failures are
// dropped.
func NewTaskTree(loader ChildLoader, deleter TaskDeleter, reporter ErrorReporter, opts ...TaskTreeOption) *TaskTree {
	t := &TaskTree{
		loader:   loader,
		deleter:  deleter,
		reporter: reporter,
		tasks:    make(map[int64]models.Task),
		children: make(map[int64][]int64),
		state:    make(map[int64]NodeState),
		expanded: make(map[int64]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ToggleExpand flips the expansion of taskID and returns whether it is now
// expanded. Expanding a node whose children were never fetched, or whose
// last fetch failed, loads them through the ChildLoader and blocks until the
// load finishes. A failed load is reported and collapses the node again so
// the next toggle retries. Toggling a node that is already loading never
// starts a second fetch.
func (t *TaskTree) ToggleExpand(ctx context.Context, taskID int64) bool {
	t.mu.Lock()
	if t.expanded[taskID] {
		delete(t.expanded, taskID)
		t.mu.Unlock()
		return false
	}
	t.expanded[taskID] = true
	st := t.state[taskID]
	if st == NodeLoaded || st == NodeLoading {
		t.mu.Unlock()
		return true
	}
	t.state[taskID] = NodeLoading
	t.mu.Unlock()

	children, err := t.load(ctx, taskID)

	t.mu.Lock()
	if t.state[taskID] != NodeLoading {
		// Deleted while the fetch was in flight.
		t.mu.Unlock()
		return false
	}
	if err != nil {
		t.state[taskID] = NodeFailed
		delete(t.expanded, taskID)
		t.mu.Unlock()
		t.report(fmt.Sprintf("Failed to load subtasks of task %d", taskID), &TreeError{Op: OpLoad, TaskID: taskID, Err: err})
		return false
	}
	t.storeChildrenLocked(taskID, children)
	expanded := t.expanded[taskID]
	t.mu.Unlock()

	t.logEvent("tree.children_loaded", map[string]any{
		"task_id":  taskID,
		"children": len(children),
	})
	return expanded
}

func (t *TaskTree) load(ctx context.Context, taskID int64) (children []models.Task, err error) {
	if t.loader == nil {
		return nil, errNoLoader
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("child loader panicked: %v", r)
		}
	}()
	return t.loader.LoadChildren(ctx, taskID)
}

func (t *TaskTree) storeChildrenLocked(parentID int64, children []models.Task) {
	ids := make([]int64, 0, len(children))
	for _, c := range children {
		t.tasks[c.ID] = c
		ids = append(ids, c.ID)
	}
	t.children[parentID] = ids
	t.state[parentID] = NodeLoaded
}

// RenderRows flattens roots and every expanded, loaded descendant into rows.
// Children follow their parent immediately, one level deeper, preserving
// input and fetch order.
func (t *TaskTree) RenderRows(roots []models.Task) []TreeRow {
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]TreeRow, 0, len(roots))
	path := make(map[int64]bool)
	for _, root := range roots {
		rows = t.appendRowsLocked(rows, root, 0, path)
	}
	return rows
}

func (t *TaskTree) appendRowsLocked(rows []TreeRow, task models.Task, depth int, path map[int64]bool) []TreeRow {
	if path[task.ID] {
		return rows
	}
	st := t.state[task.ID]
	kids, cached := t.children[task.ID]
	expanded := t.expanded[task.ID]
	rows = append(rows, TreeRow{
		Task:       task,
		Depth:      depth,
		Expanded:   expanded,
		Loading:    st == NodeLoading,
		State:      st.String(),
		Expandable: !(cached && len(kids) == 0),
	})
	if !expanded || !cached {
		return rows
	}
	path[task.ID] = true
	for _, id := range kids {
		child, ok := t.tasks[id]
		if !ok {
			continue
		}
		rows = t.appendRowsLocked(rows, child, depth+1, path)
	}
	delete(path, task.ID)
	return rows
}

// ApplyDeletion removes taskID from the first cached child list that holds
// it and drops the node's own cache entry. It reports whether a list was
// changed; an unknown ID is a no-op.
func (t *TaskTree) ApplyDeletion(taskID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.applyDeletionLocked(taskID)
}

func (t *TaskTree) applyDeletionLocked(taskID int64) bool {
	for parentID, ids := range t.children {
		pos := indexOf(ids, taskID)
		if pos < 0 {
			continue
		}
		kept := make([]int64, 0, len(ids)-1)
		kept = append(kept, ids[:pos]...)
		kept = append(kept, ids[pos+1:]...)
		t.children[parentID] = kept

		delete(t.tasks, taskID)
		delete(t.children, taskID)
		delete(t.state, taskID)
		delete(t.expanded, taskID)
		return true
	}
	return false
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// Delete removes taskID through the TaskDeleter and, only when that
// succeeds, from the cached tree. Failures are reported and leave the tree
// untouched. It reports whether the task was deleted.
func (t *TaskTree) Delete(ctx context.Context, taskID int64) bool {
	if t.deleter == nil {
		t.report(fmt.Sprintf("Failed to delete task %d", taskID), &TreeError{Op: OpDelete, TaskID: taskID, Err: errNoDeleter})
		return false
	}
	if err := t.deleter.DeleteTask(ctx, taskID); err != nil {
		t.report(fmt.Sprintf("Failed to delete task %d", taskID), &TreeError{Op: OpDelete, TaskID: taskID, Err: err})
		return false
	}

	t.mu.Lock()
	t.applyDeletionLocked(taskID)
	t.mu.Unlock()

	t.logEvent("tree.task_deleted", map[string]any{"task_id": taskID})
	return true
}

// State returns the fetch state of taskID's children.
func (t *TaskTree) State(taskID int64) NodeState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state[taskID]
}

// IsExpanded reports whether taskID is expanded.
func (t *TaskTree) IsExpanded(taskID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expanded[taskID]
}

// IsLoading reports whether a child fetch for taskID is in flight.
func (t *TaskTree) IsLoading(taskID int64) bool {
	return t.State(taskID) == NodeLoading
}

// Children returns the cached children of taskID. ok is false when they
// have not been fetched, which is distinct from a fetched empty list.
func (t *TaskTree) Children(taskID int64) (children []models.Task, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids, ok := t.children[taskID]
	if !ok {
		return nil, false
	}
	children = make([]models.Task, 0, len(ids))
	for _, id := range ids {
		if c, found := t.tasks[id]; found {
			children = append(children, c)
		}
	}
	return children, true
}

// Progress returns the percentage of taskID's cached children whose status
// is done, or 0 when no children are cached.
func (t *TaskTree) Progress(taskID int64) float64 {
	children, ok := t.Children(taskID)
	if !ok || len(children) == 0 {
		return 0
	}
	done := 0
	for _, c := range children {
		if c.Status == models.StatusDone {
			done++
		}
	}
	return float64(done) / float64(len(children)) * 100
}

func (t *TaskTree) report(message string, err error) {
	if t.reporter != nil {
		t.reporter.Error(message, err)
	}
}

// logEvent records tree activity. Errors are discarded; logging never fails
// a tree operation.
func (t *TaskTree) logEvent(eventType string, data map[string]any) {
	if t.events != nil {
		_ = t.events.LogEvent(eventType, data)
	}
}
