package models

// TaskStatus is the display status of a task. The calendar and tree code
// treat it as opaque except for StatusDone, which drives subtask progress.
type TaskStatus string

const (
	StatusNew        TaskStatus = "New"
	StatusInProgress TaskStatus = "In Progress"
	StatusOnHold     TaskStatus = "On Hold"
	StatusReview     TaskStatus = "Review"
	StatusDone       TaskStatus = "Done"
	StatusCancelled  TaskStatus = "Cancelled"
)

// Priority represents the urgency level of a task.
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityHigh   Priority = "High"
	PriorityNormal Priority = "Normal"
	PriorityLow    Priority = "Low"
)

// Task is a unit of work inside a project. Tasks form a forest through
// ParentID; a nil ParentID marks a root task.
type Task struct {
	ID            int64      `yaml:"id" json:"id"`
	Name          string     `yaml:"name" json:"name"`
	Description   string     `yaml:"description,omitempty" json:"description,omitempty"`
	ProjectID     int64      `yaml:"project_id,omitempty" json:"project_id,omitempty"`
	ParentID      *int64     `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	Status        TaskStatus `yaml:"status,omitempty" json:"status,omitempty"`
	Priority      Priority   `yaml:"priority,omitempty" json:"priority,omitempty"`
	Progress      int        `yaml:"progress,omitempty" json:"progress,omitempty"`
	EstimatedTime Hours      `yaml:"estimated_time,omitempty" json:"estimated_time,omitempty"`
	SpentTime     Hours      `yaml:"spent_time,omitempty" json:"spent_time,omitempty"`
	StartDate     Timestamp  `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate       Timestamp  `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	DueDate       Timestamp  `yaml:"due_date,omitempty" json:"due_date,omitempty"`
}

// IsRoot reports whether the task has no parent.
func (t Task) IsRoot() bool {
	return t.ParentID == nil
}

// HasParent reports whether the task is a direct child of parentID.
func (t Task) HasParent(parentID int64) bool {
	return t.ParentID != nil && *t.ParentID == parentID
}

// Dates returns the start, end, and due dates that are set, in that order.
func (t Task) Dates() []Timestamp {
	dates := make([]Timestamp, 0, 3)
	for _, d := range []Timestamp{t.StartDate, t.EndDate, t.DueDate} {
		if !d.IsZero() {
			dates = append(dates, d)
		}
	}
	return dates
}

// TimeLog records time spent on a task.
type TimeLog struct {
	ID          int64     `yaml:"id" json:"id"`
	TaskID      int64     `yaml:"task_id" json:"task_id"`
	UserID      int64     `yaml:"user_id,omitempty" json:"user_id,omitempty"`
	CreatedOn   Timestamp `yaml:"created_on" json:"created_on"`
	SpentTime   Hours     `yaml:"spent_time" json:"spent_time"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
}

// ParentRef returns a pointer to id, for building Task.ParentID values.
func ParentRef(id int64) *int64 {
	return &id
}
