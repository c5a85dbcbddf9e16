package models

import "time"

// User is a person who reports, works or manages tasks.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      UserRole  `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a work item moving through the workflow. Hierarchy is kept as a
// parent id; Subtasks is only populated by reads that ask for it.
type Task struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Type           TaskType   `json:"task_type"`
	Status         TaskStatus `json:"task_status"`
	StoryPoints    *int       `json:"story_points,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	ActualHours    *float64   `json:"actual_hours,omitempty"`
	ReporterID     int64      `json:"reporter_id"`
	AssigneeID     *int64     `json:"assignee_id,omitempty"`
	ParentID       *int64     `json:"parent_task_id,omitempty"`
	Subtasks       []Task     `json:"subtasks,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// IsSubtask reports whether the task hangs under a parent, whatever its type.
func (t *Task) IsSubtask() bool {
	return t.ParentID != nil
}

// HasSubtasks reports whether loaded children exist.
func (t *Task) HasSubtasks() bool {
	return len(t.Subtasks) > 0
}

// IsReporter reports whether userID created the task.
func (t *Task) IsReporter(userID int64) bool {
	return t.ReporterID == userID
}

// IsAssignee reports whether userID is the current assignee.
func (t *Task) IsAssignee(userID int64) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// CanTransitionTo reports whether target is one step away from the current status.
func (t *Task) CanTransitionTo(target TaskStatus) bool {
	return CanTransition(t.Status, target)
}

// TransitionTo moves the task to target. The task is left untouched when the
// edge does not exist. CompletedAt is only stamped the first time DONE is reached.
func (t *Task) TransitionTo(target TaskStatus, now time.Time) error {
	if !t.CanTransitionTo(target) {
		return &TransitionError{TaskID: t.ID, From: t.Status, To: target}
	}
	t.Status = target
	t.UpdatedAt = now
	if target == StatusDone && t.CompletedAt == nil {
		completed := now
		t.CompletedAt = &completed
	}
	return nil
}

// Touch records a mutation time.
func (t *Task) Touch(now time.Time) {
	t.UpdatedAt = now
}

// TaskFilter narrows task listings. Zero values mean "any".
type TaskFilter struct {
	AssigneeID   *int64
	ReporterID   *int64
	Status       TaskStatus
	Type         TaskType
	ParentID     *int64
	TopLevelOnly bool
	// InvolvedUserID matches tasks reported by or assigned to the user.
	InvolvedUserID *int64
	DueBefore      *time.Time
	ExcludeStatus  TaskStatus
}
