package api

import "time"

// TaskStatus represents the lifecycle state of a user task.
type TaskStatus string

const (
	TaskCreated   TaskStatus = "CREATED"
	TaskAssigned  TaskStatus = "ASSIGNED"
	TaskCompleted TaskStatus = "COMPLETED"
	TaskCancelled TaskStatus = "CANCELLED"
)

// Open reports whether a task in this status still waits for completion.
func (s TaskStatus) Open() bool {
	return s == TaskCreated || s == TaskAssigned
}

// Task is a unit of human work created when a process instance reaches a
// user task.
type Task struct {
	ID   string
	Name string

	ProcessInstanceID    string
	ProcessDefinitionKey string
	ActivityID           string

	// Assignee is empty for unassigned tasks.
	Assignee string
	Status   TaskStatus

	CreatedAt time.Time
	EndedAt   time.Time
}

// Clone returns a copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// CompletePayload carries the arguments of a task completion. Variables are
// merged into the owning process instance before it resumes.
type CompletePayload struct {
	TaskID    string
	Variables map[string]any
}
