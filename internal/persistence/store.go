package persistence

import (
	"context"
	"errors"
	"slices"

	"github.com/petrijr/taskflow/pkg/api"
)

var (
	// ErrDefinitionNotFound is returned when a process definition is not found.
	ErrDefinitionNotFound = errors.New("definition not found")

	// ErrDefinitionExists is returned when a definition key is saved twice.
	ErrDefinitionExists = errors.New("definition already exists")

	// ErrInstanceNotFound is returned when a process instance is not found.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrTaskNotFound is returned when a task is not found.
	ErrTaskNotFound = errors.New("task not found")
)

// DefinitionStore handles storage of process definitions.
type DefinitionStore interface {
	SaveDefinition(ctx context.Context, def api.ProcessDefinition) error
	GetDefinition(ctx context.Context, key string) (api.ProcessDefinition, error)
	ListDefinitions(ctx context.Context) ([]api.ProcessDefinition, error)
}

// InstanceFilter is used to select instances from the store.
// Empty string / zero status mean "no filter" for that field.
type InstanceFilter struct {
	DefinitionKey string
	Status        api.ProcessStatus
}

// Matches reports whether inst passes the filter.
func (f InstanceFilter) Matches(inst *api.ProcessInstance) bool {
	if f.DefinitionKey != "" && inst.DefinitionKey != f.DefinitionKey {
		return false
	}
	if f.Status != "" && inst.Status != f.Status {
		return false
	}
	return true
}

// InstanceStore handles storage of process instances.
type InstanceStore interface {
	SaveInstance(ctx context.Context, inst *api.ProcessInstance) error
	UpdateInstance(ctx context.Context, inst *api.ProcessInstance) error
	GetInstance(ctx context.Context, id string) (*api.ProcessInstance, error)
	ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.ProcessInstance, error)
}

// TaskFilter is used to select tasks from the store.
// Empty fields mean "no filter" for that field.
type TaskFilter struct {
	Assignee          string
	ProcessInstanceID string
	Statuses          []api.TaskStatus
}

// Matches reports whether t passes the filter.
func (f TaskFilter) Matches(t *api.Task) bool {
	if f.Assignee != "" && t.Assignee != f.Assignee {
		return false
	}
	if f.ProcessInstanceID != "" && t.ProcessInstanceID != f.ProcessInstanceID {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	return true
}

// TaskStore handles storage of user tasks.
type TaskStore interface {
	SaveTask(ctx context.Context, t *api.Task) error
	UpdateTask(ctx context.Context, t *api.Task) error
	GetTask(ctx context.Context, id string) (*api.Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]*api.Task, error)
}

// Change is the set of writes made by one runtime operation.
type Change struct {
	Instance    *api.ProcessInstance
	NewInstance bool
	Created     []*api.Task
	Updated     []*api.Task
}

// Committer applies a Change as a unit: either every write lands or none
// does. A missing instance or task on update fails the whole Change with
// ErrInstanceNotFound or ErrTaskNotFound.
type Committer interface {
	Commit(ctx context.Context, c Change) error
}
