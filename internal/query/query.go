// Package query implements the read side of the runtime: actor scoping,
// deterministic ordering and pagination over the persistence stores.
package query

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/pkg/api"
)

// openStatuses are the task statuses that appear in an actor's task list.
var openStatuses = []api.TaskStatus{api.TaskCreated, api.TaskAssigned}

// Paginate cuts one page out of items. items must already be ordered.
func Paginate[T any](items []T, page api.Pageable) (api.Page[T], error) {
	if err := page.Validate(); err != nil {
		return api.Page[T]{}, err
	}
	total := len(items)
	if page.Offset >= total {
		return api.Page[T]{Content: []T{}, TotalItems: total}, nil
	}
	end := page.Offset + min(page.Size, total-page.Offset)
	return api.Page[T]{
		Content:    slices.Clone(items[page.Offset:end]),
		TotalItems: total,
	}, nil
}

// Queries answers read requests against a set of stores.
type Queries struct {
	Instances persistence.InstanceStore
	Tasks     persistence.TaskStore
}

// New returns Queries over the given stores.
func New(instances persistence.InstanceStore, tasks persistence.TaskStore) *Queries {
	return &Queries{Instances: instances, Tasks: tasks}
}

// Instance returns a process instance by ID.
func (q *Queries) Instance(ctx context.Context, id string) (*api.ProcessInstance, error) {
	inst, err := q.Instances.GetInstance(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrInstanceNotFound) {
			return nil, fmt.Errorf("process instance %s: %w", id, api.ErrNotFound)
		}
		return nil, err
	}
	return inst, nil
}

// Instances returns one page of instances matching filter, oldest first.
func (q *Queries) Instances(ctx context.Context, page api.Pageable, filter api.ProcessInstanceFilter) (api.Page[*api.ProcessInstance], error) {
	if err := page.Validate(); err != nil {
		return api.Page[*api.ProcessInstance]{}, err
	}
	list, err := q.Instances.ListInstances(ctx, persistence.InstanceFilter{
		DefinitionKey: filter.DefinitionKey,
		Status:        filter.Status,
	})
	if err != nil {
		return api.Page[*api.ProcessInstance]{}, err
	}
	slices.SortFunc(list, func(a, b *api.ProcessInstance) int { return cmp.Compare(a.ID, b.ID) })
	return Paginate(list, page)
}

// VisibleTask returns the task with the given ID if it is assigned to actor.
// Tasks of other actors, unassigned tasks and missing tasks all yield
// api.ErrNotFound.
func (q *Queries) VisibleTask(ctx context.Context, actor, id string) (*api.Task, error) {
	t, err := q.Tasks.GetTask(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrTaskNotFound) {
			return nil, fmt.Errorf("task %s: %w", id, api.ErrNotFound)
		}
		return nil, err
	}
	if t.Assignee == "" || t.Assignee != actor {
		return nil, fmt.Errorf("task %s: %w", id, api.ErrNotFound)
	}
	return t, nil
}

// ActorTasks returns one page of the open tasks assigned to actor, in
// creation order.
func (q *Queries) ActorTasks(ctx context.Context, actor string, page api.Pageable) (api.Page[*api.Task], error) {
	if err := page.Validate(); err != nil {
		return api.Page[*api.Task]{}, err
	}
	list, err := q.Tasks.ListTasks(ctx, persistence.TaskFilter{
		Assignee: actor,
		Statuses: openStatuses,
	})
	if err != nil {
		return api.Page[*api.Task]{}, err
	}
	slices.SortFunc(list, func(a, b *api.Task) int { return cmp.Compare(a.ID, b.ID) })
	return Paginate(list, page)
}

// InstanceTasks returns every task of a process instance, in creation order.
func (q *Queries) InstanceTasks(ctx context.Context, instanceID string, statuses ...api.TaskStatus) ([]*api.Task, error) {
	list, err := q.Tasks.ListTasks(ctx, persistence.TaskFilter{
		ProcessInstanceID: instanceID,
		Statuses:          statuses,
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(list, func(a, b *api.Task) int { return cmp.Compare(a.ID, b.ID) })
	return list, nil
}
