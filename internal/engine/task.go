package engine

import (
	"context"
	"fmt"

	"github.com/petrijr/taskflow/pkg/api"
)

func (e *engineImpl) Tasks(ctx context.Context, actor string, page api.Pageable) (api.Page[*api.Task], error) {
	if err := e.authenticate(actor); err != nil {
		return api.Page[*api.Task]{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.queries.ActorTasks(ctx, actor, page)
}

func (e *engineImpl) Task(ctx context.Context, actor string, id string) (*api.Task, error) {
	if err := e.authenticate(actor); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.queries.VisibleTask(ctx, actor, id)
}

// Complete completes the task and resumes its instance up to the next wait
// state. If a listener fails, the completed task is returned together with
// the *api.ListenerError.
func (e *engineImpl) Complete(ctx context.Context, actor string, p api.CompletePayload) (*api.Task, error) {
	if err := e.authenticate(actor); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, op, err := e.openTask(ctx, actor, p.TaskID)
	if err != nil {
		return nil, err
	}
	node, ok := op.def.Node(t.ActivityID)
	if !ok {
		return nil, fmt.Errorf("%w: %s: task %s refers to unknown activity %q", api.ErrInvalidDefinition, op.def.Key, t.ID, t.ActivityID)
	}

	mergeVariables(op.inst, p.Variables)

	t.Status = api.TaskCompleted
	t.EndedAt = e.now()
	op.updated = append(op.updated, t)
	op.taskEvent(api.EventTaskCompleted, t)

	if err := op.leave(node); err != nil {
		return nil, err
	}
	if err := op.commit(); err != nil {
		return afterCommit(t.Clone(), err)
	}
	e.logger.DebugContext(ctx, "task completed",
		"task_id", t.ID,
		"instance_id", op.inst.ID,
		"status", op.inst.Status,
	)
	return t.Clone(), nil
}

// Assign hands a task over from its current assignee to another actor.
// Assigning a task to its current assignee is a no-op.
func (e *engineImpl) Assign(ctx context.Context, actor string, taskID string, assignee string) (*api.Task, error) {
	if err := e.authenticate(actor); err != nil {
		return nil, err
	}
	if assignee == "" {
		return nil, fmt.Errorf("%w: task %s: empty assignee", api.ErrInvalidState, taskID)
	}
	if err := e.authenticate(assignee); err != nil {
		return nil, fmt.Errorf("assignee: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t, op, err := e.openTask(ctx, actor, taskID)
	if err != nil {
		return nil, err
	}
	if t.Assignee == assignee {
		return t, nil
	}

	t.Assignee = assignee
	op.updated = append(op.updated, t)
	op.taskEvent(api.EventTaskAssigned, t)

	return afterCommit(t.Clone(), op.commit())
}

// openTask loads a task that actor may act on, together with an operation
// over its instance.
func (e *engineImpl) openTask(ctx context.Context, actor, id string) (*api.Task, *operation, error) {
	t, err := e.queries.VisibleTask(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != api.TaskAssigned {
		return nil, nil, fmt.Errorf("%w: task %s is %s", api.ErrInvalidState, id, t.Status)
	}

	inst, err := e.queries.Instance(ctx, t.ProcessInstanceID)
	if err != nil {
		return nil, nil, err
	}
	if inst.Status != api.ProcessRunning {
		return nil, nil, fmt.Errorf("%w: instance %s is %s", api.ErrInvalidState, inst.ID, inst.Status)
	}
	def, err := e.definition(ctx, inst.DefinitionKey)
	if err != nil {
		return nil, nil, err
	}
	return t, e.newOperation(ctx, actor, def, inst), nil
}
