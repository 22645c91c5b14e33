package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/pkg/api"
)

// Start creates an instance and advances it until it waits at a user task or
// ends. If a listener fails, the started instance is returned together with
// the *api.ListenerError.
func (e *engineImpl) Start(ctx context.Context, actor string, p api.StartPayload) (*api.ProcessInstance, error) {
	if err := e.authenticate(actor); err != nil {
		return nil, err
	}
	def, err := e.definition(ctx, p.DefinitionKey)
	if err != nil {
		return nil, err
	}
	start, ok := def.StartNode()
	if !ok {
		return nil, fmt.Errorf("%w: %s: no start event", api.ErrInvalidDefinition, def.Key)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inst := &api.ProcessInstance{
		ID:            newID(),
		DefinitionKey: def.Key,
		BusinessKey:   p.BusinessKey,
		Name:          p.Name,
		Initiator:     actor,
		Status:        api.ProcessCreated,
		Variables:     cloneVariables(p.Variables),
		StartedAt:     e.now(),
	}

	op := e.newOperation(ctx, actor, def, inst)
	op.newInstance = true
	op.processEvent(api.EventProcessCreated)

	inst.Status = api.ProcessRunning
	op.processEvent(api.EventProcessStarted)

	if err := op.enter(start); err != nil {
		return nil, err
	}
	if err := op.commit(); err != nil {
		return afterCommit(inst.Clone(), err)
	}
	e.logger.DebugContext(ctx, "process started",
		"instance_id", inst.ID,
		"process", def.Key,
		"status", inst.Status,
		"activity", inst.CurrentActivity,
	)
	return inst.Clone(), nil
}

func (e *engineImpl) ProcessInstance(ctx context.Context, actor string, id string) (*api.ProcessInstance, error) {
	if err := e.authenticate(actor); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.queries.Instance(ctx, id)
}

func (e *engineImpl) ProcessInstances(ctx context.Context, actor string, page api.Pageable, filter api.ProcessInstanceFilter) (api.Page[*api.ProcessInstance], error) {
	if err := e.authenticate(actor); err != nil {
		return api.Page[*api.ProcessInstance]{}, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.queries.Instances(ctx, page, filter)
}

// Cancel stops a running instance. Open tasks are cancelled first, then the
// activity the token waits at, then the instance itself.
func (e *engineImpl) Cancel(ctx context.Context, actor string, id string) (*api.ProcessInstance, error) {
	if err := e.authenticate(actor); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inst, err := e.queries.Instance(ctx, id)
	if err != nil {
		return nil, err
	}
	if inst.Status != api.ProcessRunning {
		return nil, fmt.Errorf("%w: cannot cancel instance %s in status %s", api.ErrInvalidState, id, inst.Status)
	}
	def, err := e.definition(ctx, inst.DefinitionKey)
	if err != nil {
		return nil, err
	}

	open, err := e.queries.InstanceTasks(ctx, id, api.TaskCreated, api.TaskAssigned)
	if err != nil {
		return nil, err
	}

	op := e.newOperation(ctx, actor, def, inst)
	for _, t := range open {
		t.Status = api.TaskCancelled
		t.EndedAt = e.now()
		op.updated = append(op.updated, t)
		op.taskEvent(api.EventTaskCancelled, t)
	}
	if node, ok := def.Node(inst.CurrentActivity); ok {
		op.activityEvent(api.EventActivityCancelled, node)
	}
	inst.Status = api.ProcessCancelled
	inst.EndedAt = e.now()
	op.processEvent(api.EventProcessCancelled)

	return afterCommit(inst.Clone(), op.commit())
}

// ProcessHistory returns the recorded events of an instance in emission
// order. Unlike Events, it is not affected by ClearEvents.
func (e *engineImpl) ProcessHistory(ctx context.Context, actor string, id string) ([]api.RuntimeEvent, error) {
	if err := e.authenticate(actor); err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if _, err := e.instances.GetInstance(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrInstanceNotFound) {
			return nil, fmt.Errorf("process instance %s: %w", id, api.ErrNotFound)
		}
		return nil, err
	}
	return e.history.ListEvents(ctx, id)
}
