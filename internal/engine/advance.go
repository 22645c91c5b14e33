package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/pkg/api"
)

// operation stages the effects of one state-changing call. Nothing reaches
// the stores or the bus until commit.
type operation struct {
	e     *engineImpl
	ctx   context.Context
	actor string
	def   api.ProcessDefinition
	inst  *api.ProcessInstance

	newInstance bool
	created     []*api.Task
	updated     []*api.Task
	events      []api.RuntimeEvent
}

func (e *engineImpl) newOperation(ctx context.Context, actor string, def api.ProcessDefinition, inst *api.ProcessInstance) *operation {
	return &operation{e: e, ctx: ctx, actor: actor, def: def, inst: inst}
}

func (op *operation) emit(ev api.RuntimeEvent) {
	ev.ID = newID()
	ev.At = op.e.now()
	ev.ProcessInstanceID = op.inst.ID
	ev.ProcessDefinitionKey = op.inst.DefinitionKey
	ev.BusinessKey = op.inst.BusinessKey
	ev.Actor = op.actor
	op.events = append(op.events, ev)
}

func (op *operation) processEvent(typ api.EventType) {
	op.emit(api.RuntimeEvent{Type: typ})
}

func (op *operation) activityEvent(typ api.EventType, node api.Node) {
	op.emit(api.RuntimeEvent{Type: typ, ActivityID: node.ID, ActivityType: node.Kind})
}

func (op *operation) taskEvent(typ api.EventType, t *api.Task) {
	op.emit(api.RuntimeEvent{
		Type:         typ,
		ActivityID:   t.ActivityID,
		ActivityType: api.NodeUserTask,
		TaskID:       t.ID,
		Assignee:     t.Assignee,
	})
}

// enter moves the token into node and keeps it moving until it reaches a
// user task or an end event.
func (op *operation) enter(node api.Node) error {
	for {
		op.inst.CurrentActivity = node.ID
		op.activityEvent(api.EventActivityStarted, node)

		switch node.Kind {
		case api.NodeUserTask:
			op.createTask(node)
			return nil
		case api.NodeServiceTask:
			if node.Action != nil {
				if err := node.Action(op.ctx, api.NewExecution(op.inst, node)); err != nil {
					return fmt.Errorf("service task %s of %s: %w", node.ID, op.def.Key, err)
				}
			}
		}
		op.activityEvent(api.EventActivityCompleted, node)

		if node.Kind == api.NodeEndEvent {
			op.finish()
			return nil
		}

		next, err := op.take(node)
		if err != nil {
			return err
		}
		node = next
	}
}

// leave completes a suspended user task activity and moves on.
func (op *operation) leave(node api.Node) error {
	op.activityEvent(api.EventActivityCompleted, node)
	next, err := op.take(node)
	if err != nil {
		return err
	}
	return op.enter(next)
}

// take follows the single outgoing flow of node.
func (op *operation) take(node api.Node) (api.Node, error) {
	flow, ok := op.def.Outgoing(node.ID)
	if !ok {
		return api.Node{}, fmt.Errorf("%w: %s: node %q has no outgoing flow", api.ErrInvalidDefinition, op.def.Key, node.ID)
	}
	target, ok := op.def.Node(flow.Target)
	if !ok {
		return api.Node{}, fmt.Errorf("%w: %s: flow %q has unknown target %q", api.ErrInvalidDefinition, op.def.Key, flow.ID, flow.Target)
	}
	op.emit(api.RuntimeEvent{
		Type:             api.EventSequenceFlowTaken,
		FlowID:           flow.ID,
		SourceActivityID: flow.Source,
		TargetActivityID: flow.Target,
	})
	return target, nil
}

func (op *operation) createTask(node api.Node) {
	t := &api.Task{
		ID:                   newID(),
		Name:                 node.Name,
		ProcessInstanceID:    op.inst.ID,
		ProcessDefinitionKey: op.inst.DefinitionKey,
		ActivityID:           node.ID,
		Status:               api.TaskCreated,
		CreatedAt:            op.e.now(),
	}
	if t.Name == "" {
		t.Name = node.ID
	}
	op.created = append(op.created, t)
	op.taskEvent(api.EventTaskCreated, t)

	if assignee := op.resolveAssignee(node); assignee != "" {
		t.Assignee = assignee
		t.Status = api.TaskAssigned
		op.taskEvent(api.EventTaskAssigned, t)
	}
}

func (op *operation) resolveAssignee(node api.Node) string {
	if node.Assignee == api.InitiatorAssignee {
		return op.inst.Initiator
	}
	return node.Assignee
}

func (op *operation) finish() {
	op.inst.Status = api.ProcessCompleted
	op.inst.EndedAt = op.e.now()
	op.processEvent(api.EventProcessCompleted)
}

// commit writes the staged state and publishes the staged events. Nothing is
// published when the write fails. A listener failure is returned after the
// state has been committed.
func (op *operation) commit() error {
	ctx := op.ctx
	if err := op.e.committer.Commit(ctx, persistence.Change{
		Instance:    op.inst,
		NewInstance: op.newInstance,
		Created:     op.created,
		Updated:     op.updated,
	}); err != nil {
		return op.storeFailed(err)
	}

	if err := op.e.bus.Publish(ctx, op.events...); err != nil {
		op.e.logger.WarnContext(ctx, "listener failed",
			"instance_id", op.inst.ID,
			"error", err,
		)
		return err
	}
	return nil
}

// afterCommit keeps the result of a committed operation when only a listener
// failed, and drops it for any other error.
func afterCommit[T any](v T, err error) (T, error) {
	var lerr *api.ListenerError
	if err == nil || errors.As(err, &lerr) {
		return v, err
	}
	var zero T
	return zero, err
}

func (op *operation) storeFailed(err error) error {
	op.e.logger.ErrorContext(op.ctx, "commit failed",
		"instance_id", op.inst.ID,
		"error", err,
	)
	return fmt.Errorf("commit instance %s: %w", op.inst.ID, err)
}

// cloneVariables copies vars and normalizes an empty map to nil, which is how
// every store reads an instance without variables back.
func cloneVariables(vars map[string]any) map[string]any {
	if len(vars) == 0 {
		return nil
	}
	return maps.Clone(vars)
}

// mergeVariables applies vars on top of the instance variables.
func mergeVariables(inst *api.ProcessInstance, vars map[string]any) {
	if len(vars) == 0 {
		return
	}
	if inst.Variables == nil {
		inst.Variables = make(map[string]any, len(vars))
	}
	maps.Copy(inst.Variables, vars)
}
