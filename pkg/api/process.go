package api

import (
	"context"
	"encoding/gob"
	"fmt"
	"maps"
	"time"
)

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
}

// ProcessStatus represents the lifecycle state of a process instance.
type ProcessStatus string

const (
	ProcessCreated   ProcessStatus = "CREATED"
	ProcessRunning   ProcessStatus = "RUNNING"
	ProcessCompleted ProcessStatus = "COMPLETED"
	ProcessCancelled ProcessStatus = "CANCELLED"
)

// Ended reports whether s is a terminal status.
func (s ProcessStatus) Ended() bool {
	return s == ProcessCompleted || s == ProcessCancelled
}

// NodeKind is the BPMN element type of a node.
type NodeKind string

const (
	NodeStartEvent  NodeKind = "startEvent"
	NodeServiceTask NodeKind = "serviceTask"
	NodeUserTask    NodeKind = "userTask"
	NodeEndEvent    NodeKind = "endEvent"
)

// Automatic reports whether a node of this kind completes without human
// interaction.
func (k NodeKind) Automatic() bool {
	return k == NodeStartEvent || k == NodeServiceTask || k == NodeEndEvent
}

// InitiatorAssignee is an assignee rule that resolves to the actor who
// started the process instance.
const InitiatorAssignee = "${initiator}"

// ActionFunc is the body of a service task. It runs synchronously inside the
// engine's advance loop; returning an error aborts the whole operation and
// nothing is committed or published.
type ActionFunc func(ctx context.Context, exec *Execution) error

// Node is a single element of a process definition.
type Node struct {
	ID   string
	Name string
	Kind NodeKind

	// Assignee is the static assignment rule of a user task: an actor ID,
	// InitiatorAssignee, or empty for an unassigned task.
	Assignee string

	// Action is the optional body of a service task.
	Action ActionFunc
}

// SequenceFlow is a directed transition between two nodes.
type SequenceFlow struct {
	ID     string
	Source string
	Target string
}

// ProcessDefinition describes a process as a graph of nodes and flows.
type ProcessDefinition struct {
	Key   string
	Name  string
	Nodes []Node
	Flows []SequenceFlow
}

// Node looks up a node by ID.
func (d ProcessDefinition) Node(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// StartNode returns the (single) start event of the definition.
func (d ProcessDefinition) StartNode() (Node, bool) {
	for _, n := range d.Nodes {
		if n.Kind == NodeStartEvent {
			return n, true
		}
	}
	return Node{}, false
}

// Outgoing returns the outgoing flow of a node.
func (d ProcessDefinition) Outgoing(nodeID string) (SequenceFlow, bool) {
	for _, f := range d.Flows {
		if f.Source == nodeID {
			return f, true
		}
	}
	return SequenceFlow{}, false
}

// Validate checks the structural rules of a definition. The returned error
// wraps ErrInvalidDefinition.
func (d ProcessDefinition) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("%w: key is required", ErrInvalidDefinition)
	}
	if len(d.Nodes) == 0 {
		return fmt.Errorf("%w: %s: no nodes", ErrInvalidDefinition, d.Key)
	}

	nodes := make(map[string]Node, len(d.Nodes))
	starts := 0
	for _, n := range d.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: %s: node without id", ErrInvalidDefinition, d.Key)
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("%w: %s: duplicate node %q", ErrInvalidDefinition, d.Key, n.ID)
		}
		switch n.Kind {
		case NodeStartEvent:
			starts++
		case NodeServiceTask, NodeUserTask, NodeEndEvent:
		default:
			return fmt.Errorf("%w: %s: node %q has unknown kind %q", ErrInvalidDefinition, d.Key, n.ID, n.Kind)
		}
		if n.Kind != NodeUserTask && n.Assignee != "" {
			return fmt.Errorf("%w: %s: node %q is not a user task but has an assignee", ErrInvalidDefinition, d.Key, n.ID)
		}
		if n.Kind != NodeServiceTask && n.Action != nil {
			return fmt.Errorf("%w: %s: node %q is not a service task but has an action", ErrInvalidDefinition, d.Key, n.ID)
		}
		nodes[n.ID] = n
	}
	if starts != 1 {
		return fmt.Errorf("%w: %s: want exactly one start event, got %d", ErrInvalidDefinition, d.Key, starts)
	}

	outgoing := make(map[string]SequenceFlow, len(d.Flows))
	flowIDs := make(map[string]struct{}, len(d.Flows))
	for _, f := range d.Flows {
		if f.ID == "" {
			return fmt.Errorf("%w: %s: flow without id", ErrInvalidDefinition, d.Key)
		}
		if _, dup := flowIDs[f.ID]; dup {
			return fmt.Errorf("%w: %s: duplicate flow %q", ErrInvalidDefinition, d.Key, f.ID)
		}
		flowIDs[f.ID] = struct{}{}

		src, ok := nodes[f.Source]
		if !ok {
			return fmt.Errorf("%w: %s: flow %q has unknown source %q", ErrInvalidDefinition, d.Key, f.ID, f.Source)
		}
		if _, ok := nodes[f.Target]; !ok {
			return fmt.Errorf("%w: %s: flow %q has unknown target %q", ErrInvalidDefinition, d.Key, f.ID, f.Target)
		}
		if src.Kind == NodeEndEvent {
			return fmt.Errorf("%w: %s: end event %q has an outgoing flow", ErrInvalidDefinition, d.Key, src.ID)
		}
		if _, dup := outgoing[f.Source]; dup {
			return fmt.Errorf("%w: %s: node %q has more than one outgoing flow", ErrInvalidDefinition, d.Key, f.Source)
		}
		outgoing[f.Source] = f
	}

	// Walk the single path from the start event; it must end in an end event
	// and cover every node.
	start, _ := d.StartNode()
	visited := make(map[string]struct{}, len(nodes))
	cur := start
	for {
		if _, seen := visited[cur.ID]; seen {
			return fmt.Errorf("%w: %s: cycle through node %q", ErrInvalidDefinition, d.Key, cur.ID)
		}
		visited[cur.ID] = struct{}{}
		if cur.Kind == NodeEndEvent {
			break
		}
		f, ok := outgoing[cur.ID]
		if !ok {
			return fmt.Errorf("%w: %s: node %q has no outgoing flow", ErrInvalidDefinition, d.Key, cur.ID)
		}
		cur = nodes[f.Target]
	}
	if len(visited) != len(nodes) {
		for _, n := range d.Nodes {
			if _, ok := visited[n.ID]; !ok {
				return fmt.Errorf("%w: %s: node %q is unreachable", ErrInvalidDefinition, d.Key, n.ID)
			}
		}
	}
	return nil
}

// ProcessInstance is one execution of a process definition.
type ProcessInstance struct {
	ID            string
	DefinitionKey string
	BusinessKey   string
	Name          string

	// Initiator is the actor who started the instance.
	Initiator string

	Status ProcessStatus

	// CurrentActivity is the node the token is suspended at, or the last node
	// visited once the instance has ended.
	CurrentActivity string

	Variables map[string]any

	StartedAt time.Time
	EndedAt   time.Time
}

// Clone returns a copy of the instance that shares no mutable state.
func (p *ProcessInstance) Clone() *ProcessInstance {
	if p == nil {
		return nil
	}
	c := *p
	if p.Variables != nil {
		c.Variables = maps.Clone(p.Variables)
	}
	return &c
}

// StartPayload carries the arguments of a process start.
type StartPayload struct {
	DefinitionKey string
	BusinessKey   string
	Name          string
	Variables     map[string]any
}

// ProcessInstanceFilter narrows a process instance listing. Zero values mean
// "no filter" for that field.
type ProcessInstanceFilter struct {
	DefinitionKey string
	Status        ProcessStatus
}

// Execution is the view of a running instance handed to service task
// actions.
type Execution struct {
	instance *ProcessInstance
	activity Node
}

// NewExecution binds inst and the activity being executed. Changes made via
// SetVariable are applied to inst.
func NewExecution(inst *ProcessInstance, activity Node) *Execution {
	return &Execution{instance: inst, activity: activity}
}

func (e *Execution) ProcessInstanceID() string { return e.instance.ID }
func (e *Execution) BusinessKey() string       { return e.instance.BusinessKey }
func (e *Execution) Initiator() string         { return e.instance.Initiator }
func (e *Execution) ActivityID() string        { return e.activity.ID }

// Variable returns a process variable.
func (e *Execution) Variable(name string) (any, bool) {
	v, ok := e.instance.Variables[name]
	return v, ok
}

// SetVariable sets a process variable. Values must be gob-encodable when a
// durable store is used.
func (e *Execution) SetVariable(name string, value any) {
	if e.instance.Variables == nil {
		e.instance.Variables = make(map[string]any)
	}
	e.instance.Variables[name] = value
}
