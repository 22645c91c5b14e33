package taskflow

import (
	"fmt"
	"strconv"

	"github.com/petrijr/taskflow/pkg/api"
)

// Node IDs the builder uses for the events it adds itself.
const (
	StartEventID = "start"
	EndEventID   = "end"
)

// ProcessBuilder provides a fluent API for defining linear processes:
//
//	def := taskflow.NewProcess("approval").
//	    Named("Approval").
//	    ServiceTask("enrich", enrich).
//	    UserTask("review", "Review request", taskflow.Initiator).
//	    MustBuild()
//
// The builder adds the start event, the end event and a sequence flow
// between every pair of consecutive nodes.
type ProcessBuilder struct {
	def   api.ProcessDefinition
	nodes []api.Node
}

// NewProcess creates a new process builder for the given definition key.
func NewProcess(key string) *ProcessBuilder {
	return &ProcessBuilder{
		def: api.ProcessDefinition{Key: key},
	}
}

// Key returns the definition key.
func (b *ProcessBuilder) Key() string {
	return b.def.Key
}

// Named sets the human-readable name of the definition.
func (b *ProcessBuilder) Named(name string) *ProcessBuilder {
	b.def.Name = name
	return b
}

// UserTask appends a user task. assignee is an actor ID, Initiator, or empty
// for a task nobody is assigned to.
func (b *ProcessBuilder) UserTask(id, name, assignee string) *ProcessBuilder {
	if id == "" {
		panic("taskflow: user task id must not be empty")
	}
	b.nodes = append(b.nodes, api.Node{
		ID:       id,
		Name:     name,
		Kind:     api.NodeUserTask,
		Assignee: assignee,
	})
	return b
}

// ServiceTask appends an automatic task running action. A nil action makes
// the task a pass-through.
func (b *ProcessBuilder) ServiceTask(id string, action ActionFunc) *ProcessBuilder {
	if id == "" {
		panic("taskflow: service task id must not be empty")
	}
	b.nodes = append(b.nodes, api.Node{
		ID:     id,
		Kind:   api.NodeServiceTask,
		Action: action,
	})
	return b
}

// Build assembles and validates the definition.
func (b *ProcessBuilder) Build() (ProcessDefinition, error) {
	nodes := make([]api.Node, 0, len(b.nodes)+2)
	nodes = append(nodes, api.Node{ID: StartEventID, Kind: api.NodeStartEvent})
	nodes = append(nodes, b.nodes...)
	nodes = append(nodes, api.Node{ID: EndEventID, Kind: api.NodeEndEvent})

	flows := make([]api.SequenceFlow, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		flows = append(flows, api.SequenceFlow{
			ID:     "flow-" + strconv.Itoa(i),
			Source: nodes[i-1].ID,
			Target: nodes[i].ID,
		})
	}

	def := b.def
	def.Nodes = nodes
	def.Flows = flows
	if err := def.Validate(); err != nil {
		return ProcessDefinition{}, err
	}
	return def, nil
}

// MustBuild is like Build but panics on error.
// Useful for initialization in main().
func (b *ProcessBuilder) MustBuild() ProcessDefinition {
	def, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("taskflow: build %q: %v", b.def.Key, err))
	}
	return def
}

// Deploy builds the definition and deploys it to rt.
func (b *ProcessBuilder) Deploy(rt Runtime) error {
	def, err := b.Build()
	if err != nil {
		return err
	}
	return rt.Deploy(def)
}
