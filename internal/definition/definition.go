// Package definition loads process definitions from YAML files.
//
// A file lists the steps of a linear process; the start event, the end
// event and the sequence flows between consecutive steps are implied:
//
//	key: approval
//	name: Approval
//	steps:
//	  - id: enrich
//	    type: serviceTask
//	    set:
//	      priority: high
//	  - id: review
//	    name: Review request
//	    type: userTask
//	    assignee: ${initiator}
//
// Service tasks either run a named action from an Actions registry or set
// the listed variables.
package definition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/taskflow/pkg/api"
)

// Node IDs of the implied events.
const (
	StartEventID = "start"
	EndEventID   = "end"
)

// ErrUnknownAction is returned when a service task names an action missing
// from the registry.
var ErrUnknownAction = errors.New("unknown action")

// File is the YAML shape of a definition file.
type File struct {
	Key   string `yaml:"key"`
	Name  string `yaml:"name,omitempty"`
	Steps []Step `yaml:"steps"`
}

// Step is one user or service task.
type Step struct {
	ID   string       `yaml:"id"`
	Name string       `yaml:"name,omitempty"`
	Type api.NodeKind `yaml:"type"`

	// Assignee applies to user tasks.
	Assignee string `yaml:"assignee,omitempty"`

	// Action and Set apply to service tasks; at most one may be given.
	Action string         `yaml:"action,omitempty"`
	Set    map[string]any `yaml:"set,omitempty"`
}

// Actions maps action names to service task bodies.
type Actions map[string]api.ActionFunc

// BuiltinActions returns the actions every loader knows.
func BuiltinActions() Actions {
	return Actions{
		"noop": func(ctx context.Context, exec *api.Execution) error { return nil },
	}
}

// LoadFile reads and parses a definition file.
func LoadFile(path string, actions Actions) (api.ProcessDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.ProcessDefinition{}, fmt.Errorf("read definition file: %w", err)
	}
	def, err := Parse(data, actions)
	if err != nil {
		return api.ProcessDefinition{}, fmt.Errorf("%s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a definition document and validates the result. Unknown
// fields are rejected.
func Parse(data []byte, actions Actions) (api.ProcessDefinition, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return api.ProcessDefinition{}, fmt.Errorf("%w: parse YAML: %v", api.ErrInvalidDefinition, err)
	}
	return f.Definition(actions)
}

// Definition converts the file into a validated process definition.
func (f File) Definition(actions Actions) (api.ProcessDefinition, error) {
	nodes := make([]api.Node, 0, len(f.Steps)+2)
	nodes = append(nodes, api.Node{ID: StartEventID, Kind: api.NodeStartEvent})

	for i, s := range f.Steps {
		node, err := s.node(actions)
		if err != nil {
			return api.ProcessDefinition{}, fmt.Errorf("%w: %s: step %d: %w", api.ErrInvalidDefinition, f.Key, i+1, err)
		}
		nodes = append(nodes, node)
	}
	nodes = append(nodes, api.Node{ID: EndEventID, Kind: api.NodeEndEvent})

	flows := make([]api.SequenceFlow, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		flows = append(flows, api.SequenceFlow{
			ID:     "flow-" + strconv.Itoa(i),
			Source: nodes[i-1].ID,
			Target: nodes[i].ID,
		})
	}

	def := api.ProcessDefinition{
		Key:   f.Key,
		Name:  f.Name,
		Nodes: nodes,
		Flows: flows,
	}
	if err := def.Validate(); err != nil {
		return api.ProcessDefinition{}, err
	}
	return def, nil
}

func (s Step) node(actions Actions) (api.Node, error) {
	n := api.Node{ID: s.ID, Name: s.Name, Kind: s.Type}

	switch s.Type {
	case api.NodeUserTask:
		if s.Action != "" || len(s.Set) > 0 {
			return api.Node{}, fmt.Errorf("user task %q cannot have an action", s.ID)
		}
		n.Assignee = s.Assignee

	case api.NodeServiceTask:
		if s.Assignee != "" {
			return api.Node{}, fmt.Errorf("service task %q cannot have an assignee", s.ID)
		}
		if s.Action != "" && len(s.Set) > 0 {
			return api.Node{}, fmt.Errorf("service task %q has both action and set", s.ID)
		}
		if s.Action != "" {
			fn, ok := actions[s.Action]
			if !ok {
				return api.Node{}, fmt.Errorf("service task %q: %w %q", s.ID, ErrUnknownAction, s.Action)
			}
			n.Action = fn
		}
		if len(s.Set) > 0 {
			n.Action = setVariables(maps.Clone(s.Set))
		}

	default:
		return api.Node{}, fmt.Errorf("step %q: type must be %s or %s, got %q",
			s.ID, api.NodeUserTask, api.NodeServiceTask, s.Type)
	}
	return n, nil
}

func setVariables(vars map[string]any) api.ActionFunc {
	return func(ctx context.Context, exec *api.Execution) error {
		for k, v := range vars {
			exec.SetVariable(k, v)
		}
		return nil
	}
}
