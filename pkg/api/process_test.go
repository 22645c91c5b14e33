package api

import (
	"errors"
	"strings"
	"testing"
)

func validDefinition() ProcessDefinition {
	return ProcessDefinition{
		Key: "usertask",
		Nodes: []Node{
			{ID: "start", Kind: NodeStartEvent},
			{ID: "review", Kind: NodeUserTask, Assignee: "user1"},
			{ID: "end", Kind: NodeEndEvent},
		},
		Flows: []SequenceFlow{
			{ID: "f1", Source: "start", Target: "review"},
			{ID: "f2", Source: "review", Target: "end"},
		},
	}
}

func TestProcessDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *ProcessDefinition)
		wantMsg string
	}{
		{name: "valid", mutate: func(d *ProcessDefinition) {}},
		{name: "missing key", mutate: func(d *ProcessDefinition) { d.Key = "" }, wantMsg: "key is required"},
		{name: "no nodes", mutate: func(d *ProcessDefinition) { d.Nodes = nil }, wantMsg: "no nodes"},
		{name: "duplicate node", mutate: func(d *ProcessDefinition) { d.Nodes[2].ID = "review" }, wantMsg: "duplicate node"},
		{name: "unknown kind", mutate: func(d *ProcessDefinition) { d.Nodes[1].Kind = "gateway" }, wantMsg: "unknown kind"},
		{name: "two starts", mutate: func(d *ProcessDefinition) { d.Nodes[1].Kind = NodeStartEvent; d.Nodes[1].Assignee = "" }, wantMsg: "exactly one start"},
		{name: "assignee on end", mutate: func(d *ProcessDefinition) { d.Nodes[2].Assignee = "x" }, wantMsg: "has an assignee"},
		{name: "unknown target", mutate: func(d *ProcessDefinition) { d.Flows[1].Target = "nowhere" }, wantMsg: "unknown target"},
		{name: "flow out of end", mutate: func(d *ProcessDefinition) {
			d.Flows = append(d.Flows, SequenceFlow{ID: "f3", Source: "end", Target: "review"})
		}, wantMsg: "end event"},
		{name: "two outgoing", mutate: func(d *ProcessDefinition) {
			d.Flows = append(d.Flows, SequenceFlow{ID: "f3", Source: "start", Target: "end"})
		}, wantMsg: "more than one outgoing"},
		{name: "dangling node", mutate: func(d *ProcessDefinition) { d.Flows = d.Flows[:1] }, wantMsg: "no outgoing flow"},
		{name: "cycle", mutate: func(d *ProcessDefinition) {
			d.Nodes = append(d.Nodes, Node{ID: "again", Kind: NodeUserTask})
			d.Flows[1].Target = "again"
			d.Flows = append(d.Flows, SequenceFlow{ID: "f3", Source: "again", Target: "review"})
		}, wantMsg: "cycle"},
		{name: "unreachable", mutate: func(d *ProcessDefinition) {
			d.Nodes = append(d.Nodes, Node{ID: "orphan", Kind: NodeEndEvent})
		}, wantMsg: "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDefinition()
			tt.mutate(&d)
			err := d.Validate()
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("expected valid definition, got %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Fatalf("expected ErrInvalidDefinition, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("expected error containing %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestProcessInstance_CloneIsIndependent(t *testing.T) {
	inst := &ProcessInstance{ID: "i", Variables: map[string]any{"a": 1}}
	c := inst.Clone()
	c.Variables["a"] = 2
	if inst.Variables["a"] != 1 {
		t.Fatalf("clone shares variables with original")
	}
}

func TestExecution_Variables(t *testing.T) {
	inst := &ProcessInstance{ID: "inst-1", Initiator: "user1"}
	exec := NewExecution(inst, Node{ID: "work"})

	if _, ok := exec.Variable("x"); ok {
		t.Fatalf("expected no variable")
	}
	exec.SetVariable("x", 42)
	if v, ok := exec.Variable("x"); !ok || v != 42 {
		t.Fatalf("unexpected variable: %v %v", v, ok)
	}
	if inst.Variables["x"] != 42 {
		t.Fatalf("SetVariable did not reach the instance")
	}
	if exec.ActivityID() != "work" || exec.Initiator() != "user1" || exec.ProcessInstanceID() != "inst-1" {
		t.Fatalf("unexpected execution accessors")
	}
}

func TestPageable_Validate(t *testing.T) {
	if err := PageOf(0, 1).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := PageOf(-1, 1).Validate(); !errors.Is(err, ErrInvalidPageable) {
		t.Fatalf("expected ErrInvalidPageable, got %v", err)
	}
	if err := PageOf(0, 0).Validate(); !errors.Is(err, ErrInvalidPageable) {
		t.Fatalf("expected ErrInvalidPageable, got %v", err)
	}
}
