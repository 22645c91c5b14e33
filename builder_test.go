package taskflow

import (
	"context"
	"errors"
	"testing"
)

func TestProcessBuilder_BuildAddsEventsAndFlows(t *testing.T) {
	def, err := NewProcess("builder-sample").
		Named("Builder sample").
		ServiceTask("prepare", nil).
		UserTask("review", "Review", Initiator).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if def.Key != "builder-sample" || def.Name != "Builder sample" {
		t.Fatalf("unexpected key/name: %q/%q", def.Key, def.Name)
	}

	wantNodes := []string{StartEventID, "prepare", "review", EndEventID}
	if len(def.Nodes) != len(wantNodes) {
		t.Fatalf("expected %d nodes, got %d", len(wantNodes), len(def.Nodes))
	}
	for i, id := range wantNodes {
		if def.Nodes[i].ID != id {
			t.Fatalf("node %d: expected %q, got %q", i, id, def.Nodes[i].ID)
		}
	}

	if len(def.Flows) != 3 {
		t.Fatalf("expected 3 flows, got %d", len(def.Flows))
	}
	last := def.Flows[2]
	if last.ID != "flow-3" || last.Source != "review" || last.Target != EndEventID {
		t.Fatalf("unexpected last flow: %+v", last)
	}
}

func TestProcessBuilder_EmptyProcessGoesStraightToEnd(t *testing.T) {
	rt := NewInMemoryRuntime()
	if err := NewProcess("empty").Deploy(rt); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	inst, err := rt.Start(context.Background(), "user1", StartPayload{DefinitionKey: "empty"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if inst.Status != ProcessCompleted {
		t.Fatalf("expected COMPLETED, got %s", inst.Status)
	}
}

func TestProcessBuilder_RejectsInvalidDefinitions(t *testing.T) {
	_, err := NewProcess("").UserTask("review", "Review", "user1").Build()
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition for empty key, got %v", err)
	}

	_, err = NewProcess("dup").
		UserTask("review", "Review", "user1").
		UserTask("review", "Review again", "user1").
		Build()
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition for duplicate node, got %v", err)
	}

	_, err = NewProcess("clash").ServiceTask(EndEventID, nil).Build()
	if !errors.Is(err, ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition for reserved node id, got %v", err)
	}
}

func TestProcessBuilder_MustBuildPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected MustBuild to panic")
		}
	}()
	NewProcess("").MustBuild()
}

func TestProcessBuilder_ServiceTaskSetsVariables(t *testing.T) {
	ctx := context.Background()
	rt := NewInMemoryRuntime()

	err := NewProcess("enrich").
		ServiceTask("enrich", func(ctx context.Context, exec *Execution) error {
			exec.SetVariable("enriched", exec.BusinessKey())
			return nil
		}).
		UserTask("review", "Review", Initiator).
		Deploy(rt)
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	inst, err := rt.Start(ctx, "user1", StartPayload{DefinitionKey: "enrich", BusinessKey: "order-7"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if inst.Variables["enriched"] != "order-7" {
		t.Fatalf("expected enriched variable, got %v", inst.Variables)
	}
	if inst.CurrentActivity != "review" {
		t.Fatalf("expected instance to wait at review, got %q", inst.CurrentActivity)
	}
}
