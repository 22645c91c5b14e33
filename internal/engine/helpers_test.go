package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskflow/pkg/api"
)

var (
	startSequence = []api.EventType{
		api.EventProcessCreated,
		api.EventProcessStarted,
		api.EventActivityStarted,
		api.EventActivityCompleted,
		api.EventSequenceFlowTaken,
		api.EventActivityStarted,
		api.EventTaskCreated,
		api.EventTaskAssigned,
	}

	completeSequence = []api.EventType{
		api.EventTaskCompleted,
		api.EventActivityCompleted,
		api.EventSequenceFlowTaken,
		api.EventActivityStarted,
		api.EventActivityCompleted,
		api.EventProcessCompleted,
	}
)

// userTaskDefinition is start -> review (assigned to assignee) -> end.
func userTaskDefinition(key, assignee string) api.ProcessDefinition {
	return api.ProcessDefinition{
		Key:  key,
		Name: "User task",
		Nodes: []api.Node{
			{ID: "start", Kind: api.NodeStartEvent},
			{ID: "review", Name: "Review", Kind: api.NodeUserTask, Assignee: assignee},
			{ID: "end", Kind: api.NodeEndEvent},
		},
		Flows: []api.SequenceFlow{
			{ID: "flow-1", Source: "start", Target: "review"},
			{ID: "flow-2", Source: "review", Target: "end"},
		},
	}
}

// serviceTaskDefinition is start -> work (running action) -> end.
func serviceTaskDefinition(key string, action api.ActionFunc) api.ProcessDefinition {
	return api.ProcessDefinition{
		Key: key,
		Nodes: []api.Node{
			{ID: "start", Kind: api.NodeStartEvent},
			{ID: "work", Kind: api.NodeServiceTask, Action: action},
			{ID: "end", Kind: api.NodeEndEvent},
		},
		Flows: []api.SequenceFlow{
			{ID: "flow-1", Source: "start", Target: "work"},
			{ID: "flow-2", Source: "work", Target: "end"},
		},
	}
}

func deploy(t *testing.T, rt api.Runtime, def api.ProcessDefinition) {
	t.Helper()
	require.NoError(t, rt.Deploy(def))
}

func start(t *testing.T, rt api.Runtime, actor, key string) *api.ProcessInstance {
	t.Helper()
	inst, err := rt.Start(context.Background(), actor, api.StartPayload{
		DefinitionKey: key,
		BusinessKey:   "my-business-key",
		Name:          "my-process-instance-name",
	})
	require.NoError(t, err)
	return inst
}

func onlyTask(t *testing.T, rt api.Runtime, actor string) *api.Task {
	t.Helper()
	page, err := rt.Tasks(context.Background(), actor, api.PageOf(0, 50))
	require.NoError(t, err)
	require.Equal(t, 1, page.TotalItems)
	require.Len(t, page.Content, 1)
	return page.Content[0]
}
