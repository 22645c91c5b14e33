package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/taskflow/pkg/api"
)

// The contract tests below are shared by every InstanceStore and TaskStore
// implementation. Each store test file runs them against its own backend.

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleInstance(id, defKey string, status api.ProcessStatus) *api.ProcessInstance {
	return &api.ProcessInstance{
		ID:              id,
		DefinitionKey:   defKey,
		BusinessKey:     "bk-" + id,
		Name:            "instance " + id,
		Initiator:       "user1",
		Status:          status,
		CurrentActivity: "review",
		Variables:       map[string]any{"amount": 42, "approved": false},
		StartedAt:       baseTime,
	}
}

func sampleTask(id, instanceID, assignee string, status api.TaskStatus) *api.Task {
	return &api.Task{
		ID:                   id,
		Name:                 "Review",
		ProcessInstanceID:    instanceID,
		ProcessDefinitionKey: "approval",
		ActivityID:           "review",
		Assignee:             assignee,
		Status:               status,
		CreatedAt:            baseTime,
	}
}

func testInstanceStoreContract(t *testing.T, store InstanceStore) {
	t.Helper()
	ctx := context.Background()

	inst := sampleInstance("inst-1", "approval", api.ProcessRunning)
	require.NoError(t, store.SaveInstance(ctx, inst))

	got, err := store.GetInstance(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, inst, got)

	// Mutating the returned copy must not leak into the store.
	got.Variables["amount"] = 7
	again, err := store.GetInstance(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 42, again.Variables["amount"])

	inst.Status = api.ProcessCompleted
	inst.CurrentActivity = "end"
	inst.Variables["approved"] = true
	inst.EndedAt = baseTime.Add(time.Minute)
	require.NoError(t, store.UpdateInstance(ctx, inst))

	got, err = store.GetInstance(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, api.ProcessCompleted, got.Status)
	assert.Equal(t, true, got.Variables["approved"])
	assert.Equal(t, baseTime.Add(time.Minute), got.EndedAt)

	_, err = store.GetInstance(ctx, "missing")
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	err = store.UpdateInstance(ctx, sampleInstance("missing", "approval", api.ProcessRunning))
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	noVars := sampleInstance("inst-2", "other", api.ProcessRunning)
	noVars.Variables = nil
	require.NoError(t, store.SaveInstance(ctx, noVars))
	require.NoError(t, store.SaveInstance(ctx, sampleInstance("inst-3", "approval", api.ProcessRunning)))

	got, err = store.GetInstance(ctx, "inst-2")
	require.NoError(t, err)
	assert.Nil(t, got.Variables)

	all, err := store.ListInstances(ctx, InstanceFilter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"inst-1", "inst-2", "inst-3"}, instanceIDs(all))

	byDef, err := store.ListInstances(ctx, InstanceFilter{DefinitionKey: "approval"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"inst-1", "inst-3"}, instanceIDs(byDef))

	running, err := store.ListInstances(ctx, InstanceFilter{DefinitionKey: "approval", Status: api.ProcessRunning})
	require.NoError(t, err)
	assert.Equal(t, []string{"inst-3"}, instanceIDs(running))
}

func testTaskStoreContract(t *testing.T, store TaskStore) {
	t.Helper()
	ctx := context.Background()

	task := sampleTask("task-1", "inst-1", "user1", api.TaskAssigned)
	require.NoError(t, store.SaveTask(ctx, task))

	got, err := store.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, task, got)

	require.NoError(t, store.SaveTask(ctx, sampleTask("task-2", "inst-1", "user2", api.TaskAssigned)))
	require.NoError(t, store.SaveTask(ctx, sampleTask("task-3", "inst-2", "", api.TaskCreated)))
	require.NoError(t, store.SaveTask(ctx, sampleTask("task-4", "inst-2", "user1", api.TaskAssigned)))

	open := []api.TaskStatus{api.TaskCreated, api.TaskAssigned}
	mine, err := store.ListTasks(ctx, TaskFilter{Assignee: "user1", Statuses: open})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"task-1", "task-4"}, taskIDs(mine))

	// Completing a task removes it from the open listing.
	task.Status = api.TaskCompleted
	task.EndedAt = baseTime.Add(time.Second)
	require.NoError(t, store.UpdateTask(ctx, task))

	mine, err = store.ListTasks(ctx, TaskFilter{Assignee: "user1", Statuses: open})
	require.NoError(t, err)
	assert.Equal(t, []string{"task-4"}, taskIDs(mine))

	got, err = store.GetTask(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, api.TaskCompleted, got.Status)
	assert.Equal(t, baseTime.Add(time.Second), got.EndedAt)

	// Reassignment moves the task between assignee listings.
	reassigned := sampleTask("task-2", "inst-1", "user1", api.TaskAssigned)
	require.NoError(t, store.UpdateTask(ctx, reassigned))

	mine, err = store.ListTasks(ctx, TaskFilter{Assignee: "user1", Statuses: open})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"task-2", "task-4"}, taskIDs(mine))

	theirs, err := store.ListTasks(ctx, TaskFilter{Assignee: "user2"})
	require.NoError(t, err)
	assert.Empty(t, theirs)

	byInstance, err := store.ListTasks(ctx, TaskFilter{ProcessInstanceID: "inst-2"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"task-3", "task-4"}, taskIDs(byInstance))

	_, err = store.GetTask(ctx, "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	err = store.UpdateTask(ctx, sampleTask("missing", "inst-1", "user1", api.TaskAssigned))
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func testEventStoreContract(t *testing.T, store EventStore) {
	t.Helper()
	ctx := context.Background()

	evs := []api.RuntimeEvent{
		{ID: "e1", Seq: 1, Type: api.EventProcessCreated, At: baseTime, ProcessInstanceID: "inst-1", ProcessDefinitionKey: "approval", BusinessKey: "bk", Actor: "user1"},
		{ID: "e2", Seq: 2, Type: api.EventActivityStarted, At: baseTime, ProcessInstanceID: "inst-1", ActivityID: "start", ActivityType: api.NodeStartEvent},
		{ID: "e3", Seq: 3, Type: api.EventProcessCreated, At: baseTime, ProcessInstanceID: "inst-2"},
		{ID: "e4", Seq: 4, Type: api.EventSequenceFlowTaken, At: baseTime, ProcessInstanceID: "inst-1", FlowID: "f1", SourceActivityID: "start", TargetActivityID: "review"},
		{ID: "e5", Seq: 5, Type: api.EventTaskAssigned, At: baseTime, ProcessInstanceID: "inst-1", TaskID: "task-1", Assignee: "user1"},
	}
	require.NoError(t, store.AppendEvents(ctx, evs[:2]...))
	require.NoError(t, store.AppendEvents(ctx, evs[2:]...))

	got, err := store.ListEvents(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, []api.RuntimeEvent{evs[0], evs[1], evs[3], evs[4]}, got)

	none, err := store.ListEvents(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func instanceIDs(instances []*api.ProcessInstance) []string {
	ids := make([]string, 0, len(instances))
	for _, inst := range instances {
		ids = append(ids, inst.ID)
	}
	return ids
}

func taskIDs(tasks []*api.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

type committingStore interface {
	InstanceStore
	TaskStore
	Committer
}

func testCommitContract(t *testing.T, store committingStore) {
	t.Helper()
	ctx := context.Background()

	inst := sampleInstance("inst-1", "approval", api.ProcessRunning)
	task := sampleTask("task-1", "inst-1", "user1", api.TaskAssigned)
	require.NoError(t, store.Commit(ctx, Change{Instance: inst, NewInstance: true, Created: []*api.Task{task}}))

	assertStatuses := func(wantInst api.ProcessStatus, wantTask api.TaskStatus) {
		t.Helper()
		got, err := store.GetInstance(ctx, "inst-1")
		require.NoError(t, err)
		assert.Equal(t, wantInst, got.Status)
		gotTask, err := store.GetTask(ctx, "task-1")
		require.NoError(t, err)
		assert.Equal(t, wantTask, gotTask.Status)
	}
	assertStatuses(api.ProcessRunning, api.TaskAssigned)

	done := sampleInstance("inst-1", "approval", api.ProcessCompleted)
	doneTask := sampleTask("task-1", "inst-1", "user1", api.TaskCompleted)

	// The second task write fails, so neither the instance nor the first
	// task may change.
	err := store.Commit(ctx, Change{
		Instance: done,
		Updated:  []*api.Task{doneTask, sampleTask("missing", "inst-1", "user1", api.TaskCompleted)},
	})
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assertStatuses(api.ProcessRunning, api.TaskAssigned)

	err = store.Commit(ctx, Change{
		Instance: sampleInstance("inst-2", "approval", api.ProcessRunning),
		Created:  []*api.Task{sampleTask("task-2", "inst-2", "user1", api.TaskAssigned)},
	})
	assert.ErrorIs(t, err, ErrInstanceNotFound)
	_, err = store.GetTask(ctx, "task-2")
	assert.ErrorIs(t, err, ErrTaskNotFound)

	require.NoError(t, store.Commit(ctx, Change{Instance: done, Updated: []*api.Task{doneTask}}))
	assertStatuses(api.ProcessCompleted, api.TaskCompleted)

	open, err := store.ListTasks(ctx, TaskFilter{Assignee: "user1", Statuses: []api.TaskStatus{api.TaskAssigned}})
	require.NoError(t, err)
	assert.Empty(t, open)
}
