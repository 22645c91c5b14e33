package worker

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/petrijr/taskflow/internal/engine"
	"github.com/petrijr/taskflow/internal/taskqueue"
	"github.com/petrijr/taskflow/pkg/api"
)

type runtimeFactory func(t *testing.T) api.Runtime

func inMemoryRuntime(t *testing.T) api.Runtime {
	t.Helper()
	return engine.NewInMemoryEngine()
}

func sqliteRuntime(t *testing.T) api.Runtime {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	rt, err := engine.NewSQLiteEngine(db)
	if err != nil {
		t.Fatalf("NewSQLiteEngine failed: %v", err)
	}
	return rt
}

var factories = map[string]runtimeFactory{
	"in-memory": inMemoryRuntime,
	"sqlite":    sqliteRuntime,
}

func userTaskDefinition() api.ProcessDefinition {
	return api.ProcessDefinition{
		Key: "usertask",
		Nodes: []api.Node{
			{ID: "start", Kind: api.NodeStartEvent},
			{ID: "review", Name: "Review", Kind: api.NodeUserTask, Assignee: api.InitiatorAssignee},
			{ID: "end", Kind: api.NodeEndEvent},
		},
		Flows: []api.SequenceFlow{
			{ID: "flow-1", Source: "start", Target: "review"},
			{ID: "flow-2", Source: "review", Target: "end"},
		},
	}
}

func processAll(t *testing.T, w *Worker) {
	t.Helper()
	for w.Pending() > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		processed, err := w.ProcessOne(ctx)
		cancel()
		if !processed {
			t.Fatalf("expected a command to be processed, got err %v", err)
		}
		if err != nil {
			t.Fatalf("command failed: %v", err)
		}
	}
}

func TestWorker_StartsAndCompletesProcesses(t *testing.T) {
	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rt := factory(t)
			w := New(rt, taskqueue.NewInMemoryQueue(10))

			if err := rt.Deploy(userTaskDefinition()); err != nil {
				t.Fatalf("Deploy failed: %v", err)
			}

			if err := w.EnqueueStartProcess(ctx, "user1", api.StartPayload{
				DefinitionKey: "usertask",
				BusinessKey:   "bk-1",
			}); err != nil {
				t.Fatalf("EnqueueStartProcess failed: %v", err)
			}

			// Nothing runs until the worker picks the command up.
			before, err := rt.ProcessInstances(ctx, "user1", api.PageOf(0, 10), api.ProcessInstanceFilter{})
			if err != nil {
				t.Fatalf("ProcessInstances failed: %v", err)
			}
			if before.TotalItems != 0 {
				t.Fatalf("expected no instances before processing, got %d", before.TotalItems)
			}

			processAll(t, w)

			tasks, err := rt.Tasks(ctx, "user1", api.PageOf(0, 10))
			if err != nil {
				t.Fatalf("Tasks failed: %v", err)
			}
			if tasks.TotalItems != 1 {
				t.Fatalf("expected 1 task, got %d", tasks.TotalItems)
			}

			if err := w.EnqueueCompleteTask(ctx, "user1", api.CompletePayload{
				TaskID:    tasks.Content[0].ID,
				Variables: map[string]any{"approved": true},
			}); err != nil {
				t.Fatalf("EnqueueCompleteTask failed: %v", err)
			}
			processAll(t, w)

			inst, err := rt.ProcessInstance(ctx, "user1", tasks.Content[0].ProcessInstanceID)
			if err != nil {
				t.Fatalf("ProcessInstance failed: %v", err)
			}
			if inst.Status != api.ProcessCompleted {
				t.Fatalf("expected COMPLETED, got %s", inst.Status)
			}
			if inst.Variables["approved"] != true {
				t.Fatalf("expected approved variable, got %v", inst.Variables)
			}
		})
	}
}

func TestWorker_ListenerReactsToAssignment(t *testing.T) {
	ctx := context.Background()
	rt := engine.NewInMemoryEngine()
	w := New(rt, taskqueue.NewInMemoryQueue(10))

	if err := rt.Deploy(userTaskDefinition()); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	// Auto-approve every task as soon as it is assigned.
	rt.RegisterListener(api.ForKinds(api.ListenerFunc(func(ctx context.Context, ev api.RuntimeEvent) error {
		if ev.Type != api.EventTaskAssigned {
			return nil
		}
		return w.EnqueueCompleteTask(ctx, ev.Assignee, api.CompletePayload{TaskID: ev.TaskID})
	}), api.KindTask))

	inst, err := rt.Start(ctx, "user1", api.StartPayload{DefinitionKey: "usertask"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if inst.Status != api.ProcessRunning {
		t.Fatalf("expected RUNNING right after start, got %s", inst.Status)
	}
	if w.Pending() != 1 {
		t.Fatalf("expected 1 pending command, got %d", w.Pending())
	}

	processAll(t, w)

	got, err := rt.ProcessInstance(ctx, "user1", inst.ID)
	if err != nil {
		t.Fatalf("ProcessInstance failed: %v", err)
	}
	if got.Status != api.ProcessCompleted {
		t.Fatalf("expected COMPLETED, got %s", got.Status)
	}
}

func TestWorker_Cancel(t *testing.T) {
	ctx := context.Background()
	rt := engine.NewInMemoryEngine()
	w := New(rt, taskqueue.NewInMemoryQueue(10))

	if err := rt.Deploy(userTaskDefinition()); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	inst, err := rt.Start(ctx, "user1", api.StartPayload{DefinitionKey: "usertask"})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := w.EnqueueCancel(ctx, "admin", inst.ID); err != nil {
		t.Fatalf("EnqueueCancel failed: %v", err)
	}
	processAll(t, w)

	got, err := rt.ProcessInstance(ctx, "user1", inst.ID)
	if err != nil {
		t.Fatalf("ProcessInstance failed: %v", err)
	}
	if got.Status != api.ProcessCancelled {
		t.Fatalf("expected CANCELLED, got %s", got.Status)
	}
}

func TestWorker_ReportsRuntimeErrors(t *testing.T) {
	ctx := context.Background()
	w := New(engine.NewInMemoryEngine(), taskqueue.NewInMemoryQueue(10))

	if err := w.EnqueueStartProcess(ctx, "user1", api.StartPayload{DefinitionKey: "missing"}); err != nil {
		t.Fatalf("EnqueueStartProcess failed: %v", err)
	}

	processed, err := w.ProcessOne(ctx)
	if !processed {
		t.Fatalf("expected command to be processed")
	}
	if !errors.Is(err, api.ErrDefinitionNotFound) {
		t.Fatalf("expected ErrDefinitionNotFound, got %v", err)
	}
}

func TestWorker_UnknownCommand(t *testing.T) {
	ctx := context.Background()
	q := taskqueue.NewInMemoryQueue(10)
	w := New(engine.NewInMemoryEngine(), q)

	if err := q.Enqueue(ctx, taskqueue.Task{Type: "reticulate-splines"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	processed, err := w.ProcessOne(ctx)
	if !processed {
		t.Fatalf("expected command to be processed")
	}
	if !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestWorker_ProcessOneRespectsContext(t *testing.T) {
	w := New(engine.NewInMemoryEngine(), taskqueue.NewInMemoryQueue(10))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	processed, err := w.ProcessOne(ctx)
	if processed {
		t.Fatalf("expected nothing processed")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestWorker_DurableQueueSurvivesNewWorker(t *testing.T) {
	ctx := context.Background()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	q, err := taskqueue.NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("NewSQLiteQueue failed: %v", err)
	}

	rt := engine.NewInMemoryEngine()
	if err := rt.Deploy(userTaskDefinition()); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	if err := New(rt, q).EnqueueStartProcess(ctx, "user1", api.StartPayload{
		DefinitionKey: "usertask",
		Variables:     map[string]any{"amount": 42},
	}); err != nil {
		t.Fatalf("EnqueueStartProcess failed: %v", err)
	}

	// A fresh worker over the same table picks the command up.
	processAll(t, New(rt, q))

	page, err := rt.ProcessInstances(ctx, "user1", api.PageOf(0, 10), api.ProcessInstanceFilter{})
	if err != nil {
		t.Fatalf("ProcessInstances failed: %v", err)
	}
	if page.TotalItems != 1 {
		t.Fatalf("expected 1 instance, got %d", page.TotalItems)
	}
	if page.Content[0].Variables["amount"] != 42 {
		t.Fatalf("expected amount variable, got %v", page.Content[0].Variables)
	}
}
