package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/taskflow/internal/taskqueue"
	"github.com/petrijr/taskflow/pkg/api"
)

// ErrUnknownCommand is returned by ProcessOne for a queued command of a type
// the worker does not handle.
var ErrUnknownCommand = errors.New("worker: unknown command type")

// Worker pulls commands from a Queue and executes them against a Runtime.
type Worker struct {
	runtime api.Runtime
	queue   taskqueue.Queue
}

// New creates a new Worker.
func New(runtime api.Runtime, queue taskqueue.Queue) *Worker {
	return &Worker{
		runtime: runtime,
		queue:   queue,
	}
}

// EnqueueStartProcess enqueues a process start on behalf of actor. It does
// NOT start the process itself; that is done by ProcessOne.
func (w *Worker) EnqueueStartProcess(ctx context.Context, actor string, p api.StartPayload) error {
	return w.queue.Enqueue(ctx, taskqueue.Task{
		Type:          taskqueue.TaskTypeStartProcess,
		Actor:         actor,
		DefinitionKey: p.DefinitionKey,
		BusinessKey:   p.BusinessKey,
		Name:          p.Name,
		Variables:     p.Variables,
		EnqueuedAt:    time.Now(),
	})
}

// EnqueueCompleteTask enqueues the completion of a task on behalf of actor.
func (w *Worker) EnqueueCompleteTask(ctx context.Context, actor string, p api.CompletePayload) error {
	return w.queue.Enqueue(ctx, taskqueue.Task{
		Type:       taskqueue.TaskTypeCompleteTask,
		Actor:      actor,
		TaskID:     p.TaskID,
		Variables:  p.Variables,
		EnqueuedAt: time.Now(),
	})
}

// EnqueueCancel enqueues the cancellation of a process instance.
func (w *Worker) EnqueueCancel(ctx context.Context, actor string, instanceID string) error {
	return w.queue.Enqueue(ctx, taskqueue.Task{
		Type:       taskqueue.TaskTypeCancelProcess,
		Actor:      actor,
		InstanceID: instanceID,
		EnqueuedAt: time.Now(),
	})
}

// Pending returns the approximate number of queued commands.
func (w *Worker) Pending() int {
	return w.queue.Len()
}

// ProcessOne pulls a single command from the queue and executes it.
// Returns (processed, error):
//   - processed == false: no command was obtained, err is the dequeue error
//     (typically the context's).
//   - processed == true: a command was executed; err is the runtime's result.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}
	return true, w.execute(ctx, task)
}

func (w *Worker) execute(ctx context.Context, task *taskqueue.Task) error {
	switch task.Type {
	case taskqueue.TaskTypeStartProcess:
		_, err := w.runtime.Start(ctx, task.Actor, api.StartPayload{
			DefinitionKey: task.DefinitionKey,
			BusinessKey:   task.BusinessKey,
			Name:          task.Name,
			Variables:     task.Variables,
		})
		return err

	case taskqueue.TaskTypeCompleteTask:
		_, err := w.runtime.Complete(ctx, task.Actor, api.CompletePayload{
			TaskID:    task.TaskID,
			Variables: task.Variables,
		})
		return err

	case taskqueue.TaskTypeCancelProcess:
		_, err := w.runtime.Cancel(ctx, task.Actor, task.InstanceID)
		return err

	default:
		// Mark as processed but surface the error so it isn't silently ignored.
		return fmt.Errorf("%w: %q", ErrUnknownCommand, task.Type)
	}
}
