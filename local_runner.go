package taskflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/petrijr/taskflow/internal/taskqueue"
	"github.com/petrijr/taskflow/pkg/worker"
)

// LocalRunner bundles a Runtime, an in-memory command queue, and a Worker
// to provide a simple "local runner" for development and debugging.
//
// Typical usage:
//
//	runner := taskflow.NewLocalRunner()
//	_ = runner.Runtime.Deploy(def)
//
//	// Synchronous calls go straight to the runtime:
//	inst, err := runner.Runtime.Start(ctx, "alice", payload)
//
//	// Asynchronous calls go through the queue:
//	_ = runner.StartWorkers(ctx, 2)
//	_ = runner.CompleteTaskAsync(ctx, "alice", taskflow.CompletePayload{TaskID: id})
//	...
//	runner.Stop()
type LocalRunner struct {
	// Runtime executes the queued commands.
	Runtime Runtime

	// Queue is the command queue used by the Worker.
	Queue taskqueue.Queue

	// Worker processes commands from Queue using Runtime.
	Worker *worker.Worker

	// Logger receives command failures. Defaults to slog.Default().
	Logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocalRunner constructs a LocalRunner backed by an in-memory runtime
// and an in-memory queue.
func NewLocalRunner() *LocalRunner {
	return NewLocalRunnerFor(NewInMemoryRuntime(), taskqueue.NewInMemoryQueue(taskqueue.DefaultCapacity))
}

// NewLocalRunnerFor constructs a LocalRunner over an existing runtime and
// queue.
func NewLocalRunnerFor(rt Runtime, q taskqueue.Queue) *LocalRunner {
	return &LocalRunner{
		Runtime: rt,
		Queue:   q,
		Worker:  worker.New(rt, q),
		Logger:  slog.Default(),
	}
}

// StartWorkers starts 'concurrency' worker goroutines that continuously call
// Worker.ProcessOne(ctx) until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an error.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("taskflow: LocalRunner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()

			for {
				processed, err := r.Worker.ProcessOne(ctx)
				if !processed {
					if ctx.Err() != nil {
						return
					}
					if err != nil {
						logger.ErrorContext(ctx, "local runner dequeue failed", slog.Any("error", err))
					}
					continue
				}
				if err != nil {
					// A failed command must not kill the worker loop.
					logger.WarnContext(ctx, "local runner command failed", slog.Any("error", err))
				}
			}
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// StartProcessAsync enqueues a process start. The definition must already
// be deployed on LocalRunner.Runtime when a worker picks the command up.
func (r *LocalRunner) StartProcessAsync(ctx context.Context, actor string, p StartPayload) error {
	return r.Worker.EnqueueStartProcess(ctx, actor, p)
}

// CompleteTaskAsync enqueues a task completion.
func (r *LocalRunner) CompleteTaskAsync(ctx context.Context, actor string, p CompletePayload) error {
	return r.Worker.EnqueueCompleteTask(ctx, actor, p)
}

// CancelAsync enqueues the cancellation of a process instance.
func (r *LocalRunner) CancelAsync(ctx context.Context, actor string, instanceID string) error {
	return r.Worker.EnqueueCancel(ctx, actor, instanceID)
}
