// Package taskqueue queues runtime commands for asynchronous execution by a
// worker.
package taskqueue

import (
	"context"
	"time"
)

// TaskType identifies what the worker should do.
type TaskType string

const (
	TaskTypeStartProcess  TaskType = "start-process"
	TaskTypeCompleteTask  TaskType = "complete-task"
	TaskTypeCancelProcess TaskType = "cancel-process"
)

// Task is one queued runtime command. Which fields are set depends on Type.
type Task struct {
	ID   string
	Type TaskType

	// Actor is the identity the command runs as.
	Actor string

	// For start-process tasks.
	DefinitionKey string
	BusinessKey   string
	Name          string

	// For cancel-process tasks.
	InstanceID string

	// For complete-task tasks.
	TaskID string

	// Variables are passed to Start or Complete. Values must be
	// gob-encodable for durable queues.
	Variables map[string]any

	EnqueuedAt time.Time
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next task, blocking until one is available
	// or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
