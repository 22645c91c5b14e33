package taskqueue

import (
	"context"
	"maps"
	"strconv"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the buffer size of an in-memory queue created with a
// non-positive capacity.
const DefaultCapacity = 1024

// InMemoryQueue holds runtime commands in a buffered channel. Commands are
// stamped the way SQLiteQueue stamps them, so a worker cannot tell the two
// apart: each gets a sequence ID and an enqueue time, and its variables are
// copied so later changes by the caller do not reach the queued command.
// It is safe for concurrent use.
type InMemoryQueue struct {
	ch  chan Task
	seq atomic.Int64
}

// NewInMemoryQueue creates a queue that holds up to capacity pending
// commands. Enqueue blocks while it is full.
func NewInMemoryQueue(capacity int) *InMemoryQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &InMemoryQueue{ch: make(chan Task, capacity)}
}

var _ Queue = (*InMemoryQueue)(nil)

func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.ID = strconv.FormatInt(q.seq.Add(1), 10)
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}
	t.Variables = maps.Clone(t.Variables)

	select {
	case q.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) (*Task, error) {
	select {
	case t := <-q.ch:
		return &t, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of commands waiting in the buffer.
func (q *InMemoryQueue) Len() int {
	return len(q.ch)
}
