// Package eventbus provides the ordered, in-process event log that a
// taskflow engine publishes runtime events to.
//
// A Bus appends events in call order and notifies listeners synchronously,
// in registration order. It is safe for concurrent use; concurrent publishers
// are serialized so that every listener observes the same order as the log.
package eventbus

import (
	"context"
	"slices"
	"sync"

	"github.com/petrijr/taskflow/pkg/api"
)

// Bus is an append-only event log with synchronous listeners.
type Bus struct {
	// publish serializes Publish calls so listeners see log order.
	publish sync.Mutex

	mu        sync.RWMutex
	events    []api.RuntimeEvent
	listeners []api.Listener
	seq       int64
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Register adds l to the end of the listener list. Nil listeners are ignored.
func (b *Bus) Register(l api.Listener) {
	if l == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, l)
}

// Listeners returns the registered listeners in registration order.
func (b *Bus) Listeners() []api.Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.listeners)
}

// Emit publishes a single event.
func (b *Bus) Emit(ctx context.Context, ev api.RuntimeEvent) error {
	return b.Publish(ctx, ev)
}

// Publish appends evs to the log, in order, and notifies every listener of
// each event before moving to the next one.
//
// If a listener fails, the failing event and all later events of the batch
// are still appended, the remaining listeners for the failing event are
// skipped, and delivery of the rest of the batch continues. The first failure
// is returned as an *api.ListenerError.
func (b *Bus) Publish(ctx context.Context, evs ...api.RuntimeEvent) error {
	if len(evs) == 0 {
		return nil
	}

	b.publish.Lock()
	defer b.publish.Unlock()

	b.mu.Lock()
	stamped := make([]api.RuntimeEvent, len(evs))
	for i, ev := range evs {
		b.seq++
		ev.Seq = b.seq
		stamped[i] = ev
	}
	b.events = append(b.events, stamped...)
	listeners := slices.Clone(b.listeners)
	b.mu.Unlock()

	var first error
	for _, ev := range stamped {
		for _, l := range listeners {
			if err := l.OnEvent(ctx, ev); err != nil {
				if first == nil {
					first = &api.ListenerError{Event: ev, Err: err}
				}
				break
			}
		}
	}
	return first
}

// Snapshot returns a copy of the log.
func (b *Bus) Snapshot() []api.RuntimeEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.events)
}

// Len returns the number of events in the log.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// Clear empties the log. Listeners stay registered and sequence numbers keep
// increasing. Clear is idempotent.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
