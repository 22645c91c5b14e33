package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/petrijr/taskflow/pkg/api"
)

// EventStore is an append-only history store for runtime events.
type EventStore interface {
	AppendEvents(ctx context.Context, evs ...api.RuntimeEvent) error
	ListEvents(ctx context.Context, instanceID string) ([]api.RuntimeEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvents(ctx context.Context, evs ...api.RuntimeEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.RuntimeEvent, error) {
	return nil, nil
}

// InMemoryEventStore keeps the history of every instance in memory.
type InMemoryEventStore struct {
	mu         sync.RWMutex
	byInstance map[string][]api.RuntimeEvent
}

var _ EventStore = (*InMemoryEventStore)(nil)

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{byInstance: make(map[string][]api.RuntimeEvent)}
}

func (s *InMemoryEventStore) AppendEvents(ctx context.Context, evs ...api.RuntimeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range evs {
		s.byInstance[ev.ProcessInstanceID] = append(s.byInstance[ev.ProcessInstanceID], ev)
	}
	return nil
}

func (s *InMemoryEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.RuntimeEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.byInstance[instanceID]), nil
}

// HistoryListener is an api.Listener that appends every event it receives
// to an EventStore.
type HistoryListener struct {
	Store EventStore
}

func (h HistoryListener) OnEvent(ctx context.Context, ev api.RuntimeEvent) error {
	return h.Store.AppendEvents(ctx, ev)
}
