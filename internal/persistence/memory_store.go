package persistence

import (
	"context"
	"slices"
	"sync"

	"github.com/petrijr/taskflow/pkg/api"
)

// InMemoryStore is a simple, goroutine-safe implementation of
// DefinitionStore, InstanceStore and TaskStore backed by maps.
// It stores and returns copies, so callers never share state with it.
type InMemoryStore struct {
	mu          sync.RWMutex
	definitions map[string]api.ProcessDefinition
	instances   map[string]*api.ProcessInstance
	tasks       map[string]*api.Task
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		definitions: make(map[string]api.ProcessDefinition),
		instances:   make(map[string]*api.ProcessInstance),
		tasks:       make(map[string]*api.Task),
	}
}

// Ensure InMemoryStore implements the interfaces.
var (
	_ DefinitionStore = (*InMemoryStore)(nil)
	_ InstanceStore   = (*InMemoryStore)(nil)
	_ TaskStore       = (*InMemoryStore)(nil)
	_ Committer       = (*InMemoryStore)(nil)
)

func (s *InMemoryStore) SaveDefinition(ctx context.Context, def api.ProcessDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.definitions[def.Key]; ok {
		return ErrDefinitionExists
	}
	def.Nodes = slices.Clone(def.Nodes)
	def.Flows = slices.Clone(def.Flows)
	s.definitions[def.Key] = def
	return nil
}

func (s *InMemoryStore) GetDefinition(ctx context.Context, key string) (api.ProcessDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.definitions[key]
	if !ok {
		return api.ProcessDefinition{}, ErrDefinitionNotFound
	}
	return def, nil
}

func (s *InMemoryStore) ListDefinitions(ctx context.Context) ([]api.ProcessDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.ProcessDefinition, 0, len(s.definitions))
	for _, def := range s.definitions {
		out = append(out, def)
	}
	return out, nil
}

func (s *InMemoryStore) SaveInstance(ctx context.Context, inst *api.ProcessInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.instances[inst.ID] = inst.Clone()
	return nil
}

func (s *InMemoryStore) UpdateInstance(ctx context.Context, inst *api.ProcessInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[inst.ID]; !ok {
		return ErrInstanceNotFound
	}
	s.instances[inst.ID] = inst.Clone()
	return nil
}

func (s *InMemoryStore) GetInstance(ctx context.Context, id string) (*api.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[id]
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return inst.Clone(), nil
}

func (s *InMemoryStore) ListInstances(ctx context.Context, filter InstanceFilter) ([]*api.ProcessInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.ProcessInstance
	for _, inst := range s.instances {
		if filter.Matches(inst) {
			result = append(result, inst.Clone())
		}
	}
	return result, nil
}

func (s *InMemoryStore) SaveTask(ctx context.Context, t *api.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *InMemoryStore) UpdateTask(ctx context.Context, t *api.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[t.ID]; !ok {
		return ErrTaskNotFound
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

func (s *InMemoryStore) GetTask(ctx context.Context, id string) (*api.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.Clone(), nil
}

func (s *InMemoryStore) ListTasks(ctx context.Context, filter TaskFilter) ([]*api.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Task
	for _, t := range s.tasks {
		if filter.Matches(t) {
			result = append(result, t.Clone())
		}
	}
	return result, nil
}

// Commit checks every update target first and only then applies the
// writes, all under one lock.
func (s *InMemoryStore) Commit(ctx context.Context, c Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.instances[c.Instance.ID]; !ok && !c.NewInstance {
		return ErrInstanceNotFound
	}
	for _, t := range c.Updated {
		if _, ok := s.tasks[t.ID]; !ok {
			return ErrTaskNotFound
		}
	}

	s.instances[c.Instance.ID] = c.Instance.Clone()
	for _, t := range c.Created {
		s.tasks[t.ID] = t.Clone()
	}
	for _, t := range c.Updated {
		s.tasks[t.ID] = t.Clone()
	}
	return nil
}
