package persistence

// Persistence bundles the store interfaces so the engine
// can depend on a single abstraction.
type Persistence struct {
	Definitions DefinitionStore
	Instances   InstanceStore
	Tasks       TaskStore
	Events      EventStore
}

// NewInMemory returns a Persistence where every store lives in memory.
func NewInMemory() Persistence {
	mem := NewInMemoryStore()
	return Persistence{
		Definitions: mem,
		Instances:   mem,
		Tasks:       mem,
		Events:      NewInMemoryEventStore(),
	}
}
