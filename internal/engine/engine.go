// Package engine implements the process and task runtime.
//
// An engine owns an event bus and a set of stores. Every state-changing call
// (Start, Complete, Assign, Cancel) runs under one engine-wide lock: the
// token is advanced to its next wait state on a staged copy of the instance,
// the result is written to the stores as one unit, and the produced events are
// published before the lock is released.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/internal/query"
	"github.com/petrijr/taskflow/pkg/api"
	"github.com/petrijr/taskflow/pkg/eventbus"
	"github.com/petrijr/taskflow/pkg/identity"
)

// engineImpl is a synchronous, in-process runtime.
type engineImpl struct {
	mu sync.RWMutex

	definitions persistence.DefinitionStore
	instances   persistence.InstanceStore
	history     persistence.EventStore
	committer   persistence.Committer
	queries     *query.Queries

	bus        *eventbus.Bus
	historyTap api.Listener

	logger    *slog.Logger
	directory identity.Directory
	clock     func() time.Time
}

var _ api.Runtime = (*engineImpl)(nil)

// Config describes how to construct an engine. Zero fields get in-memory or
// default implementations.
type Config struct {
	Persistence persistence.Persistence

	// Bus receives every runtime event. A new bus is created when nil.
	Bus *eventbus.Bus

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Directory, when set, rejects actors it does not know.
	Directory identity.Directory

	// Clock defaults to time.Now. Timestamps are stored in UTC with
	// millisecond precision.
	Clock func() time.Time
}

func NewInMemoryEngine() api.Runtime {
	return NewEngine(persistence.NewInMemory())
}

// NewSQLiteEngine keeps instances, tasks and history in db. Definitions stay
// in memory and must be deployed again after a restart.
func NewSQLiteEngine(db *sql.DB) (api.Runtime, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(persistence.Persistence{
		Definitions: persistence.NewInMemoryStore(),
		Instances:   store,
		Tasks:       store,
		Events:      events,
	}), nil
}

// NewPostgresEngine keeps instances and tasks in db.
func NewPostgresEngine(db *sql.DB) (api.Runtime, error) {
	store, err := persistence.NewPostgresStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngine(persistence.Persistence{
		Instances: store,
		Tasks:     store,
	}), nil
}

// NewRedisEngine keeps instances and tasks in Redis under the "taskflow:"
// key prefix.
func NewRedisEngine(client *redis.Client) api.Runtime {
	store := persistence.NewRedisStore(client, "taskflow:")
	return NewEngine(persistence.Persistence{
		Instances: store,
		Tasks:     store,
	})
}

// NewMongoEngine keeps instances and tasks in the "taskflow" database.
func NewMongoEngine(client *mongo.Client) api.Runtime {
	store := persistence.NewMongoStore(client, "taskflow")
	return NewEngine(persistence.Persistence{
		Instances: store,
		Tasks:     store,
	})
}

// NewEngine returns an engine over p with default settings.
func NewEngine(p persistence.Persistence) api.Runtime {
	return NewEngineWithConfig(Config{Persistence: p})
}

// NewEngineWithConfig creates a new engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Runtime {
	p := cfg.Persistence
	if p.Definitions == nil || p.Instances == nil || p.Tasks == nil {
		mem := persistence.NewInMemoryStore()
		if p.Definitions == nil {
			p.Definitions = mem
		}
		if p.Instances == nil {
			p.Instances = mem
		}
		if p.Tasks == nil {
			p.Tasks = mem
		}
	}
	if p.Events == nil {
		p.Events = persistence.NewInMemoryEventStore()
	}

	bus := cfg.Bus
	if bus == nil {
		bus = eventbus.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	e := &engineImpl{
		definitions: p.Definitions,
		instances:   p.Instances,
		history:     p.Events,
		committer:   persistence.NewCommitter(p.Instances, p.Tasks),
		queries:     query.New(p.Instances, p.Tasks),
		bus:         bus,
		historyTap:  &persistence.HistoryListener{Store: p.Events},
		logger:      logger,
		directory:   cfg.Directory,
		clock:       clock,
	}
	// History is recorded before any user listener sees an event.
	bus.Register(e.historyTap)
	return e
}

func (e *engineImpl) now() time.Time {
	return e.clock().UTC().Truncate(time.Millisecond)
}

// newID returns a time-ordered UUID, so IDs sort in creation order.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (e *engineImpl) authenticate(actor string) error {
	return identity.Check(e.directory, actor)
}

func (e *engineImpl) Deploy(def api.ProcessDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if err := e.definitions.SaveDefinition(context.Background(), def); err != nil {
		if errors.Is(err, persistence.ErrDefinitionExists) {
			return fmt.Errorf("%w: %s", api.ErrDefinitionExists, def.Key)
		}
		return err
	}
	e.logger.Debug("definition deployed", "process", def.Key, "nodes", len(def.Nodes))
	return nil
}

func (e *engineImpl) definition(ctx context.Context, key string) (api.ProcessDefinition, error) {
	def, err := e.definitions.GetDefinition(ctx, key)
	if err != nil {
		if errors.Is(err, persistence.ErrDefinitionNotFound) {
			return api.ProcessDefinition{}, fmt.Errorf("%w: %s", api.ErrDefinitionNotFound, key)
		}
		return api.ProcessDefinition{}, err
	}
	return def, nil
}

func (e *engineImpl) RegisterListener(l api.Listener) {
	e.bus.Register(l)
}

func (e *engineImpl) Events() []api.RuntimeEvent {
	return e.bus.Snapshot()
}

func (e *engineImpl) ClearEvents() {
	e.bus.Clear()
}

// Configuration lists the listeners registered on the bus, without the
// engine's own history recorder.
func (e *engineImpl) Configuration() api.RuntimeConfiguration {
	var cfg api.RuntimeConfiguration
	for _, l := range e.bus.Listeners() {
		if l == e.historyTap {
			continue
		}
		kinds := api.ListenerKinds(l)
		if slices.Contains(kinds, api.KindProcess) ||
			slices.Contains(kinds, api.KindActivity) ||
			slices.Contains(kinds, api.KindSequenceFlow) {
			cfg.ProcessListeners = append(cfg.ProcessListeners, l)
		}
		if slices.Contains(kinds, api.KindTask) {
			cfg.TaskListeners = append(cfg.TaskListeners, l)
		}
	}
	return cfg
}
