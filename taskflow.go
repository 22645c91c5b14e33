package taskflow

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petrijr/taskflow/internal/engine"
	"github.com/petrijr/taskflow/internal/persistence"
	"github.com/petrijr/taskflow/internal/taskqueue"
	"github.com/petrijr/taskflow/pkg/api"
	"github.com/petrijr/taskflow/pkg/identity"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Runtime              = api.Runtime
	RuntimeConfiguration = api.RuntimeConfiguration

	ProcessDefinition     = api.ProcessDefinition
	Node                  = api.Node
	NodeKind              = api.NodeKind
	SequenceFlow          = api.SequenceFlow
	ActionFunc            = api.ActionFunc
	Execution             = api.Execution
	ProcessInstance       = api.ProcessInstance
	ProcessStatus         = api.ProcessStatus
	ProcessInstanceFilter = api.ProcessInstanceFilter
	StartPayload          = api.StartPayload

	Task            = api.Task
	TaskStatus      = api.TaskStatus
	CompletePayload = api.CompletePayload

	Pageable             = api.Pageable
	Page[T any]          = api.Page[T]
	RuntimeEvent         = api.RuntimeEvent
	EventType            = api.EventType
	EventKind            = api.EventKind
	Listener             = api.Listener
	ListenerFunc         = api.ListenerFunc
	ListenerError        = api.ListenerError
	Recorder             = api.Recorder
	LoggingListener      = api.LoggingListener
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot

	Directory = identity.Directory
	Session   = identity.Session
)

// Re-export common helpers.

var (
	PageOf             = api.PageOf
	ForKinds           = api.ForKinds
	EventTypes         = api.EventTypes
	NewRecorder        = api.NewRecorder
	NewLoggingListener = api.NewLoggingListener

	NewStaticDirectory = identity.NewStaticDirectory
	NewSession         = identity.NewSession

	NewInMemoryQueue = taskqueue.NewInMemoryQueue
)

// Re-export errors so callers can use errors.Is without importing pkg/api.

var (
	ErrDefinitionNotFound = api.ErrDefinitionNotFound
	ErrDefinitionExists   = api.ErrDefinitionExists
	ErrInvalidDefinition  = api.ErrInvalidDefinition
	ErrNotFound           = api.ErrNotFound
	ErrInvalidState       = api.ErrInvalidState
	ErrUnauthenticated    = api.ErrUnauthenticated
	ErrInvalidPageable    = api.ErrInvalidPageable
)

// Re-export status values for convenience.

const (
	ProcessCreated   = api.ProcessCreated
	ProcessRunning   = api.ProcessRunning
	ProcessCompleted = api.ProcessCompleted
	ProcessCancelled = api.ProcessCancelled

	TaskCreated   = api.TaskCreated
	TaskAssigned  = api.TaskAssigned
	TaskCompleted = api.TaskCompleted
	TaskCancelled = api.TaskCancelled

	KindProcess      = api.KindProcess
	KindActivity     = api.KindActivity
	KindSequenceFlow = api.KindSequenceFlow
	KindTask         = api.KindTask

	// Initiator assigns a user task to the actor who started the instance.
	Initiator = api.InitiatorAssignee
)

// Options customizes a runtime built with NewRuntime. Zero fields get
// defaults.
type Options struct {
	Logger    *slog.Logger
	Directory Directory
}

// Runtime constructors.
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryRuntime returns a Runtime backed entirely by in-memory stores.
func NewInMemoryRuntime() Runtime {
	return engine.NewInMemoryEngine()
}

// NewRuntime returns an in-memory Runtime with the given options.
func NewRuntime(opts Options) Runtime {
	return engine.NewEngineWithConfig(engine.Config{
		Persistence: persistence.NewInMemory(),
		Logger:      opts.Logger,
		Directory:   opts.Directory,
	})
}

// NewSQLiteRuntime returns a Runtime that persists instances, tasks and
// event history in a SQLite database. Definitions are kept in-memory.
func NewSQLiteRuntime(db *sql.DB) (Runtime, error) {
	return engine.NewSQLiteEngine(db)
}

// NewPostgresRuntime returns a Runtime that persists instances and tasks in
// PostgreSQL.
func NewPostgresRuntime(db *sql.DB) (Runtime, error) {
	return engine.NewPostgresEngine(db)
}

// NewRedisRuntime returns a Runtime that persists instances and tasks in
// Redis.
func NewRedisRuntime(client *redis.Client) Runtime {
	return engine.NewRedisEngine(client)
}

// NewMongoRuntime returns a Runtime that persists instances and tasks in
// MongoDB. The server must support transactions, so a standalone mongod has
// to run as a (single-node) replica set.
func NewMongoRuntime(client *mongo.Client) Runtime {
	return engine.NewMongoEngine(client)
}

// NewSQLiteQueue returns a durable command queue stored in db.
func NewSQLiteQueue(db *sql.DB) (taskqueue.Queue, error) {
	return taskqueue.NewSQLiteQueue(db)
}
