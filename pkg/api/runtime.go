package api

import "context"

// ProcessRuntime is the process side of the runtime API.
//
// Every call carries the acting actor explicitly; an empty actor fails with
// ErrUnauthenticated.
type ProcessRuntime interface {
	// Deploy validates and registers a process definition.
	Deploy(def ProcessDefinition) error

	// Start creates a new instance of the definition and advances it
	// synchronously until it suspends at a user task or ends.
	Start(ctx context.Context, actor string, p StartPayload) (*ProcessInstance, error)

	// ProcessInstance looks up an instance by ID.
	ProcessInstance(ctx context.Context, actor string, id string) (*ProcessInstance, error)

	// ProcessInstances returns one page of instances, oldest first.
	ProcessInstances(ctx context.Context, actor string, page Pageable, filter ProcessInstanceFilter) (Page[*ProcessInstance], error)

	// Cancel stops a running instance and cancels its open tasks.
	Cancel(ctx context.Context, actor string, id string) (*ProcessInstance, error)

	// ProcessHistory returns the persisted events of one instance.
	ProcessHistory(ctx context.Context, actor string, id string) ([]RuntimeEvent, error)
}

// TaskRuntime is the task side of the runtime API. All reads and writes are
// scoped to tasks assigned to the calling actor.
type TaskRuntime interface {
	// Tasks returns one page of the actor's open tasks, in creation order.
	Tasks(ctx context.Context, actor string, page Pageable) (Page[*Task], error)

	// Task returns a task assigned to actor, or ErrNotFound.
	Task(ctx context.Context, actor string, id string) (*Task, error)

	// Complete completes an assigned task and resumes its process instance
	// before returning.
	Complete(ctx context.Context, actor string, p CompletePayload) (*Task, error)

	// Assign hands an assigned task over to another actor.
	Assign(ctx context.Context, actor string, taskID string, assignee string) (*Task, error)
}

// Runtime bundles both runtime APIs with the event consumer API.
type Runtime interface {
	ProcessRuntime
	TaskRuntime

	// RegisterListener adds a listener to the runtime's event bus.
	RegisterListener(l Listener)

	// Events returns the events collected on the runtime's event bus since
	// the last ClearEvents.
	Events() []RuntimeEvent

	// ClearEvents empties the collected events.
	ClearEvents()

	// Configuration describes the registered listeners.
	Configuration() RuntimeConfiguration
}

// RuntimeConfiguration reports the listeners registered on a runtime,
// grouped by the side of the API whose events they receive. A listener that
// receives both kinds appears in both lists.
type RuntimeConfiguration struct {
	ProcessListeners []Listener
	TaskListeners    []Listener
}
