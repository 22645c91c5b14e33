// Package taskflow provides an embeddable process and task runtime for Go.
//
// A process definition is a linear graph of BPMN-like nodes: one start
// event, any number of service tasks and user tasks, and an end event.
// Starting a definition creates a process instance whose token advances
// synchronously through automatic nodes until it reaches a user task, where
// the instance waits for a person to complete the task, or the end event.
//
// # Core Concepts
//
//  1. Runtime
//  2. ProcessBuilder
//  3. Listener
//  4. Worker and LocalRunner
//
// # Runtime
//
// The Runtime deploys definitions, starts and cancels process instances, and
// exposes the user tasks assigned to an actor. Every call names the acting
// actor explicitly; tasks are only visible to their assignee.
//
// Runtimes can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability, including event history)
//   - Postgres
//   - Redis
//   - MongoDB (replica set or mongos)
//
// Each state change writes the instance and its tasks as one unit: a SQL
// transaction, a Redis MULTI/EXEC or a MongoDB transaction.
//
// # Events
//
// Every transition emits a RuntimeEvent on the runtime's event bus, in a
// deterministic order. For a start -> user task -> end process, Start emits
//
//	PROCESS_CREATED, PROCESS_STARTED,
//	ACTIVITY_STARTED, ACTIVITY_COMPLETED, SEQUENCE_FLOW_TAKEN,
//	ACTIVITY_STARTED, TASK_CREATED, TASK_ASSIGNED
//
// and completing the task emits
//
//	TASK_COMPLETED, ACTIVITY_COMPLETED, SEQUENCE_FLOW_TAKEN,
//	ACTIVITY_STARTED, ACTIVITY_COMPLETED, PROCESS_COMPLETED
//
// Listeners receive the events synchronously, in registration order. Events
// of an operation are only published once its state has been stored.
//
// # Getting Started
//
//	rt := taskflow.NewInMemoryRuntime()
//
//	def := taskflow.NewProcess("approval").
//	    UserTask("review", "Review request", taskflow.Initiator).
//	    MustBuild()
//	if err := rt.Deploy(def); err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := rt.Start(ctx, "alice", taskflow.StartPayload{DefinitionKey: "approval"})
//	tasks, err := rt.Tasks(ctx, "alice", taskflow.PageOf(0, 10))
//	_, err = rt.Complete(ctx, "alice", taskflow.CompletePayload{TaskID: tasks.Content[0].ID})
//
// # Asynchronous commands
//
// A listener must not call back into the runtime. To react to an event with
// another runtime call, enqueue a command on a Worker; the LocalRunner runs
// a pool of goroutines that execute queued commands.
package taskflow
