// Package api contains the core building blocks used by the taskflow process
// runtime. It defines process definitions, process instances, user tasks, the
// runtime event model and the interfaces implemented by engines.
//
// Most users interact with the higher-level taskflow package, which re-exports
// selected types and constructors from this package. The api package is
// intended for custom integrations, alternative stores, and contributors
// extending the engine itself.
//
// # Process Definitions
//
// A ProcessDefinition is a small, linear BPMN-style graph: exactly one start
// event, any number of service tasks and user tasks, and end events, linked
// by sequence flows. Every node except an end event has exactly one outgoing
// flow. Definitions are validated and deployed into an engine before
// instances can be started.
//
// # Instances and Tasks
//
// A ProcessInstance is one execution of a definition. The engine drives a
// single token through the graph until it reaches a user task, where it
// creates a Task and suspends. Completing the task resumes the token.
//
// Tasks are scoped by actor: a task is visible only to its assignee, and an
// actor asking for somebody else's task receives ErrNotFound, exactly as if
// the task did not exist.
//
// # Events
//
// Every transition produces a RuntimeEvent. The EventType of an event
// determines its kind (process, activity, sequence flow or task). Events are
// delivered synchronously, in causal order, to every registered Listener.
//
// Ready-made listeners include Recorder (collects events), LoggingListener
// (log/slog) and BasicMetrics (counters).
package api
