package api

import "time"

// EventType identifies a runtime event.
type EventType string

const (
	EventProcessCreated   EventType = "PROCESS_CREATED"
	EventProcessStarted   EventType = "PROCESS_STARTED"
	EventProcessCompleted EventType = "PROCESS_COMPLETED"
	EventProcessCancelled EventType = "PROCESS_CANCELLED"

	EventActivityStarted   EventType = "ACTIVITY_STARTED"
	EventActivityCompleted EventType = "ACTIVITY_COMPLETED"
	EventActivityCancelled EventType = "ACTIVITY_CANCELLED"

	EventSequenceFlowTaken EventType = "SEQUENCE_FLOW_TAKEN"

	EventTaskCreated   EventType = "TASK_CREATED"
	EventTaskAssigned  EventType = "TASK_ASSIGNED"
	EventTaskCompleted EventType = "TASK_COMPLETED"
	EventTaskCancelled EventType = "TASK_CANCELLED"
)

// EventKind groups event types by the entity they describe.
type EventKind string

const (
	KindProcess      EventKind = "process"
	KindActivity     EventKind = "activity"
	KindSequenceFlow EventKind = "sequence-flow"
	KindTask         EventKind = "task"
)

// Kind returns the kind of the event type, or "" for unknown types.
func (t EventType) Kind() EventKind {
	switch t {
	case EventProcessCreated, EventProcessStarted, EventProcessCompleted, EventProcessCancelled:
		return KindProcess
	case EventActivityStarted, EventActivityCompleted, EventActivityCancelled:
		return KindActivity
	case EventSequenceFlowTaken:
		return KindSequenceFlow
	case EventTaskCreated, EventTaskAssigned, EventTaskCompleted, EventTaskCancelled:
		return KindTask
	default:
		return ""
	}
}

// RuntimeEvent is an immutable record of one engine transition.
//
// Which of the optional fields are populated depends on Type.Kind():
//   - process:       ProcessInstanceID, ProcessDefinitionKey, BusinessKey
//   - activity:      the process fields plus ActivityID, ActivityType
//   - sequence-flow: the process fields plus FlowID, SourceActivityID, TargetActivityID
//   - task:          the process fields plus ActivityID, TaskID, Assignee
type RuntimeEvent struct {
	ID string
	// Seq is assigned by the event bus on append; it is strictly increasing
	// for the lifetime of the bus, across Clear calls.
	Seq  int64
	Type EventType
	At   time.Time

	ProcessInstanceID    string
	ProcessDefinitionKey string
	BusinessKey          string

	ActivityID   string
	ActivityType NodeKind

	FlowID           string
	SourceActivityID string
	TargetActivityID string

	TaskID   string
	Assignee string

	// Actor is the actor whose call produced the event.
	Actor string
}

// Kind is shorthand for ev.Type.Kind().
func (ev RuntimeEvent) Kind() EventKind {
	return ev.Type.Kind()
}

// EventTypes extracts the types of evs, in order.
func EventTypes(evs []RuntimeEvent) []EventType {
	out := make([]EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}
