package api

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// Listener receives runtime events from the event bus.
//
// Listeners are called synchronously, in registration order, while the
// engine still holds its lock. Implementations should be fast and must not
// call back into the runtime from the same goroutine; use a worker queue to
// react to an event with another runtime call.
//
// A returned error is propagated to the caller of the runtime operation that
// produced the event. The event stays in the event log.
type Listener interface {
	OnEvent(ctx context.Context, ev RuntimeEvent) error
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(ctx context.Context, ev RuntimeEvent) error

func (f ListenerFunc) OnEvent(ctx context.Context, ev RuntimeEvent) error {
	return f(ctx, ev)
}

// KindListener is a Listener that only wants some kinds of events.
type KindListener interface {
	Listener
	Kinds() []EventKind
}

// AllKinds lists every event kind.
var AllKinds = []EventKind{KindProcess, KindActivity, KindSequenceFlow, KindTask}

type kindFilter struct {
	next  Listener
	kinds []EventKind
}

// ForKinds wraps l so that it only receives events of the given kinds.
func ForKinds(l Listener, kinds ...EventKind) KindListener {
	return &kindFilter{next: l, kinds: slices.Clone(kinds)}
}

func (f *kindFilter) OnEvent(ctx context.Context, ev RuntimeEvent) error {
	if !slices.Contains(f.kinds, ev.Kind()) {
		return nil
	}
	return f.next.OnEvent(ctx, ev)
}

func (f *kindFilter) Kinds() []EventKind {
	return slices.Clone(f.kinds)
}

// ListenerKinds returns the event kinds l subscribes to.
func ListenerKinds(l Listener) []EventKind {
	if kl, ok := l.(KindListener); ok {
		return kl.Kinds()
	}
	return slices.Clone(AllKinds)
}

// Recorder collects every event it receives. It is the in-process
// equivalent of a "collected events" test fixture.
type Recorder struct {
	mu     sync.Mutex
	events []RuntimeEvent
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnEvent(ctx context.Context, ev RuntimeEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []RuntimeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// Types returns the types of the recorded events, in order.
func (r *Recorder) Types() []EventType {
	return EventTypes(r.Events())
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// LoggingListener writes structured logs using log/slog.
type LoggingListener struct {
	Logger *slog.Logger
}

// NewLoggingListener creates a Listener that logs every runtime event using
// the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingListener(logger *slog.Logger) *LoggingListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingListener{Logger: logger}
}

func (l *LoggingListener) OnEvent(ctx context.Context, ev RuntimeEvent) error {
	attrs := []slog.Attr{
		slog.String("event", string(ev.Type)),
		slog.Int64("seq", ev.Seq),
		slog.String("instance_id", ev.ProcessInstanceID),
		slog.String("process", ev.ProcessDefinitionKey),
	}
	switch ev.Kind() {
	case KindActivity:
		attrs = append(attrs,
			slog.String("activity", ev.ActivityID),
			slog.String("activity_type", string(ev.ActivityType)),
		)
	case KindSequenceFlow:
		attrs = append(attrs,
			slog.String("flow", ev.FlowID),
			slog.String("source", ev.SourceActivityID),
			slog.String("target", ev.TargetActivityID),
		)
	case KindTask:
		attrs = append(attrs,
			slog.String("task_id", ev.TaskID),
			slog.String("assignee", ev.Assignee),
		)
	}

	// Process and task transitions are the interesting ones; the token walk
	// itself goes to debug.
	level := slog.LevelDebug
	if ev.Kind() == KindProcess || ev.Kind() == KindTask {
		level = slog.LevelInfo
	}
	l.Logger.LogAttrs(ctx, level, "runtime_event", attrs...)
	return nil
}

// BasicMetrics collects simple counters over the event stream.
type BasicMetrics struct {
	processesStarted   atomic.Int64
	processesCompleted atomic.Int64
	processesCancelled atomic.Int64
	activitiesRun      atomic.Int64
	tasksCreated       atomic.Int64
	tasksCompleted     atomic.Int64
	tasksCancelled     atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	ProcessesStarted   int64
	ProcessesCompleted int64
	ProcessesCancelled int64
	RunningProcesses   int64

	ActivitiesCompleted int64

	TasksCreated   int64
	TasksCompleted int64
	TasksCancelled int64
	OpenTasks      int64
}

func (m *BasicMetrics) OnEvent(ctx context.Context, ev RuntimeEvent) error {
	switch ev.Type {
	case EventProcessStarted:
		m.processesStarted.Add(1)
	case EventProcessCompleted:
		m.processesCompleted.Add(1)
	case EventProcessCancelled:
		m.processesCancelled.Add(1)
	case EventActivityCompleted:
		m.activitiesRun.Add(1)
	case EventTaskCreated:
		m.tasksCreated.Add(1)
	case EventTaskCompleted:
		m.tasksCompleted.Add(1)
	case EventTaskCancelled:
		m.tasksCancelled.Add(1)
	}
	return nil
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.processesStarted.Load()
	completed := m.processesCompleted.Load()
	cancelled := m.processesCancelled.Load()
	created := m.tasksCreated.Load()
	tasksDone := m.tasksCompleted.Load()
	tasksCancelled := m.tasksCancelled.Load()

	return BasicMetricsSnapshot{
		ProcessesStarted:    started,
		ProcessesCompleted:  completed,
		ProcessesCancelled:  cancelled,
		RunningProcesses:    started - completed - cancelled,
		ActivitiesCompleted: m.activitiesRun.Load(),
		TasksCreated:        created,
		TasksCompleted:      tasksDone,
		TasksCancelled:      tasksCancelled,
		OpenTasks:           created - tasksDone - tasksCancelled,
	}
}
