// Package natsexport publishes runtime events to NATS.
//
// Each event becomes one JSON message on the subject
// <prefix>.<kind>.<type>, for example
//
//	taskflow.events.task.TASK_ASSIGNED
//
// so consumers can subscribe to everything (taskflow.events.>) or to one kind
// (taskflow.events.task.*).
package natsexport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/petrijr/taskflow/pkg/api"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "taskflow.events"

// Publisher is the part of *nats.Conn the listener needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Message is the JSON body of a published event.
type Message struct {
	ID                   string    `json:"id"`
	Seq                  int64     `json:"seq"`
	Type                 string    `json:"type"`
	Kind                 string    `json:"kind"`
	At                   time.Time `json:"at"`
	ProcessInstanceID    string    `json:"process_instance_id"`
	ProcessDefinitionKey string    `json:"process_definition_key"`
	BusinessKey          string    `json:"business_key,omitempty"`
	ActivityID           string    `json:"activity_id,omitempty"`
	ActivityType         string    `json:"activity_type,omitempty"`
	FlowID               string    `json:"flow_id,omitempty"`
	SourceActivityID     string    `json:"source_activity_id,omitempty"`
	TargetActivityID     string    `json:"target_activity_id,omitempty"`
	TaskID               string    `json:"task_id,omitempty"`
	Assignee             string    `json:"assignee,omitempty"`
	Actor                string    `json:"actor,omitempty"`
}

// NewMessage converts a runtime event to its wire form.
func NewMessage(ev api.RuntimeEvent) Message {
	return Message{
		ID:                   ev.ID,
		Seq:                  ev.Seq,
		Type:                 string(ev.Type),
		Kind:                 string(ev.Kind()),
		At:                   ev.At,
		ProcessInstanceID:    ev.ProcessInstanceID,
		ProcessDefinitionKey: ev.ProcessDefinitionKey,
		BusinessKey:          ev.BusinessKey,
		ActivityID:           ev.ActivityID,
		ActivityType:         string(ev.ActivityType),
		FlowID:               ev.FlowID,
		SourceActivityID:     ev.SourceActivityID,
		TargetActivityID:     ev.TargetActivityID,
		TaskID:               ev.TaskID,
		Assignee:             ev.Assignee,
		Actor:                ev.Actor,
	}
}

// Listener is an api.KindListener that publishes every event it receives.
type Listener struct {
	pub    Publisher
	prefix string
	kinds  []api.EventKind
}

var _ api.KindListener = (*Listener)(nil)

// Option configures a Listener.
type Option func(*Listener)

// WithPrefix sets the subject prefix.
func WithPrefix(prefix string) Option {
	return func(l *Listener) { l.prefix = prefix }
}

// WithKinds limits the exported events to the given kinds.
func WithKinds(kinds ...api.EventKind) Option {
	return func(l *Listener) { l.kinds = slices.Clone(kinds) }
}

// New returns a Listener publishing to pub. By default every event kind is
// exported under DefaultPrefix.
func New(pub Publisher, opts ...Option) *Listener {
	l := &Listener{
		pub:    pub,
		prefix: DefaultPrefix,
		kinds:  slices.Clone(api.AllKinds),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Subject returns the subject an event is published on.
func (l *Listener) Subject(ev api.RuntimeEvent) string {
	return fmt.Sprintf("%s.%s.%s", l.prefix, ev.Kind(), ev.Type)
}

func (l *Listener) Kinds() []api.EventKind {
	return slices.Clone(l.kinds)
}

func (l *Listener) OnEvent(ctx context.Context, ev api.RuntimeEvent) error {
	if !slices.Contains(l.kinds, ev.Kind()) {
		return nil
	}
	data, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("natsexport: encode %s: %w", ev.Type, err)
	}
	if err := l.pub.Publish(l.Subject(ev), data); err != nil {
		return fmt.Errorf("natsexport: publish %s: %w", ev.Type, err)
	}
	return nil
}

// Connect opens a NATS connection that reconnects on its own and logs
// connection state changes to logger (slog.Default() when nil).
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(
		url,
		nats.Name("taskflow"),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(5),
	)
	if err != nil {
		return nil, fmt.Errorf("natsexport: connect to %s: %w", url, err)
	}
	return nc, nil
}
