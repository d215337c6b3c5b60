// Package outbox publishes accepted workflow changes to downstream consumers.
// Publishing happens after the collection is saved and never rolls it back.
package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"coselect/metrics"
	"coselect/workflow"
)

// Message is one published workflow change.
type Message struct {
	Topic      string         `json:"topic"`
	Key        string         `json:"key"`
	EventType  string         `json:"eventType"`
	Status     string         `json:"status,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Topic returns the topic for changes of an entity type, e.g. "coselect.lead".
func Topic(entity workflow.Entity) string {
	return "coselect." + string(entity)
}

// FromEvent builds the message announcing that entity id reached status
// through the timeline event ev.
func FromEvent(entity workflow.Entity, id string, status workflow.Status, ev workflow.Event) Message {
	payload := map[string]any{
		"eventId":   ev.ID,
		"actorId":   ev.ActorID,
		"actorType": string(ev.ActorType),
	}
	for k, v := range ev.Metadata {
		payload[k] = v
	}
	return Message{
		Topic:      Topic(entity),
		Key:        id,
		EventType:  ev.EventType,
		Status:     string(status),
		Payload:    payload,
		OccurredAt: ev.OccurredAt,
	}
}

// Log writes messages to a structured logger. It is the publisher used when
// no broker is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, msg Message) error {
	l.logger.InfoContext(ctx, "outbox message",
		"topic", msg.Topic,
		"key", msg.Key,
		"event_type", msg.EventType,
		"status", msg.Status,
	)
	return nil
}

// Recorder keeps published messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Err      error
}

func (r *Recorder) Publish(ctx context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.messages = append(r.messages, msg)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Notify publishes msg and logs a failure instead of returning it. Callers use
// it once their change is already persisted.
func Notify(ctx context.Context, p Publisher, logger *slog.Logger, msg Message) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, msg); err != nil {
		metrics.OutboxPublishFailures.Inc()
		if logger == nil {
			logger = slog.Default()
		}
		logger.WarnContext(ctx, "outbox publish failed", "topic", msg.Topic, "key", msg.Key, "err", err)
	}
}
