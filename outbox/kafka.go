package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes messages as JSON values keyed by entity id so all changes of
// one entity land on the same partition.
type Kafka struct {
	writer MessageWriter
}

// NewKafkaWriter returns a writer without a fixed topic; every message names
// its own.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

func NewKafka(w MessageWriter) *Kafka {
	return &Kafka{writer: w}
}

func (k *Kafka) Publish(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("outbox: encode %s: %w", msg.EventType, err)
	}
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Topic: msg.Topic,
		Key:   []byte(msg.Key),
		Value: value,
		Time:  msg.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(msg.EventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("outbox: write %s: %w", msg.Topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
