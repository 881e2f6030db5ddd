// Package kafka emits watch messages to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// Emitter implements core.Emitter on a kafka-go writer. Messages are
// keyed by session name so per-session ordering survives partitioning.
type Emitter struct {
	writer *kafka.Writer
}

// NewEmitter returns an emitter writing to the given brokers and
// topic.
func NewEmitter(brokers []string, topic string) *Emitter {
	return &Emitter{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

var _ core.Emitter = (*Emitter)(nil)

func (e *Emitter) Emit(ctx context.Context, msg core.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	err = e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Session),
		Value: value,
		Time:  msg.EmittedAt,
	})
	if err != nil {
		return fmt.Errorf("write message to %s: %w", e.writer.Topic, err)
	}
	return nil
}

// Close flushes pending batches and releases the writer.
func (e *Emitter) Close() error {
	return e.writer.Close()
}
