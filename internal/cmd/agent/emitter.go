package agent

import (
	"context"
	"log/slog"

	"github.com/kubeflume/kubeflume-agent/internal/config"
	"github.com/kubeflume/kubeflume-agent/internal/core"
	"github.com/kubeflume/kubeflume-agent/internal/providers/kafka"
)

// ProvideEmitter selects the outward sink: Kafka when brokers are
// configured, the structured log otherwise. The cleanup flushes and
// closes the Kafka writer.
func ProvideEmitter(conf *config.Config) (core.Emitter, func(), error) {
	brokers := conf.AgentKafkaBrokers()
	if len(brokers) == 0 {
		slog.Info("no kafka brokers configured, emitting to log")
		return NewLogEmitter(), func() {}, nil
	}

	emitter := kafka.NewEmitter(brokers, conf.AgentKafkaTopic())
	return emitter, func() { _ = emitter.Close() }, nil
}

// LogEmitter writes outward messages to the structured log. It is the
// fallback sink when no Kafka brokers are configured.
type LogEmitter struct {
	log *slog.Logger
}

func NewLogEmitter() *LogEmitter {
	return &LogEmitter{log: slog.Default().With("component", "emitter")}
}

var _ core.Emitter = (*LogEmitter)(nil)

// Emit logs the message envelope. The object payload is left out; on
// a busy watch it would flood the log.
func (e *LogEmitter) Emit(_ context.Context, msg core.Message) error {
	e.log.Info("event",
		"id", msg.ID,
		"session", msg.Session,
		"type", msg.Type,
		"resourceVersion", msg.ResourceVersion,
	)
	return nil
}
