package agent

import (
	"context"
	"testing"

	"github.com/kubeflume/kubeflume-agent/internal/config"
	"github.com/kubeflume/kubeflume-agent/internal/core"
	"github.com/kubeflume/kubeflume-agent/internal/providers/kafka"
)

func TestProvideEmitter(t *testing.T) {
	t.Run("falls back to the log without brokers", func(t *testing.T) {
		t.Setenv("KUBEFLUME_AGENT_KAFKA_BROKERS", "")
		t.Chdir(t.TempDir())

		conf, err := config.New()
		if err != nil {
			t.Fatalf("config.New() error = %v", err)
		}
		emitter, cleanup, err := ProvideEmitter(conf)
		if err != nil {
			t.Fatalf("ProvideEmitter() error = %v", err)
		}
		defer cleanup()

		if _, ok := emitter.(*LogEmitter); !ok {
			t.Fatalf("emitter = %T, want *LogEmitter", emitter)
		}
		if err := emitter.Emit(context.Background(), core.Message{ID: "1", Session: "pods"}); err != nil {
			t.Errorf("Emit() error = %v", err)
		}
	})

	t.Run("selects kafka when brokers are configured", func(t *testing.T) {
		t.Setenv("KUBEFLUME_AGENT_KAFKA_BROKERS", "broker-1:9092 broker-2:9092")
		t.Chdir(t.TempDir())

		conf, err := config.New()
		if err != nil {
			t.Fatalf("config.New() error = %v", err)
		}
		emitter, cleanup, err := ProvideEmitter(conf)
		if err != nil {
			t.Fatalf("ProvideEmitter() error = %v", err)
		}
		// The writer is lazy; closing it without a broker is safe.
		defer cleanup()

		if _, ok := emitter.(*kafka.Emitter); !ok {
			t.Fatalf("emitter = %T, want *kafka.Emitter", emitter)
		}
	})
}
