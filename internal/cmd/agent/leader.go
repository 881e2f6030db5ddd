package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kubeflume/kubeflume-agent/internal/leader"
	"github.com/kubeflume/kubeflume-agent/internal/transport"
)

// leaderGate defers the wrapped listeners until this replica wins the
// leader lease. Losing the lease is returned as an error so the whole
// agent shuts down and the orchestrator restarts it; resuming watches
// on a stale replica would race the new leader's checkpoints.
type leaderGate struct {
	elector *leader.Elector
	wrapped []transport.Listener
	log     *slog.Logger
}

func newLeaderGate(elector *leader.Elector, wrapped []transport.Listener) *leaderGate {
	return &leaderGate{
		elector: elector,
		wrapped: wrapped,
		log:     slog.Default().With("component", "leader-gate"),
	}
}

// Start blocks in the leader election loop. While leading, the wrapped
// listeners run under the leadership context and stop when it ends.
func (g *leaderGate) Start(ctx context.Context) error {
	err := g.elector.Run(ctx,
		func(leadCtx context.Context) {
			g.log.Info("lease acquired, starting watch sessions", "identity", g.elector.Identity())
			if serveErr := transport.Serve(leadCtx, g.wrapped...); serveErr != nil {
				g.log.Error("watch sessions stopped", "error", serveErr)
			}
		},
		func() {
			g.log.Warn("leadership ended, watch sessions stopped")
		},
	)
	if err != nil {
		return fmt.Errorf("leader election: %w", err)
	}
	if ctx.Err() == nil {
		return errors.New("leader lease lost")
	}
	return nil
}

// Stop is a no-op: the wrapped listeners stop when the leadership
// context is cancelled.
func (g *leaderGate) Stop(_ context.Context) error {
	return nil
}
