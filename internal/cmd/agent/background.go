package agent

import (
	"context"
	"time"

	"github.com/kubeflume/kubeflume-agent/internal/config"
	"github.com/kubeflume/kubeflume-agent/internal/core"
	"github.com/kubeflume/kubeflume-agent/internal/metrics"
	"github.com/kubeflume/kubeflume-agent/internal/providers/cache"
	"github.com/kubeflume/kubeflume-agent/internal/transport"
)

// BackgroundListeners are the background loops that participate in the
// agent's managed lifecycle alongside the HTTP server and the watch
// sessions.
type BackgroundListeners []transport.Listener

// ProvideBackgroundListeners constructs the background listeners and
// hooks the discovery cache into the metrics registry. Centralising
// construction here keeps the Agent struct free of concrete
// infrastructure types.
func ProvideBackgroundListeners(conf *config.Config, discoveryCache *cache.DiscoveryCache) BackgroundListeners {
	metrics.RegisterCacheStats(discoveryCache.Stats)
	return BackgroundListeners{
		&cacheEvictorListener{
			cache:  discoveryCache,
			period: conf.AgentDiscoveryEvictionPeriod(),
		},
	}
}

// cacheEvictorListener adapts a CacheEvictor to the transport.Listener
// interface so it participates in the managed lifecycle alongside
// other servers.
type cacheEvictorListener struct {
	cache  core.CacheEvictor
	period time.Duration
}

func (l *cacheEvictorListener) Start(ctx context.Context) error {
	l.cache.StartEvictionLoop(ctx, l.period)
	return nil
}

func (l *cacheEvictorListener) Stop(_ context.Context) error {
	return nil // evictor stops when its context is cancelled
}
