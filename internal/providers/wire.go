// Package providers aggregates all infrastructure-layer implementations
// (kubernetes, cache, checkpoint, kafka) into a single Wire provider
// set.
package providers

import (
	"github.com/google/wire"

	"github.com/kubeflume/kubeflume-agent/internal/config"
	"github.com/kubeflume/kubeflume-agent/internal/core"
	"github.com/kubeflume/kubeflume-agent/internal/providers/cache"
	"github.com/kubeflume/kubeflume-agent/internal/providers/checkpoint"
	"github.com/kubeflume/kubeflume-agent/internal/providers/kubernetes"
)

// ProvideDiscoveryCache wraps the raw discovery repository in the TTL
// cache. The cache is the only discovery implementation the rest of
// the application sees.
func ProvideDiscoveryCache(conf *config.Config, client core.APIClient) *cache.DiscoveryCache {
	return cache.NewDiscoveryCache(
		kubernetes.NewDiscoveryRepo(client),
		conf.AgentDiscoverySuccessTTL(),
		conf.AgentDiscoveryFailureTTL(),
	)
}

// ProvideCheckpointStore roots the checkpoint store at the configured
// state directory.
func ProvideCheckpointStore(conf *config.Config) (*checkpoint.FileStore, error) {
	return checkpoint.NewFileStore(conf.AgentStateDir())
}

// ProviderSet is the Wire provider set for all external adapters.
var ProviderSet = wire.NewSet(
	kubernetes.ProvideRESTConfig,
	kubernetes.New,
	kubernetes.NewAPIClient,
	kubernetes.NewStreamOpener,
	ProvideDiscoveryCache,
	wire.Bind(new(core.DiscoveryRepo), new(*cache.DiscoveryCache)),
	wire.Bind(new(core.CacheEvictor), new(*cache.DiscoveryCache)),
	ProvideCheckpointStore,
	wire.Bind(new(core.CheckpointStore), new(*checkpoint.FileStore)),
)
