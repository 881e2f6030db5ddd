package metrics

import (
	"github.com/google/wire"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// ProvideReporter decorates the session registry with the metrics
// recorder. Constructed manually so that Wire sees exactly one
// provider for core.StatusReporter.
func ProvideReporter(registry *core.SessionRegistry) core.StatusReporter {
	return NewReporter(registry)
}

// ProviderSet is the Wire provider set for metrics recording.
var ProviderSet = wire.NewSet(ProvideReporter)
