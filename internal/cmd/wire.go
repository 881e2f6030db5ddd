// Package cmd defines the Cobra subcommands (agent, resolve) and their
// Wire provider sets. It bridges configuration, dependency injection,
// and the transport/application layers.
package cmd

import (
	"github.com/google/wire"

	"github.com/kubeflume/kubeflume-agent/internal/cmd/agent"
)

// ProviderSet is the Wire provider set for the CLI layer. It exposes
// the Agent constructor plus its handler, outward emitter, and
// background listeners.
var ProviderSet = wire.NewSet(
	agent.NewAgent,
	agent.NewHandler,
	agent.ProvideEmitter,
	agent.ProvideBackgroundListeners,
)
