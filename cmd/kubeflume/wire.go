//go:build wireinject

package main

import (
	"github.com/google/wire"
	"github.com/spf13/cobra"

	"github.com/kubeflume/kubeflume-agent/internal/cmd"
	"github.com/kubeflume/kubeflume-agent/internal/cmd/agent"
	"github.com/kubeflume/kubeflume-agent/internal/config"
	"github.com/kubeflume/kubeflume-agent/internal/core"
	"github.com/kubeflume/kubeflume-agent/internal/leader"
	"github.com/kubeflume/kubeflume-agent/internal/metrics"
	"github.com/kubeflume/kubeflume-agent/internal/providers"
)

func wireCmd() (*cobra.Command, func(), error) {
	panic(wire.Build(
		newCmd,
		config.ProviderSet,
	))
}

func wireAgent(conf *config.Config) (*agent.Agent, func(), error) {
	panic(wire.Build(
		cmd.ProviderSet,
		core.ProviderSet,
		metrics.ProviderSet,
		providers.ProviderSet,
		leader.ProviderSet,
	))
}

func wireResolve(conf *config.Config) (*core.Resolver, func(), error) {
	panic(wire.Build(
		core.NewResolver,
		providers.ProviderSet,
	))
}
