package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kubeflume/kubeflume-agent/internal/cmd/agent"
	"github.com/kubeflume/kubeflume-agent/internal/config"
	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// AgentInjector builds a fully wired Agent plus its cleanup function.
type AgentInjector func() (*agent.Agent, func(), error)

// NewAgentCommand returns the agent subcommand. The injector is a
// closure over the Wire-generated constructor so that dependency
// assembly stays out of the CLI layer.
func NewAgentCommand(conf *config.Config, newAgent AgentInjector) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:     "agent",
		Short:   "Start the agent that streams watch sessions from the cluster",
		Example: "kubeflume agent --cluster=default --state-dir=/var/lib/kubeflume",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, cleanup, err := newAgent()
			if err != nil {
				return fmt.Errorf("failed to initialize agent: %w", err)
			}
			defer cleanup()

			watches, err := watchTargets(conf)
			if err != nil {
				return fmt.Errorf("failed to load watch targets: %w", err)
			}

			cfg := agent.Config{
				Cluster:          conf.AgentCluster(),
				Address:          conf.ServerAddress(),
				AllowedOrigins:   conf.ServerAllowedOrigins(),
				OIDCIssuerURL:    conf.ServerOIDCIssuerURL(),
				OIDCClientID:     conf.ServerOIDCClientID(),
				MinServerVersion: conf.AgentMinServerVersion(),
				LeaderElection:   conf.AgentLeaderElectionEnabled(),
				Watches:          watches,
			}

			return a.Run(cmd.Context(), cfg)
		},
	}

	if err := conf.BindFlags(cmd.Flags(), config.AgentOptions); err != nil {
		return nil, err
	}
	// The ops HTTP listener reuses the server option group.
	if err := conf.BindFlags(cmd.Flags(), config.ServerOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}

// watchTargets converts the configured watch specs into agent targets,
// applying the agent.watch.* defaults. Strategy names are validated up
// front: a typo in the config file should stop the agent before it
// opens a single watch.
func watchTargets(conf *config.Config) ([]agent.WatchTarget, error) {
	specs, err := conf.AgentWatches()
	if err != nil {
		return nil, err
	}

	targets := make([]agent.WatchTarget, 0, len(specs))
	for _, spec := range specs {
		name := watchName(spec)

		strategy, err := core.ParseResourceVersionStrategy(orDefault(spec.Strategy, conf.AgentWatchStrategy()))
		if err != nil {
			return nil, fmt.Errorf("watch %q: %w", name, err)
		}
		expiry, err := core.ParseExpiryStrategy(orDefault(spec.Expiry, conf.AgentWatchExpiry()))
		if err != nil {
			return nil, fmt.Errorf("watch %q: %w", name, err)
		}

		dress := conf.AgentWatchDressEvents()
		if spec.DressEvents != nil {
			dress = *spec.DressEvents
		}
		idle := spec.IdleTimeout
		if idle <= 0 {
			idle = conf.AgentWatchIdleTimeout()
		}
		reconnect := spec.ReconnectInterval
		if reconnect <= 0 {
			reconnect = conf.AgentWatchReconnectInterval()
		}

		targets = append(targets, agent.WatchTarget{
			Name:              name,
			Endpoint:          spec.Endpoint,
			APIVersion:        spec.APIVersion,
			Kind:              spec.Kind,
			Namespace:         spec.Namespace,
			Strategy:          strategy,
			Expiry:            expiry,
			DressEvents:       dress,
			IdleTimeout:       idle,
			ReconnectInterval: reconnect,
		})
	}

	return targets, nil
}

// watchName falls back to the kind or the endpoint when a watch spec
// carries no explicit name.
func watchName(spec config.WatchSpec) string {
	switch {
	case spec.Name != "":
		return spec.Name
	case spec.Kind != "":
		return strings.ToLower(spec.Kind)
	default:
		return spec.Endpoint
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
