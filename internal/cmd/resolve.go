package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubeflume/kubeflume-agent/internal/config"
	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// ResolveInjector builds the wired resolver plus its cleanup function.
type ResolveInjector func() (*core.Resolver, func(), error)

// NewResolveCommand returns the resolve subcommand, a one-shot utility
// that prints the API self link of a resource reference. It shares the
// agent's cluster access configuration.
func NewResolveCommand(conf *config.Config, newResolver ResolveInjector) (*cobra.Command, error) {
	var ref core.ResourceReference

	cmd := &cobra.Command{
		Use:     "resolve",
		Short:   "Resolve a resource reference to its API self link",
		Example: "kubeflume resolve --kind=Deployment --namespace=default --name=web",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, cleanup, err := newResolver()
			if err != nil {
				return fmt.Errorf("failed to initialize resolver: %w", err)
			}
			defer cleanup()

			selfLink, err := resolver.SelfLink(cmd.Context(), ref)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), selfLink)
			return nil
		},
	}

	cmd.Flags().StringVar(&ref.Kind, "kind", "", "Resource kind")
	cmd.Flags().StringVar(&ref.Name, "name", "", "Resource name")
	cmd.Flags().StringVar(&ref.Namespace, "namespace", "", "Resource namespace (empty for cluster-scoped resources)")
	cmd.Flags().StringVar(&ref.APIVersion, "api-version", "", "Resource apiVersion (empty resolves it from discovery)")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("name")

	if err := conf.BindFlags(cmd.Flags(), config.AgentOptions); err != nil {
		return nil, err
	}

	return cmd, nil
}
