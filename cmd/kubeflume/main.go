// Package main is the entry point for the kubeflume binary. It
// supports two subcommands:
//
//   - agent:   runs inside (or against) a Kubernetes cluster and
//     streams resumable watch sessions to the configured sink
//   - resolve: one-shot utility that resolves a resource reference
//     to its API self link
//
// Dependencies are assembled via Google Wire; see wire.go.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kubeflume/kubeflume-agent/internal/cmd"
	"github.com/kubeflume/kubeflume-agent/internal/cmd/agent"
	"github.com/kubeflume/kubeflume-agent/internal/config"
	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

func main() {
	// Cancel on SIGINT (Ctrl+C) or SIGTERM (container runtime).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// Cobra is configured with SilenceErrors: true, so we
		// print the error here for consistent formatting.
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all dependencies and executes the root Cobra command.
func run(ctx context.Context) error {
	rootCmd, cleanup, err := wireCmd()
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer cleanup()

	return rootCmd.ExecuteContext(ctx)
}

// newCmd is a Wire provider that constructs the root Cobra command and
// registers the agent and resolve subcommands. The injectors are
// closures so the subcommand constructors stay free of Wire types.
func newCmd(conf *config.Config) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:           "kubeflume",
		Short:         "Kubeflume: resumable Kubernetes watch sessions with normalized event delivery.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			configureLogging(conf)
		},
	}

	agentCmd, err := cmd.NewAgentCommand(conf, func() (*agent.Agent, func(), error) {
		return wireAgent(conf)
	})
	if err != nil {
		return nil, err
	}

	resolveCmd, err := cmd.NewResolveCommand(conf, func() (*core.Resolver, func(), error) {
		return wireResolve(conf)
	})
	if err != nil {
		return nil, err
	}

	c.AddCommand(agentCmd, resolveCmd)

	return c, nil
}

// configureLogging raises the process-wide log level to debug when the
// debug toggle is set. The default text handler at info level is kept
// otherwise.
func configureLogging(conf *config.Config) {
	if !conf.AgentDebugEnabled() {
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})))
}
