// Package agent implements the long-running agent runtime: it turns
// configured watch targets into sessions, serves the ops HTTP surface,
// and coordinates the shared lifecycle through transport.Serve.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kubeflume/kubeflume-agent/internal/core"
	"github.com/kubeflume/kubeflume-agent/internal/leader"
	"github.com/kubeflume/kubeflume-agent/internal/middleware"
	"github.com/kubeflume/kubeflume-agent/internal/transport"
	"github.com/kubeflume/kubeflume-agent/internal/transport/http"
)

// Config holds the runtime parameters for an agent run. Watches are
// the fully defaulted watch targets parsed from configuration.
type Config struct {
	Cluster          string
	Address          string
	AllowedOrigins   []string
	OIDCIssuerURL    string
	OIDCClientID     string
	MinServerVersion string
	LeaderElection   bool
	Watches          []WatchTarget
}

// WatchTarget describes one configured watch in agent terms: either a
// ready list/watch endpoint, or a kind (plus optional apiVersion and
// namespace) to resolve into one at startup.
type WatchTarget struct {
	Name              string
	Endpoint          string
	APIVersion        string
	Kind              string
	Namespace         string
	Strategy          core.ResourceVersionStrategy
	Expiry            core.ExpiryStrategy
	DressEvents       bool
	IdleTimeout       time.Duration
	ReconnectInterval time.Duration
}

// Agent owns the watch sessions and the ops HTTP server. Collaborators
// are injected via Wire; Run assembles them into a listener group.
type Agent struct {
	handler    *Handler
	opener     core.StreamOpener
	lister     core.ResourceVersionLister
	store      core.CheckpointStore
	emitter    core.Emitter
	reporter   core.StatusReporter
	dresser    *core.EventDresser
	resolver   *core.Resolver
	discovery  core.DiscoveryRepo
	elector    *leader.Elector
	background BackgroundListeners
	log        *slog.Logger
}

// NewAgent returns an Agent wired to its collaborators.
func NewAgent(
	handler *Handler,
	opener core.StreamOpener,
	lister core.ResourceVersionLister,
	store core.CheckpointStore,
	emitter core.Emitter,
	reporter core.StatusReporter,
	dresser *core.EventDresser,
	resolver *core.Resolver,
	discovery core.DiscoveryRepo,
	elector *leader.Elector,
	background BackgroundListeners,
) *Agent {
	return &Agent{
		handler:    handler,
		opener:     opener,
		lister:     lister,
		store:      store,
		emitter:    emitter,
		reporter:   reporter,
		dresser:    dresser,
		resolver:   resolver,
		discovery:  discovery,
		elector:    elector,
		background: background,
		log:        slog.Default().With("component", "agent"),
	}
}

// Run starts the ops HTTP server, the background loops, and one watch
// session per target. It blocks until ctx is cancelled or an
// unrecoverable error occurs. With leader election enabled the watch
// sessions run only while this replica holds the lease; the ops
// surface and background loops run regardless.
func (a *Agent) Run(ctx context.Context, cfg Config) error {
	a.checkServerVersion(ctx, cfg.MinServerVersion)

	httpSrv, err := a.newOpsServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	sessions := a.sessionListeners(ctx, cfg)
	if len(sessions) == 0 {
		a.log.Warn("no runnable watch targets configured")
	}

	listeners := make([]transport.Listener, 0, len(sessions)+len(a.background)+1)
	listeners = append(listeners, httpSrv)
	listeners = append(listeners, a.background...)
	if cfg.LeaderElection {
		listeners = append(listeners, newLeaderGate(a.elector, sessions))
	} else {
		listeners = append(listeners, sessions...)
	}

	return transport.Serve(ctx, listeners...)
}

// newOpsServer builds the operational HTTP server. Authentication is
// enabled only when an OIDC issuer is configured; the liveness,
// metrics, health and reflection paths stay public either way.
func (a *Agent) newOpsServer(cfg Config) (*http.Server, error) {
	opts := []http.ServerOption{
		http.WithAddress(cfg.Address),
		http.WithAllowedOrigins(cfg.AllowedOrigins),
		http.WithMount(a.handler.Mount),
	}

	if cfg.OIDCIssuerURL != "" {
		oidc, err := middleware.NewOIDC(cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC middleware: %w", err)
		}
		opts = append(opts,
			http.WithAuthMiddleware(oidc),
			http.WithPublicPaths([]string{
				"/ping",
				"/metrics",
				"/grpc.health.v1.Health/Check",
				"/grpc.health.v1.Health/Watch",
				"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo",
			}),
		)
	}

	return http.NewServer(opts...)
}

// sessionListeners builds one watch session per target. A target that
// cannot be built is reported as misconfigured and skipped, so one bad
// entry never takes down its siblings.
func (a *Agent) sessionListeners(ctx context.Context, cfg Config) []transport.Listener {
	listeners := make([]transport.Listener, 0, len(cfg.Watches))
	for _, target := range cfg.Watches {
		session, err := a.buildSession(ctx, cfg.Cluster, target)
		if err != nil {
			a.reporter.Report(target.Name, core.StateMisconfigured, err.Error())
			a.log.Error("watch target rejected", "session", target.Name, "error", err)
			continue
		}
		listeners = append(listeners, session)
	}
	return listeners
}

// buildSession resolves a kind-based target into an endpoint and
// constructs the session. The endpoint hash pins checkpoints to the
// cluster/endpoint pair so a moved target never resumes from a foreign
// resourceVersion.
func (a *Agent) buildSession(ctx context.Context, cluster string, target WatchTarget) (*core.WatchSession, error) {
	endpoint := target.Endpoint
	if endpoint == "" {
		if target.Kind == "" {
			return nil, &core.ErrInvalidInput{Field: "watch target", Message: "endpoint or kind required"}
		}
		resolved, err := a.resolver.CollectionPath(ctx, core.ResourceReference{
			APIVersion: target.APIVersion,
			Kind:       target.Kind,
			Namespace:  target.Namespace,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve kind %q: %w", target.Kind, err)
		}
		endpoint = resolved
	}
	endpoint = core.CleanEndpoint(endpoint)

	return core.NewWatchSession(core.WatchConfig{
		Name:              target.Name,
		Endpoint:          endpoint,
		EndpointHash:      core.EndpointHash(cluster, endpoint),
		Strategy:          target.Strategy,
		Expiry:            target.Expiry,
		DressEvents:       target.DressEvents,
		IdleTimeout:       target.IdleTimeout,
		ReconnectInterval: target.ReconnectInterval,
	}, a.opener, a.lister, a.store, a.emitter, a.reporter, a.dresser)
}

// checkServerVersion logs the cluster version and warns when it is
// below the configured minimum. Lookup failures are not fatal here;
// the sessions surface connectivity problems themselves.
func (a *Agent) checkServerVersion(ctx context.Context, minVersion string) {
	info, err := a.discovery.ServerVersion(ctx)
	if err != nil {
		a.log.Warn("cluster version lookup failed", "error", err)
		return
	}
	a.log.Info("cluster version", "gitVersion", info.GitVersion, "platform", info.Platform)

	if minVersion == "" {
		return
	}
	ok, err := core.ServerVersionSupported(info, minVersion)
	if err != nil {
		a.log.Warn("cluster version gate skipped", "error", err)
		return
	}
	if !ok {
		a.log.Warn("cluster version below supported minimum",
			"gitVersion", info.GitVersion,
			"minimum", minVersion,
		)
	}
}
