package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kubeflume/kubeflume-agent/internal/config"
	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// loadConfig parses a config.yaml from a fresh working directory. The
// watches list has no flag or environment form, so tests go through
// the file like production does.
func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Chdir(dir)

	conf, err := config.New()
	if err != nil {
		t.Fatalf("config.New() error = %v", err)
	}
	return conf
}

func TestWatchTargets(t *testing.T) {
	conf := loadConfig(t, `
agent:
  watch:
    strategy: RESTORE-CURRENT
    idle_timeout: 2m
  watches:
    - name: pods
      endpoint: /api/v1/pods
    - kind: Deployment
      namespace: prod
      strategy: ZERO
      dress_events: false
      reconnect_interval: 3s
`)

	targets, err := watchTargets(conf)
	if err != nil {
		t.Fatalf("watchTargets() error = %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("len(targets) = %d, want 2", len(targets))
	}

	pods := targets[0]
	if pods.Name != "pods" || pods.Endpoint != "/api/v1/pods" {
		t.Errorf("pods target = %+v", pods)
	}
	if pods.Strategy != core.StrategyRestoreCurrent {
		t.Errorf("pods.Strategy = %q, want inherited %q", pods.Strategy, core.StrategyRestoreCurrent)
	}
	if pods.Expiry != core.ExpiryCurrent {
		t.Errorf("pods.Expiry = %q, want default %q", pods.Expiry, core.ExpiryCurrent)
	}
	if !pods.DressEvents {
		t.Error("pods.DressEvents = false, want default true")
	}
	if pods.IdleTimeout != 2*time.Minute {
		t.Errorf("pods.IdleTimeout = %v, want inherited 2m", pods.IdleTimeout)
	}
	if pods.ReconnectInterval != 10*time.Second {
		t.Errorf("pods.ReconnectInterval = %v, want default 10s", pods.ReconnectInterval)
	}

	deploys := targets[1]
	if deploys.Name != "deployment" {
		t.Errorf("deploys.Name = %q, want kind fallback %q", deploys.Name, "deployment")
	}
	if deploys.Kind != "Deployment" || deploys.Namespace != "prod" {
		t.Errorf("deploys target = %+v", deploys)
	}
	if deploys.Strategy != core.StrategyZero {
		t.Errorf("deploys.Strategy = %q, want override %q", deploys.Strategy, core.StrategyZero)
	}
	if deploys.DressEvents {
		t.Error("deploys.DressEvents = true, want override false")
	}
	if deploys.IdleTimeout != 2*time.Minute {
		t.Errorf("deploys.IdleTimeout = %v, want inherited 2m", deploys.IdleTimeout)
	}
	if deploys.ReconnectInterval != 3*time.Second {
		t.Errorf("deploys.ReconnectInterval = %v, want override 3s", deploys.ReconnectInterval)
	}
}

func TestWatchTargetsEndpointNameFallback(t *testing.T) {
	conf := loadConfig(t, `
agent:
  watches:
    - endpoint: /api/v1/events
`)

	targets, err := watchTargets(conf)
	if err != nil {
		t.Fatalf("watchTargets() error = %v", err)
	}
	if len(targets) != 1 || targets[0].Name != "/api/v1/events" {
		t.Fatalf("targets = %+v, want endpoint as name", targets)
	}
}

func TestWatchTargetsRejectsUnknownStrategy(t *testing.T) {
	conf := loadConfig(t, `
agent:
  watches:
    - name: pods
      endpoint: /api/v1/pods
      strategy: SOMETIMES
`)

	_, err := watchTargets(conf)
	if err == nil {
		t.Fatal("watchTargets() error = nil, want unknown strategy")
	}
	if !strings.Contains(err.Error(), `watch "pods"`) {
		t.Errorf("error = %v, want the watch name in context", err)
	}
}

func TestNewAgentCommandFlags(t *testing.T) {
	conf := loadConfig(t, "")

	cmd, err := NewAgentCommand(conf, nil)
	if err != nil {
		t.Fatalf("NewAgentCommand() error = %v", err)
	}
	for _, name := range []string{"cluster", "state-dir", "watch-strategy", "address", "oidc-issuer-url"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag %q is not registered", name)
		}
	}
}

func TestNewResolveCommandFlags(t *testing.T) {
	conf := loadConfig(t, "")

	cmd, err := NewResolveCommand(conf, nil)
	if err != nil {
		t.Fatalf("NewResolveCommand() error = %v", err)
	}
	for _, name := range []string{"kind", "name", "namespace", "api-version", "cluster"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("flag %q is not registered", name)
		}
	}
}
