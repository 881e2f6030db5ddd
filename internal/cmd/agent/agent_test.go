package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

type fakeOpener struct{}

func (fakeOpener) OpenWatch(context.Context, string, string) (core.WatchStream, error) {
	return nil, errors.New("opener not expected in this test")
}

type fakeLister struct{}

func (fakeLister) CurrentResourceVersion(context.Context, string) (string, error) {
	return "42", nil
}

type fakeStore struct{}

func (fakeStore) Load(string) (core.Checkpoint, bool, error) { return core.Checkpoint{}, false, nil }
func (fakeStore) Save(string, core.Checkpoint) error         { return nil }

type fakeEmitter struct{}

func (fakeEmitter) Emit(context.Context, core.Message) error { return nil }

// reportRecorder captures status reports for assertions.
type reportRecorder struct {
	mu      sync.Mutex
	reports []recordedReport
}

type recordedReport struct {
	session string
	state   core.SessionState
	detail  string
}

func (r *reportRecorder) Report(session string, state core.SessionState, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, recordedReport{session, state, detail})
}

func (r *reportRecorder) Observe(string, core.Observation) {}

func (r *reportRecorder) misconfigured(session string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.session == session && rep.state == core.StateMisconfigured {
			return rep.detail, true
		}
	}
	return "", false
}

func newTestAgent(reporter core.StatusReporter) *Agent {
	disc := &fakeDiscovery{}
	resolver := core.NewResolver(disc)
	return &Agent{
		opener:    fakeOpener{},
		lister:    fakeLister{},
		store:     fakeStore{},
		emitter:   fakeEmitter{},
		reporter:  reporter,
		dresser:   core.NewEventDresser(resolver),
		resolver:  resolver,
		discovery: disc,
		log:       slog.Default().With("component", "agent"),
	}
}

func TestBuildSession(t *testing.T) {
	t.Parallel()
	a := newTestAgent(&reportRecorder{})
	ctx := context.Background()

	t.Run("endpoint target", func(t *testing.T) {
		t.Parallel()
		session, err := a.buildSession(ctx, "prod-east", WatchTarget{
			Name:     "pods",
			Endpoint: "/api/v1/pods?watch=true&resourceVersion=5",
		})
		if err != nil {
			t.Fatalf("buildSession() error = %v", err)
		}
		if session.Name() != "pods" {
			t.Errorf("Name() = %q, want %q", session.Name(), "pods")
		}
	})

	t.Run("kind target resolves through discovery", func(t *testing.T) {
		t.Parallel()
		session, err := a.buildSession(ctx, "prod-east", WatchTarget{
			Name:      "deploys",
			Kind:      "Deployment",
			Namespace: "prod",
		})
		if err != nil {
			t.Fatalf("buildSession() error = %v", err)
		}
		if session.Name() != "deploys" {
			t.Errorf("Name() = %q, want %q", session.Name(), "deploys")
		}
	})

	t.Run("rejects a target with neither endpoint nor kind", func(t *testing.T) {
		t.Parallel()
		_, err := a.buildSession(ctx, "prod-east", WatchTarget{Name: "empty"})
		var invalid *core.ErrInvalidInput
		if !errors.As(err, &invalid) {
			t.Fatalf("buildSession() error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("unresolvable kind fails with context", func(t *testing.T) {
		t.Parallel()
		_, err := a.buildSession(ctx, "prod-east", WatchTarget{Name: "gadgets", Kind: "Gadget"})
		if err == nil || !strings.Contains(err.Error(), `resolve kind "Gadget"`) {
			t.Fatalf("buildSession() error = %v, want resolve failure", err)
		}
	})
}

func TestSessionListenersSkipsBadTargets(t *testing.T) {
	t.Parallel()
	reporter := &reportRecorder{}
	a := newTestAgent(reporter)

	listeners := a.sessionListeners(context.Background(), Config{
		Cluster: "prod-east",
		Watches: []WatchTarget{
			{Name: "pods", Endpoint: "/api/v1/pods"},
			{Name: "deploys", Kind: "Deployment"},
			{Name: "broken"},
		},
	})

	if len(listeners) != 2 {
		t.Fatalf("len(listeners) = %d, want 2", len(listeners))
	}
	detail, ok := reporter.misconfigured("broken")
	if !ok {
		t.Fatal("broken target was not reported misconfigured")
	}
	if !strings.Contains(detail, "endpoint or kind") {
		t.Errorf("detail = %q, want endpoint-or-kind hint", detail)
	}
	if _, ok := reporter.misconfigured("pods"); ok {
		t.Error("healthy target reported misconfigured")
	}
}
