// Package metrics exposes Prometheus counters for watch session
// activity and discovery cache effectiveness. Counters register into
// the default registry, which the status server serves at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

var (
	stateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeflume_session_state_transitions_total",
			Help: "Session state transitions by session and entered state.",
		},
		[]string{"session", "state"},
	)
	sessionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeflume_session_errors_total",
			Help: "Transient session errors reported by watch sessions.",
		},
		[]string{"session"},
	)
	framesObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubeflume_session_frames_total",
			Help: "Watch frames observed by session and frame type.",
		},
		[]string{"session", "type"},
	)
)

// Reporter decorates a core.StatusReporter with Prometheus counters.
// Every report and observation is counted, then forwarded unchanged.
type Reporter struct {
	next core.StatusReporter
}

func NewReporter(next core.StatusReporter) *Reporter {
	return &Reporter{next: next}
}

var _ core.StatusReporter = (*Reporter)(nil)

func (r *Reporter) Report(session string, state core.SessionState, detail string) {
	if state == core.StateError {
		sessionErrors.WithLabelValues(session).Inc()
	} else {
		stateTransitions.WithLabelValues(session, string(state)).Inc()
	}
	r.next.Report(session, state, detail)
}

func (r *Reporter) Observe(session string, o core.Observation) {
	framesObserved.WithLabelValues(session, string(o.EventType)).Inc()
	r.next.Observe(session, o)
}

// RegisterCacheStats exposes cumulative discovery cache hit and miss
// counters backed by the given stats function. Call it once at
// startup; a second registration panics.
func RegisterCacheStats(stats func() (hits, misses uint64)) {
	promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "kubeflume_discovery_cache_hits_total",
			Help: "Discovery lookups answered from the cache.",
		},
		func() float64 {
			hits, _ := stats()
			return float64(hits)
		},
	)
	promauto.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "kubeflume_discovery_cache_misses_total",
			Help: "Discovery lookups that required an upstream fetch.",
		},
		func() float64 {
			_, misses := stats()
			return float64(misses)
		},
	)
}
