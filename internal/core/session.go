package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// SessionState is the connectivity state of a watch session.
type SessionState string

const (
	// StateIdle means the session has not connected yet.
	StateIdle SessionState = "idle"
	// StateConnecting means a connection attempt is in flight.
	StateConnecting SessionState = "connecting"
	// StateConnected means the watch stream is live.
	StateConnected SessionState = "connected"
	// StateDisconnected means the stream ended or failed to open; a
	// reconnect is pending.
	StateDisconnected SessionState = "disconnected"
	// StateMisconfigured is terminal: the session cannot run until it
	// is reconfigured. Other sessions are unaffected.
	StateMisconfigured SessionState = "misconfigured"
	// StateError is a transient report overlaying the current state.
	// It is delivered to the reporter but never stored as the
	// session state.
	StateError SessionState = "error"
)

const (
	defaultIdleTimeout       = 5 * time.Minute
	defaultReconnectInterval = 10 * time.Second
)

// ResourceVersionLister obtains the current resourceVersion of a
// list/watch endpoint via a limit-1 list.
type ResourceVersionLister interface {
	CurrentResourceVersion(ctx context.Context, endpoint string) (string, error)
}

// WatchConfig describes one watch session. Endpoint is a server-
// absolute list/watch path; it is cleaned of watch residue on
// construction. EndpointHash pins persisted checkpoints to the
// cluster/endpoint pair and defaults to a hash of the endpoint alone.
type WatchConfig struct {
	Name              string
	Endpoint          string
	EndpointHash      string
	Strategy          ResourceVersionStrategy
	Expiry            ExpiryStrategy
	DressEvents       bool
	IdleTimeout       time.Duration
	ReconnectInterval time.Duration
}

func (c *WatchConfig) applyDefaults() {
	c.Endpoint = CleanEndpoint(c.Endpoint)
	if c.EndpointHash == "" {
		c.EndpointHash = EndpointHash("", c.Endpoint)
	}
	if c.Strategy == "" {
		c.Strategy = StrategyCurrent
	}
	if c.Expiry == "" {
		c.Expiry = ExpiryCurrent
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = defaultIdleTimeout
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = defaultReconnectInterval
	}
}

// WatchSession owns one watch stream against a cluster endpoint and
// keeps it alive: it selects the resourceVersion to (re)connect with,
// tracks progress, persists checkpoints, recovers from expired
// versions, and pushes finished payloads to the emitter.
//
// All session state is owned by the Start loop; frames, ticker fires
// and stop signals are processed strictly in arrival order.
type WatchSession struct {
	name              string
	endpoint          string
	endpointHash      string
	strategy          ResourceVersionStrategy
	expiry            ExpiryStrategy
	dressEvents       bool
	idleTimeout       time.Duration
	reconnectInterval time.Duration

	opener   StreamOpener
	lister   ResourceVersionLister
	store    CheckpointStore
	emitter  Emitter
	reporter StatusReporter
	dresser  *EventDresser
	log      *slog.Logger

	// Loop-owned state.
	state              SessionState
	connecting         bool
	reconnectRequested bool
	forced             *string
	resourceVersion    string
	latest             string
	lastMessage        time.Time
	stream             WatchStream

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewWatchSession(cfg WatchConfig, opener StreamOpener, lister ResourceVersionLister, store CheckpointStore, emitter Emitter, reporter StatusReporter, dresser *EventDresser) (*WatchSession, error) {
	cfg.applyDefaults()

	s := &WatchSession{
		name:              cfg.Name,
		endpoint:          cfg.Endpoint,
		endpointHash:      cfg.EndpointHash,
		strategy:          cfg.Strategy,
		expiry:            cfg.Expiry,
		dressEvents:       cfg.DressEvents,
		idleTimeout:       cfg.IdleTimeout,
		reconnectInterval: cfg.ReconnectInterval,
		opener:            opener,
		lister:            lister,
		store:             store,
		emitter:           emitter,
		reporter:          reporter,
		dresser:           dresser,
		state:             StateIdle,
		log:               slog.Default().With("component", "watch", "session", cfg.Name),
		stopCh:            make(chan struct{}),
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the session name.
func (s *WatchSession) Name() string {
	return s.name
}

func (s *WatchSession) validate() error {
	switch {
	case s.name == "":
		return &ErrInvalidInput{Field: "session name", Message: "required"}
	case s.endpoint == "" || s.endpoint == "/":
		return &ErrInvalidInput{Field: "endpoint", Message: "required"}
	case s.opener == nil:
		return &ErrInvalidInput{Field: "stream opener", Message: "required"}
	case s.emitter == nil:
		return &ErrInvalidInput{Field: "emitter", Message: "required"}
	case s.lister == nil && (s.strategy == StrategyCurrent || s.strategy == StrategyRestoreCurrent || s.expiry == ExpiryCurrent):
		return &ErrInvalidInput{Field: "lister", Message: "required by CURRENT strategies"}
	}
	return nil
}

// Start runs the session event loop until the context is cancelled or
// Stop is called. A session that fails validation parks in
// StateMisconfigured instead of returning an error, so sibling
// sessions keep running.
func (s *WatchSession) Start(ctx context.Context) error {
	if err := s.validate(); err != nil {
		s.setState(StateMisconfigured, err.Error())
		s.log.Error("session misconfigured", "error", err)
		select {
		case <-ctx.Done():
		case <-s.stopCh:
		}
		return nil
	}

	ticker := time.NewTicker(s.reconnectInterval)
	defer ticker.Stop()
	idle := time.NewTimer(s.idleTimeout)
	defer idle.Stop()

	frames := s.connect(ctx)
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return nil
		case <-s.stopCh:
			s.teardown()
			return nil
		case ev, ok := <-frames:
			if !ok {
				frames = nil
				s.onStreamEnd()
				continue
			}
			s.onFrame(ctx, ev)
			idle.Reset(s.idleTimeout)
		case <-ticker.C:
			if s.reconnectRequested {
				frames = s.connect(ctx)
			}
		case <-idle.C:
			s.log.Warn("no frames within idle window, reconnecting", "window", s.idleTimeout)
			frames = s.connect(ctx)
			idle.Reset(s.idleTimeout)
		}
	}
}

// Stop signals the Start loop to tear down and return. It is safe to
// call multiple times and before Start.
func (s *WatchSession) Stop(_ context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// connect (re)establishes the watch stream: any previous stream is
// torn down first, then the resourceVersion for this attempt is
// selected and the stream opened. A no-op while another connect is in
// flight. Returns the frame channel of the new stream, or nil when
// the attempt failed (a reconnect is then pending).
func (s *WatchSession) connect(ctx context.Context) <-chan WatchEvent {
	if s.connecting {
		return s.frames()
	}
	s.connecting = true
	defer func() { s.connecting = false }()

	s.teardown()
	s.reconnectRequested = false
	s.setState(StateConnecting, "")

	rv, needList := SelectResourceVersion(SelectionInput{
		Forced:       s.forced,
		Latest:       s.latest,
		Current:      s.resourceVersion,
		Strategy:     s.strategy,
		Checkpoint:   s.loadCheckpoint(),
		EndpointHash: s.endpointHash,
	})
	s.forced = nil // consumed exactly once

	if needList {
		fresh, err := s.lister.CurrentResourceVersion(ctx, s.endpoint)
		if err != nil {
			s.log.Warn("list for current resourceVersion failed, using server default", "error", err)
			fresh = ""
		}
		rv = fresh
	}
	rv = SanitizeResourceVersion(rv)
	s.resourceVersion = rv

	stream, err := s.opener.OpenWatch(ctx, s.endpoint, rv)
	if err != nil {
		s.setState(StateDisconnected, err.Error())
		s.reportError(err)
		s.reconnectRequested = true
		s.log.Warn("watch connect failed", "endpoint", s.endpoint, "error", err)
		return nil
	}

	s.stream = stream
	s.setState(StateConnected, "")
	s.log.Info("watch connected", "endpoint", s.endpoint, "resourceVersion", rv)
	return stream.Frames()
}

// loadCheckpoint reads the persisted checkpoint for RESTORE
// strategies. Load failures fall back to the non-restore behaviour.
func (s *WatchSession) loadCheckpoint() *Checkpoint {
	if s.strategy != StrategyRestoreNull && s.strategy != StrategyRestoreCurrent {
		return nil
	}
	if s.store == nil {
		return nil
	}
	cp, ok, err := s.store.Load(s.name)
	if err != nil {
		s.log.Warn("checkpoint load failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return &cp
}

func (s *WatchSession) onFrame(ctx context.Context, ev WatchEvent) {
	s.lastMessage = time.Now()

	switch ev.Type {
	case WatchEventError:
		s.onErrorFrame(ctx, ev.Object)
		return
	case WatchEventBookmark:
		s.observeResourceVersion(ev.Object, ev.Type)
		return
	}

	rv := s.observeResourceVersion(ev.Object, ev.Type)
	if s.dressEvents && s.dresser != nil && isCoreEvent(ev.Object) {
		s.dresser.Dress(ctx, ev.Object)
	}

	msg := Message{
		ID:              uuid.NewString(),
		Session:         s.name,
		Type:            ev.Type,
		ResourceVersion: rv,
		EmittedAt:       time.Now(),
		Object:          ev.Object,
	}
	if err := s.emitter.Emit(ctx, msg); err != nil {
		s.log.Warn("emit failed", "type", ev.Type, "error", err)
	}
}

// observeResourceVersion extracts the frame's resourceVersion,
// advances the session's latest version when the incoming value is
// numerically greater, and persists a checkpoint on each strict
// increase. Returns the extracted value.
func (s *WatchSession) observeResourceVersion(obj map[string]any, typ WatchEventType) string {
	meta, _ := obj["metadata"].(map[string]any)
	rv := stringField(meta, "resourceVersion")
	s.observe(Observation{ResourceVersion: rv, EventType: typ, At: s.lastMessage})

	if rv != "" && resourceVersionGreater(rv, s.latest) {
		s.latest = rv
		s.persistCheckpoint(rv)
	}
	return rv
}

func (s *WatchSession) persistCheckpoint(rv string) {
	if s.store == nil {
		return
	}
	cp := Checkpoint{ResourceVersion: rv, EndpointHash: s.endpointHash, SavedAt: time.Now()}
	if err := s.store.Save(s.name, cp); err != nil {
		s.log.Warn("checkpoint save failed", "resourceVersion", rv, "error", err)
	}
}

func (s *WatchSession) onErrorFrame(ctx context.Context, status map[string]any) {
	code := intField(status, "code")
	reason := stringField(status, "reason")
	message := stringField(status, "message")

	s.reportError(fmt.Errorf("watch error frame: code=%d reason=%s message=%s", code, reason, message))
	s.log.Warn("watch error frame", "code", code, "reason", reason, "message", message)

	if code == http.StatusGone && (reason == string(metav1.StatusReasonGone) || reason == string(metav1.StatusReasonExpired)) {
		s.armExpiryRecovery(ctx)
	}
}

// armExpiryRecovery prepares a one-shot forced resourceVersion after
// the server reported the watched version as gone. The override is
// consumed by the next connect.
func (s *WatchSession) armExpiryRecovery(ctx context.Context) {
	var forced string
	switch s.expiry {
	case ExpiryZero:
		forced = "0"
	case ExpiryNull:
		forced = ""
	default: // ExpiryCurrent
		fresh, err := s.lister.CurrentResourceVersion(ctx, s.endpoint)
		if err != nil {
			s.log.Warn("expiry recovery list failed", "error", err)
			s.reconnectRequested = true
			return
		}
		forced = fresh
	}
	s.forced = &forced
	s.reconnectRequested = true
	s.log.Info("resourceVersion expired, recovery armed", "strategy", s.expiry, "resourceVersion", forced)
}

func (s *WatchSession) onStreamEnd() {
	var cause error
	if s.stream != nil {
		cause = s.stream.Err()
	}
	s.teardown()

	if cause != nil {
		s.setState(StateDisconnected, cause.Error())
		s.reportError(cause)
		s.log.Warn("watch stream ended", "error", cause)
	} else {
		s.setState(StateDisconnected, "stream closed")
		s.log.Info("watch stream closed")
	}
	s.reconnectRequested = true
}

// teardown destroys the active stream. Safe to call repeatedly.
func (s *WatchSession) teardown() {
	if s.stream == nil {
		return
	}
	s.stream.Stop()
	s.stream = nil
}

func (s *WatchSession) frames() <-chan WatchEvent {
	if s.stream == nil {
		return nil
	}
	return s.stream.Frames()
}

func (s *WatchSession) setState(state SessionState, detail string) {
	s.state = state
	if s.reporter != nil {
		s.reporter.Report(s.name, state, detail)
	}
}

func (s *WatchSession) reportError(err error) {
	if s.reporter != nil {
		s.reporter.Report(s.name, StateError, err.Error())
	}
}

func (s *WatchSession) observe(o Observation) {
	if s.reporter != nil {
		s.reporter.Observe(s.name, o)
	}
}

// isCoreEvent reports whether the object is a core/v1 Event, the only
// kind the dresser applies to.
func isCoreEvent(obj map[string]any) bool {
	return stringField(obj, "kind") == "Event" && stringField(obj, "apiVersion") == LegacyCoreVersion
}
