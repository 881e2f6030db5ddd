package core

import (
	"sort"
	"sync"
	"time"
)

// SessionSnapshot is the externally visible status of one watch
// session, served by the status API.
type SessionSnapshot struct {
	Name            string       `json:"name"`
	State           SessionState `json:"state"`
	Detail          string       `json:"detail,omitempty"`
	ResourceVersion string       `json:"resourceVersion,omitempty"`
	LastMessageAt   time.Time    `json:"lastMessageAt,omitzero"`
	LastError       string       `json:"lastError,omitempty"`
	LastErrorAt     time.Time    `json:"lastErrorAt,omitzero"`
	Events          uint64       `json:"events"`
	Connects        uint64       `json:"connects"`
}

// SessionRegistry aggregates the status stream of all watch sessions.
// It implements StatusReporter; error reports are recorded as a
// transient overlay and never replace the session state.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*SessionSnapshot
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*SessionSnapshot)}
}

// Report records a state transition or, for StateError, a transient
// error overlay.
func (r *SessionRegistry) Report(session string, state SessionState, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot(session)
	if state == StateError {
		snap.LastError = detail
		snap.LastErrorAt = time.Now()
		return
	}
	snap.State = state
	snap.Detail = detail
	if state == StateConnecting {
		snap.Connects++
	}
}

// Observe records per-frame progress.
func (r *SessionRegistry) Observe(session string, o Observation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := r.snapshot(session)
	snap.LastMessageAt = o.At
	if o.ResourceVersion != "" && resourceVersionGreater(o.ResourceVersion, snap.ResourceVersion) {
		snap.ResourceVersion = o.ResourceVersion
	}
	switch o.EventType {
	case WatchEventAdded, WatchEventModified, WatchEventDeleted:
		snap.Events++
	}
}

// Get returns the snapshot of one session.
func (r *SessionRegistry) Get(name string) (SessionSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.sessions[name]
	if !ok {
		return SessionSnapshot{}, &ErrSessionNotFound{Name: name}
	}
	return *snap, nil
}

// List returns the snapshots of all sessions, sorted by name.
func (r *SessionRegistry) List() []SessionSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SessionSnapshot, 0, len(r.sessions))
	for _, snap := range r.sessions {
		out = append(out, *snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// snapshot returns the entry for a session, creating it on first use.
// Callers must hold the write lock.
func (r *SessionRegistry) snapshot(session string) *SessionSnapshot {
	snap, ok := r.sessions[session]
	if !ok {
		snap = &SessionSnapshot{Name: session, State: StateIdle}
		r.sessions[session] = snap
	}
	return snap
}
