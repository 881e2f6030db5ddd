package core

import (
	"context"
	"time"
)

// Message is one finished payload pushed outward by a watch session.
type Message struct {
	ID              string         `json:"id"`
	Session         string         `json:"session"`
	Type            WatchEventType `json:"type"`
	ResourceVersion string         `json:"resourceVersion,omitempty"`
	EmittedAt       time.Time      `json:"emittedAt"`
	Object          map[string]any `json:"object"`
}

// Emitter is the outward message channel. Implementations live in the
// infrastructure layer (Kafka, log); a failed emit is reported to the
// session but never stops the stream.
type Emitter interface {
	Emit(ctx context.Context, msg Message) error
}

// Observation is a per-frame note delivered to the status reporter.
type Observation struct {
	ResourceVersion string
	EventType       WatchEventType
	At              time.Time
}

// StatusReporter receives the continuous connectivity/status stream
// of watch sessions. Report carries state transitions and transient
// error overlays; Observe carries per-frame progress.
type StatusReporter interface {
	Report(session string, state SessionState, detail string)
	Observe(session string, o Observation)
}
