package core

import "context"

// WatchEventType represents the type of a resource watch event.
// This is a domain-level type that decouples the core layer from
// k8s.io/apimachinery/pkg/watch.EventType.
type WatchEventType string

const (
	WatchEventAdded    WatchEventType = "ADDED"
	WatchEventModified WatchEventType = "MODIFIED"
	WatchEventDeleted  WatchEventType = "DELETED"
	WatchEventBookmark WatchEventType = "BOOKMARK"
	WatchEventError    WatchEventType = "ERROR"
)

// WatchEvent represents a single frame from a resource watch stream.
// Object carries the raw Kubernetes resource as a generic map so that
// the domain layer does not depend on unstructured.Unstructured. For
// ERROR frames, Object holds the decoded Status body.
type WatchEvent struct {
	Type   WatchEventType
	Object map[string]any
}

// WatchStream provides a channel of WatchEvents and a way to stop the
// underlying watch. This replaces the direct use of
// k8s.io/apimachinery/pkg/watch.Interface in the domain layer,
// keeping the core package free of client-go dependencies for watch
// operations.
type WatchStream interface {
	// Frames returns a channel that receives watch events in arrival
	// order. The channel is closed when the watch ends or Stop is
	// called.
	Frames() <-chan WatchEvent
	// Err reports the terminal error of the stream, if any. It is
	// only meaningful after the frame channel has been closed.
	Err() error
	// Stop terminates the watch and closes the frame channel. It is
	// safe to call multiple times.
	Stop()
}

// StreamOpener opens a watch stream against a list/watch endpoint.
// An empty resourceVersion means the server default (current state).
// Implementations must confirm the connection (HTTP 200) before
// returning; a non-OK response is an open failure, not a stream.
type StreamOpener interface {
	OpenWatch(ctx context.Context, endpoint, resourceVersion string) (WatchStream, error)
}
