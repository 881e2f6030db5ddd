package kubernetes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// maxErrorBody caps how much of a failed open's response body is kept
// for the error message.
const maxErrorBody = 4096

// streamOpener implements core.StreamOpener with chunked HTTP watch
// requests against list endpoints.
type streamOpener struct {
	kubernetes *Kubernetes
}

// NewStreamOpener returns a core.StreamOpener backed by the cluster
// watch API.
func NewStreamOpener(kubernetes *Kubernetes) core.StreamOpener {
	return &streamOpener{
		kubernetes: kubernetes,
	}
}

var _ core.StreamOpener = (*streamOpener)(nil)

// OpenWatch issues the watch request and confirms the connection
// before returning. An empty resourceVersion is left off the query so
// the server starts from its current state.
func (s *streamOpener) OpenWatch(ctx context.Context, endpoint, resourceVersion string) (core.WatchStream, error) {
	query := url.Values{}
	query.Set("watch", "true")
	query.Set("allowWatchBookmarks", "true")
	if resourceVersion != "" {
		query.Set("resourceVersion", resourceVersion)
	}

	reqCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.kubernetes.buildURL(endpoint, query), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build watch request for %s: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.kubernetes.client.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch request to %s failed: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		return nil, core.APIError(core.APIResponse{StatusCode: resp.StatusCode, Body: body}, "watch", endpoint, "")
	}

	stream := &watchStream{
		body:   resp.Body,
		cancel: cancel,
		frames: make(chan core.WatchEvent),
		done:   make(chan struct{}),
	}
	go stream.decode()

	return stream, nil
}

// watchFrame is the wire form of one watch event.
type watchFrame struct {
	Type   string          `json:"type"`
	Object json.RawMessage `json:"object"`
}

// watchStream implements core.WatchStream over a chunked watch
// response body. Frames are decoded on a dedicated goroutine and
// handed over unbuffered so that backpressure reaches the server.
type watchStream struct {
	body   io.ReadCloser
	cancel context.CancelFunc
	frames chan core.WatchEvent

	stopOnce sync.Once
	done     chan struct{}

	mu  sync.Mutex
	err error
}

var _ core.WatchStream = (*watchStream)(nil)

func (w *watchStream) Frames() <-chan core.WatchEvent {
	return w.frames
}

func (w *watchStream) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *watchStream) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.cancel()
	})
}

func (w *watchStream) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}

func (w *watchStream) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// decode reads frames off the wire until the connection ends or Stop
// is called, then closes the frame channel. A server-side close shows
// up as io.EOF and ends the stream without error; the session decides
// whether to reconnect.
func (w *watchStream) decode() {
	defer close(w.frames)
	defer w.body.Close()
	defer w.cancel()

	decoder := json.NewDecoder(w.body)
	for {
		frame := watchFrame{}
		if err := decoder.Decode(&frame); err != nil {
			if !errors.Is(err, io.EOF) && !w.stopped() {
				w.setErr(fmt.Errorf("failed to decode watch frame: %w", err))
			}
			return
		}

		var obj map[string]any
		if len(frame.Object) > 0 {
			if err := json.Unmarshal(frame.Object, &obj); err != nil {
				w.setErr(fmt.Errorf("failed to decode watch object: %w", err))
				return
			}
		}

		select {
		case w.frames <- core.WatchEvent{Type: core.WatchEventType(frame.Type), Object: obj}:
		case <-w.done:
			return
		}
	}
}
