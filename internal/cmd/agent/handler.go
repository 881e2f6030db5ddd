package agent

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/grpcreflect"
	"connectrpc.com/otelconnect"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// maxResolveBody caps the resolve request body size.
const maxResolveBody = 64 * 1024

// Handler sets up the HTTP routes served by the agent: liveness,
// health, reflection, metrics, the session status API, and self-link
// resolution.
type Handler struct {
	registry *core.SessionRegistry
	resolver *core.Resolver
	log      *slog.Logger
}

// NewHandler returns a Handler backed by the session registry and the
// resolver.
func NewHandler(registry *core.SessionRegistry, resolver *core.Resolver) *Handler {
	return &Handler{
		registry: registry,
		resolver: resolver,
		log:      slog.Default().With("component", "handler"),
	}
}

// Mount registers all handlers, middlewares, and observability tools to the mux.
func (h *Handler) Mount(mux *http.ServeMux) error {
	// Prepare Interceptors
	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return err
	}

	interceptors := connect.WithInterceptors(
		otelInterceptor,
	)

	// Register Observability & Operations (Reflection, Health, Metrics).
	// The health service is the only RPC service this surface exposes.
	services := []string{
		grpchealth.HealthV1ServiceName,
	}

	if err := h.registerOpsHandlers(mux, services, interceptors); err != nil {
		return err
	}

	// Register the JSON APIs
	mux.HandleFunc("GET /ping", h.ping)
	mux.HandleFunc("GET /api/v1alpha1/sessions", h.listSessions)
	mux.HandleFunc("GET /api/v1alpha1/sessions/{name}", h.getSession)
	mux.HandleFunc("POST /api/v1alpha1/resolve", h.resolve)

	return nil
}

// registerOpsHandlers sets up Reflection, Health Check, and Metrics.
func (h *Handler) registerOpsHandlers(mux *http.ServeMux, serviceNames []string, opts connect.HandlerOption) error {
	// gRPC Reflection
	reflector := grpcreflect.NewStaticReflector(serviceNames...)
	mux.Handle(grpcreflect.NewHandlerV1(reflector, opts))
	mux.Handle(grpcreflect.NewHandlerV1Alpha(reflector, opts))

	// gRPC Health Check
	checker := grpchealth.NewStaticChecker(serviceNames...)
	mux.Handle(grpchealth.NewHandler(checker, opts))

	// Prometheus Metrics
	exporter, err := prometheus.New()
	if err != nil {
		return err
	}
	otel.SetMeterProvider(metric.NewMeterProvider(metric.WithReader(exporter)))
	mux.Handle("/metrics", promhttp.Handler())

	return nil
}

func (h *Handler) ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}

func (h *Handler) listSessions(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.registry.List())
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.registry.Get(r.PathValue("name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// resolveRequest is the body of POST /api/v1alpha1/resolve.
type resolveRequest struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Namespace  string `json:"namespace"`
}

// resolveResponse carries the resolved self link.
type resolveResponse struct {
	SelfLink string `json:"selfLink"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxResolveBody)).Decode(&req); err != nil {
		h.writeError(w, &core.ErrInvalidInput{Field: "body", Message: err.Error()})
		return
	}

	selfLink, err := h.resolver.SelfLink(r.Context(), core.ResourceReference{
		APIVersion: req.APIVersion,
		Kind:       req.Kind,
		Name:       req.Name,
		Namespace:  req.Namespace,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resolveResponse{SelfLink: selfLink})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn("write response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, domainErrorToStatus(err), errorResponse{Error: err.Error()})
}
