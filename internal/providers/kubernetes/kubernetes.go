// Package kubernetes implements the cluster-facing repositories of the
// core layer over the raw Kubernetes REST API: the credentialed HTTP
// client, the discovery endpoints and the chunked watch stream. It
// deliberately avoids the typed client-go clientsets so that arbitrary
// list/watch endpoints, including custom resources, work without code
// generation.
package kubernetes

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kubeflume/kubeflume-agent/internal/config"
)

// ProvideRESTConfig is a Wire provider that returns the *rest.Config
// for cluster API access. An explicitly configured kubeconfig wins;
// otherwise in-cluster config is used, falling back to the user's
// kubeconfig for local development.
func ProvideRESTConfig(conf *config.Config) (*rest.Config, error) {
	if path := conf.AgentKubeconfig(); path != "" {
		return clientcmd.BuildConfigFromFlags("", path)
	}

	cfg, err := rest.InClusterConfig()
	if err != nil {
		slog.Warn("in-cluster config not available, falling back to kubeconfig", "error", err)
		return clientcmd.BuildConfigFromFlags("", clientcmd.RecommendedHomeFile)
	}
	return cfg, nil
}

// Kubernetes holds the credentialed HTTP client and base URL shared by
// the repositories in this package. The client carries the cluster's
// TLS and authentication settings; callers only supply server-absolute
// paths.
type Kubernetes struct {
	base   *url.URL
	client *http.Client
}

func New(cfg *rest.Config) (*Kubernetes, error) {
	client, err := rest.HTTPClientFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build cluster http client: %w", err)
	}

	base, _, err := rest.DefaultServerURL(cfg.Host, cfg.APIPath, schema.GroupVersion{}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cluster host %q: %w", cfg.Host, err)
	}

	return &Kubernetes{base: base, client: client}, nil
}

// buildURL resolves a server-absolute API path against the cluster
// base URL. The path may carry its own query string (selectors on
// configured endpoints); extra values are merged in and override
// duplicates.
func (k *Kubernetes) buildURL(path string, extra url.Values) string {
	parsed, err := url.Parse(path)
	if err != nil {
		parsed = &url.URL{Path: path}
	}

	u := *k.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(parsed.Path, "/")

	q := parsed.Query()
	for key, values := range extra {
		q[key] = values
	}
	u.RawQuery = q.Encode()

	return u.String()
}
