package kubernetes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// apiClient implements core.APIClient over the shared cluster HTTP
// client. It performs no retries and no status interpretation; an
// error status is a valid response for the caller to classify.
type apiClient struct {
	kubernetes *Kubernetes
}

// NewAPIClient returns a core.APIClient backed by the cluster REST
// API.
func NewAPIClient(kubernetes *Kubernetes) core.APIClient {
	return &apiClient{
		kubernetes: kubernetes,
	}
}

var _ core.APIClient = (*apiClient)(nil)

func (c *apiClient) Do(ctx context.Context, req core.APIRequest) (core.APIResponse, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.kubernetes.buildURL(req.Path, req.Query), body)
	if err != nil {
		return core.APIResponse{}, fmt.Errorf("failed to build request for %s: %w", req.Path, err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := c.kubernetes.client.Do(httpReq)
	if err != nil {
		return core.APIResponse{}, fmt.Errorf("request to %s failed: %w", req.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.APIResponse{}, fmt.Errorf("failed to read response from %s: %w", req.Path, err)
	}

	return core.APIResponse{
		StatusCode: resp.StatusCode,
		Body:       data,
	}, nil
}
