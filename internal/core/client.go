package core

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// APIRequest describes a single call against the cluster API. Path is
// absolute within the API server (e.g. "/api/v1/pods"); credentials,
// host and TLS belong to the APIClient implementation.
type APIRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// APIResponse is the raw outcome of an APIRequest. StatusCode carries
// the HTTP status; interpreting non-2xx responses is the caller's
// concern.
type APIResponse struct {
	StatusCode int
	Body       []byte
}

// APIClient is the credentialed transport to the cluster API. Do
// returns an error only for transport-level failures (dial, TLS,
// context cancellation); an HTTP error status is a valid response.
type APIClient interface {
	Do(ctx context.Context, req APIRequest) (APIResponse, error)
}

// APIError converts a non-2xx APIResponse into a StatusError so that
// apierrors helpers (IsNotFound, IsGone, ...) drive control flow. The
// response body is decoded as a Status document when possible;
// otherwise a generic error is synthesised from the HTTP status.
func APIError(resp APIResponse, verb, resource, name string) error {
	var status metav1.Status
	if err := json.Unmarshal(resp.Body, &status); err == nil && status.Status == metav1.StatusFailure {
		if status.Code == 0 {
			status.Code = int32(resp.StatusCode)
		}
		return &apierrors.StatusError{ErrStatus: status}
	}

	gr := schema.GroupResource{Resource: strings.ToLower(resource)}
	return apierrors.NewGenericServerResponse(resp.StatusCode, strings.ToLower(verb), gr, name, string(resp.Body), 0, true)
}

// OK reports whether the response status is in the 2xx range.
func (r APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
