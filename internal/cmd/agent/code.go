package agent

import (
	"errors"
	"net/http"

	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// domainErrorToStatus maps domain errors to HTTP status codes for the
// JSON APIs. Kubernetes API errors keep the status code the cluster
// answered with.
func domainErrorToStatus(err error) int {
	var (
		invalid    *core.ErrInvalidInput
		missing    *core.ErrMissingAPIVersion
		noResource *core.ErrResourceNotFound
		noSession  *core.ErrSessionNotFound
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity
	case errors.As(err, &noResource):
		return http.StatusNotFound
	case errors.As(err, &noSession):
		return http.StatusNotFound
	}

	var apiStatus apierrors.APIStatus
	if errors.As(err, &apiStatus) && apiStatus.Status().Code > 0 {
		return int(apiStatus.Status().Code)
	}

	return http.StatusInternalServerError
}
