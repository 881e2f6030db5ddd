package core

import "fmt"

// ErrMissingAPIVersion indicates that a reference carries no
// apiVersion and discovery could not resolve one for its kind.
type ErrMissingAPIVersion struct {
	Kind string
}

func (e *ErrMissingAPIVersion) Error() string {
	return fmt.Sprintf("missing apiVersion for kind %q", e.Kind)
}

// ErrResourceNotFound indicates that the kind is not served under the
// resolved groupVersion, after the one-shot group-qualified retry.
type ErrResourceNotFound struct {
	Kind         string
	GroupVersion string
}

func (e *ErrResourceNotFound) Error() string {
	return fmt.Sprintf("resource not found for kind %q in %s", e.Kind, e.GroupVersion)
}

// ErrInvalidInput indicates a domain-level input validation failure.
// It replaces the use of k8s apierrors.NewBadRequest in the domain
// layer, keeping the core package free of infrastructure error types.
type ErrInvalidInput struct {
	Field   string
	Message string
}

func (e *ErrInvalidInput) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ErrSessionNotFound indicates that a watch session is not present in
// the session registry.
type ErrSessionNotFound struct {
	Name string
}

func (e *ErrSessionNotFound) Error() string {
	return fmt.Sprintf("session %q not found", e.Name)
}
