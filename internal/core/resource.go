package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"k8s.io/apimachinery/pkg/types"
)

// ListOptions narrows a collection list.
type ListOptions struct {
	LabelSelector string
	FieldSelector string
	Limit         int64
	Continue      string
}

// ResourceUseCase performs resource operations against the cluster
// API through the credentialed transport, with all paths built by the
// resolver. Responses stay generic maps; typed decoding is the
// caller's concern.
type ResourceUseCase struct {
	client   APIClient
	resolver *Resolver
}

func NewResourceUseCase(client APIClient, resolver *Resolver) *ResourceUseCase {
	return &ResourceUseCase{client: client, resolver: resolver}
}

// Get fetches the referenced resource.
func (uc *ResourceUseCase) Get(ctx context.Context, ref ResourceReference) (map[string]any, error) {
	path, err := uc.resolver.SelfLink(ctx, ref)
	if err != nil {
		return nil, err
	}

	resp, err := uc.client.Do(ctx, APIRequest{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, APIError(resp, "get", ref.Kind, ref.Name)
	}
	return decodeObject(resp.Body)
}

// List fetches the referenced collection.
func (uc *ResourceUseCase) List(ctx context.Context, ref ResourceReference, opts ListOptions) (map[string]any, error) {
	path, err := uc.resolver.CollectionPath(ctx, ref)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if opts.LabelSelector != "" {
		q.Set("labelSelector", opts.LabelSelector)
	}
	if opts.FieldSelector != "" {
		q.Set("fieldSelector", opts.FieldSelector)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.FormatInt(opts.Limit, 10))
	}
	if opts.Continue != "" {
		q.Set("continue", opts.Continue)
	}

	resp, err := uc.client.Do(ctx, APIRequest{Method: http.MethodGet, Path: path, Query: q})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, APIError(resp, "list", ref.Kind, "")
	}
	return decodeObject(resp.Body)
}

// Create posts the object to the referenced collection.
func (uc *ResourceUseCase) Create(ctx context.Context, ref ResourceReference, obj map[string]any) (map[string]any, error) {
	path, err := uc.resolver.CollectionPath(ctx, ref)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}

	resp, err := uc.client.Do(ctx, APIRequest{
		Method: http.MethodPost,
		Path:   path,
		Header: jsonHeader("application/json"),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, APIError(resp, "create", ref.Kind, ref.Name)
	}
	return decodeObject(resp.Body)
}

// Update replaces the referenced resource.
func (uc *ResourceUseCase) Update(ctx context.Context, ref ResourceReference, obj map[string]any) (map[string]any, error) {
	path, err := uc.resolver.SelfLink(ctx, ref)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("encode object: %w", err)
	}

	resp, err := uc.client.Do(ctx, APIRequest{
		Method: http.MethodPut,
		Path:   path,
		Header: jsonHeader("application/json"),
		Body:   body,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, APIError(resp, "update", ref.Kind, ref.Name)
	}
	return decodeObject(resp.Body)
}

// Patch applies a patch to the referenced resource. The patch type
// doubles as the request content type, distinguishing JSON patch,
// merge patch and strategic merge patch.
func (uc *ResourceUseCase) Patch(ctx context.Context, ref ResourceReference, pt types.PatchType, patch []byte) (map[string]any, error) {
	path, err := uc.resolver.SelfLink(ctx, ref)
	if err != nil {
		return nil, err
	}
	if pt == "" {
		pt = types.MergePatchType
	}

	resp, err := uc.client.Do(ctx, APIRequest{
		Method: http.MethodPatch,
		Path:   path,
		Header: jsonHeader(string(pt)),
		Body:   patch,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, APIError(resp, "patch", ref.Kind, ref.Name)
	}
	return decodeObject(resp.Body)
}

// Delete removes the referenced resource.
func (uc *ResourceUseCase) Delete(ctx context.Context, ref ResourceReference) error {
	path, err := uc.resolver.SelfLink(ctx, ref)
	if err != nil {
		return err
	}

	resp, err := uc.client.Do(ctx, APIRequest{Method: http.MethodDelete, Path: path})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return APIError(resp, "delete", ref.Kind, ref.Name)
	}
	return nil
}

// CurrentResourceVersion performs a limit-1 list of the endpoint and
// returns the list's resourceVersion. Watch sessions use it for the
// CURRENT strategies.
func (uc *ResourceUseCase) CurrentResourceVersion(ctx context.Context, endpoint string) (string, error) {
	q := url.Values{}
	q.Set("limit", "1")

	resp, err := uc.client.Do(ctx, APIRequest{Method: http.MethodGet, Path: endpoint, Query: q})
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", APIError(resp, "list", endpoint, "")
	}

	obj, err := decodeObject(resp.Body)
	if err != nil {
		return "", err
	}
	meta, _ := obj["metadata"].(map[string]any)
	rv := stringField(meta, "resourceVersion")
	if rv == "" {
		return "", fmt.Errorf("list of %s carried no resourceVersion", endpoint)
	}
	return rv, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	obj := map[string]any{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return obj, nil
}

func jsonHeader(contentType string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	return h
}
