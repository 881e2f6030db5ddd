package kubernetes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/version"

	"github.com/kubeflume/kubeflume-agent/internal/core"
)

// discoveryRepo implements core.DiscoveryRepo against the raw
// discovery endpoints. It carries no cache of its own; providers/cache
// decorates it with TTL-bound entries.
type discoveryRepo struct {
	client core.APIClient
}

// NewDiscoveryRepo returns a core.DiscoveryRepo backed by the
// Kubernetes discovery API.
func NewDiscoveryRepo(client core.APIClient) core.DiscoveryRepo {
	return &discoveryRepo{
		client: client,
	}
}

var _ core.DiscoveryRepo = (*discoveryRepo)(nil)

func (d *discoveryRepo) Versions(ctx context.Context) (*metav1.APIVersions, error) {
	versions := metav1.APIVersions{}
	if err := d.get(ctx, core.LegacyAPIPrefix, "apiversions", &versions); err != nil {
		return nil, err
	}
	return &versions, nil
}

func (d *discoveryRepo) Groups(ctx context.Context) (*metav1.APIGroupList, error) {
	groups := metav1.APIGroupList{}
	if err := d.get(ctx, core.GroupAPIPrefix, "apigroups", &groups); err != nil {
		return nil, err
	}
	return &groups, nil
}

func (d *discoveryRepo) Resources(ctx context.Context, groupVersion string) (*metav1.APIResourceList, error) {
	resources := metav1.APIResourceList{}
	if err := d.get(ctx, core.GroupVersionPath(groupVersion), "apiresourcelists", &resources); err != nil {
		return nil, err
	}
	return &resources, nil
}

func (d *discoveryRepo) ServerVersion(ctx context.Context) (*version.Info, error) {
	info := version.Info{}
	if err := d.get(ctx, "/version", "version", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// get fetches one discovery document and decodes it. Error statuses
// become StatusErrors so the resolver's retry logic can classify them.
func (d *discoveryRepo) get(ctx context.Context, path, resource string, into any) error {
	resp, err := d.client.Do(ctx, core.APIRequest{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return core.APIError(resp, "get", resource, "")
	}
	if err := json.Unmarshal(resp.Body, into); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
