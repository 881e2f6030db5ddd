package core

import (
	"context"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/version"
)

const (
	// LegacyAPIPrefix is the path prefix of the legacy core API group.
	LegacyAPIPrefix = "/api"
	// GroupAPIPrefix is the path prefix of named API groups.
	GroupAPIPrefix = "/apis"
	// LegacyCoreVersion is the apiVersion of the legacy core group.
	LegacyCoreVersion = "v1"
)

// DiscoveryRepo abstracts API discovery against a cluster. The cache
// layer (providers/cache) decorates a raw implementation
// (providers/kubernetes) with TTL-bound entries, so resolver lookups
// are cache-first by construction.
type DiscoveryRepo interface {
	// Versions lists the legacy core API versions (GET /api).
	Versions(ctx context.Context) (*metav1.APIVersions, error)
	// Groups lists the named API groups with their preferred
	// versions (GET /apis).
	Groups(ctx context.Context) (*metav1.APIGroupList, error)
	// Resources lists the resources served under one groupVersion
	// (GET /api/{v} for the legacy core group, GET /apis/{g}/{v}
	// otherwise).
	Resources(ctx context.Context, groupVersion string) (*metav1.APIResourceList, error)
	// ServerVersion reports the cluster version (GET /version).
	ServerVersion(ctx context.Context) (*version.Info, error)
}

// GroupVersionPath returns the discovery path for a groupVersion:
// "/api/v1" for the legacy core group, "/apis/{groupVersion}" for
// named groups.
func GroupVersionPath(groupVersion string) string {
	if groupVersion == LegacyCoreVersion {
		return LegacyAPIPrefix + "/" + groupVersion
	}
	return GroupAPIPrefix + "/" + groupVersion
}
