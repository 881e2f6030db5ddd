package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Resolver maps kinds and resource references onto API server paths
// using discovery. All lookups go through the DiscoveryRepo, so with
// the cache decorator in place they are cache-first.
type Resolver struct {
	discovery DiscoveryRepo
	log       *slog.Logger
}

func NewResolver(discovery DiscoveryRepo) *Resolver {
	return &Resolver{
		discovery: discovery,
		log:       slog.Default().With("component", "resolver"),
	}
}

// APIGroups returns the named API groups with their versions and
// preferred version.
func (r *Resolver) APIGroups(ctx context.Context) (*metav1.APIGroupList, error) {
	return r.discovery.Groups(ctx)
}

// APIResources returns the union of the legacy core resource lists
// and every named group's resource lists. With preferredOnly set,
// non-preferred group versions are skipped; the legacy core versions
// are always included. GroupVersions that fail to list are skipped.
func (r *Resolver) APIResources(ctx context.Context, preferredOnly bool) ([]*metav1.APIResourceList, error) {
	versions, err := r.discovery.Versions(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover legacy versions: %w", err)
	}
	groups, err := r.discovery.Groups(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover groups: %w", err)
	}

	groupVersions := make([]string, 0, len(versions.Versions)+len(groups.Groups))
	groupVersions = append(groupVersions, versions.Versions...)
	for _, group := range groups.Groups {
		if preferredOnly {
			groupVersions = append(groupVersions, group.PreferredVersion.GroupVersion)
			continue
		}
		for _, v := range group.Versions {
			groupVersions = append(groupVersions, v.GroupVersion)
		}
	}

	lists := make([]*metav1.APIResourceList, 0, len(groupVersions))
	for _, gv := range groupVersions {
		list, err := r.discovery.Resources(ctx, gv)
		if err != nil {
			r.log.Debug("skipping groupVersion", "groupVersion", gv, "error", err)
			continue
		}
		lists = append(lists, list)
	}
	return lists, nil
}

// GroupVersionFor resolves the groupVersion serving a kind. The kind
// match is case-insensitive and consults preferred versions only;
// version, when non-empty, constrains matches to that bare version.
// Zero or multiple distinct matches leave the lookup unresolved, as
// does any discovery failure. The result is never a guess.
func (r *Resolver) GroupVersionFor(ctx context.Context, kind, version string) (schema.GroupVersion, bool) {
	lists, err := r.APIResources(ctx, true)
	if err != nil {
		r.log.Debug("groupVersion lookup failed", "kind", kind, "error", err)
		return schema.GroupVersion{}, false
	}

	var match string
	for _, list := range lists {
		if version != "" && bareVersion(list.GroupVersion) != version {
			continue
		}
		if !listServesKind(list, kind) {
			continue
		}
		if match != "" && match != list.GroupVersion {
			return schema.GroupVersion{}, false
		}
		match = list.GroupVersion
	}
	if match == "" {
		return schema.GroupVersion{}, false
	}

	gv, err := schema.ParseGroupVersion(match)
	if err != nil {
		return schema.GroupVersion{}, false
	}
	return gv, true
}

// listServesKind reports whether a resource list carries the kind,
// ignoring case and skipping subresources.
func listServesKind(list *metav1.APIResourceList, kind string) bool {
	for _, res := range list.APIResources {
		if strings.Contains(res.Name, "/") {
			continue
		}
		if strings.EqualFold(res.Kind, kind) {
			return true
		}
	}
	return false
}

// SelfLink returns the API path of the referenced resource. An
// existing self-link wins unchanged; otherwise the path is built from
// discovery: resolve a missing apiVersion by kind, list the
// groupVersion's resources (with a one-shot group-qualified retry
// when the bare version is unknown), and match the kind
// case-sensitively to obtain the resource name and scope.
func (r *Resolver) SelfLink(ctx context.Context, ref ResourceReference) (string, error) {
	if ref.SelfLink != "" {
		return ref.SelfLink, nil
	}
	if ref.Name == "" {
		return "", &ErrInvalidInput{Field: "name", Message: "required to build a self link"}
	}

	res, err := r.resolveResource(ctx, ref)
	if err != nil {
		return "", err
	}
	return res.collectionPath(ref.Namespace) + "/" + ref.Name, nil
}

// CollectionPath returns the list/watch path of the referenced
// resource collection, built the same way as SelfLink minus the name
// segment.
func (r *Resolver) CollectionPath(ctx context.Context, ref ResourceReference) (string, error) {
	res, err := r.resolveResource(ctx, ref)
	if err != nil {
		return "", err
	}
	return res.collectionPath(ref.Namespace), nil
}

// resolvedResource is the outcome of a kind lookup in one
// groupVersion resource list.
type resolvedResource struct {
	apiVersion string
	resource   string
	namespaced bool
}

func (rr resolvedResource) collectionPath(namespace string) string {
	path := apiPrefix(rr.apiVersion) + "/" + rr.apiVersion
	if rr.namespaced && namespace != "" {
		path += "/namespaces/" + namespace
	}
	return path + "/" + rr.resource
}

// apiPrefix returns "/api" for the legacy core group and "/apis" for
// named groups.
func apiPrefix(apiVersion string) string {
	if apiVersion == LegacyCoreVersion {
		return LegacyAPIPrefix
	}
	return GroupAPIPrefix
}

func (r *Resolver) resolveResource(ctx context.Context, ref ResourceReference) (resolvedResource, error) {
	if ref.Kind == "" {
		return resolvedResource{}, &ErrInvalidInput{Field: "kind", Message: "required"}
	}

	apiVersion := ref.APIVersion
	if apiVersion == "" {
		gv, ok := r.GroupVersionFor(ctx, ref.Kind, "")
		if !ok {
			return resolvedResource{}, &ErrMissingAPIVersion{Kind: ref.Kind}
		}
		apiVersion = gv.String()
	}

	list, err := r.discovery.Resources(ctx, apiVersion)
	if err != nil && apierrors.IsNotFound(err) {
		// The reference may carry a bare version whose group got
		// dropped on the way in (a common legacy Event shape). Retry
		// once with the group-qualified version, if one resolves.
		if gv, ok := r.GroupVersionFor(ctx, ref.Kind, bareVersion(apiVersion)); ok && gv.String() != apiVersion {
			r.log.Debug("retrying discovery with qualified groupVersion",
				"kind", ref.Kind, "from", apiVersion, "to", gv.String())
			apiVersion = gv.String()
			list, err = r.discovery.Resources(ctx, apiVersion)
		}
	}
	if err != nil {
		return resolvedResource{}, fmt.Errorf("discover %s: %w", apiVersion, err)
	}

	for _, res := range list.APIResources {
		if strings.Contains(res.Name, "/") {
			continue
		}
		if res.Kind == ref.Kind {
			return resolvedResource{
				apiVersion: apiVersion,
				resource:   res.Name,
				namespaced: res.Namespaced,
			}, nil
		}
	}
	return resolvedResource{}, &ErrResourceNotFound{Kind: ref.Kind, GroupVersion: apiVersion}
}
