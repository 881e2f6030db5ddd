package core

import "strings"

// ResourceReference identifies a single resource, or a resource
// collection when Name is empty. It is the one input shape for
// self-link building and event dressing; fields left empty are
// resolved (or rejected) by the resolver.
type ResourceReference struct {
	APIVersion string
	Kind       string
	Name       string
	Namespace  string
	SelfLink   string
}

// ReferenceFromObject builds a ResourceReference from an
// involvedObject-style map, reading both the nested metadata shape
// and the legacy flat-field shape.
func ReferenceFromObject(obj map[string]any) ResourceReference {
	ref := ResourceReference{
		APIVersion: stringField(obj, "apiVersion"),
		Kind:       stringField(obj, "kind"),
		Name:       stringField(obj, "name"),
		Namespace:  stringField(obj, "namespace"),
	}
	if meta, ok := obj["metadata"].(map[string]any); ok {
		if ref.Name == "" {
			ref.Name = stringField(meta, "name")
		}
		if ref.Namespace == "" {
			ref.Namespace = stringField(meta, "namespace")
		}
		ref.SelfLink = stringField(meta, "selfLink")
	}
	return ref
}

// bareVersion strips the group part from a group/version string:
// "networking.k8s.io/v1beta1" -> "v1beta1", "v1" -> "v1".
func bareVersion(apiVersion string) string {
	if i := strings.LastIndex(apiVersion, "/"); i >= 0 {
		return apiVersion[i+1:]
	}
	return apiVersion
}

// stringField reads a top-level string field from a generic map.
func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// intField reads a top-level numeric field from a generic map,
// tolerating the float64 that encoding/json produces.
func intField(obj map[string]any, key string) int {
	switch v := obj[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
