package core

import (
	"context"
	"errors"
	"testing"
)

func newTestDresser(t *testing.T) (*EventDresser, *fakeDiscovery) {
	t.Helper()
	disc := newTestDiscovery()
	return NewEventDresser(NewResolver(disc)), disc
}

// legacyEvent builds a core/v1 Event whose involvedObject still uses
// the flat reference shape.
func legacyEvent() map[string]any {
	return map[string]any{
		"kind":       "Event",
		"apiVersion": "v1",
		"metadata":   map[string]any{"name": "web-1.17e5", "namespace": "ns"},
		"involvedObject": map[string]any{
			"kind":            "Pod",
			"apiVersion":      "v1",
			"name":            "web-1",
			"namespace":       "ns",
			"uid":             "u-123",
			"resourceVersion": "5",
		},
		"reason":  "Started",
		"message": "Started container web",
	}
}

func TestDressHoistsLegacyFields(t *testing.T) {
	t.Parallel()

	dresser, _ := newTestDresser(t)
	event := legacyEvent()
	dresser.Dress(context.Background(), event)

	involved := event["involvedObject"].(map[string]any)
	meta, ok := involved["metadata"].(map[string]any)
	if !ok {
		t.Fatal("involvedObject.metadata was not created")
	}

	for field, want := range map[string]string{
		"name":            "web-1",
		"namespace":       "ns",
		"uid":             "u-123",
		"resourceVersion": "5",
	} {
		if got := meta[field]; got != want {
			t.Errorf("metadata.%s = %v, want %q", field, got, want)
		}
		if _, still := involved[field]; still {
			t.Errorf("flat field %q was not removed", field)
		}
	}

	// kind and apiVersion are flat in both shapes and must stay.
	if involved["kind"] != "Pod" || involved["apiVersion"] != "v1" {
		t.Errorf("kind/apiVersion disturbed: %v/%v", involved["kind"], involved["apiVersion"])
	}
	if got, want := meta["selfLink"], "/api/v1/namespaces/ns/pods/web-1"; got != want {
		t.Errorf("metadata.selfLink = %v, want %q", got, want)
	}
}

func TestDressKeepsExistingMetadataValues(t *testing.T) {
	t.Parallel()

	dresser, _ := newTestDresser(t)
	event := map[string]any{
		"involvedObject": map[string]any{
			"kind":       "Pod",
			"apiVersion": "v1",
			"name":       "flat-name",
			"metadata":   map[string]any{"name": "nested-name", "namespace": "ns"},
		},
	}
	dresser.Dress(context.Background(), event)

	involved := event["involvedObject"].(map[string]any)
	meta := involved["metadata"].(map[string]any)
	if meta["name"] != "nested-name" {
		t.Errorf("metadata.name = %v, want nested-name", meta["name"])
	}
	if _, still := involved["name"]; still {
		t.Error("flat name was not removed")
	}
}

func TestDressPreservesLegacyFieldsWhenConfigured(t *testing.T) {
	t.Parallel()

	dresser, _ := newTestDresser(t)
	dresser.PreserveLegacyFields = true
	event := legacyEvent()
	dresser.Dress(context.Background(), event)

	involved := event["involvedObject"].(map[string]any)
	if involved["name"] != "web-1" {
		t.Errorf("flat name = %v, want preserved", involved["name"])
	}
	meta := involved["metadata"].(map[string]any)
	if meta["name"] != "web-1" {
		t.Errorf("metadata.name = %v, want hoisted copy", meta["name"])
	}
}

func TestDressRepairsMissingAPIVersion(t *testing.T) {
	t.Parallel()

	dresser, _ := newTestDresser(t)
	event := map[string]any{
		"involvedObject": map[string]any{
			"kind":     "Deployment",
			"metadata": map[string]any{"name": "web", "namespace": "ns"},
		},
	}
	dresser.Dress(context.Background(), event)

	involved := event["involvedObject"].(map[string]any)
	if involved["apiVersion"] != "apps/v1" {
		t.Errorf("apiVersion = %v, want apps/v1", involved["apiVersion"])
	}
	meta := involved["metadata"].(map[string]any)
	if got, want := meta["selfLink"], "/apis/apps/v1/namespaces/ns/deployments/web"; got != want {
		t.Errorf("metadata.selfLink = %v, want %q", got, want)
	}
}

func TestDressQualifiesBareAPIVersion(t *testing.T) {
	t.Parallel()

	dresser, _ := newTestDresser(t)
	event := map[string]any{
		"involvedObject": map[string]any{
			"kind":       "Ingress",
			"apiVersion": "v1beta1",
			"metadata":   map[string]any{"name": "ing", "namespace": "ns"},
		},
	}
	dresser.Dress(context.Background(), event)

	involved := event["involvedObject"].(map[string]any)
	if involved["apiVersion"] != "networking.k8s.io/v1beta1" {
		t.Errorf("apiVersion = %v, want networking.k8s.io/v1beta1", involved["apiVersion"])
	}
	meta := involved["metadata"].(map[string]any)
	if got, want := meta["selfLink"], "/apis/networking.k8s.io/v1beta1/namespaces/ns/ingresses/ing"; got != want {
		t.Errorf("metadata.selfLink = %v, want %q", got, want)
	}
}

func TestDressKeepsExistingSelfLink(t *testing.T) {
	t.Parallel()

	dresser, _ := newTestDresser(t)
	event := map[string]any{
		"involvedObject": map[string]any{
			"kind":       "Pod",
			"apiVersion": "v1",
			"metadata":   map[string]any{"name": "web", "namespace": "ns", "selfLink": "/custom/path"},
		},
	}
	dresser.Dress(context.Background(), event)

	meta := event["involvedObject"].(map[string]any)["metadata"].(map[string]any)
	if meta["selfLink"] != "/custom/path" {
		t.Errorf("selfLink = %v, want /custom/path", meta["selfLink"])
	}
}

func TestDressSwallowsResolutionFailures(t *testing.T) {
	t.Parallel()

	dresser, disc := newTestDresser(t)
	disc.versionsErr = errors.New("connection refused")
	delete(disc.resources, "v1")

	event := legacyEvent()
	dresser.Dress(context.Background(), event)

	// Hoisting is local and still happens; discovery-backed
	// enrichment is skipped without failing the caller.
	involved := event["involvedObject"].(map[string]any)
	meta := involved["metadata"].(map[string]any)
	if meta["name"] != "web-1" {
		t.Errorf("metadata.name = %v, want web-1", meta["name"])
	}
	if _, ok := meta["selfLink"]; ok {
		t.Error("selfLink attached despite discovery failure")
	}
}

func TestDressNoops(t *testing.T) {
	t.Parallel()

	dresser, _ := newTestDresser(t)

	// Nil object.
	dresser.Dress(context.Background(), nil)

	// No involvedObject.
	event := map[string]any{"kind": "Event", "apiVersion": "v1"}
	dresser.Dress(context.Background(), event)
	if _, ok := event["involvedObject"]; ok {
		t.Error("involvedObject fabricated")
	}

	// involvedObject of an unexpected type.
	event = map[string]any{"involvedObject": "not-a-map"}
	dresser.Dress(context.Background(), event)
	if event["involvedObject"] != "not-a-map" {
		t.Error("unexpected involvedObject mutated")
	}
}
