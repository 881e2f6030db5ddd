package core

import (
	"context"
	"log/slog"
)

// hoistedFields are the legacy flat involved-object fields moved into
// the metadata block during dressing.
var hoistedFields = []string{"name", "namespace", "uid", "resourceVersion", "creationTimestamp"}

// EventDresser normalises watch-delivered core/v1 Event objects in
// place: legacy flat involved-object fields move into a nested
// metadata block, a missing apiVersion is repaired from discovery,
// and a self link is attached. Dressing is best-effort; no lookup
// failure ever blocks delivery of the event.
type EventDresser struct {
	resolver *Resolver
	log      *slog.Logger

	// PreserveLegacyFields keeps the flat fields alongside their
	// hoisted copies instead of removing them.
	PreserveLegacyFields bool
}

func NewEventDresser(resolver *Resolver) *EventDresser {
	return &EventDresser{
		resolver: resolver,
		log:      slog.Default().With("component", "dresser"),
	}
}

// Dress mutates the event object. It is a no-op when the object or
// its involvedObject is absent.
func (d *EventDresser) Dress(ctx context.Context, obj map[string]any) {
	if obj == nil {
		return
	}
	involved, ok := obj["involvedObject"].(map[string]any)
	if !ok || involved == nil {
		return
	}

	d.hoistLegacyFields(involved)
	d.repairAPIVersion(ctx, involved)
	d.attachSelfLink(ctx, involved)
}

// hoistLegacyFields moves flat reference fields into the metadata
// block, never overwriting values already there.
func (d *EventDresser) hoistLegacyFields(involved map[string]any) {
	for _, field := range hoistedFields {
		val, present := involved[field]
		if !present {
			continue
		}
		meta, ok := ensureMap(involved, "metadata")
		if !ok {
			return
		}
		if _, exists := meta[field]; !exists {
			meta[field] = val
		}
		if !d.PreserveLegacyFields {
			delete(involved, field)
		}
	}
}

// repairAPIVersion completes the involved object's apiVersion from a
// unique discovery match for its kind. A bare version constrains the
// lookup; the resolved value overwrites the current one whenever it
// differs (group-qualifying legacy bare versions).
func (d *EventDresser) repairAPIVersion(ctx context.Context, involved map[string]any) {
	kind := stringField(involved, "kind")
	if kind == "" {
		return
	}
	current := stringField(involved, "apiVersion")

	gv, ok := d.resolver.GroupVersionFor(ctx, kind, bareVersion(current))
	if !ok {
		d.log.Debug("apiVersion repair skipped", "kind", kind, "apiVersion", current)
		return
	}
	if resolved := gv.String(); resolved != current {
		involved["apiVersion"] = resolved
	}
}

// attachSelfLink sets metadata.selfLink when absent and resolvable.
func (d *EventDresser) attachSelfLink(ctx context.Context, involved map[string]any) {
	ref := ReferenceFromObject(involved)
	if ref.SelfLink != "" {
		return
	}

	link, err := d.resolver.SelfLink(ctx, ref)
	if err != nil {
		d.log.Debug("self link skipped", "kind", ref.Kind, "name", ref.Name, "error", err)
		return
	}
	meta, ok := ensureMap(involved, "metadata")
	if !ok {
		return
	}
	meta["selfLink"] = link
}

// ensureMap returns the map at key, creating it when absent. A
// present non-map value is left untouched and reported as not ok.
func ensureMap(obj map[string]any, key string) (map[string]any, bool) {
	if existing, present := obj[key]; present {
		m, ok := existing.(map[string]any)
		return m, ok
	}
	m := map[string]any{}
	obj[key] = m
	return m, true
}
