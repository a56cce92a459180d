// Package notes turns a patient's FHIR bundle into clinical-note prompts, one
// per encounter, and drives their generation and storage. The traversal is a
// pure pipeline: index the bundle, group every resource under the encounter it
// references, then render each group into deterministic prompt text.
package notes

import (
	"github.com/chartnote/chartnote/internal/platform/fhir"
)

// EncounterGroup owns one Encounter entry plus the related entries that
// reference it, in their original bundle order. Groups are built during
// aggregation and consumed immediately by the renderer; they are never
// persisted.
type EncounterGroup struct {
	Encounter fhir.Entry
	Related   []fhir.Entry
}

// Aggregate produces one EncounterGroup per Encounter entry in the bundle.
// For each encounter the full entry collection is scanned once and every
// entry whose encounter reference resolves to that encounter is appended in
// scan order. Entries with no encounter reference, or with a dangling one,
// belong to no group. Pure function of its inputs; safe to re-invoke.
//
// The scan is quadratic in the number of encounters, which is fine for the
// bundle sizes this is used with (hundreds of resources, tens of encounters).
func Aggregate(entries []fhir.Entry, idx fhir.Index) []EncounterGroup {
	var groups []EncounterGroup
	for _, enc := range entries {
		if enc.Resource.Type() != "Encounter" {
			continue
		}
		g := EncounterGroup{Encounter: enc}
		for _, e := range entries {
			if referencesEncounter(e, enc, idx) {
				g.Related = append(g.Related, e)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

// encounterRef returns the entry's encounter reference, if any. Most R4
// resource types carry it as encounter.reference; a few older shapes
// (ClinicalImpression in STU3 exports) use context.reference.
func encounterRef(r fhir.Resource) string {
	if ref := r.Reference("encounter"); ref != "" {
		return ref
	}
	return r.Reference("context")
}

func referencesEncounter(e fhir.Entry, enc fhir.Entry, idx fhir.Index) bool {
	ref := encounterRef(e.Resource)
	if ref == "" {
		return false
	}
	// Direct identifier match covers references the index does not know about.
	if ref == enc.FullURL || (enc.Resource.ID() != "" && ref == enc.Resource.ID()) {
		return true
	}
	target, ok := idx.Resolve(ref)
	if !ok {
		return false
	}
	if target.Resource.Type() != "Encounter" {
		return false
	}
	return target.Resource.ID() == enc.Resource.ID() && target.Resource.ID() != ""
}
