package fhir

import "strings"

// Index is a read-only lookup from resource identifier to bundle entry. Both
// the resource id and the entry fullUrl are indexed so that references in
// either the urn:uuid or ResourceType/id form resolve without normalization
// at the call site. Built once per bundle and discarded after use.
type Index map[string]Entry

// NewIndex builds an Index over entries. Duplicate identifiers are
// last-write-wins; exported bundles are assumed well-formed, so a duplicate is
// a simplification, not an error.
func NewIndex(entries []Entry) Index {
	idx := make(Index, len(entries)*2)
	for _, e := range entries {
		if id := e.Resource.ID(); id != "" {
			idx[id] = e
		}
		if e.FullURL != "" {
			idx[e.FullURL] = e
		}
	}
	return idx
}

// Resolve looks up a literal reference string. It tries the reference as
// written, then the urn:uuid payload, then the id tail of a ResourceType/id
// form. A reference to an identifier absent from the index is dangling and
// reports ok=false.
func (ix Index) Resolve(ref string) (Entry, bool) {
	if ref == "" {
		return Entry{}, false
	}
	if e, ok := ix[ref]; ok {
		return e, true
	}
	if rest, found := strings.CutPrefix(ref, "urn:uuid:"); found {
		if e, ok := ix[rest]; ok {
			return e, true
		}
	}
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		if e, ok := ix[ref[i+1:]]; ok {
			return e, true
		}
	}
	return Entry{}, false
}
