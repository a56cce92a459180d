// Package fhir holds the bundle model and reference-resolution primitives for
// working with exported FHIR R4 bundles (Synthea-style collections). Resources
// are kept in their raw decoded form; accessors tolerate missing or
// differently-shaped fields by returning zero values instead of failing, since
// exported bundles are consumed as-is and never validated against a profile.
package fhir

import (
	"encoding/json"
	"fmt"
)

// Resource is one decoded FHIR resource. Fields are looked up dynamically so
// that partial resources degrade to omission rather than errors.
type Resource map[string]interface{}

// Bundle represents a FHIR Bundle resource.
type Bundle struct {
	ResourceType string  `json:"resourceType"`
	ID           string  `json:"id,omitempty"`
	Type         string  `json:"type,omitempty"`
	Entry        []Entry `json:"entry,omitempty"`
}

// Entry is one entry in a Bundle. FullURL carries the document-local
// identifier (Synthea exports use the urn:uuid form).
type Entry struct {
	FullURL  string   `json:"fullUrl,omitempty"`
	Resource Resource `json:"resource,omitempty"`
}

// ParseBundle decodes a raw JSON document into a Bundle. The only hard
// requirements are well-formed JSON and a Bundle resourceType; entry contents
// are taken as-is.
func ParseBundle(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.ResourceType != "Bundle" {
		return nil, fmt.Errorf("not a Bundle resource: %q", b.ResourceType)
	}
	return &b, nil
}

// Type returns the resourceType discriminator, or "" when absent.
func (r Resource) Type() string {
	return r.Str("resourceType")
}

// ID returns the resource id, or "" when absent.
func (r Resource) ID() string {
	return r.Str("id")
}

// Str walks nested objects along keys and returns the string at the end of the
// path, or "" when any step is missing or not the expected shape.
func (r Resource) Str(keys ...string) string {
	cur := r
	for i, k := range keys {
		if i == len(keys)-1 {
			s, _ := cur[k].(string)
			return s
		}
		next, ok := cur[k].(map[string]interface{})
		if !ok {
			return ""
		}
		cur = next
	}
	return ""
}

// Map returns the nested object under key, or nil.
func (r Resource) Map(key string) Resource {
	m, _ := r[key].(map[string]interface{})
	return Resource(m)
}

// First returns the first element of the array under key when that element is
// an object, or nil.
func (r Resource) First(key string) Resource {
	arr, _ := r[key].([]interface{})
	if len(arr) == 0 {
		return nil
	}
	m, _ := arr[0].(map[string]interface{})
	return Resource(m)
}

// CodingDisplay resolves the conventional CodeableConcept shape under key:
// the first coding's display, falling back to the concept's text. The field
// may be a single concept or an array of concepts (Encounter.type,
// Encounter.reasonCode).
func (r Resource) CodingDisplay(key string) string {
	cc := r.Map(key)
	if cc == nil {
		cc = r.First(key)
	}
	if cc == nil {
		return ""
	}
	if d := cc.First("coding").Str("display"); d != "" {
		return d
	}
	return cc.Str("text")
}

// CodingCode is CodingDisplay's counterpart for the code value.
func (r Resource) CodingCode(key string) string {
	cc := r.Map(key)
	if cc == nil {
		cc = r.First(key)
	}
	if cc == nil {
		return ""
	}
	return cc.First("coding").Str("code")
}

// Quantity returns the value and unit of a Quantity-shaped field.
func (r Resource) Quantity(key string) (float64, string, bool) {
	q := r.Map(key)
	if q == nil {
		return 0, "", false
	}
	v, ok := q["value"].(float64)
	if !ok {
		return 0, "", false
	}
	unit, _ := q["unit"].(string)
	return v, unit, true
}

// Reference returns the literal reference string of a Reference-shaped field,
// or "" when absent.
func (r Resource) Reference(key string) string {
	return r.Str(key, "reference")
}
