package notes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chartnote/chartnote/internal/platform/fhir"
)

// ErrNotEncounter reports a caller contract violation: the group handed to
// Render is not owned by an Encounter resource.
var ErrNotEncounter = errors.New("group owner is not an Encounter resource")

// fieldSep joins the selected fields of one rendered line. Fixed so that
// rendering stays byte-deterministic.
const fieldSep = "; "

// field selects one clinically meaningful value from a resource. An empty
// result means the field is absent and is omitted from the line.
type field struct {
	label   string // optional prefix, e.g. "status"
	extract func(r fhir.Resource) string
}

// typeSpec describes how one resource type renders: a human-readable label
// plus the ordered fields that carry clinical meaning.
type typeSpec struct {
	label  string
	fields []field
}

// snomedSuffixes are the qualifier tails Synthea carries in SNOMED display
// text; they add nothing to a note prompt.
var snomedSuffixes = []string{
	"(disorder)", "(finding)", "(situation)", "(procedure)", "(environment)",
}

func cleanDisplay(s string) string {
	for _, suf := range snomedSuffixes {
		s = strings.TrimSuffix(strings.TrimSpace(s), suf)
	}
	return strings.TrimSpace(s)
}

// datePart truncates a FHIR instant/dateTime to its date, matching how
// encounter dates read in a note. Shorter values pass through unchanged.
func datePart(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

func codeDisplay(key string) func(fhir.Resource) string {
	return func(r fhir.Resource) string {
		return cleanDisplay(r.CodingDisplay(key))
	}
}

func dateField(keys ...string) func(fhir.Resource) string {
	return func(r fhir.Resource) string {
		for _, k := range keys {
			if v := r.Str(k); v != "" {
				return datePart(v)
			}
		}
		return ""
	}
}

func observationValue(r fhir.Resource) string {
	if v, unit, ok := r.Quantity("valueQuantity"); ok {
		if unit != "" {
			return fmt.Sprintf("%g %s", v, unit)
		}
		return fmt.Sprintf("%g", v)
	}
	if s := r.CodingDisplay("valueCodeableConcept"); s != "" {
		return cleanDisplay(s)
	}
	return r.Str("valueString")
}

// renderTable maps each recognized resource type to its selection rules.
// Unknown types fall through to genericLine.
var renderTable = map[string]typeSpec{
	"Condition": {
		label: "Condition",
		fields: []field{
			{extract: codeDisplay("code")},
			{label: "status", extract: func(r fhir.Resource) string { return r.CodingCode("clinicalStatus") }},
			{label: "onset", extract: dateField("onsetDateTime")},
		},
	},
	"Observation": {
		label: "Observation",
		fields: []field{
			{extract: codeDisplay("code")},
			{label: "value", extract: observationValue},
			{label: "date", extract: dateField("effectiveDateTime", "issued")},
		},
	},
	"Procedure": {
		label: "Procedure",
		fields: []field{
			{extract: codeDisplay("code")},
			{label: "performed", extract: func(r fhir.Resource) string {
				if v := r.Str("performedDateTime"); v != "" {
					return datePart(v)
				}
				return datePart(r.Str("performedPeriod", "start"))
			}},
		},
	},
	"MedicationRequest": {
		label: "Medication",
		fields: []field{
			{extract: codeDisplay("medicationCodeableConcept")},
			{label: "status", extract: func(r fhir.Resource) string { return r.Str("status") }},
			{label: "prescribed", extract: dateField("authoredOn")},
		},
	},
	"Immunization": {
		label: "Immunization",
		fields: []field{
			{extract: codeDisplay("vaccineCode")},
			{label: "date", extract: dateField("occurrenceDateTime", "date")},
		},
	},
	"DiagnosticReport": {
		label: "Diagnostic report",
		fields: []field{
			{extract: codeDisplay("code")},
			{label: "date", extract: dateField("effectiveDateTime", "issued")},
		},
	},
	"CarePlan": {
		label: "Care plan",
		fields: []field{
			{extract: codeDisplay("category")},
			{label: "status", extract: func(r fhir.Resource) string { return r.Str("status") }},
		},
	},
	"AllergyIntolerance": {
		label: "Allergy",
		fields: []field{
			{extract: codeDisplay("code")},
			{label: "status", extract: func(r fhir.Resource) string { return r.CodingCode("clinicalStatus") }},
		},
	},
}

// Render converts one EncounterGroup into prompt text: an encounter header
// line followed by one line per related entry in group order. Missing fields
// are skipped, never replaced with placeholders. Output is a pure function of
// the group's content.
func Render(g EncounterGroup) (string, error) {
	if g.Encounter.Resource.Type() != "Encounter" {
		return "", fmt.Errorf("render group %q: %w", g.Encounter.Resource.Type(), ErrNotEncounter)
	}

	var lines []string
	lines = append(lines, headerLine(g.Encounter.Resource))
	for _, e := range g.Related {
		lines = append(lines, entryLine(e.Resource))
	}
	return strings.Join(lines, "\n"), nil
}

// headerLine renders the encounter itself. Always non-empty: an encounter
// with no descriptive fields still reads "Encounter".
func headerLine(r fhir.Resource) string {
	parts := []string{"Encounter"}
	if t := cleanDisplay(r.CodingDisplay("type")); t != "" {
		parts[0] = "Encounter: " + strings.ToLower(t)
	}
	if reason := cleanDisplay(r.CodingDisplay("reasonCode")); reason != "" {
		parts = append(parts, "reason "+reason)
	}
	if start := datePart(r.Str("period", "start")); start != "" {
		date := "date " + start
		if end := datePart(r.Str("period", "end")); end != "" && end != start {
			date += " to " + end
		}
		parts = append(parts, date)
	}
	return strings.Join(parts, fieldSep)
}

func entryLine(r fhir.Resource) string {
	spec, ok := renderTable[r.Type()]
	if !ok {
		return genericLine(r)
	}

	var vals []string
	for _, f := range spec.fields {
		v := f.extract(r)
		if v == "" {
			continue
		}
		if f.label != "" {
			v = f.label + " " + v
		}
		vals = append(vals, v)
	}
	if len(vals) == 0 {
		return spec.label
	}
	return spec.label + ": " + strings.Join(vals, fieldSep)
}

// genericLine renders a resource type the table does not know: the raw type
// name plus whatever display text the resource carries.
func genericLine(r fhir.Resource) string {
	label := r.Type()
	if label == "" {
		label = "Resource"
	}
	display := cleanDisplay(r.CodingDisplay("code"))
	if display == "" {
		display = r.Str("description")
	}
	if display == "" {
		return label
	}
	return label + ": " + display
}
