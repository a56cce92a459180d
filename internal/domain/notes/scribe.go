package notes

import (
	"fmt"
	"strings"
	"time"

	"github.com/chartnote/chartnote/internal/platform/fhir"
)

// SystemPrompt is the role instruction sent alongside every note request.
const SystemPrompt = "You are a medical scribe."

// usCoreRaceURL is the US Core extension that carries the patient's race.
const usCoreRaceURL = "http://hl7.org/fhir/us/core/StructureDefinition/us-core-race"

// PatientContext is the demographic context shared by every prompt built from
// one bundle. All fields are optional; absent ones are left out of the prompt.
type PatientContext struct {
	Name      string
	Gender    string
	BirthDate string
	Race      string
}

// ExtractPatient pulls demographic context from the bundle's Patient resource.
// A bundle without a Patient yields an empty context, which still produces a
// usable prompt.
func ExtractPatient(entries []fhir.Entry) PatientContext {
	var pc PatientContext
	for _, e := range entries {
		r := e.Resource
		if r.Type() != "Patient" {
			continue
		}
		pc.Gender = r.Str("gender")
		pc.BirthDate = r.Str("birthDate")
		pc.Name = patientName(r)
		pc.Race = patientRace(r)
		break
	}
	return pc
}

func patientName(r fhir.Resource) string {
	name := r.First("name")
	if name == nil {
		return ""
	}
	var parts []string
	if given, ok := name["given"].([]interface{}); ok {
		for _, g := range given {
			if s, ok := g.(string); ok && s != "" {
				parts = append(parts, s)
			}
		}
	}
	if family := name.Str("family"); family != "" {
		parts = append(parts, family)
	}
	return strings.Join(parts, " ")
}

func patientRace(r fhir.Resource) string {
	ext, _ := r["extension"].([]interface{})
	for _, raw := range ext {
		e, _ := raw.(map[string]interface{})
		if fhir.Resource(e).Str("url") != usCoreRaceURL {
			continue
		}
		return strings.ToLower(fhir.Resource(e).First("extension").Str("valueCoding", "display"))
	}
	return ""
}

// AgeAt computes whole years between the patient's birth date and an ISO
// date, or -1 when either side is missing or unparseable.
func (pc PatientContext) AgeAt(date string) int {
	if pc.BirthDate == "" || date == "" {
		return -1
	}
	birth, err := time.Parse("2006-01-02", datePart(pc.BirthDate))
	if err != nil {
		return -1
	}
	at, err := time.Parse("2006-01-02", datePart(date))
	if err != nil {
		return -1
	}
	if at.Before(birth) {
		return -1
	}
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}

// BuildPrompt layers the scribe request around the rendered encounter text:
// a patient preamble, the rendered lines, and the note instruction. The core
// renderer stays free of any phrasing decisions; they all live here.
func BuildPrompt(pc PatientContext, encounterDate, rendered string) string {
	var b strings.Builder
	b.WriteString("Write a clinical note for the following patient visit.\n\n")

	if desc := pc.describe(encounterDate); desc != "" {
		b.WriteString("Patient: " + desc + "\n\n")
	}
	b.WriteString(rendered)
	b.WriteString("\n\nWrite the note as a physician's narrative, in past tense, without headings.")
	return b.String()
}

func (pc PatientContext) describe(encounterDate string) string {
	var parts []string
	if pc.Name != "" {
		parts = append(parts, pc.Name)
	}
	var attrs []string
	if age := pc.AgeAt(encounterDate); age >= 0 {
		attrs = append(attrs, fmt.Sprintf("%d year old", age))
	}
	if pc.Race != "" {
		attrs = append(attrs, pc.Race)
	}
	if pc.Gender != "" {
		attrs = append(attrs, pc.Gender)
	}
	if len(attrs) > 0 {
		parts = append(parts, "a "+strings.Join(attrs, " "))
	}
	return strings.Join(parts, ", ")
}
