package notes

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chartnote/chartnote/internal/platform/fhir"
)

// Generator is the text-generation collaborator. Implementations own their
// transport, retry and timeout policy; the pipeline here never retries.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// Service runs the full pipeline for one bundle: index, aggregate per
// encounter, render, generate, persist.
type Service struct {
	gen  Generator
	repo Repository // nil disables persistence (file-only runs)
	log  zerolog.Logger
}

func NewService(gen Generator, repo Repository, log zerolog.Logger) *Service {
	return &Service{gen: gen, repo: repo, log: log}
}

// Prompts assembles the prompt for every encounter in the bundle without
// calling the generator. Keyed by group, in encounter order.
func (s *Service) Prompts(b *fhir.Bundle) []string {
	idx := fhir.NewIndex(b.Entry)
	patient := ExtractPatient(b.Entry)

	var prompts []string
	for _, g := range Aggregate(b.Entry, idx) {
		rendered, err := Render(g)
		if err != nil {
			// Aggregate only emits Encounter-owned groups, so this is
			// unreachable in practice; skip rather than poison the run.
			s.log.Warn().Err(err).Msg("skipping malformed group")
			continue
		}
		prompts = append(prompts, BuildPrompt(patient, g.Encounter.Resource.Str("period", "start"), rendered))
	}
	return prompts
}

// GenerateFromBundle produces one note per encounter in the bundle. On a
// generation failure the failed note is still recorded, then the error is
// returned along with the notes completed so far.
func (s *Service) GenerateFromBundle(ctx context.Context, b *fhir.Bundle) ([]*Note, error) {
	idx := fhir.NewIndex(b.Entry)
	patient := ExtractPatient(b.Entry)
	groups := Aggregate(b.Entry, idx)

	var result []*Note
	for _, g := range groups {
		rendered, err := Render(g)
		if err != nil {
			s.log.Warn().Err(err).Msg("skipping malformed group")
			continue
		}

		note := &Note{
			EncounterID: encounterID(g.Encounter),
			Prompt:      BuildPrompt(patient, g.Encounter.Resource.Str("period", "start"), rendered),
			Model:       s.gen.Model(),
			Status:      StatusGenerated,
		}
		if patient.Name != "" {
			name := patient.Name
			note.PatientName = &name
		}

		body, genErr := s.gen.Generate(ctx, SystemPrompt, note.Prompt)
		if genErr != nil {
			msg := genErr.Error()
			note.Status = StatusFailed
			note.Error = &msg
		}
		note.Body = body

		if s.repo != nil {
			if err := s.repo.Create(ctx, note); err != nil {
				return result, fmt.Errorf("store note for encounter %s: %w", note.EncounterID, err)
			}
		}
		result = append(result, note)

		if genErr != nil {
			return result, fmt.Errorf("generate note for encounter %s: %w", note.EncounterID, genErr)
		}

		s.log.Info().
			Str("encounter_id", note.EncounterID).
			Int("related_entries", len(g.Related)).
			Msg("note generated")
	}
	return result, nil
}

func encounterID(e fhir.Entry) string {
	if id := e.Resource.ID(); id != "" {
		return id
	}
	return e.FullURL
}
