package notes

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chartnote/chartnote/internal/platform/fhir"
)

// -- Mock generator --

type mockGen struct {
	prompts []string
	reply   string
	err     error
}

func (m *mockGen) Generate(_ context.Context, system, prompt string) (string, error) {
	if system != SystemPrompt {
		return "", fmt.Errorf("unexpected system prompt %q", system)
	}
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *mockGen) Model() string { return "test-model" }

// -- Mock repository --

type mockRepo struct {
	notes map[uuid.UUID]*Note
	order []uuid.UUID
}

func newMockRepo() *mockRepo {
	return &mockRepo{notes: make(map[uuid.UUID]*Note)}
}

func (m *mockRepo) Create(_ context.Context, n *Note) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.CreatedAt = time.Now()
	m.notes[n.ID] = n
	m.order = append(m.order, n.ID)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Note, error) {
	n, ok := m.notes[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return n, nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Note, int, error) {
	var result []*Note
	for _, id := range m.order {
		result = append(result, m.notes[id])
	}
	return result, len(result), nil
}

func (m *mockRepo) ListByEncounter(_ context.Context, encounterID string) ([]*Note, error) {
	var result []*Note
	for _, id := range m.order {
		if m.notes[id].EncounterID == encounterID {
			result = append(result, m.notes[id])
		}
	}
	return result, nil
}

func testBundle() *fhir.Bundle {
	return &fhir.Bundle{
		ResourceType: "Bundle",
		Type:         "collection",
		Entry: []fhir.Entry{
			patientEntry(),
			encounterEntry("e1", "ambulatory", "checkup", "2020-06-16T10:00:00Z"),
			relatedEntry("Condition", "c1", "Hypertension (disorder)", "urn:uuid:e1"),
			encounterEntry("e2", "emergency", "", "2021-01-05T03:00:00Z"),
			relatedEntry("Observation", "o1", "Body Height", ""),
		},
	}
}

func TestService_GenerateFromBundle(t *testing.T) {
	gen := &mockGen{reply: "The patient presented for a checkup."}
	repo := newMockRepo()
	svc := NewService(gen, repo, zerolog.Nop())

	result, err := svc.GenerateFromBundle(context.Background(), testBundle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("expected a note per encounter, got %d", len(result))
	}
	if result[0].EncounterID != "e1" || result[1].EncounterID != "e2" {
		t.Errorf("expected notes in encounter order, got %s, %s",
			result[0].EncounterID, result[1].EncounterID)
	}
	if result[0].Body != gen.reply {
		t.Errorf("expected generated body, got %q", result[0].Body)
	}
	if result[0].Model != "test-model" || result[0].Status != StatusGenerated {
		t.Errorf("unexpected note metadata: %+v", result[0])
	}
	if result[0].PatientName == nil || *result[0].PatientName != "Ada Marie Larkin" {
		t.Errorf("expected patient name on note, got %v", result[0].PatientName)
	}
	if len(repo.notes) != 2 {
		t.Errorf("expected 2 persisted notes, got %d", len(repo.notes))
	}

	// Prompts carry the encounter context but not unrelated resources.
	if !strings.Contains(gen.prompts[0], "Hypertension") {
		t.Errorf("expected condition in first prompt:\n%s", gen.prompts[0])
	}
	if strings.Contains(gen.prompts[0], "Body Height") || strings.Contains(gen.prompts[1], "Body Height") {
		t.Error("unreferenced observation leaked into a prompt")
	}
}

func TestService_GenerateFromBundle_NoRepo(t *testing.T) {
	gen := &mockGen{reply: "note"}
	svc := NewService(gen, nil, zerolog.Nop())

	result, err := svc.GenerateFromBundle(context.Background(), testBundle())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(result))
	}
}

func TestService_GenerateFromBundle_GeneratorFailure(t *testing.T) {
	gen := &mockGen{err: fmt.Errorf("quota exceeded")}
	repo := newMockRepo()
	svc := NewService(gen, repo, zerolog.Nop())

	result, err := svc.GenerateFromBundle(context.Background(), testBundle())
	if err == nil {
		t.Fatal("expected error from failing generator")
	}
	if len(result) != 1 {
		t.Fatalf("expected the failed note returned, got %d", len(result))
	}
	if result[0].Status != StatusFailed || result[0].Error == nil {
		t.Errorf("expected failed note recorded, got %+v", result[0])
	}
	if len(repo.notes) != 1 {
		t.Errorf("expected failed note persisted, got %d", len(repo.notes))
	}
}

func TestService_Prompts(t *testing.T) {
	svc := NewService(&mockGen{}, nil, zerolog.Nop())

	prompts := svc.Prompts(testBundle())
	if len(prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(prompts))
	}
	if !strings.Contains(prompts[0], "35 year old white female") {
		t.Errorf("expected patient demographics in prompt:\n%s", prompts[0])
	}
	if !strings.Contains(prompts[1], "emergency") {
		t.Errorf("expected second encounter type:\n%s", prompts[1])
	}
}
