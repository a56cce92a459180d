package notes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHandler(gen Generator, repo Repository) (*Handler, *echo.Echo) {
	svc := NewService(gen, repo, zerolog.Nop())
	h := NewHandler(svc, repo)
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"))
	return h, e
}

func bundleJSON(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(testBundle())
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	return string(b)
}

func TestHandler_GenerateNotes(t *testing.T) {
	repo := newMockRepo()
	_, e := newTestHandler(&mockGen{reply: "note text"}, repo)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/generate", strings.NewReader(bundleJSON(t)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Count int     `json:"count"`
		Notes []*Note `json:"notes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || len(resp.Notes) != 2 {
		t.Errorf("expected 2 notes, got count=%d len=%d", resp.Count, len(resp.Notes))
	}
	if len(repo.notes) != 2 {
		t.Errorf("expected notes persisted, got %d", len(repo.notes))
	}
}

func TestHandler_GenerateNotes_BadBody(t *testing.T) {
	_, e := newTestHandler(&mockGen{}, newMockRepo())

	for _, body := range []string{"{", `{"resourceType":"Patient"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/generate", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHandler_PreviewPrompts(t *testing.T) {
	_, e := newTestHandler(&mockGen{}, newMockRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes/preview", strings.NewReader(bundleJSON(t)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Count   int      `json:"count"`
		Prompts []string `json:"prompts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("expected 2 prompts, got %d", resp.Count)
	}
}

func TestHandler_GetNote(t *testing.T) {
	repo := newMockRepo()
	n := &Note{EncounterID: "e1", Prompt: "p", Body: "b", Model: "m", Status: StatusGenerated}
	if err := repo.Create(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	_, e := newTestHandler(&mockGen{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notes/"+n.ID.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/notes/not-a-uuid", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad id, got %d", rec.Code)
	}
}

func TestHandler_ListEncounterNotes(t *testing.T) {
	repo := newMockRepo()
	for _, encID := range []string{"e1", "e1", "e2"} {
		n := &Note{EncounterID: encID, Prompt: "p", Body: "b", Model: "m", Status: StatusGenerated}
		if err := repo.Create(context.Background(), n); err != nil {
			t.Fatal(err)
		}
	}
	_, e := newTestHandler(&mockGen{}, repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/encounters/e1/notes", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var result []*Note
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("expected 2 notes for e1, got %d", len(result))
	}
}
