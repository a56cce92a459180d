package notes

import (
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chartnote/chartnote/internal/platform/fhir"
	"github.com/chartnote/chartnote/pkg/pagination"
)

type Handler struct {
	svc  *Service
	repo Repository
}

func NewHandler(svc *Service, repo Repository) *Handler {
	return &Handler{svc: svc, repo: repo}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/notes/generate", h.GenerateNotes)
	api.POST("/notes/preview", h.PreviewPrompts)
	api.GET("/notes", h.ListNotes)
	api.GET("/notes/:id", h.GetNote)
	api.GET("/encounters/:id/notes", h.ListEncounterNotes)
}

// GenerateNotes accepts a FHIR Bundle body and returns one generated note per
// encounter found in it.
func (h *Handler) GenerateNotes(c echo.Context) error {
	bundle, err := bindBundle(c)
	if err != nil {
		return err
	}

	result, err := h.svc.GenerateFromBundle(c.Request().Context(), bundle)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notes": result,
		"count": len(result),
	})
}

// PreviewPrompts returns the assembled prompts without calling the generation
// service. Useful for inspecting what a bundle will ask for.
func (h *Handler) PreviewPrompts(c echo.Context) error {
	bundle, err := bindBundle(c)
	if err != nil {
		return err
	}
	prompts := h.svc.Prompts(bundle)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"prompts": prompts,
		"count":   len(prompts),
	})
}

func (h *Handler) ListNotes(c echo.Context) error {
	p := pagination.FromContext(c)
	result, total, err := h.repo.List(c.Request().Context(), p.Limit, p.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(result, total, p.Limit, p.Offset))
}

func (h *Handler) GetNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid note id")
	}
	n, err := h.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "note not found")
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) ListEncounterNotes(c echo.Context) error {
	result, err := h.repo.ListByEncounter(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func bindBundle(c echo.Context) (*fhir.Bundle, error) {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "read body: "+err.Error())
	}
	bundle, err := fhir.ParseBundle(body)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return bundle, nil
}
