package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/portal-mailer/internal/template"
)

func templateID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "templateId"))
}

// CreateTemplate registers a new template.
func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req template.CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.templates.Create(r.Context(), &req)
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GetTemplate returns one template by id.
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := templateID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	t, err := h.templates.Get(r.Context(), id)
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// ListTemplates returns active templates, optionally filtered by category.
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.templates.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	if list == nil {
		list = []*template.Template{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"templates": list, "count": len(list)})
}

// UpdateTemplate applies a partial update to a template.
func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := templateID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	var req template.UpdateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.templates.Update(r.Context(), id, &req)
	if err != nil {
		respondTemplateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteTemplate retires a template. Its delivery history is kept.
func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := templateID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	if err := h.templates.Delete(r.Context(), id); err != nil {
		respondTemplateError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PreviewTemplate renders a template with sample values through the
// preview engine without touching the delivery log.
func (h *Handlers) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := templateID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	var req struct {
		Sample map[string]string `json:"sample"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	t, err := h.templates.Get(r.Context(), id)
	if err != nil {
		respondTemplateError(w, err)
		return
	}

	rendered, err := h.preview.Preview(t, req.Sample)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, rendered)
}

// ListFilters returns the filters available to preview patterns.
func (h *Handlers) ListFilters(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"filters": h.preview.AvailableFilters()})
}

func respondTemplateError(w http.ResponseWriter, err error) {
	var missing *template.MissingVariableError
	switch {
	case errors.Is(err, template.ErrTemplateNotFound):
		respondError(w, http.StatusNotFound, "template not found")
	case errors.As(err, &missing):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, template.ErrInvalidTemplate):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}
