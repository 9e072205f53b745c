package handlers

import (
	"encoding/json"
	"maps"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sumandas0/notionmbse/internal/api/middleware"
	"github.com/sumandas0/notionmbse/internal/controller"
	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/security"
	"github.com/sumandas0/notionmbse/pkg/utils"
)

const defaultListLimit = 100

type ElementHandler struct {
	elements  controller.Controller[*models.Element]
	sanitizer *security.InputSanitizer
}

// NewElementHandler serves elements through any controller. A nil
// sanitizer stores request fields as sent.
func NewElementHandler(elements controller.Controller[*models.Element], sanitizer *security.InputSanitizer) *ElementHandler {
	return &ElementHandler{elements: elements, sanitizer: sanitizer}
}

type ElementListResponse struct {
	Elements []*models.Element `json:"elements"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Backend  string            `json:"backend"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *ElementHandler) decodeFields(r *http.Request) (map[string]any, error) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		return nil, utils.NewValidationError("invalid request body", err)
	}
	return h.sanitizer.SanitizeFields(fields)
}

func elementID(r *http.Request) (models.ObjectID, error) {
	return models.ParseObjectID(chi.URLParam(r, "elementID"))
}

// CreateElement stores the element described by the request body.
func (h *ElementHandler) CreateElement(w http.ResponseWriter, r *http.Request) {
	fields, err := h.decodeFields(r)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	element, err := h.elements.Create(r.Context(), fields)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, element)
}

// ListElements filters on every query parameter except limit, which caps
// the result.
func (h *ElementHandler) ListElements(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	query := controller.Query{}
	for key, values := range r.URL.Query() {
		if key == "limit" {
			n, err := strconv.Atoi(values[0])
			if err != nil || n < 0 {
				middleware.SendValidationError(w, r, "invalid limit", map[string]any{"limit": values[0]})
				return
			}
			limit = n
			continue
		}
		query[key] = values[0]
	}

	elements, err := h.elements.ReadAll(r.Context(), query, limit)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ElementListResponse{
		Elements: elements,
		Total:    len(elements),
		Limit:    limit,
		Backend:  h.elements.Backend(),
	})
}

func (h *ElementHandler) GetElement(w http.ResponseWriter, r *http.Request) {
	id, err := elementID(r)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	element, ok, err := h.elements.Read(r.Context(), id)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	if !ok {
		middleware.SendNotFoundError(w, r, "Element")
		return
	}
	writeJSON(w, http.StatusOK, element)
}

// UpdateElement overlays the request body on the stored element and
// writes the result back. The id in the path wins over any id in the body.
func (h *ElementHandler) UpdateElement(w http.ResponseWriter, r *http.Request) {
	id, err := elementID(r)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	fields, err := h.decodeFields(r)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	ctx := r.Context()
	current, ok, err := h.elements.Read(ctx, id)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	if !ok {
		middleware.SendNotFoundError(w, r, "Element")
		return
	}

	merged, err := h.elements.Model().Dump(current)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	maps.Copy(merged, fields)
	merged["id"] = id.Hex()

	next, err := h.elements.Model().Decode(merged)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	if _, err := h.elements.Update(ctx, next); err != nil {
		middleware.SendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (h *ElementHandler) DeleteElement(w http.ResponseWriter, r *http.Request) {
	id, err := elementID(r)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	deleted, err := h.elements.Delete(r.Context(), id)
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}
	if !deleted {
		middleware.SendNotFoundError(w, r, "Element")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
