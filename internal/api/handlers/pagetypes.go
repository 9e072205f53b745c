package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sumandas0/notionmbse/internal/api/middleware"
	"github.com/sumandas0/notionmbse/internal/cache"
	"github.com/sumandas0/notionmbse/internal/models"
	"github.com/sumandas0/notionmbse/internal/schema"
)

type PageTypeHandler struct {
	mapper *schema.Mapper
	cache  *cache.Manager
}

// NewPageTypeHandler serves mapped page types. The cache may be nil.
func NewPageTypeHandler(mapper *schema.Mapper, c *cache.Manager) *PageTypeHandler {
	return &PageTypeHandler{mapper: mapper, cache: c}
}

type PageTypeResponse struct {
	Model      string                      `json:"model"`
	Name       string                      `json:"name"`
	Title      string                      `json:"title"`
	Properties []schema.PropertyDescriptor `json:"properties"`
	Columns    map[string]string           `json:"columns"`
}

func (h *PageTypeHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(models.Registered()))
	for _, d := range models.Registered() {
		names = append(names, d.Name())
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": names})
}

func (h *PageTypeHandler) GetPageType(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "model")
	model, ok := models.Lookup(name)
	if !ok {
		middleware.SendNotFoundError(w, r, fmt.Sprintf("Model %q", name))
		return
	}

	build := func() (*schema.PageType, error) { return h.mapper.Map(model.Schema()) }
	var (
		pt  *schema.PageType
		err error
	)
	if h.cache != nil {
		pt, err = h.cache.GetPageType(model.Name(), build)
	} else {
		pt, err = build()
	}
	if err != nil {
		middleware.SendError(w, r, err)
		return
	}

	props := pt.Properties()
	columns := make(map[string]string, len(props))
	for _, d := range props {
		columns[d.Field] = d.Name
	}
	writeJSON(w, http.StatusOK, PageTypeResponse{
		Model:      model.Name(),
		Name:       pt.Name(),
		Title:      pt.Title().Name,
		Properties: props,
		Columns:    columns,
	})
}
