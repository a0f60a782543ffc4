package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hrk/storefront-api/internal/common"
)

// Handler exposes public catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

// Categories handles GET /api/v1/categories.
func (h *Handler) Categories(w http.ResponseWriter, _ *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.service.Categories()})
}

// Products handles GET /api/v1/products?category=&active=.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	query := r.URL.Query()
	category := NormalizeCategory(query.Get("category"))
	items, err := h.service.List(r.Context(), category)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	body := map[string]any{
		"data":     items,
		"category": category,
	}
	if len(items) == 0 {
		body["message"] = EmptyMessage
	}
	if selected, ok := h.service.Select(category, query.Get("active")); ok {
		body["selected"] = selected
	}
	common.JSON(w, http.StatusOK, body)
}

// ProductDetail handles GET /api/v1/products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	product, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": product})
}
