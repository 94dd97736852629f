// Package handler exposes category routes: public listing, admin-only creation.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"openmarket/backend/internal/category/domain"
	"openmarket/backend/internal/category/repository"
)

type CategoryHandler struct {
	repo repository.Repository
}

func NewCategoryHandler(repo repository.Repository) *CategoryHandler {
	return &CategoryHandler{repo: repo}
}

// Mount registers the public category routes on r. Create is mounted
// separately behind the admin middleware by the server.
func (h *CategoryHandler) Mount(r chi.Router) {
	r.Get("/categories", h.handleList)
	r.Get("/categories/{slug}", h.handleGet)
}

// MountAdmin registers the admin category routes on r.
func (h *CategoryHandler) MountAdmin(r chi.Router) {
	r.Post("/categories", h.handleCreate)
}

type categoryView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type createCategoryRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (h *CategoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	cats, err := h.repo.List(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	views := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		views = append(views, viewOf(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": views})
}

func (h *CategoryHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	c, err := h.repo.GetBySlug(r.Context(), slug)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "category_not_found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func (h *CategoryHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	c := &domain.Category{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		Slug:      strings.TrimSpace(strings.ToLower(req.Slug)),
		CreatedAt: time.Now().UTC(),
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Create(r.Context(), c); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) {
			writeError(w, http.StatusConflict, "slug_already_exists")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(c))
}

func viewOf(c *domain.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Slug: c.Slug}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
