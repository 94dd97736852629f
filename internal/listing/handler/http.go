// Package handler exposes listing routes. Reads are public; writes require an
// authenticated seller and are restricted to the owner or an admin.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	categoryrepo "openmarket/backend/internal/category/repository"
	"openmarket/backend/internal/listing/domain"
	"openmarket/backend/internal/listing/repository"
	"openmarket/backend/internal/server/middleware"
	userdomain "openmarket/backend/internal/user/domain"
)

const defaultPageSize = 20

type ListingHandler struct {
	repo       repository.Repository
	categories categoryrepo.Repository
}

func NewListingHandler(repo repository.Repository, categories categoryrepo.Repository) *ListingHandler {
	return &ListingHandler{repo: repo, categories: categories}
}

// Mount registers the public listing routes on r.
func (h *ListingHandler) Mount(r chi.Router) {
	r.Get("/listings", h.handleList)
	r.Get("/listings/{id}", h.handleGet)
}

// MountProtected registers the authenticated listing routes on r.
func (h *ListingHandler) MountProtected(r chi.Router) {
	r.Post("/listings", h.handleCreate)
	r.Put("/listings/{id}", h.handleUpdate)
	r.Delete("/listings/{id}", h.handleDelete)
}

type listingView struct {
	ID          string `json:"id"`
	SellerID    string `json:"sellerId"`
	CategoryID  string `json:"categoryId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

type listingRequest struct {
	CategoryID  string `json:"categoryId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PriceCents  int64  `json:"priceCents"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
}

func (h *ListingHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := int32(defaultPageSize)
	offset := int32(0)
	if v, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 32); err == nil && v > 0 && v <= 100 {
		limit = int32(v)
	}
	if v, err := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 32); err == nil && v >= 0 {
		offset = int32(v)
	}
	listings, err := h.repo.List(r.Context(), r.URL.Query().Get("category"), limit, offset)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, viewOf(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": views})
}

func (h *ListingHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	l, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	if l == nil || l.Status == domain.ListingStatusRemoved {
		writeError(w, http.StatusNotFound, "listing_not_found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(l))
}

func (h *ListingHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	sellerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	now := time.Now().UTC()
	l := &domain.Listing{
		ID:          uuid.New().String(),
		SellerID:    sellerID,
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Status:      domain.ListingStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.categoryExists(w, r, l.CategoryID) {
		return
	}
	if err := h.repo.Create(r.Context(), l); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(l))
}

func (h *ListingHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	var req listingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if req.CategoryID != "" {
		l.CategoryID = strings.TrimSpace(req.CategoryID)
		if !h.categoryExists(w, r, l.CategoryID) {
			return
		}
	}
	if req.Title != "" {
		l.Title = strings.TrimSpace(req.Title)
	}
	if req.Description != "" {
		l.Description = req.Description
	}
	if req.PriceCents > 0 {
		l.PriceCents = req.PriceCents
	}
	if req.Status != "" {
		switch domain.ListingStatus(req.Status) {
		case domain.ListingStatusActive, domain.ListingStatusSold, domain.ListingStatusRemoved:
			l.Status = domain.ListingStatus(req.Status)
		default:
			writeError(w, http.StatusBadRequest, "invalid_status")
			return
		}
	}
	l.UpdatedAt = time.Now().UTC()
	if err := l.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.Update(r.Context(), l); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(l))
}

func (h *ListingHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	l, ok := h.loadOwned(w, r)
	if !ok {
		return
	}
	l.Status = domain.ListingStatusRemoved
	l.UpdatedAt = time.Now().UTC()
	if err := h.repo.Update(r.Context(), l); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// categoryExists checks the category id refers to a real category. Writes the
// error response itself and returns false when it does not.
func (h *ListingHandler) categoryExists(w http.ResponseWriter, r *http.Request, categoryID string) bool {
	c, err := h.categories.GetByID(r.Context(), categoryID)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return false
	}
	if c == nil {
		writeError(w, http.StatusBadRequest, "unknown_category")
		return false
	}
	return true
}

// loadOwned resolves the listing in the URL and checks the caller is its
// seller or an admin. Writes the error response itself when the check fails.
func (h *ListingHandler) loadOwned(w http.ResponseWriter, r *http.Request) (*domain.Listing, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return nil, false
	}
	l, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return nil, false
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "listing_not_found")
		return nil, false
	}
	if l.SellerID != userID {
		role, _ := middleware.GetRole(r.Context())
		if role != string(userdomain.RoleAdmin) {
			writeError(w, http.StatusForbidden, "forbidden")
			return nil, false
		}
	}
	return l, true
}

func viewOf(l *domain.Listing) listingView {
	return listingView{
		ID:          l.ID,
		SellerID:    l.SellerID,
		CategoryID:  l.CategoryID,
		Title:       l.Title,
		Description: l.Description,
		PriceCents:  l.PriceCents,
		Currency:    l.Currency,
		Status:      string(l.Status),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
