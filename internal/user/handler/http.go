// Package handler exposes admin user management routes.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"openmarket/backend/internal/user/domain"
	"openmarket/backend/internal/user/repository"
)

type UserHandler struct {
	repo repository.Repository
}

func NewUserHandler(repo repository.Repository) *UserHandler {
	return &UserHandler{repo: repo}
}

// MountAdmin registers the admin user routes on r.
func (h *UserHandler) MountAdmin(r chi.Router) {
	r.Put("/admin/users/{id}/role", h.handleUpdateRole)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// handleUpdateRole changes a user's role. The change takes effect on the
// user's next token rotation; access tokens already in flight keep their old
// role claim until they expire.
func (h *UserHandler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req updateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	id := chi.URLParam(r, "id")
	u, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	if u == nil {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	if err := h.repo.UpdateRole(r.Context(), id, role); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "role": string(role)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
