// Package handler exposes admin read access to the audit trail.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"openmarket/backend/internal/audit/domain"
	"openmarket/backend/internal/audit/repository"
)

type AuditHandler struct {
	repo repository.Repository
}

func NewAuditHandler(repo repository.Repository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// MountAdmin registers the admin audit routes on r.
func (h *AuditHandler) MountAdmin(r chi.Router) {
	r.Get("/admin/users/{id}/audit-logs", h.handleListByUser)
	r.Get("/admin/audit-logs/{id}", h.handleGet)
}

type auditLogResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toResponse(a *domain.AuditLog) auditLogResponse {
	return auditLogResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Action:    a.Action,
		Resource:  a.Resource,
		IP:        a.IP,
		Metadata:  a.Metadata,
		CreatedAt: a.CreatedAt,
	}
}

func (h *AuditHandler) handleListByUser(w http.ResponseWriter, r *http.Request) {
	limit := parseInt32(r.URL.Query().Get("limit"), 50)
	if limit > 200 {
		limit = 200
	}
	offset := parseInt32(r.URL.Query().Get("offset"), 0)

	logs, err := h.repo.ListByUser(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	out := make([]auditLogResponse, 0, len(logs))
	for _, a := range logs {
		out = append(out, toResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"auditLogs": out})
}

func (h *AuditHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.repo.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store_unavailable")
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "audit_log_not_found")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(a))
}

func parseInt32(raw string, def int32) int32 {
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return def
	}
	return int32(n)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
