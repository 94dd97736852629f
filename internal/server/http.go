// Package server assembles the HTTP router from the handlers and middleware.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/metric"

	audithandler "openmarket/backend/internal/audit/handler"
	authhandler "openmarket/backend/internal/auth/handler"
	categoryhandler "openmarket/backend/internal/category/handler"
	listinghandler "openmarket/backend/internal/listing/handler"
	"openmarket/backend/internal/security"
	"openmarket/backend/internal/server/middleware"
	"openmarket/backend/internal/telemetry"
	userhandler "openmarket/backend/internal/user/handler"
)

// Deps holds everything the router needs.
type Deps struct {
	Tokens     *security.TokenProvider
	Auth       *authhandler.AuthHandler
	Categories *categoryhandler.CategoryHandler
	Listings   *listinghandler.ListingHandler
	Users      *userhandler.UserHandler
	Audit      *audithandler.AuditHandler
	Meter      metric.Meter
	Emitter    telemetry.EventEmitter
}

// NewRouter builds the full route tree: health, auth endpoints, public
// catalog reads, and token-protected writes.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recover)
	r.Use(middleware.ClientIP)
	if d.Meter != nil {
		r.Use(middleware.Telemetry(d.Meter, d.Emitter, map[string]bool{"/healthz": true}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Logout accepts either a Bearer access token or a refresh token in the
	// body, so auth is optional there and enforced inside the handler.
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuth(d.Tokens))
		d.Auth.Mount(r)
	})

	if d.Categories != nil {
		d.Categories.Mount(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Tokens))
			r.Use(middleware.RequireAdmin)
			d.Categories.MountAdmin(r)
		})
	}

	if d.Users != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Tokens))
			r.Use(middleware.RequireAdmin)
			d.Users.MountAdmin(r)
		})
	}

	if d.Audit != nil {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Tokens))
			r.Use(middleware.RequireAdmin)
			d.Audit.MountAdmin(r)
		})
	}

	if d.Listings != nil {
		d.Listings.Mount(r)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(d.Tokens))
			d.Listings.MountProtected(r)
		})
	}

	return r
}
