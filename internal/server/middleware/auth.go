package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"openmarket/backend/internal/security"
	userdomain "openmarket/backend/internal/user/domain"
)

const bearerPrefix = "bearer "

// RequireAuth validates the Bearer access token and sets user_id and role in
// the request context. Requests without a valid token get 401; the response
// body does not distinguish expired from tampered tokens.
func RequireAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				unauthorized(w, "missing_token")
				return
			}
			claims, err := tokens.VerifyAccess(token)
			if err != nil {
				unauthorized(w, "invalid_token")
				return
			}
			ctx := WithIdentity(r.Context(), claims.Subject, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth sets identity in context when a valid Bearer token is present
// and passes the request through otherwise. Used by routes like logout that
// accept either an access token or a refresh token in the body.
func OptionalAuth(tokens *security.TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token != "" {
				if claims, err := tokens.VerifyAccess(token); err == nil {
					r = r.WithContext(WithIdentity(r.Context(), claims.Subject, claims.Role))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests whose authenticated role is not admin.
// Must run after RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		roleStr, ok := GetRole(r.Context())
		if !ok {
			unauthorized(w, "missing_token")
			return
		}
		role, err := userdomain.ParseRole(roleStr)
		if err != nil {
			unauthorized(w, "invalid_token")
			return
		}
		switch role {
		case userdomain.RoleAdmin:
			next.ServeHTTP(w, r)
		case userdomain.RoleUser:
			forbidden(w)
		default:
			forbidden(w)
		}
	})
}

func bearerToken(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

func unauthorized(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

func forbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
}
