package middleware

import (
	"net/http"

	"github.com/runcoach/runcoach/internal/api/models"
)

// SecurityHeaders adds the standard hardening headers for a JSON API.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects requests forwarded over plain HTTP when enabled.
// It trusts X-Forwarded-Proto as set by the load balancer.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" && proto != "https" {
				models.ErrorResponse{Error: models.MsgTLSRequired}.Write(w, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
