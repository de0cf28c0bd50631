// Package response provides utilities for HTTP response handling.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/runcoach/runcoach/internal/api/middleware"
	"github.com/runcoach/runcoach/internal/api/models"
)

// JSON writes data as a JSON response with the given status code.
// Includes X-Request-Id header for correlation.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.HeaderRequestID, requestID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes an {error, details?} response.
func Error(w http.ResponseWriter, r *http.Request, status int, message string, details any) {
	JSON(w, r, status, models.ErrorResponse{Error: message, Details: details})
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, message string, details any) {
	Error(w, r, http.StatusBadRequest, message, details)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusInternalServerError, message, nil)
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusServiceUnavailable, message, nil)
}
