package models

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response: {error, details?}.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// Write writes the error as JSON with the given status.
func (e ErrorResponse) Write(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(e)
}

// Error messages returned to API clients.
const (
	MsgInvalidInput     = "invalid input data"
	MsgInvalidJSON      = "request body must be valid JSON"
	MsgUnsupportedMedia = "Content-Type must be application/json"
	MsgBodyTooLarge     = "request body too large"
	MsgGenerationFailed = "failed to generate training plan"
	MsgMalformedPlan    = "failed to parse the AI response"
	MsgEmptyAIResponse  = "no response received from the AI model"
	MsgProviderBusy     = "AI provider temporarily unavailable"
	MsgInternal         = "an unexpected error occurred"
	MsgTLSRequired      = "this endpoint requires HTTPS"
	MsgNotFound         = "resource not found"
	MsgMethodNotAllowed = "method not allowed"
)
