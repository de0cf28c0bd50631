// Package generator turns validated plan requests into training plans by
// prompting a generative text model and validating its reply.
package generator

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrBlocked is returned when the provider refused to answer the prompt.
	ErrBlocked = errors.New("model refused the prompt")
)

// Provider is a text-generation backend.
type Provider interface {
	// Name returns the provider identifier used in logs and health reports.
	Name() string

	// Generate returns the model's reply to prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Error is a failure reported by a Provider.
type Error struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}
