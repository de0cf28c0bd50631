package planclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrNilRequest is wrapped by the failure returned for a nil request.
var ErrNilRequest = errors.New("plan request is nil")

// Kind classifies a failed submission.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNetwork
	KindTimeout
	KindAPI
	KindAuthOrNotFound
	KindServer
	KindParse
	KindRetryExhausted
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAPI:
		return "api"
	case KindAuthOrNotFound:
		return "auth_or_not_found"
	case KindServer:
		return "server"
	case KindParse:
		return "parse"
	case KindRetryExhausted:
		return "retry_exhausted"
	default:
		return "unknown"
	}
}

// Failure is the single error type produced by Submit, apart from context
// cancellation of the caller's context.
type Failure struct {
	Kind Kind

	// Status is the HTTP status code, when a response was received.
	Status int

	// Message is the server-supplied error text or a description of the failure.
	Message string

	// Details is the optional "details" member of an error response body.
	Details json.RawMessage

	// Attempts is the number of attempts made. Set on KindRetryExhausted.
	Attempts int

	// Last is the failure of the final attempt. Set on KindRetryExhausted.
	Last *Failure

	// Err is the underlying cause, if any.
	Err error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(f.Kind.String())
	if f.Kind == KindRetryExhausted {
		fmt.Fprintf(&b, " after %d attempts", f.Attempts)
		if f.Last != nil {
			b.WriteString(": ")
			b.WriteString(f.Last.Error())
		}
		return b.String()
	}
	if f.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", f.Status)
	}
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	if f.Last != nil {
		return f.Last
	}
	return f.Err
}

// Retryable reports whether another attempt may be made after this failure.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindNetwork, KindTimeout, KindAPI, KindServer, KindUnknown:
		return true
	default:
		return false
	}
}

// Cause returns the failure that determines how the outcome is presented:
// the last attempt's failure for KindRetryExhausted, f itself otherwise.
func (f *Failure) Cause() *Failure {
	if f.Kind == KindRetryExhausted && f.Last != nil {
		return f.Last
	}
	return f
}

// UserMessage returns the banner text shown to the runner for this failure.
func (f *Failure) UserMessage() string {
	cause := f.Cause()

	var msg string
	switch cause.Kind {
	case KindValidation:
		msg = "Some fields need attention. Please correct them and try again."
	case KindNetwork:
		msg = "Could not reach the plan service. Check your connection and try again."
	case KindTimeout:
		msg = "The plan service took too long to respond. Please try again."
	case KindServer:
		msg = "The plan service ran into a problem. Please try again in a moment."
	case KindAPI, KindAuthOrNotFound:
		msg = "The plan service rejected the request"
		if cause.Message != "" {
			msg += ": " + cause.Message
		}
		msg += "."
	case KindParse:
		msg = "The generated plan could not be read. Please try again."
	default:
		msg = "Something went wrong while generating your plan. Please try again."
	}

	if f.Kind == KindRetryExhausted {
		msg = fmt.Sprintf("%s (gave up after %d attempts)", msg, f.Attempts)
	}
	return msg
}

// AsFailure returns the *Failure in err's chain, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// errorBody is the error envelope returned by the plan endpoint.
type errorBody struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// classifyStatus maps a non-2xx status code to a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusBadRequest,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusNotFound:
		return KindAuthOrNotFound
	case status >= 400 && status < 500:
		return KindAPI
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// statusFailure builds the failure for a non-2xx response. A body that does
// not match the error envelope still yields a failure carrying the status.
func statusFailure(status int, body []byte) *Failure {
	f := &Failure{
		Kind:   classifyStatus(status),
		Status: status,
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		f.Message = eb.Error
		f.Details = eb.Details
	}
	if f.Message == "" {
		f.Message = http.StatusText(status)
	}
	return f
}

// transportFailure classifies an error raised before a complete response was read.
func transportFailure(ctx context.Context, err error) *Failure {
	var netErr net.Error
	timedOut := errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	if timedOut {
		return &Failure{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &Failure{Kind: KindNetwork, Message: err.Error(), Err: err}
}
