package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/runcoach/runcoach/internal/api/models"
)

// Recovery returns a middleware that turns a handler panic into a 500 {error} response.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Error().
					Str("request_id", GetRequestID(r.Context())).
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				models.ErrorResponse{Error: models.MsgInternal}.Write(w, http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
