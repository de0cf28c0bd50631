package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger returns a middleware that attaches a request-scoped logger to the
// context (retrievable with zerolog.Ctx) and logs every completed request.
// 5xx responses are logged at error level and 4xx at warn.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := log.With().Str("request_id", GetRequestID(r.Context()))
			if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.IsValid() {
				fields = fields.
					Str("trace_id", spanCtx.TraceID().String()).
					Str("span_id", spanCtx.SpanID().String())
			}
			reqLog := fields.Logger()

			rec := record(w)
			next.ServeHTTP(rec, r.WithContext(reqLog.WithContext(r.Context())))

			var event *zerolog.Event
			switch {
			case rec.status >= http.StatusInternalServerError:
				event = reqLog.Error()
			case rec.status >= http.StatusBadRequest:
				event = reqLog.Warn()
			default:
				event = reqLog.Info()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", rec.status).
				Int64("bytes", rec.written).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}
