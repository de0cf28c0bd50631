package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/runcoach/runcoach/internal/api/middleware"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	return sr
}

func spanAttr(span sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, attr := range span.Attributes() {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_CreatesSpan(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing("runcoach-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, trace.SpanFromContext(r.Context()).SpanContext().IsValid())
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /healthz", spans[0].Name())
	assert.Equal(t, trace.SpanKindServer, spans[0].SpanKind())
}

func TestTracing_NamesSpanByRoutePattern(t *testing.T) {
	sr := setupTestTracer(t)

	r := chi.NewRouter()
	r.Use(middleware.Tracing("runcoach-test"))
	r.Get("/plans/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/plans/42", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /plans/{id}", spans[0].Name())
	route, ok := spanAttr(spans[0], "http.route")
	require.True(t, ok)
	assert.Equal(t, "/plans/{id}", route.AsString())
}

func TestTracing_PropagatesContext(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing("runcoach-test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", spans[0].SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", spans[0].Parent().SpanID().String())
}

func TestTracing_RecordsStatusCode(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing("runcoach-test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/generate-plan", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	status, ok := spanAttr(spans[0], "http.response.status_code")
	require.True(t, ok)
	assert.Equal(t, int64(400), status.AsInt64())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestTracing_MarksErrorOnServerError(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.Tracing("runcoach-test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "Internal Server Error", spans[0].Status().Description)
}

func TestTracing_IncludesRequestID(t *testing.T) {
	sr := setupTestTracer(t)

	handler := middleware.RequestID(
		middleware.Tracing("runcoach-test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	id, ok := spanAttr(spans[0], "request.id")
	require.True(t, ok)
	assert.Contains(t, id.AsString(), "req_")
}
