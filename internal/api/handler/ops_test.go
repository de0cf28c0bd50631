package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runcoach/runcoach/internal/api/handler"
	"github.com/runcoach/runcoach/internal/api/models"
	"github.com/runcoach/runcoach/internal/provider/resilience"
)

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

// trippedRegistry returns a registry holding one provider whose circuit is open.
func trippedRegistry(t *testing.T) *resilience.Registry {
	t.Helper()
	registry := resilience.NewRegistry()

	breaker := resilience.DefaultBreakerConfig("gemini")
	breaker.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
	client := resilience.NewClient(resilience.ClientConfig{
		Name:      "gemini",
		Breaker:   &breaker,
		Registry:  registry,
		Transport: failingTransport{},
	})

	req := httptest.NewRequest(http.MethodGet, "http://gemini.invalid/", http.NoBody)
	req.RequestURI = ""
	_, err := client.Do(req)
	require.Error(t, err)
	require.Equal(t, gobreaker.StateOpen, client.State())

	return registry
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestOpsHandler_HealthCheck(t *testing.T) {
	h := handler.NewOpsHandler("1.2.3", "2026-10-18T00:00:00Z", nil)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "1.2.3", body["details"].(map[string]any)["version"])
}

func TestOpsHandler_Ready(t *testing.T) {
	registry := resilience.NewRegistry()
	_ = resilience.NewClient(resilience.ClientConfig{Name: "gemini", Registry: registry})
	h := handler.NewOpsHandler("test", "", registry)

	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", decode[map[string]any](t, rec)["status"])
}

func TestOpsHandler_NotReadyWhenCircuitOpen(t *testing.T) {
	h := handler.NewOpsHandler("test", "", trippedRegistry(t))

	rec := httptest.NewRecorder()
	h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "FAIL", body["status"])
	assert.Equal(t, []any{"gemini"}, body["details"].(map[string]any)["unavailableProviders"])
}

func TestOpsHandler_SystemStatus(t *testing.T) {
	h := handler.NewOpsHandler("1.2.3", "", trippedRegistry(t))

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Status    models.HealthStatus `json:"status"`
		Version   string              `json:"version"`
		Providers []struct {
			Provider      string              `json:"provider"`
			Status        models.HealthStatus `json:"status"`
			CircuitState  string              `json:"circuitState"`
			Requests      uint32              `json:"requests"`
			Failures      uint32              `json:"failures"`
			LastFailureAt *string             `json:"lastFailureAt"`
			LastSuccessAt *string             `json:"lastSuccessAt"`
			Message       *string             `json:"message"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	require.Len(t, status.Providers, 1)

	p := status.Providers[0]
	assert.Equal(t, "gemini", p.Provider)
	assert.Equal(t, models.HealthStatusFail, p.Status)
	assert.Equal(t, "open", p.CircuitState)
	assert.NotNil(t, p.LastFailureAt)
	assert.Nil(t, p.LastSuccessAt)
	require.NotNil(t, p.Message)
	assert.Contains(t, *p.Message, "connection refused")
}

func TestOpsHandler_SystemStatusWithoutProviders(t *testing.T) {
	h := handler.NewOpsHandler("1.2.3", "", nil)

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	assert.JSONEq(t, `"OK"`, string(mustField(t, rec, "status")))
	assert.JSONEq(t, `[]`, string(mustField(t, rec, "providers")))
}

func mustField(t *testing.T, rec *httptest.ResponseRecorder, key string) json.RawMessage {
	t.Helper()
	fields := decode[map[string]json.RawMessage](t, rec)
	v, ok := fields[key]
	require.True(t, ok, "missing field %s", key)
	return v
}
