package gemini_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runcoach/runcoach/internal/generator"
	"github.com/runcoach/runcoach/internal/generator/gemini"
	"github.com/runcoach/runcoach/internal/provider/resilience"
)

func newClient(t *testing.T, baseURL string, registry *resilience.Registry) *gemini.Client {
	t.Helper()
	client, err := gemini.NewClient(gemini.ClientConfig{
		APIKey:   "test-key",
		BaseURL:  baseURL,
		Timeout:  2 * time.Second,
		Registry: registry,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := gemini.NewClient(gemini.ClientConfig{})
	assert.ErrorIs(t, err, gemini.ErrNoAPIKey)
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := gemini.NewClient(gemini.ClientConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, gemini.DefaultModel, client.Model())
	assert.Equal(t, gemini.ProviderName, client.Name())
}

func TestClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1beta/models/gemini-2.5-flash-lite:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		var body struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig gemini.GenerationConfig `json:"generationConfig"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) || !assert.Len(t, body.Contents, 1) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "user", body.Contents[0].Role)
		assert.Equal(t, "make me a plan", body.Contents[0].Parts[0].Text)
		assert.Equal(t, gemini.DefaultGenerationConfig(), body.GenerationConfig)

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"a\":"},{"text":"1}"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	registry := resilience.NewRegistry()
	client := newClient(t, server.URL, registry)

	text, err := client.Generate(context.Background(), "make me a plan")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, text)

	health, ok := registry.Health(gemini.ProviderName)
	require.True(t, ok)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestClient_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL, nil).Generate(context.Background(), "p")

	var perr *generator.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.Equal(t, "INVALID_ARGUMENT", perr.Code)
	assert.Equal(t, "API key not valid", perr.Message)
}

func TestClient_Generate_ServerErrorAfterRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`))
	}))
	defer server.Close()

	cfg := resilience.DefaultClientConfig(gemini.ProviderName)
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	client, err := gemini.NewClient(gemini.ClientConfig{
		APIKey:     "k",
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(cfg),
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "p")

	var perr *generator.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusServiceUnavailable, perr.StatusCode)
	assert.Equal(t, "The model is overloaded.", perr.Message)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Generate_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL, nil).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, generator.ErrBlocked)
}

func TestClient_Generate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL, nil).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, generator.ErrEmptyResponse)
}

func TestClient_Generate_UndecodableBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL, nil).Generate(context.Background(), "p")

	var perr *generator.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "decode response", perr.Message)
}
