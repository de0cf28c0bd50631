package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runcoach/runcoach/internal/api"
	"github.com/runcoach/runcoach/internal/api/middleware"
	"github.com/runcoach/runcoach/internal/api/models"
	"github.com/runcoach/runcoach/internal/generator"
	"github.com/runcoach/runcoach/internal/plan"
	"github.com/runcoach/runcoach/internal/provider/resilience"
)

// raceDay is comfortably in the future for any test run.
var raceDay = plan.DateOf(time.Now()).AddDays(70)

type scriptedProvider struct {
	reply  string
	prompt string
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(_ context.Context, prompt string) (string, error) {
	p.prompt = prompt
	return p.reply, nil
}

func newTestRouter(t *testing.T, provider generator.Provider) http.Handler {
	t.Helper()
	metrics, err := middleware.NewMetrics()
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2026-10-18T00:00:00Z",
		Logger:    logger,
		Metrics:   metrics,
		Generator: generator.NewService(generator.ServiceConfig{Provider: provider, Logger: logger}),
		Registry:  resilience.NewRegistry(),
	})
}

func planBody(raceName string) string {
	return `{"marathonInfo":{"raceName":"` + raceName + `","raceDate":"` + raceDay.String() + `","distance":"10km",` +
		`"targetTime":{"hours":0,"minutes":55,"seconds":0}},"runningHistory":[],"hasRunningHistory":false}`
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t, &scriptedProvider{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.False(t, health.Time.Time().IsZero())
}

func TestRouter_ReadinessAndStatus(t *testing.T) {
	router := newTestRouter(t, &scriptedProvider{})

	for _, path := range []string{"/v1/ops/ready", "/v1/ops/status"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRouter_GeneratePlan(t *testing.T) {
	provider := &scriptedProvider{reply: "Here you go:\n" +
		`{"weeks":[{"week":1,"totalDistance":20,"trainingComposition":"Easy x3","objectives":"Base"}],` +
		`"totalWeeks":10,"totalDistance":20,"averageWeeklyDistance":20,"progressData":[20],"aiFeedback":"Go easy."}`}
	router := newTestRouter(t, provider)

	req := httptest.NewRequest(http.MethodPost, "/api/generate-plan", strings.NewReader(planBody("City 10K")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp models.GeneratePlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.TrainingPlan)
	assert.Len(t, resp.TrainingPlan.Weeks, 1)
	assert.Equal(t, "Go easy.", resp.TrainingPlan.AIFeedback)
	assert.Contains(t, provider.prompt, "- Name: City 10K")
}

func TestRouter_GeneratePlan_ValidationFailure(t *testing.T) {
	provider := &scriptedProvider{}
	router := newTestRouter(t, provider)

	req := httptest.NewRequest(http.MethodPost, "/api/generate-plan", strings.NewReader(planBody("")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error   string            `json:"error"`
		Details []plan.FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.MsgInvalidInput, resp.Error)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "marathonInfo.raceName", resp.Details[0].Field)
	assert.Empty(t, provider.prompt)
}

func TestRouter_GeneratePlan_MalformedReply(t *testing.T) {
	router := newTestRouter(t, &scriptedProvider{reply: "Sorry, I can't do that."})

	req := httptest.NewRequest(http.MethodPost, "/api/generate-plan", strings.NewReader(planBody("City 10K")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"`+models.MsgMalformedPlan+`"}`, w.Body.String())
}

func TestRouter_GeneratePlan_RejectsNonJSON(t *testing.T) {
	router := newTestRouter(t, &scriptedProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/generate-plan", strings.NewReader("raceName=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	router := newTestRouter(t, &scriptedProvider{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/nope", http.NoBody))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"`+models.MsgNotFound+`"}`, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/generate-plan", http.NoBody))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.JSONEq(t, `{"error":"`+models.MsgMethodNotAllowed+`"}`, w.Body.String())
}

func TestRouter_RequireTLS(t *testing.T) {
	router := api.NewRouter(api.RouterConfig{
		Logger:     zerolog.Nop(),
		Generator:  generator.NewService(generator.ServiceConfig{Provider: &scriptedProvider{}}),
		RequireTLS: true,
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
