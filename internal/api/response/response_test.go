package response_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runcoach/runcoach/internal/api/middleware"
	"github.com/runcoach/runcoach/internal/api/response"
)

// requestWithID runs a request through the RequestID middleware and returns it.
func requestWithID(t *testing.T, method, path string) *http.Request {
	t.Helper()
	var processed *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processed = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, path, http.NoBody))
	require.NotNil(t, processed)
	return processed
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req := requestWithID(t, http.MethodGet, "/test")
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, middleware.GetRequestID(req.Context()), rec.Header().Get(middleware.HeaderRequestID))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message":"hello"}`, rec.Body.String())
}

func TestJSON_WithoutRequestID(t *testing.T) {
	rec := httptest.NewRecorder()

	response.JSON(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody), http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(middleware.HeaderRequestID))
	assert.Empty(t, rec.Body.String())
}

func TestBadRequest_WithDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	response.BadRequest(rec, requestWithID(t, http.MethodPost, "/api/generate-plan"), "invalid input data",
		[]map[string]string{{"field": "marathonInfo.raceName", "message": "required"}})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t,
		`{"error":"invalid input data","details":[{"field":"marathonInfo.raceName","message":"required"}]}`,
		rec.Body.String())
}

func TestInternalError_OmitsDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	response.InternalError(rec, httptest.NewRequest(http.MethodPost, "/api/generate-plan", http.NoBody), "boom")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"boom"}`, rec.Body.String())
}

func TestServiceUnavailable(t *testing.T) {
	rec := httptest.NewRecorder()

	response.ServiceUnavailable(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody), "not ready")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"error":"not ready"}`, rec.Body.String())
}
