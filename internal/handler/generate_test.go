package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/errs"
	"github.com/aman-churiwal/gen-broker/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	result  *service.Result
	err     error
	gotID   string
	payload json.RawMessage
}

func (f *fakeExecutor) Execute(ctx context.Context, clientID string, payload json.RawMessage) (*service.Result, error) {
	f.gotID = clientID
	f.payload = payload
	return f.result, f.err
}

func performGenerate(t *testing.T, executor *fakeExecutor, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.POST("/v1/generate", func(c *gin.Context) {
		c.Set("client_id", "cli_test")
		NewGenerateHandler(executor).Generate(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func quotaResult(remaining int) *service.Result {
	return &service.Result{
		Tier:      "free",
		Limit:     10,
		Remaining: remaining,
		Reset:     time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC),
	}
}

func TestGenerateSuccess(t *testing.T) {
	result := quotaResult(9)
	result.Output = []byte(`{"answer": 42}`)
	executor := &fakeExecutor{result: result}

	w := performGenerate(t, executor, `{"prompt": "hi"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer": 42}`, w.Body.String())

	assert.Equal(t, "cli_test", executor.gotID)
	assert.JSONEq(t, `{"prompt": "hi"}`, string(executor.payload))

	assert.Equal(t, "free", w.Header().Get("X-Tier"))
	assert.Equal(t, "10", w.Header().Get("X-Quota-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-Quota-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-Quota-Reset"))
}

func TestGenerateErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"quota exceeded", errs.New(errs.CodeQuotaExceeded, "hourly limit of 10 requests reached"), http.StatusTooManyRequests},
		{"credential unavailable", errs.New(errs.CodeCredentialUnavailable, "renewal failed"), http.StatusServiceUnavailable},
		{"upstream transient", errs.New(errs.CodeUpstreamTransient, "upstream down"), http.StatusBadGateway},
		{"upstream rejected", errs.New(errs.CodeUpstreamRejected, "payload too large"), http.StatusBadRequest},
		{"untyped", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := &fakeExecutor{result: quotaResult(0), err: tt.err}

			w := performGenerate(t, executor, `{}`)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestGenerateQuotaExceededKeepsHeadersAndReason(t *testing.T) {
	reason := "hourly limit of 10 requests reached on the free tier - upgrade to premium for a higher limit"
	executor := &fakeExecutor{
		result: quotaResult(0),
		err:    errs.New(errs.CodeQuotaExceeded, reason),
	}

	w := performGenerate(t, executor, `{}`)

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-Quota-Remaining"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, reason, body["error"])
	assert.Equal(t, string(errs.CodeQuotaExceeded), body["code"])
}

func TestGenerateRetryableFlag(t *testing.T) {
	executor := &fakeExecutor{
		result: quotaResult(5),
		err:    errs.New(errs.CodeCredentialUnavailable, "renewal failed"),
	}

	w := performGenerate(t, executor, `{}`)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["retryable"])
}

func TestGenerateMissingIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)

	executor := &fakeExecutor{}
	router := gin.New()
	router.POST("/v1/generate", NewGenerateHandler(executor).Generate)

	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, executor.gotID)
}
