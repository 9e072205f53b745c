package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumandas0/notionmbse/pkg/utils"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{utils.NewValidationError("bad", nil), http.StatusBadRequest},
		{utils.NewInvalidIdentifierError("x"), http.StatusBadRequest},
		{utils.NewSchemaError("title", "missing title"), http.StatusBadRequest},
		{utils.NewAppError(utils.CodeNotFound, "gone", nil), http.StatusNotFound},
		{utils.NewBackendError("down", nil), http.StatusBadGateway},
		{utils.NewConfigurationError("detached"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestSendErrorBody(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-1")

	SendError(w, r, utils.NewValidationError("invalid Element", nil).WithDetail("field", "tags"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, utils.CodeValidation, body.Error.Code)
	assert.Equal(t, "invalid Element", body.Error.Message)
	assert.Equal(t, "tags", body.Error.Details["field"])
	assert.Equal(t, "req-1", body.Error.RequestID)
}

func TestErrorHandlerRecoversPanics(t *testing.T) {
	h := ErrorHandler(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), CodeInternal)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:5000"
		h.ServeHTTP(w, r)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.2:5000"
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code, "clients are limited separately")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")
	assert.Equal(t, "1.2.3.4", clientIP(r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "9.9.9.9:1234"
	assert.Equal(t, "9.9.9.9", clientIP(r))
}

func TestSendErrorLogsServerFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	handler := ErrorHandler(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			SendError(w, r, utils.NewAppError(utils.CodeNotFound, "gone", nil))
			return
		}
		SendError(w, r, utils.NewBackendError("notion down", errors.New("timeout")))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, buf.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/elements", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, utils.CodeBackend, entry["error_code"])
	assert.Equal(t, "Request failed", entry["message"])
}
