package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/model"
	"github.com/albertomaydayjhondoe/Lotto-sub001/internal/testutil"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func (brokenLimiter) Close() error { return nil }

func serve(t *testing.T, h http.Handler, remote string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareRejectsOverLimit(t *testing.T) {
	m, _ := newLimiter(t, 1, 1)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	reqID := func(*http.Request) string { return "req-1" }
	h := Middleware(m, IPKeyFunc, reqID, testutil.TestLogger())(ok)

	assert.Equal(t, http.StatusNoContent, serve(t, h, "10.0.0.1:5000").Code)

	rec := serve(t, h, "10.0.0.1:5001")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	var body model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.ErrCodeRateLimited, body.Error.Code)
	assert.Equal(t, "req-1", body.Meta.RequestID)

	assert.Equal(t, http.StatusNoContent, serve(t, h, "10.0.0.2:5000").Code, "other clients are unaffected")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Middleware(brokenLimiter{}, IPKeyFunc, nil, testutil.TestLogger())(ok)
	assert.Equal(t, http.StatusNoContent, serve(t, h, "10.0.0.1:5000").Code)
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		remote string
		want   string
	}{
		{"10.0.0.1:5000", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"10.0.0.1", "10.0.0.1"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		assert.Equal(t, tt.want, IPKeyFunc(req), tt.remote)
	}
}
