package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sayarat/internal/platform/logger"
	platformMW "sayarat/internal/platform/middleware"
	"sayarat/internal/ratelimit/models"
)

type fakeLimiter struct {
	result  *models.Result
	err     error
	lastKey string
	class   models.RouteClass
}

func (f *fakeLimiter) Check(_ context.Context, clientKey string, class models.RouteClass) (*models.Result, error) {
	f.lastKey = clientKey
	f.class = class
	return f.result, f.err
}

func serve(t *testing.T, limiter *fakeLimiter, class models.RouteClass) *httptest.ResponseRecorder {
	t.Helper()

	mw := New(limiter, logger.New())
	handler := platformMW.NewMetadata(nil).Handler(
		mw.RateLimit(class)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})),
	)

	req := httptest.NewRequest(http.MethodGet, "/auctions/1", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_AllowedRequestPassesWithHeaders(t *testing.T) {
	limiter := &fakeLimiter{result: &models.Result{
		Allowed:   true,
		Limit:     100,
		Remaining: 99,
		ResetAt:   time.Unix(1700000000, 0),
	}}

	rec := serve(t, limiter, models.ClassRead)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "99", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1700000000", rec.Header().Get("X-RateLimit-Reset"))
	assert.Equal(t, "10.1.2.3", limiter.lastKey)
	assert.Equal(t, models.ClassRead, limiter.class)
}

func TestRateLimit_DeniedRequestGets429(t *testing.T) {
	limiter := &fakeLimiter{result: &models.Result{
		Allowed:    false,
		Limit:      5,
		Remaining:  0,
		ResetAt:    time.Unix(1700000000, 0),
		RetryAfter: 117,
	}}

	rec := serve(t, limiter, models.ClassLogin)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "117", rec.Header().Get("Retry-After"))

	var body models.ExceededResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMITED", body.Error)
	assert.Equal(t, 117, body.RetryAfter)
}

func TestRateLimit_LimiterErrorFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("store unavailable")}

	rec := serve(t, limiter, models.ClassRead)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimit_ZeroLimitSkipsHeaders(t *testing.T) {
	limiter := &fakeLimiter{result: &models.Result{Allowed: true}}

	rec := serve(t, limiter, models.RouteClass("unregistered"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Remaining"))
}
