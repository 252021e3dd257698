package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func newLimiter(t *testing.T, rps float64, burst int, ttl time.Duration) *RateLimiter {
	t.Helper()

	rl := NewRateLimiter(context.Background(), &cfg.RateLimitCfg{
		RPS:           rps,
		Burst:         burst,
		CleanupPeriod: 5 * time.Millisecond,
		ClientTTL:     ttl,
	})
	t.Cleanup(func() {
		require.NoError(t, rl.Shutdown(context.Background()))
	})
	return rl
}

func request(remoteAddr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	r.RemoteAddr = remoteAddr
	return r
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	h := newLimiter(t, 0.001, 2, time.Minute).Middleware(ok)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("10.0.0.1:5000"))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "port does not matter")
	assert.JSONEq(t, `{"code":429,"message":"too many requests"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request("10.0.0.2:5000"))
	assert.Equal(t, http.StatusNoContent, rec.Code, "limits are per client")
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	rl := newLimiter(t, 10, 1, 10*time.Millisecond)
	rl.Middleware(ok).ServeHTTP(httptest.NewRecorder(), request("10.0.0.1:5000"))
	require.Equal(t, 1, rl.size())

	assert.Eventually(t, func() bool { return rl.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	h := RequestLogger(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("10.0.0.1:5000"))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
