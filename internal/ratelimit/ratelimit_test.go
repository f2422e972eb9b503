package ratelimit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/routecore/platform/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestIPLimiter_AllowsUpToBurstThenRejects(t *testing.T) {
	limiter := ratelimit.NewIPLimiter(rate.Limit(0.001), 2)
	handler := limiter.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.5:1234"

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "request %d within burst should pass", i)
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "request beyond burst should be rejected")
}

func TestIPLimiter_TracksDistinctIPsSeparately(t *testing.T) {
	limiter := ratelimit.NewIPLimiter(rate.Limit(0.001), 1)
	handler := limiter.Middleware(okHandler())

	reqA := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	reqA.RemoteAddr = "203.0.113.10:1111"
	reqB := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	reqB.RemoteAddr = "203.0.113.20:2222"

	wA := httptest.NewRecorder()
	handler.ServeHTTP(wA, reqA)
	assert.Equal(t, http.StatusOK, wA.Code)

	wB := httptest.NewRecorder()
	handler.ServeHTTP(wB, reqB)
	assert.Equal(t, http.StatusOK, wB.Code, "a fresh IP must get its own bucket")
}

func TestIPLimiter_PrefersForwardedForHeader(t *testing.T) {
	limiter := ratelimit.NewIPLimiter(rate.Limit(0.001), 1)
	handler := limiter.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "203.0.113.30:3333"
	req.Header.Set("X-Forwarded-For", "198.51.100.7")

	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, req)
	assert.Equal(t, http.StatusOK, w1.Code)

	// Same forwarded IP, different RemoteAddr -- should share the bucket
	// and now be exhausted.
	req2 := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req2.RemoteAddr = "203.0.113.99:9999"
	req2.Header.Set("X-Forwarded-For", "198.51.100.7")

	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, req2)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
}
