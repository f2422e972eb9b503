// Package ratelimit is D4's per-IP limiter, scoped to /auth/* routes only
// -- the attack surface that matters for an auth substrate -- rather than
// wrapping the whole API.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type IPLimiter struct {
	ips  sync.Map
	rps  rate.Limit
	burst int
}

func NewIPLimiter(rps rate.Limit, burst int) *IPLimiter {
	l := &IPLimiter{rps: rps, burst: burst}
	go l.cleanupLoop()
	return l
}

func (l *IPLimiter) limiterFor(ip string) *rate.Limiter {
	if existing, ok := l.ips.Load(ip); ok {
		return existing.(*rate.Limiter)
	}
	fresh := rate.NewLimiter(l.rps, l.burst)
	actual, _ := l.ips.LoadOrStore(ip, fresh)
	return actual.(*rate.Limiter)
}

func (l *IPLimiter) cleanupLoop() {
	for {
		time.Sleep(10 * time.Minute)
		l.ips.Range(func(key, _ any) bool {
			l.ips.Delete(key)
			return true
		})
	}
}

// Middleware wraps next, rejecting with 429 once an IP exceeds its
// bucket. Mount it only on the auth routes -- it is not a general API
// guard.
func (l *IPLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.limiterFor(ip).Allow() {
			slog.Warn("ratelimit: request rejected", "ip", ip, "path", r.URL.Path)
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
