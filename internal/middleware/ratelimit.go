package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/crucial707/adhoc-web/internal/metrics"
)

const (
	// LoginPerMinute caps login attempts per client address.
	LoginPerMinute = 5
	// DefaultPerMinute is the limit applied to every route.
	DefaultPerMinute = 200
)

type visitor struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter limits requests per client IP using a token bucket per IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	scope    string
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewIPRateLimiter allows perMinute requests per minute per IP, with a burst of
// perMinute. scope labels rejections in metrics.
func NewIPRateLimiter(perMinute int, scope string, m *metrics.Metrics) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		scope:    scope,
		metrics:  m,
		now:      time.Now,
	}
}

// LoginRateLimiter returns the limiter for the login endpoint.
func LoginRateLimiter(m *metrics.Metrics) *IPRateLimiter {
	return NewIPRateLimiter(LoginPerMinute, "login", m)
}

// DefaultRateLimiter returns the limiter applied to all routes.
func DefaultRateLimiter(m *metrics.Metrics) *IPRateLimiter {
	return NewIPRateLimiter(DefaultPerMinute, "global", m)
}

// Allow consumes one token from ip's bucket.
func (l *IPRateLimiter) Allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	l.mu.Unlock()
	return v.lim.AllowN(now, 1)
}

// Sweep drops buckets not touched for idle. A dropped bucket is recreated full,
// so idle must be at least the time a bucket needs to refill.
func (l *IPRateLimiter) Sweep(idle time.Duration) int {
	cutoff := l.now().Add(-idle)
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, ip)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (l *IPRateLimiter) Run(ctx context.Context, interval, idle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep(idle)
		}
	}
}

// Middleware returns 429 when the client IP exceeds the rate.
func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(time.Minute.Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ClientIP(r)) {
			l.metrics.IncRateLimited(l.scope)
			w.Header().Set("Retry-After", retryAfter)
			writeJSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
