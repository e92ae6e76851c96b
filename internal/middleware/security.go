package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/taskbrew/taskbrew-backend/pkg/clientip"
)

// SecurityHeaders sets security-related response headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// --- Login rate limiting (per-IP token bucket) ---
//
// Credential endpoints get a much tighter budget than the rest of the
// API: hashing is expensive and the endpoint is the obvious target for
// password stuffing.

const (
	loginRateLimitRPS   = 0.2 // one attempt per 5 seconds sustained
	loginRateLimitBurst = 5
	limiterTTL          = 30 * time.Minute
	cleanupInterval     = 5 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// LoginRateLimiter hands out per-IP token buckets for the login and
// register routes. Stale entries are evicted by a background sweep.
type LoginRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	sweep   sync.Once
}

func NewLoginRateLimiter() *LoginRateLimiter {
	return &LoginRateLimiter{entries: make(map[string]*limiterEntry)}
}

func (l *LoginRateLimiter) limiterFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep.Do(func() { go l.cleanupLoop() })

	e, ok := l.entries[ip]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(loginRateLimitRPS), loginRateLimitBurst)}
		l.entries[ip] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func (l *LoginRateLimiter) cleanupLoop() {
	for range time.Tick(cleanupInterval) {
		cutoff := time.Now().Add(-limiterTTL)
		l.mu.Lock()
		for ip, e := range l.entries {
			if e.lastUse.Before(cutoff) {
				delete(l.entries, ip)
			}
		}
		l.mu.Unlock()
	}
}

// Middleware answers 429 once an IP exhausts its bucket.
func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientip.RealClientIP(r)
		if !l.limiterFor(ip).Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Too many attempts. Please try again later."}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
