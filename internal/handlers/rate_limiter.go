package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/packhouse/api/internal/platform/httpx"
)

type rateLimiter interface {
	Allow(key string) bool
}

type simpleRateLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time
	mu     sync.Mutex
	store  map[string]rateEntry
}

type rateEntry struct {
	count int
	reset time.Time
}

func newSimpleRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &simpleRateLimiter{
		limit:  limit,
		window: window,
		clock:  clock,
		store:  make(map[string]rateEntry),
	}
}

func (l *simpleRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}
	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.store[key]
	if !ok || now.After(entry.reset) {
		l.store[key] = rateEntry{count: 1, reset: now.Add(l.window)}
		l.pruneExpiredLocked(now)
		return true
	}

	if entry.count >= l.limit {
		return false
	}
	entry.count++
	l.store[key] = entry
	return true
}

func (l *simpleRateLimiter) pruneExpiredLocked(now time.Time) {
	if len(l.store) == 0 {
		return
	}
	for key, entry := range l.store {
		if now.After(entry.reset) {
			delete(l.store, key)
		}
	}
}

// RateLimitMiddleware enforces per-minute request budgets. Requests carrying an
// Authorization header are keyed by a digest of the bearer token and use the
// authenticated budget; everything else is keyed by client IP. A zero or
// negative limit disables the corresponding budget.
func RateLimitMiddleware(anonymousPerMinute, authenticatedPerMinute int, clock func() time.Time) func(http.Handler) http.Handler {
	anonymous := newSimpleRateLimiter(anonymousPerMinute, time.Minute, clock)
	authenticated := newSimpleRateLimiter(authenticatedPerMinute, time.Minute, clock)

	return func(next http.Handler) http.Handler {
		if anonymous == nil && authenticated == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := anonymous
			key := clientAddressKey(r)
			if token := strings.TrimSpace(r.Header.Get("Authorization")); token != "" {
				limiter = authenticated
				key = tokenKey(token)
			}
			if limiter != nil && !limiter.Allow(key) {
				httpx.WriteError(r.Context(), w, httpx.NewError("rate_limited", "request rate limit exceeded", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddressKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "token:" + hex.EncodeToString(sum[:8])
}
