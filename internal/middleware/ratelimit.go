package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/DukeRupert/compliq/internal/auth"
	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/handler"
)

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	maxAttempts int
	window      time.Duration
	now         func() time.Time

	mu      sync.Mutex
	entries map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a new rate limiter. Expired entries are swept until
// ctx is done.
func NewRateLimiter(ctx context.Context, maxAttempts int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
		entries:     make(map[string]*rateLimitEntry),
	}

	go rl.cleanup(ctx)

	return rl
}

// Allow checks if a request from the given key should be allowed.
// Returns true if allowed, false if rate limited.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.entries[key]

	if !exists {
		rl.entries[key] = &rateLimitEntry{
			count:       1,
			windowStart: now,
		}
		return true
	}

	if now.Sub(entry.windowStart) >= rl.window {
		entry.count = 1
		entry.windowStart = now
		return true
	}

	if entry.count < rl.maxAttempts {
		entry.count++
		return true
	}

	return false
}

// Reset clears the rate limit for a key.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.entries, key)
}

// TimeUntilReset returns how long until the rate limit resets for a key.
func (rl *RateLimiter) TimeUntilReset(key string) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.entries[key]
	if !exists {
		return 0
	}

	elapsed := rl.now().Sub(entry.windowStart)
	if elapsed >= rl.window {
		return 0
	}

	return rl.window - elapsed
}

// cleanup periodically removes expired entries to prevent memory leaks.
func (rl *RateLimiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, entry := range rl.entries {
		if now.Sub(entry.windowStart) >= rl.window {
			delete(rl.entries, key)
		}
	}
}

// =============================================================================
// Rate Limit Middleware
// =============================================================================

// KeyFunc picks the rate limit key for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ByUser keys requests by the authenticated user. It must run after
// RequireUser.
func ByUser(r *http.Request) string {
	if id := auth.GetIdentity(r.Context()); id != nil {
		return "user:" + id.UserID.String()
	}
	return ""
}

// ByIP keys requests by client address.
func ByIP(r *http.Request) string {
	return "ip:" + getClientIP(r)
}

// RateLimitMiddleware wraps a rate limiter for use as HTTP middleware.
type RateLimitMiddleware struct {
	limiter *RateLimiter
	key     KeyFunc
	logger  *slog.Logger
}

// NewRateLimitMiddleware creates a new rate limit middleware.
func NewRateLimitMiddleware(limiter *RateLimiter, key KeyFunc, logger *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
		key:     key,
		logger:  logger,
	}
}

// Limit returns middleware that rate limits requests.
func (m *RateLimitMiddleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.key(r)
		if key == "" || m.limiter.Allow(key) {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Warn("rate limit exceeded",
			"key", key,
			"path", r.URL.Path,
			"method", r.Method,
		)

		retryAfter := int(m.limiter.TimeUntilReset(key).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

		err := domain.Errorf(domain.ERATELIMIT, "middleware.rate_limit", "Too many requests. Please try again later.")
		handler.ErrorResponse(w, r, m.logger, err)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	// Check X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}

	return ip
}
