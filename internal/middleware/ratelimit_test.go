package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/DukeRupert/compliq/internal/auth"
	"github.com/google/uuid"
)

// newTestLimiter returns a limiter with a controllable clock.
func newTestLimiter(t *testing.T, max int, window time.Duration) (*RateLimiter, *time.Time) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rl := NewRateLimiter(ctx, max, window)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

// =============================================================================
// Rate Limiter Tests
// =============================================================================

func TestRateLimiter_Allow_UpToLimit(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if !rl.Allow("user:a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("user:a") {
		t.Error("fourth request should be rate limited")
	}
}

func TestRateLimiter_Allow_KeysAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)

	if !rl.Allow("user:a") || !rl.Allow("user:b") {
		t.Fatal("first request per key should be allowed")
	}
	if rl.Allow("user:a") {
		t.Error("user:a should be limited")
	}
}

func TestRateLimiter_Allow_WindowExpiry(t *testing.T) {
	rl, now := newTestLimiter(t, 1, time.Minute)

	rl.Allow("user:a")
	if rl.Allow("user:a") {
		t.Fatal("second request inside the window should be limited")
	}

	*now = now.Add(time.Minute)
	if !rl.Allow("user:a") {
		t.Error("request after the window should be allowed")
	}
}

func TestRateLimiter_TimeUntilResetAndReset(t *testing.T) {
	rl, now := newTestLimiter(t, 1, time.Minute)

	if got := rl.TimeUntilReset("user:a"); got != 0 {
		t.Errorf("unknown key: TimeUntilReset = %v, want 0", got)
	}

	rl.Allow("user:a")
	*now = now.Add(20 * time.Second)
	if got := rl.TimeUntilReset("user:a"); got != 40*time.Second {
		t.Errorf("TimeUntilReset = %v, want 40s", got)
	}

	rl.Reset("user:a")
	if !rl.Allow("user:a") {
		t.Error("request after Reset should be allowed")
	}
}

func TestRateLimiter_SweepRemovesExpired(t *testing.T) {
	rl, now := newTestLimiter(t, 1, time.Minute)

	rl.Allow("user:a")
	*now = now.Add(2 * time.Minute)
	rl.Allow("user:b")
	rl.sweep()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.entries["user:a"]; ok {
		t.Error("expired entry should be swept")
	}
	if _, ok := rl.entries["user:b"]; !ok {
		t.Error("live entry should be kept")
	}
}

// =============================================================================
// Rate Limit Middleware Tests
// =============================================================================

func TestRateLimitMiddleware_ByUser(t *testing.T) {
	rl, _ := newTestLimiter(t, 2, time.Minute)
	mw := NewRateLimitMiddleware(rl, ByUser, newTestLogger())

	calls := 0
	wrapped := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	alice := &auth.Identity{UserID: uuid.New()}
	bob := &auth.Identity{UserID: uuid.New()}

	request := func(id *auth.Identity) *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/documents/process", nil)
		req = req.WithContext(auth.SetIdentity(req.Context(), id))
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, req)
		return rec
	}

	request(alice)
	request(alice)
	rec := request(alice)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	if err != nil || retry < 1 || retry > 60 {
		t.Errorf("Retry-After = %q, want 1..60", rec.Header().Get("Retry-After"))
	}

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if body.Error.Code != "rate_limit" {
		t.Errorf("error code = %q, want rate_limit", body.Error.Code)
	}

	if rec := request(bob); rec.Code != http.StatusOK {
		t.Errorf("another user should not be limited, got %d", rec.Code)
	}
	if calls != 3 {
		t.Errorf("handler calls = %d, want 3", calls)
	}
}

func TestRateLimitMiddleware_ByUserWithoutIdentityPassesThrough(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)
	mw := NewRateLimitMiddleware(rl, ByUser, newTestLogger())

	wrapped := mw.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "10.0.0.1:5555", "10.0.0.1"},
		{"remote addr without port", nil, "10.0.0.1", "10.0.0.1"},
		{"x-forwarded-for first hop", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:5555", "203.0.113.7"},
		{"x-real-ip", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.1:5555", "198.51.100.4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
			if got := ByIP(req); got != "ip:"+tt.want {
				t.Errorf("ByIP() = %q", got)
			}
		})
	}
}
