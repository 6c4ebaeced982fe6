package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out of the service.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the request id stored by the logging middleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestLoggingMiddleware logs HTTP requests with timing and status information.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

// NewRequestLoggingMiddleware creates a new request logging middleware.
func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{
		logger: logger,
	}
}

// Handler returns middleware that logs all HTTP requests. Every response
// carries a request id; a well-formed incoming X-Request-ID is kept.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := incomingRequestID(r)
		w.Header().Set(RequestIDHeader, requestID)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID))

		// Skip logging for noisy endpoints
		if m.shouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", sanitizePath(r.URL.Path, r.URL.RawQuery),
			"status", wrapped.statusCode,
			"duration_ms", duration.Milliseconds(),
			"ip", getClientIP(r),
			"user_agent", r.UserAgent(),
		}

		// Log at appropriate level based on status code
		if wrapped.statusCode >= 500 {
			m.logger.Warn("request", attrs...)
		} else {
			m.logger.Info("request", attrs...)
		}
	})
}

// shouldSkip returns true for paths that should not be logged (too noisy).
func (m *RequestLoggingMiddleware) shouldSkip(path string) bool {
	skipPaths := []string{
		"/health",
		"/metrics",
	}

	for _, skip := range skipPaths {
		if strings.HasPrefix(path, skip) {
			return true
		}
	}

	return false
}

func incomingRequestID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(RequestIDHeader)); id != "" && len(id) <= 64 && isPrintableASCII(id) {
		return id
	}
	return uuid.NewString()
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// sanitizePath removes sensitive query parameters from the path for logging.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	// List of sensitive query parameter names to redact
	sensitiveParams := []string{
		"token",
		"code",
		"key",
		"secret",
		"password",
		"api_key",
		"apikey",
		"access_token",
		"refresh_token",
		"session_id",
		"email",
	}

	parts := strings.Split(rawQuery, "&")
	var safeParts []string

	for _, part := range parts {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}

		key := strings.ToLower(kv[0])
		isSensitive := false
		for _, sensitive := range sensitiveParams {
			if key == sensitive {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			safeParts = append(safeParts, kv[0]+"=[REDACTED]")
		} else {
			safeParts = append(safeParts, part)
		}
	}

	if len(safeParts) == 0 {
		return path
	}

	return path + "?" + strings.Join(safeParts, "&")
}
