package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/DukeRupert/compliq/internal/handler"
)

// MetricsAuthMiddleware protects the Prometheus endpoint with basic auth.
type MetricsAuthMiddleware struct {
	username [32]byte
	password [32]byte
	enabled  bool
	logger   *slog.Logger
}

// NewMetricsAuthMiddleware creates a new metrics auth middleware.
// If both username and password are empty, authentication is disabled.
func NewMetricsAuthMiddleware(username, password string, logger *slog.Logger) *MetricsAuthMiddleware {
	return &MetricsAuthMiddleware{
		username: sha256.Sum256([]byte(username)),
		password: sha256.Sum256([]byte(password)),
		enabled:  username != "" || password != "",
		logger:   logger,
	}
}

// Enabled reports whether credentials are required.
func (m *MetricsAuthMiddleware) Enabled() bool {
	return m.enabled
}

// Handler returns middleware that requires basic authentication.
func (m *MetricsAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.enabled {
			next.ServeHTTP(w, r)
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || !m.matches(user, pass) {
			m.logger.Warn("metrics scrape rejected", "ip", getClientIP(r), "credentials_present", ok)
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			handler.ErrorResponse(w, r, m.logger, domain.Unauthorized("middleware.metrics_auth", "Authentication required"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// matches compares fixed-size digests in constant time.
func (m *MetricsAuthMiddleware) matches(user, pass string) bool {
	u := sha256.Sum256([]byte(user))
	p := sha256.Sum256([]byte(pass))
	userMatch := subtle.ConstantTimeCompare(u[:], m.username[:]) == 1
	passMatch := subtle.ConstantTimeCompare(p[:], m.password[:]) == 1
	return userMatch && passMatch
}
