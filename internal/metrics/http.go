package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"
)

// idPattern matches UUIDs and Stripe object ids so raw paths do not explode
// label cardinality when no route pattern is available.
var idPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|\b(?:cus|sub|cs|evt|price)_[A-Za-z0-9]+`)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// route returns the ServeMux pattern that matched the request, falling back
// to the normalized path for unmatched requests.
func route(r *http.Request) string {
	if r.Pattern != "" {
		return r.Pattern
	}
	return idPattern.ReplaceAllString(r.URL.Path, "{id}")
}

// Middleware records HTTP request metrics. It must wrap the ServeMux so the
// matched pattern is visible after the inner handler returns.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		rt := route(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, rt, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, rt).Observe(time.Since(start).Seconds())
	})
}
