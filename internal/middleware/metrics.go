// Package middleware provides HTTP middleware for metrics collection.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nadmax/tempo/internal/metrics"
)

var recordHTTPRequest = metrics.RecordHTTPRequest

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		endpoint := normalizeEndpoint(r.URL.Path)
		status := strconv.Itoa(wrapped.statusCode)

		recordHTTPRequest(r.Method, endpoint, status, duration)
	})
}

// normalizeEndpoint replaces timer ids and category names with placeholders
// so label cardinality stays bounded.
func normalizeEndpoint(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/timers/"):
		parts := strings.Split(strings.TrimPrefix(path, "/api/timers/"), "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			return "/api/timers/:id"
		case len(parts) == 2 && isTimerAction(parts[1]):
			return "/api/timers/:id/" + parts[1]
		}
		return path
	case strings.HasPrefix(path, "/api/categories/"):
		parts := strings.Split(strings.TrimPrefix(path, "/api/categories/"), "/")
		if len(parts) == 2 && isTimerAction(parts[1]) {
			return "/api/categories/:category/" + parts[1]
		}
		return "/api/categories/:category"
	default:
		return path
	}
}

func isTimerAction(action string) bool {
	switch action {
	case "start", "pause", "reset":
		return true
	}
	return false
}
