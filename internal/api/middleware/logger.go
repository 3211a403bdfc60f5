// Package middleware holds the HTTP middleware shared by the metrics endpoint
// and the in-process fake server used in tests.
package middleware

import (
	"net/http"
	"time"

	"github.com/pratik-mahalle/resourcectl/internal/pkg/logger"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logger logs one line per request at debug level. Resource names travel in
// headers and are logged; config headers are not.
func Logger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			fields := map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrapped.statusCode,
				"duration":   time.Since(start).Milliseconds(),
				"bytes":      wrapped.written,
				"request_id": GetRequestID(r),
			}
			if name := r.Header.Get("X-Resource-Name"); name != "" {
				fields["resource_name"] = name
			}
			log.WithFields(fields).Debug("HTTP request")
		})
	}
}
