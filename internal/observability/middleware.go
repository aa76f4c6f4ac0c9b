package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"sttbridge/internal/observability/metrics"
)

// statusRecorder captures the response status for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestInstrumentation returns HTTP middleware that logs each request
// and records it in the metrics registry. WebSocket upgrades bypass the
// status recorder since the connection is hijacked.
func RequestInstrumentation(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			status := strconv.Itoa(rec.status)
			m.RecordRequest(r.URL.Path, status)

			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("status", status).
				Dur("duration", duration).
				Msg("http request")
		})
	}
}
