package middleware

import (
	"net/http"
	"strconv"
	"time"

	"pubcat/internal/httpx"
	"pubcat/internal/metrics"
)

// Instrument records request count and latency under a fixed path label,
// so ids in URLs do not explode label cardinality.
func Instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := httpx.NewStatusRecorder(w)
		next.ServeHTTP(rec, r)
		metrics.HttpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.Status)).Inc()
		metrics.HttpRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	})
}
