package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"pubcat/internal/httpx"
	"pubcat/internal/logger"
)

// RequestLogger logs incoming requests at the INFO level.
func RequestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := httpx.NewStatusRecorder(w)

			// Serve the request
			next.ServeHTTP(rec, r)

			// Log the request
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"query":      r.URL.Query(),
				"status":     rec.Status,
				"remote":     r.RemoteAddr,
				"agent":      r.UserAgent(),
				"took":       time.Since(start),
				"request_id": logger.IDFrom(r.Context()),
			}).Info("http.request")
		})
	}
}
