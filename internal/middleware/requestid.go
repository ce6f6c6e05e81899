package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"pubcat/internal/logger"
)

const TraceHeader = "X-Trace-ID"

// RequestID reuses an incoming X-Trace-ID or makes a new one, stores it in
// the request context for logger.For and echoes it back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(TraceHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(TraceHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.ContextWithID(r.Context(), id)))
	})
}
