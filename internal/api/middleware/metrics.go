package middleware

import (
	"net/http"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/observability"
	"github.com/go-chi/chi/v5"
)

// MetricsMiddleware records request durations labelled by route and by the
// calling subsystem, so one noisy caller can be told apart from the rest.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		observability.ObserveHTTP(r.Method, routePattern(r), callerLabel(r.Context()), rw.status, time.Since(start))
	})
}

// routePattern keeps metric labels bounded: unmatched paths collapse to one
// value instead of echoing arbitrary URLs.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
