package middleware

import (
	"net/http"
	"time"

	"github.com/ayo6706/shop-treasury/internal/observability"
	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests chi could not route, keeping raw paths out
// of metric labels.
const unmatchedRoute = "unmatched"

// MetricsMiddleware records latency, in-flight requests and the economy
// result of every request.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		done := observability.TrackInFlight()
		defer done()

		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		pattern := routePattern(r)
		observability.ObserveHTTP(r.Method, pattern, rw.status, time.Since(start))
		if result := rw.Header().Get(ResultHeader); result != "" && pattern != unmatchedRoute {
			observability.IncrementEconomyResult(pattern, result)
		}
	})
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}
