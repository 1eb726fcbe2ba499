package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayo6706/shop-treasury/internal/api/problem"
	"github.com/go-chi/httprate"
)

// PublicRateLimiter limits requests per IP for unauthenticated routes.
func PublicRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitExceeded(fmt.Sprintf("Rate limit of %d req/s exceeded for this IP", rps))),
	)
}

// ClientRateLimiter limits authenticated adapters using their client id as
// the key, falling back to the caller IP.
func ClientRateLimiter(rps int) func(http.Handler) http.Handler {
	return httprate.Limit(rps, time.Second,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if clientID := ClientIDFromContext(r.Context()); clientID != "" {
				return clientID, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(limitExceeded(fmt.Sprintf("Rate limit of %d req/s exceeded for this client", rps))),
	)
}

func limitExceeded(detail string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ResultHeader, "not_handled")
		problem.Write(w, r, http.StatusTooManyRequests, problem.Type("rate-limit-exceeded"), "", detail)
	}
}
