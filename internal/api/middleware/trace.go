package middleware

import (
	"context"
	"net/http"

	"github.com/ayo6706/shop-treasury/internal/api/problem"
	"github.com/google/uuid"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = problem.TraceHeader

const maxTraceIDLength = 128

// TraceMiddleware ensures each request has a trace identifier propagated via
// context and headers. Oversized inbound ids are replaced.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" || len(traceID) > maxTraceIDLength {
			traceID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), traceContextKey, traceID)
		w.Header().Set(TraceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
