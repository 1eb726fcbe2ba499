package middleware

import (
	"net/http"

	"github.com/ayo6706/shop-treasury/internal/api/problem"
	"go.uber.org/zap"
)

// RecoverMiddleware converts panics into RFC 7807 responses. A panic inside
// an economy handler is reported as a failed result so no fallback adapter
// repeats a half-applied operation.
func RecoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("request_id", TraceIDFromContext(r.Context())),
					zap.Stack("stack"),
				)

				w.Header().Set(ResultHeader, "failed")
				problem.Write(w, r, http.StatusInternalServerError, problem.Type("internal-server-error"), "", "unexpected server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
