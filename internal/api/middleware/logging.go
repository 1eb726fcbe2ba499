package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/ayo6706/shop-treasury/internal/api/problem"
	"go.uber.org/zap"
)

// ResultHeader reports the economy result of a request. Handlers set it and
// the logging middleware reads it back.
const ResultHeader = problem.ResultHeader

const requestInfoKey contextKey = "request_info"

// requestInfo is filled in by inner middleware for the access log.
type requestInfo struct {
	clientID string
}

// LoggingMiddleware emits structured request logs enriched with the trace id,
// the calling adapter and the economy result.
func LoggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			info := &requestInfo{}

			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rw.status),
				zap.String("trace_id", rw.Header().Get(TraceHeader)),
				zap.Duration("duration", time.Since(start)),
			}
			if result := rw.Header().Get(ResultHeader); result != "" {
				fields = append(fields, zap.String("result", result))
			}
			if info.clientID != "" {
				fields = append(fields, zap.String("client_id", info.clientID))
			}
			if rw.status >= http.StatusInternalServerError {
				logger.Warn("http_request", fields...)
				return
			}
			logger.Info("http_request", fields...)
		})
	}
}

func recordClient(ctx context.Context, clientID string) {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.clientID = clientID
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	return sr.ResponseWriter.Write(b)
}
