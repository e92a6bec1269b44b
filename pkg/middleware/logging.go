package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"forum/pkg/logger"
)

type ctxKey string

const traceIdKey ctxKey = "traceId"

type Logging struct {
	log *zap.SugaredLogger
}

func NewLoggingMiddleware(log *zap.SugaredLogger) *Logging {
	return &Logging{log: log}
}

// SetupTracing tags every request with a trace id.
func (l *Logging) SetupTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), traceIdKey, uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetupLogging puts a request-scoped logger carrying the trace id into
// the context; handlers fetch it with logger.Log(ctx).
func (l *Logging) SetupLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqLogger := l.log
		if traceId, ok := r.Context().Value(traceIdKey).(string); ok {
			reqLogger = l.log.With("trace_id", traceId)
		}
		ctx := logger.WithLogger(r.Context(), reqLogger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccessLog logs one line per handled request.
func (l *Logging) AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Log(r.Context()).Infow("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
			"took", time.Since(start),
		)
	})
}
