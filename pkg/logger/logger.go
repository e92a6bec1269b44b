package logger

import (
	"context"
	"log"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const loggerKey ctxKey = "logger"

var defaultLogger *zap.SugaredLogger

// Run builds the process-wide zap logger for the given level
// ("debug", "info", "warn", "error", "fatal").
func Run(level string) *zap.SugaredLogger {
	lvl := zapcore.InfoLevel
	if err := lvl.Set(level); err != nil {
		log.Printf("logger: unknown level %q, falling back to info", level)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	zapLogger, err := cfg.Build()
	if err != nil {
		log.Fatalln("logger: can't build zap logger:", err)
	}

	defaultLogger = zapLogger.Sugar()
	return defaultLogger
}

// WithLogger puts a request-scoped logger into the context.
func WithLogger(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// Log returns the request-scoped logger or, when the middleware
// didn't run (tests, background jobs), the process-wide one.
func Log(ctx context.Context) *zap.SugaredLogger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zap.SugaredLogger); ok {
			return l
		}
	}
	if defaultLogger != nil {
		return defaultLogger
	}
	defaultLogger = zap.NewNop().Sugar()
	return defaultLogger
}
