package observability

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/orderhub/api/internal/platform/requestctx"
)

const defaultLogLevel = "info"

// NewLogger constructs a production-ready zap logger emitting structured JSON.
func NewLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))))); err != nil {
		// Fallback to default level when env var is unset or invalid.
		_ = level.UnmarshalText([]byte(defaultLogLevel))
	}

	encoderCfg := zapcore.EncoderConfig{
		MessageKey: "message",
		TimeKey:    "timestamp",
		LevelKey:   "severity",
		EncodeTime: zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(strings.ToUpper(level.String()))
		},
		CallerKey:     "caller",
		StacktraceKey: "stacktrace",
	}

	cfg := zap.Config{
		Level:             level,
		Encoding:          "json",
		EncoderConfig:     encoderCfg,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     false,
		DisableStacktrace: true,
	}

	return cfg.Build()
}

// WithLogger injects the logger into the provided context.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// FromContext retrieves the logger from context, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// EventLogger adapts zap to the event/fields callback signature the services accept.
func EventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		zapFields := make([]zap.Field, 0, len(fields)+1)
		for key, value := range fields {
			zapFields = append(zapFields, zap.Any(key, value))
		}
		if actor := requestctx.Actor(ctx); actor != "" {
			zapFields = append(zapFields, zap.String("actorId", actor))
		}
		requestLogger := requestctx.Logger(ctx)
		if requestLogger == requestctx.NoopLogger() {
			requestLogger = logger
		}
		requestLogger.Info(event, zapFields...)
	}
}

// WarnfAdapter adapts zap to the Warnf-style interface expected by the history service.
type WarnfAdapter struct {
	logger *zap.SugaredLogger
}

// NewWarnfAdapter creates a WarnfAdapter backed by the supplied logger.
func NewWarnfAdapter(logger *zap.Logger) WarnfAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return WarnfAdapter{logger: logger.Sugar()}
}

// Warnf implements the printf-style warning hook.
func (a WarnfAdapter) Warnf(format string, args ...any) {
	a.logger.Warnf(format, args...)
}
