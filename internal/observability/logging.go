// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// CorrelationID is the context key carrying the per-request correlation ID.
const CorrelationID LogContextKey = "correlation_id"

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.New().String()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// CascadeLogger provides structured logging for cascade deletion runs.
type CascadeLogger struct {
	entity string
	logger *Logger
}

// NewCascadeLogger creates a CascadeLogger for the given entity type
// ("flat" or "user").
func NewCascadeLogger(entity string) *CascadeLogger {
	return &CascadeLogger{entity: entity, logger: GlobalLogger}
}

// LogStep logs a completed cascade step.
func (l *CascadeLogger) LogStep(ctx context.Context, step string, fields map[string]any) {
	attrs := []any{
		slog.String("entity", l.entity),
		slog.String("step", step),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "cascade step", attrs...)
}

// LogStepFailure logs a non-fatal cascade step failure.
func (l *CascadeLogger) LogStepFailure(ctx context.Context, step string, err error) {
	l.logger.WarnContext(ctx, "cascade step failed",
		slog.String("entity", l.entity),
		slog.String("step", step),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}

// LogRevertFailure logs the fatal case where the compensating revert of a soft
// delete failed, leaving the record in an ambiguous state.
func (l *CascadeLogger) LogRevertFailure(ctx context.Context, id uint, err error) {
	l.logger.ErrorContext(ctx, "CONSISTENCY: soft-delete revert failed, record left ambiguous",
		slog.String("entity", l.entity),
		slog.Uint64("id", uint64(id)),
		slog.String("error", err.Error()),
		slog.String("correlation_id", ExtractCorrelationID(ctx)),
	)
}
