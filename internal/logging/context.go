package logging

import (
	"context"
	"log/slog"

	"vidmerge/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldRunID identifies the staging run that owns a request's temp files.
	FieldRunID = "run_id"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "request_id"
	// FieldVideoID carries a single video identifier.
	FieldVideoID = "video_id"
	// FieldEventType names the machine-readable event a log line reports.
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries the services.Kind of a failure.
	FieldErrorKind = "error_kind"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if run, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, run))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f)
	}
	return logger.With(args...)
}
