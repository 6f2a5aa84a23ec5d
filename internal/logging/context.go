package logging

import (
	"context"
	"log/slog"

	"slackscribe/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCorrelationID is the standardized key for per-request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldSourceID identifies the upstream chat event being processed.
	FieldSourceID = "source_id"
	// FieldStage names the pipeline stage emitting the record.
	FieldStage = "stage"
	// FieldAssetIndex is the discovery index of the audio asset in flight.
	FieldAssetIndex = "asset_index"
	// FieldFingerprint is the ledger fingerprint of the event.
	FieldFingerprint = "fingerprint"
	// FieldEventType tags a record with a stable machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorHint carries an operator-facing next step for warnings and errors.
	FieldErrorHint = "error_hint"
	// FieldErrorKind carries services.Kind of the failure.
	FieldErrorKind = "error_kind"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	if id, ok := services.SourceIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldSourceID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if idx, ok := services.AssetIndexFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldAssetIndex, idx))
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
	return logger.With(Args(fields...)...)
}
