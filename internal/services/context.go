package services

import "context"

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	sourceIDKey      contextKey = "source_id"
	stageKey         contextKey = "stage"
	assetIndexKey    contextKey = "asset_index"
)

// WithCorrelationID annotates context with the per-request correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext extracts the correlation identifier if present.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(correlationIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithSourceID annotates context with the upstream event identifier.
func WithSourceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sourceIDKey, id)
}

// SourceIDFromContext returns the upstream event identifier if present.
func SourceIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(sourceIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithStage annotates context with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stageKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithAssetIndex annotates context with the discovery index of the asset in flight.
func WithAssetIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, assetIndexKey, index)
}

// AssetIndexFromContext extracts the asset index if present.
func AssetIndexFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(assetIndexKey).(int)
	return v, ok
}
