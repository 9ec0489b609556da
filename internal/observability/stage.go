package observability

import "context"

const ctxKeyStage ctxKey = "stage"

// WithStage tags ctx with the pipeline stage a model call belongs to
// ("chat", "suggestion", "summary", ...).
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ctxKeyStage, stage)
}

// StageFromContext returns the stage set by WithStage, or "unknown".
func StageFromContext(ctx context.Context) string {
	if stage, ok := ctx.Value(ctxKeyStage).(string); ok && stage != "" {
		return stage
	}
	return "unknown"
}
