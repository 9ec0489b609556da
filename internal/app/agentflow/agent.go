package agentflow

import (
	"context"
	"time"

	"github.com/PabloGalante/coopleo-agent/internal/observability"
)

// Agent is a model-backed step that runs beside the main conversation turn.
type Agent interface {
	Name() string
}

// run executes fn under the agent's stage label, logging start, end and elapsed time.
func run[T any](ctx context.Context, ag Agent, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx = observability.WithStage(ctx, ag.Name())
	log := observability.LoggerFromContext(ctx).With("agent", ag.Name())

	start := time.Now()
	log.Debug("agent run start")

	out, err := fn(ctx)
	if err != nil {
		log.Warn("agent failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return out, err
	}

	log.Debug("agent run end", "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}
