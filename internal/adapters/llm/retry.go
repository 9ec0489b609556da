package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/PabloGalante/coopleo-agent/internal/domain"
	"github.com/PabloGalante/coopleo-agent/internal/observability"
)

// RetryPolicy bounds every model interaction: client construction and each completion.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	AttemptTimeout  time.Duration // 0 = no per-attempt deadline
}

// DefaultRetryPolicy allows 3 attempts starting 2s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 2 * time.Second,
		MaxInterval:     8 * time.Second,
		Multiplier:      2,
		AttemptTimeout:  30 * time.Second,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0
	return b
}

// Retry runs op until it succeeds, the attempt budget is spent or ctx ends.
// Exhaustion is reported as domain.ErrModelUnavailable wrapping the last error.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	stage := observability.StageFromContext(ctx)
	log := observability.LoggerFromContext(ctx)

	attempts := 0
	res, err := backoff.Retry(ctx, func() (T, error) {
		attempts++

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		defer cancel()

		v, err := op(attemptCtx)
		if err == nil {
			return v, nil
		}

		observability.ModelAttemptFailures.WithLabelValues(stage).Inc()
		log.Warn("model attempt failed",
			"attempt", attempts,
			"max_attempts", maxAttempts,
			"error", err)

		if ctx.Err() != nil {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(p.backOff()),
		backoff.WithMaxTries(uint(maxAttempts)),
	)
	if err != nil {
		log.Error("model unavailable", "attempts", attempts, "error", err)
		return res, fmt.Errorf("%w after %d attempt(s): %w", domain.ErrModelUnavailable, attempts, err)
	}

	if attempts > 1 {
		log.Info("model call recovered", "attempts", attempts)
	}
	return res, nil
}

// RetryClient wraps an LLMClient with the retry policy.
type RetryClient struct {
	next   domain.LLMClient
	policy RetryPolicy
}

func NewRetryClient(next domain.LLMClient, policy RetryPolicy) *RetryClient {
	return &RetryClient{next: next, policy: policy}
}

// Complete implements domain.LLMClient.
func (c *RetryClient) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	stage := observability.StageFromContext(ctx)

	text, err := Retry(ctx, c.policy, func(ctx context.Context) (string, error) {
		return c.next.Complete(ctx, prompt)
	})
	if err != nil {
		observability.ModelCalls.WithLabelValues(stage, "error").Inc()
		return "", err
	}

	observability.ModelCalls.WithLabelValues(stage, "ok").Inc()
	return text, nil
}

// Factory constructs a provider client.
type Factory func(ctx context.Context) (domain.LLMClient, error)

// Connect builds the provider client under the retry policy and wraps it in a
// RetryClient. On error the caller should run without a client so requests
// fail fast instead of calling a half-initialized one.
func Connect(ctx context.Context, factory Factory, policy RetryPolicy) (domain.LLMClient, error) {
	client, err := Retry(observability.WithStage(ctx, "init"), policy, func(ctx context.Context) (domain.LLMClient, error) {
		return factory(ctx)
	})
	if err != nil {
		return nil, err
	}
	return NewRetryClient(client, policy), nil
}
