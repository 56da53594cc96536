package providers

import (
	"context"
	"time"

	"github.com/haasonsaas/toolchat/internal/backoff"
)

// BaseProvider carries the retry policy shared by the concrete providers.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
}

// NewBaseProvider creates a BaseProvider. Non-positive values fall back to
// three attempts and a one second base delay.
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return BaseProvider{
		name:       name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Name returns the provider name.
func (b *BaseProvider) Name() string { return b.name }

// Retry runs op until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Delays grow exponentially from retryDelay.
func (b *BaseProvider) Retry(ctx context.Context, op func() error) error {
	policy := backoff.FromDelay(b.retryDelay)
	return backoff.Do(ctx, policy, b.maxRetries,
		func(err error) bool { return ClassifyError(err).IsRetryable() },
		func(int) error { return op() },
	)
}
