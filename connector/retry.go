package connector

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

const defaultRetryDelay = 500 * time.Millisecond

// backoff turns cfg into an exponential, capped go-retry backoff.
func (cfg RetryConfig) backoff() retry.Backoff {
	base := cfg.BaseDelay
	if base <= 0 {
		base = defaultRetryDelay
	}

	b := retry.NewExponential(base)
	if cfg.MaxDelay > 0 {
		b = retry.WithCappedDuration(cfg.MaxDelay, b)
	}
	return retry.WithMaxRetries(cfg.MaxRetries, b)
}

// retryConnect calls connectFn until it succeeds, the retries run out or
// ctx is done. The last connect error is returned.
func retryConnect(ctx context.Context, cfg RetryConfig, logger *zap.Logger, connectFn func(context.Context) error) error {
	attempt := 0
	return retry.Do(ctx, cfg.backoff(), func(ctx context.Context) error {
		attempt++
		if err := connectFn(ctx); err != nil {
			logger.Warn("connect attempt failed",
				zap.Int("attempt", attempt),
				zap.Uint64("max_retries", cfg.MaxRetries),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return nil
	})
}
