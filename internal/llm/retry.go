package llm

import (
	"context"
	"io"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds the retry loop around a Generator.
type RetryConfig struct {
	Attempts int
	Backoff  time.Duration // doubled after each failed attempt
}

// DefaultRetryConfig returns a short retry budget suited to interactive hints.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Attempts: 3, Backoff: 500 * time.Millisecond}
}

// Retrying retries transient failures of an inner Generator.
type Retrying struct {
	inner  Generator
	config RetryConfig
	logger *zap.Logger
}

// NewRetrying wraps inner. A nil logger discards retry logs.
func NewRetrying(inner Generator, config RetryConfig, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Attempts < 1 {
		config.Attempts = 1
	}
	return &Retrying{inner: inner, config: config, logger: logger}
}

// Generate calls the inner generator until it succeeds, fails permanently,
// or the attempt budget is spent.
func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	backoff := r.config.Backoff
	var lastErr error
	for attempt := 1; attempt <= r.config.Attempts; attempt++ {
		text, err := r.inner.Generate(ctx, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == r.config.Attempts {
			break
		}
		r.logger.Warn("transient generate failure",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", lastErr
}

// Close closes the inner generator when it holds a connection.
func (r *Retrying) Close() error {
	if c, ok := r.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
