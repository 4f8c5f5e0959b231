// Package faulttolerance guards calls to upstream nodes with a retry policy
// and a circuit breaker.
package faulttolerance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig holds configuration for retry mechanisms
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts, the first one included
	BaseDelay   time.Duration // Delay before the second attempt
	MaxDelay    time.Duration // Upper bound for a single delay
	Multiplier  float64       // Exponential backoff factor
	JitterRange float64       // Jitter range (0.0 to 1.0)
	Name        string        // Name for logging

	// Retryable decides whether err is worth another attempt. Nil retries
	// everything except context cancellation.
	Retryable func(err error) bool
}

// DefaultRetryConfig returns the policy used for JSON-RPC calls.
func DefaultRetryConfig(name string) RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    2 * time.Second,
		Multiplier:  2.0,
		JitterRange: 0.1,
		Name:        name,
	}
}

// Retryer runs an operation until it succeeds, fails permanently or the
// attempts are used up.
type Retryer struct {
	config RetryConfig
	logger logrus.FieldLogger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewRetryer(config RetryConfig, logger logrus.FieldLogger) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 200 * time.Millisecond
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}
	if config.Multiplier <= 1.0 {
		config.Multiplier = 2.0
	}
	if config.JitterRange < 0 || config.JitterRange > 1.0 {
		config.JitterRange = 0.1
	}
	if config.Name == "" {
		config.Name = "retry"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Retryer{config: config, logger: logger, sleep: sleepContext}
}

// Execute calls fn with retries. The returned error wraps the last failure.
func (r *Retryer) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				r.logger.Debugf("[%s] succeeded on attempt %d", r.config.Name, attempt)
			}
			return nil
		}
		lastErr = err

		if !r.retryable(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		r.logger.Warnf("[%s] attempt %d failed: %v, retrying in %v", r.config.Name, attempt, err, delay)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%s: %d attempts failed: %w", r.config.Name, r.config.MaxAttempts, lastErr)
}

// ExecuteWithCircuitBreaker runs every attempt through cb. An open breaker
// stops the retries at once.
func (r *Retryer) ExecuteWithCircuitBreaker(ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) error) error {
	return r.Execute(ctx, func(ctx context.Context) error {
		return cb.Execute(ctx, fn)
	})
}

func (r *Retryer) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) {
		return false
	}
	if r.config.Retryable == nil {
		return true
	}
	return r.config.Retryable(err)
}

// delay is baseDelay * multiplier^(attempt-1), capped and jittered.
func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.JitterRange > 0 {
		d += (rand.Float64()*2 - 1) * r.config.JitterRange * d
	}
	if d < float64(r.config.BaseDelay) {
		d = float64(r.config.BaseDelay)
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
