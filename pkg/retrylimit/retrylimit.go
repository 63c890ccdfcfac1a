// Package retrylimit provides adaptive rate limiting and bounded retries for
// clients that talk to flaky upstream services. Any error type works; errors
// that carry an HTTP status code get special treatment.
//
// Example usage:
//
//	lim := retrylimit.NewAdaptiveLimiter(5, 1, 20, 1, 0.5)
//	err := retrylimit.WithRetryConfig(ctx, func(ctx context.Context) error {
//	    return doSomeWork(ctx)
//	}, lim, retrylimit.RetryConfig{MaxAttempts: 3, InitialDelay: 2 * time.Second, Multiplier: 2})
package retrylimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// =============================================================================
// Limiter
// =============================================================================

// AdaptiveLimiter manages a rate limit that adjusts automatically based
// on the outcome of requests. It increases on success and decreases on
// rate-limit style failures. Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.RWMutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	stepDown  float64
	lastError time.Time
}

// NewAdaptiveLimiter creates an AdaptiveLimiter.
//
// Parameters:
//   - initial: starting requests per second
//   - min: minimum allowed rate
//   - max: maximum allowed rate
//   - stepUp: increment on success
//   - stepDown: multiplier applied on failure (e.g., 0.5 to halve)
func NewAdaptiveLimiter(initial, min, max rate.Limit, stepUp rate.Limit, stepDown float64) *AdaptiveLimiter {
	if initial < 1 {
		initial = 1
	}
	if min < 1 {
		min = 1
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(initial, max1(int(initial))),
		minLimit: min,
		maxLimit: max,
		stepUp:   stepUp,
		stepDown: stepDown,
	}
}

// Wait blocks until a token is available or the context is canceled.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success increases the rate after a successful request.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > 10*time.Second {
		a.adjustLimit(a.limiter.Limit() + a.stepUp)
	}
}

// RateLimited reduces the rate after the upstream signalled overload.
func (a *AdaptiveLimiter) RateLimited() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.adjustLimit(rate.Limit(float64(a.limiter.Limit()) * a.stepDown))
}

// CurrentLimit returns the current requests per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) adjustLimit(newLimit rate.Limit) {
	if newLimit > a.maxLimit {
		newLimit = a.maxLimit
	} else if newLimit < a.minLimit {
		newLimit = a.minLimit
	}

	if newLimit != a.limiter.Limit() {
		a.limiter.SetLimit(newLimit)
		a.limiter.SetBurst(max1(int(newLimit)))
	}
}

// =============================================================================
// Errors
// =============================================================================

// HTTPError is implemented by errors that carry an HTTP status code.
type HTTPError interface {
	error
	StatusCode() int
}

// FatalError wraps errors that should stop retries immediately.
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal marks err as non-retryable. A nil err stays nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}

// ErrorClassifier reports whether an error should slow the limiter down.
type ErrorClassifier func(error) bool

// DefaultClassifier returns true for 429 and 5xx responses.
func DefaultClassifier(err error) bool {
	return isRateLimitError(err) || isServerError(err)
}

// ErrAttemptsExhausted is returned (wrapping the last error) once
// MaxAttempts calls have failed.
var ErrAttemptsExhausted = errors.New("max attempts exceeded")

// =============================================================================
// Retry
// =============================================================================

// RetryConfig configures retry behavior.
type RetryConfig struct {
	MaxAttempts     int                          // Maximum number of attempts (0 = 100)
	InitialDelay    time.Duration                // Delay after the first failed attempt
	MaxDelay        time.Duration                // Upper bound for the delay (0 = none)
	Multiplier      float64                      // Delay multiplier for exponential backoff
	Jitter          bool                         // Add up to 25% random jitter
	AttemptTimeout  time.Duration                // Per-attempt deadline (0 = none)
	ErrorClassifier ErrorClassifier              // nil = DefaultClassifier
	OnRetry         func(attempt int, err error) // Called after every failed, retryable attempt
	Logger          *zerolog.Logger              // nil = silent
}

// DefaultRetryConfig returns the configuration used by WithRetry.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     100,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		Jitter:          true,
		ErrorClassifier: DefaultClassifier,
	}
}

// WithRetry executes fn with the default configuration.
func WithRetry(ctx context.Context, fn func(context.Context) error, lim *AdaptiveLimiter) error {
	return WithRetryConfig(ctx, fn, lim, DefaultRetryConfig())
}

// WithRetryConfig executes fn until it succeeds, returns a FatalError, the
// context ends, or MaxAttempts is reached. The delay before attempt n+1 is
// InitialDelay * Multiplier^(n-1); no delay follows the last attempt.
func WithRetryConfig(ctx context.Context, fn func(context.Context) error, lim *AdaptiveLimiter, cfg RetryConfig) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 100
	}
	if cfg.ErrorClassifier == nil {
		cfg.ErrorClassifier = DefaultClassifier
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 1
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return err
			}
		}

		err := runAttempt(ctx, fn, cfg.AttemptTimeout)
		if err == nil {
			if lim != nil {
				lim.Success()
			}
			if attempt > 1 {
				logger.Debug().Int("attempt", attempt).Msg("succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		if cfg.ErrorClassifier(err) && lim != nil {
			lim.RateLimited()
			logger.Warn().Int("attempt", attempt).Float64("rps", lim.CurrentLimit()).Msg("upstream overloaded, slowing down")
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if cfg.Jitter {
			wait = addJitter(delay)
		}
		logger.Warn().Err(err).Int("attempt", attempt).Dur("wait", wait).Msg("attempt failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return fmt.Errorf("%w (%d): %w", ErrAttemptsExhausted, cfg.MaxAttempts, lastErr)
}

// runAttempt races fn against the per-attempt timeout.
func runAttempt(ctx context.Context, fn func(context.Context) error, timeout time.Duration) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(attemptCtx) }()

	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("attempt timed out after %v: %w", timeout, attemptCtx.Err())
	}
}

// =============================================================================
// Helper functions
// =============================================================================

func addJitter(delay time.Duration) time.Duration {
	if delay < 4 {
		return delay
	}
	return delay + time.Duration(rand.Int63n(int64(delay/4)))
}

func isRateLimitError(err error) bool {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode() == http.StatusTooManyRequests
	}
	return false
}

func isServerError(err error) bool {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		code := httpErr.StatusCode()
		return code >= 500 && code < 600
	}
	return false
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
