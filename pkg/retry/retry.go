package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var ErrContextCanceled = errors.New("context canceled during retry")

// Config contains retry configuration
type Config struct {
	// MaxRetries is the number of retries after the first attempt (0 = single attempt)
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// JitterFactor in [0,1]; 0.1 means +/-10%
	JitterFactor float64
}

// DefaultConfig returns exponential backoff of 1s, 2s, 4s capped at 10s
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      3,
		InitialInterval: time.Second,
		MaxInterval:     10 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is the function to be retried
type Operation func(ctx context.Context) error

// PermanentError stops the retry loop immediately
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks an error as not retryable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Callback is invoked before each wait
type Callback func(attempt int, err error, next time.Duration)

// Retrier runs operations with exponential backoff
type Retrier struct {
	config *Config
}

// New creates a Retrier, filling zero values with defaults
func New(config *Config) *Retrier {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = time.Second
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 10 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	cfg.JitterFactor = math.Max(0, math.Min(1, cfg.JitterFactor))
	return &Retrier{config: &cfg}
}

// Do executes op until it succeeds, returns a permanent error, or retries run out.
// The returned error is the last error seen, or ErrContextCanceled.
func (r *Retrier) Do(ctx context.Context, op Operation, cb Callback) (int, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return attempt, errors.Join(ErrContextCanceled, lastErr)
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return attempt + 1, nil
		}

		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return attempt + 1, perm.Err
		}

		if attempt == r.config.MaxRetries {
			break
		}

		wait := r.interval(attempt)
		if cb != nil {
			cb(attempt+1, lastErr, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt + 1, errors.Join(ErrContextCanceled, lastErr)
		case <-timer.C:
		}
	}

	return r.config.MaxRetries + 1, lastErr
}

func (r *Retrier) interval(attempt int) time.Duration {
	base := float64(r.config.InitialInterval) * math.Pow(r.config.Multiplier, float64(attempt))
	if base > float64(r.config.MaxInterval) {
		base = float64(r.config.MaxInterval)
	}
	if r.config.JitterFactor > 0 {
		delta := base * r.config.JitterFactor
		base += (rand.Float64()*2 - 1) * delta
	}
	return time.Duration(base)
}

// Do is a convenience wrapper around New(config).Do
func Do(ctx context.Context, config *Config, op Operation) error {
	_, err := New(config).Do(ctx, op, nil)
	return err
}
