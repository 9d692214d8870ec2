package storage

import (
	"context"
	"time"

	"backtest-engine/internal/domain"
)

// RetryConfig bounds the retry loop a RetryingCandleStore runs around
// each underlying read.
type RetryConfig struct {
	MaxRetries   int           // attempts beyond the first; 0 disables retrying
	BaseDelay    time.Duration // first backoff delay, doubled per attempt
	QueryTimeout time.Duration // per-attempt deadline; 0 leaves the caller's context alone
}

// DefaultRetryConfig matches the store-read defaults: a 30s operation
// timeout and three retries starting at half a second.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:   3,
	BaseDelay:    500 * time.Millisecond,
	QueryTimeout: 30 * time.Second,
}

// RetryingCandleStore decorates a CandleStore with per-read timeouts
// and exponential backoff. Only store reads are retried; the decorated
// store's errors are assumed transient (connectivity, timeouts), since
// deterministic failures never originate below this interface.
type RetryingCandleStore struct {
	inner CandleStore
	cfg   RetryConfig
	sleep func(ctx context.Context, d time.Duration) error
}

var _ CandleStore = (*RetryingCandleStore)(nil)

// WithRetry wraps inner in a RetryingCandleStore under cfg.
func WithRetry(inner CandleStore, cfg RetryConfig) *RetryingCandleStore {
	return &RetryingCandleStore{inner: inner, cfg: cfg, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// do runs op with the configured per-attempt timeout, backing off
// exponentially between failed attempts until MaxRetries is exhausted
// or the caller's context is cancelled.
func (s *RetryingCandleStore) do(ctx context.Context, op func(ctx context.Context) error) error {
	delay := s.cfg.BaseDelay
	var err error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if serr := s.sleep(ctx, delay); serr != nil {
				return serr
			}
			delay *= 2
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if s.cfg.QueryTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		}
		err = op(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// GetCandles reads through to the inner store with retries.
func (s *RetryingCandleStore) GetCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) ([]domain.Candle, error) {
	var out []domain.Candle
	err := s.do(ctx, func(ctx context.Context) error {
		candles, err := s.inner.GetCandles(ctx, token, interval, from, to)
		if err != nil {
			return err
		}
		out = candles
		return nil
	})
	return out, err
}

// CountCandles reads through to the inner store with retries.
func (s *RetryingCandleStore) CountCandles(ctx context.Context, token domain.TokenKey, interval domain.Interval, from, to int64) (int64, error) {
	var count int64
	err := s.do(ctx, func(ctx context.Context) error {
		n, err := s.inner.CountCandles(ctx, token, interval, from, to)
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	return count, err
}
