package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiterConfig tunes the outbound call pacing and retry behavior for
// one external dependency.
type RateLimiterConfig struct {
	RequestsPerSecond float64
	RetryAttempts     int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 1
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// RateLimiterStats is a point-in-time snapshot of limiter counters.
type RateLimiterStats struct {
	TotalCalls       int64   `json:"total_calls"`
	SuccessfulCalls  int64   `json:"successful_calls"`
	RateLimitedCalls int64   `json:"rate_limited_calls"`
	FailedCalls      int64   `json:"failed_calls"`
	AverageWaitMs    float64 `json:"average_wait_ms"`
}

// RateLimiter spaces calls at least 1/RequestsPerSecond apart and retries
// failed calls with exponential backoff. Safe for concurrent use.
type RateLimiter struct {
	cfg RateLimiterConfig

	mu        sync.Mutex
	lastCall  time.Time
	totalWait time.Duration
	stats     RateLimiterStats

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg.withDefaults(), sleep: sleepCtx}
}

// Do executes fn, waiting first if the previous permitted call was less than
// the minimum interval ago. On failure fn is retried up to RetryAttempts
// times with delay min(BaseDelay*2^attempt, MaxDelay); the last error is
// returned.
func (rl *RateLimiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < rl.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			if err := rl.sleep(ctx, rl.backoff(attempt)); err != nil {
				return err
			}
		}
		if err := rl.wait(ctx); err != nil {
			return err
		}

		err := fn(ctx)

		rl.mu.Lock()
		if err == nil {
			rl.stats.SuccessfulCalls++
		} else {
			rl.stats.FailedCalls++
		}
		rl.mu.Unlock()

		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

// wait enforces the minimum inter-call interval and records wait accounting.
func (rl *RateLimiter) wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	minInterval := time.Duration(float64(time.Second) / rl.cfg.RequestsPerSecond)
	var pause time.Duration
	if !rl.lastCall.IsZero() {
		if elapsed := now.Sub(rl.lastCall); elapsed < minInterval {
			pause = minInterval - elapsed
		}
	}
	rl.stats.TotalCalls++
	if pause > 0 {
		rl.stats.RateLimitedCalls++
		rl.totalWait += pause
	}
	rl.stats.AverageWaitMs = float64(rl.totalWait.Milliseconds()) / float64(rl.stats.TotalCalls)
	rl.lastCall = now.Add(pause)
	rl.mu.Unlock()

	if pause > 0 {
		return rl.sleep(ctx, pause)
	}
	return nil
}

func (rl *RateLimiter) backoff(attempt int) time.Duration {
	d := rl.cfg.BaseDelay << uint(attempt)
	if d > rl.cfg.MaxDelay || d <= 0 {
		d = rl.cfg.MaxDelay
	}
	return d
}

func (rl *RateLimiter) Stats() RateLimiterStats {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.stats
}

func (rl *RateLimiter) ResetStats() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.stats = RateLimiterStats{}
	rl.totalWait = 0
	rl.lastCall = time.Time{}
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
