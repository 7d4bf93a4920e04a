package resilience

import (
	"context"

	"github.com/rs/zerolog"
)

// Recorder receives call outcomes and breaker transitions for one named
// dependency. Implemented by the metrics package; a nil Recorder disables
// recording.
type Recorder interface {
	RecordCall(dependency, outcome string)
	RecordState(dependency string, state State)
}

// ClientStats merges the limiter counters and breaker snapshot for one
// dependency.
type ClientStats struct {
	Dependency  string           `json:"dependency"`
	RateLimiter RateLimiterStats `json:"rate_limiter"`
	Breaker     BreakerSnapshot  `json:"circuit_breaker"`
}

// Client composes the circuit breaker and rate limiter protecting one
// external dependency. The breaker gates the call; the rate-limited,
// retrying call runs inside it, so breaker accounting sees the final
// outcome after retries.
type Client struct {
	name    string
	limiter *RateLimiter
	breaker *CircuitBreaker
	rec     Recorder
	log     zerolog.Logger
}

func NewClient(name string, limiter *RateLimiter, breaker *CircuitBreaker, rec Recorder, log zerolog.Logger) *Client {
	c := &Client{
		name:    name,
		limiter: limiter,
		breaker: breaker,
		rec:     rec,
		log:     log.With().Str("dependency", name).Logger(),
	}
	breaker.OnStateChange(func(from, to State) {
		c.log.Warn().Str("from", string(from)).Str("to", string(to)).Msg("circuit breaker state change")
		if c.rec != nil {
			c.rec.RecordState(c.name, to)
		}
	})
	return c
}

func (c *Client) Name() string { return c.name }

func (c *Client) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		return c.limiter.Do(ctx, fn)
	})
	if c.rec != nil {
		c.rec.RecordCall(c.name, outcome(err))
	}
	return err
}

func (c *Client) Stats() ClientStats {
	return ClientStats{
		Dependency:  c.name,
		RateLimiter: c.limiter.Stats(),
		Breaker:     c.breaker.Snapshot(),
	}
}

// Reset clears breaker state and limiter counters.
func (c *Client) Reset() {
	c.breaker.Reset()
	c.limiter.ResetStats()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case err == ErrCircuitOpen:
		return "rejected"
	default:
		return "failure"
	}
}
