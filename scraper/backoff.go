package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/aluiziolira/steamfetch/config"
)

// Fetcher performs exactly one attempt against a target and classifies the outcome.
type Fetcher interface {
	Fetch(ctx context.Context, target Target) ([]byte, error)
	// Rewarm rebuilds trust after a bot challenge, before the next attempt.
	Rewarm(ctx context.Context) error
	Close() error
}

// Policy parameterizes retries. Floors override the exponential wait when larger.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Floors      map[Kind]time.Duration
	Jitter      Jitter
}

// PolicyFromConfig maps the configured attempts, delays and floors.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBackoff,
		MaxDelay:    cfg.RetryBackoffMax,
		Floors: map[Kind]time.Duration{
			KindRateLimited:  cfg.RateLimitFloor,
			KindBotChallenge: cfg.BotFloor(),
			KindTimeout:      cfg.TimeoutFloor,
		},
		Jitter: RetryJitter,
	}
}

// Controller wraps a Fetcher with pacing, bounded retries and adaptive waits.
type Controller struct {
	fetcher Fetcher
	policy  Policy
	pacer   *Pacer
	sleeper Sleeper
	stats   *Stats
	metrics *Metrics
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithSleeper replaces the sleeper used for retry waits.
func WithSleeper(s Sleeper) ControllerOption {
	return func(c *Controller) {
		c.sleeper = s
	}
}

// WithMetrics records attempts on m.
func WithMetrics(m *Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithPacer inserts p's gap before every attempt.
func WithPacer(p *Pacer) ControllerOption {
	return func(c *Controller) {
		c.pacer = p
	}
}

// NewController builds a controller owning fresh Stats.
func NewController(fetcher Fetcher, policy Policy, opts ...ControllerOption) *Controller {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.Jitter == (Jitter{}) {
		policy.Jitter = RetryJitter
	}
	c := &Controller{
		fetcher: fetcher,
		policy:  policy,
		sleeper: TimerSleeper,
		stats:   &Stats{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stats exposes the counters of this controller.
func (c *Controller) Stats() *Stats {
	return c.stats
}

// Do fetches target, retrying classified failures. After the last attempt it
// returns an *ExhaustedError wrapping the final failure.
func (c *Controller) Do(ctx context.Context, target Target) ([]byte, error) {
	var last error
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		c.stats.recordRequest()
		start := time.Now()
		body, err := c.fetcher.Fetch(ctx, target)
		c.metrics.ObserveDuration(time.Since(start))
		if err == nil {
			c.metrics.IncRequest("success")
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		kind := KindOf(err)
		c.stats.recordFailure(kind)
		c.metrics.IncRequest("failure")
		c.metrics.IncError(kind)
		last = err

		if !Retryable(err) {
			return nil, err
		}
		if attempt == c.policy.MaxAttempts-1 {
			break
		}

		wait := c.Wait(kind, attempt)
		slog.Warn("fetch attempt failed",
			slog.String("target", target.Name),
			slog.String("kind", string(kind)),
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", c.policy.MaxAttempts),
			slog.Duration("wait", wait),
			slog.Any("error", err),
		)
		c.stats.recordRetry()
		c.metrics.IncRetries()
		c.metrics.ObserveBackoff(kind, wait)
		if err := c.sleeper.Sleep(ctx, wait); err != nil {
			return nil, err
		}

		if kind == KindBotChallenge {
			if err := c.fetcher.Rewarm(ctx); err != nil {
				slog.Warn("rewarm failed", slog.Any("error", err))
			}
		}
	}

	c.stats.recordExhausted(target.Name)
	return nil, &ExhaustedError{Target: target.Name, Attempts: c.policy.MaxAttempts, Err: last}
}

// Wait computes the pause after failed attempt (0-indexed) classified as kind.
func (c *Controller) Wait(kind Kind, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	exp := c.policy.BaseDelay * time.Duration(1<<attempt)
	if max := c.policy.MaxDelay; max > 0 && (exp > max || exp < 0) {
		exp = max
	}
	wait := c.policy.Jitter.Apply(exp)

	if floor := c.policy.Floors[kind]; floor > 0 {
		if floored := c.policy.Jitter.Above(floor); floored > wait {
			wait = floored
		}
	}
	return wait
}

// Close releases the underlying fetcher.
func (c *Controller) Close() error {
	return c.fetcher.Close()
}
