package scraper

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Jitter scales a duration by a uniform random factor in [Min, Max].
type Jitter struct {
	Min float64
	Max float64
}

var (
	// RetryJitter perturbs retry waits.
	RetryJitter = Jitter{Min: 0.7, Max: 1.3}
	// PacingJitter perturbs the gap inserted between requests.
	PacingJitter = Jitter{Min: 0.5, Max: 1.5}
)

// Apply returns d scaled by a random factor in [Min, Max].
func (j Jitter) Apply(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return scale(d, j.Min, j.Max)
}

// Above returns floor scaled by a random factor in [1, Max], so a jittered
// floor never drops below the floor itself.
func (j Jitter) Above(floor time.Duration) time.Duration {
	if floor <= 0 {
		return 0
	}
	high := j.Max
	if high < 1 {
		high = 1
	}
	return scale(floor, 1, high)
}

func scale(d time.Duration, low, high float64) time.Duration {
	if high < low {
		low, high = high, low
	}
	factor := low + rand.Float64()*(high-low)
	return time.Duration(float64(d) * factor)
}

// Sleeper blocks for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f.
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on a real timer.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})

// Pacer enforces a randomized minimum gap between consecutive requests.
// Only the part of the gap not already spent since the previous request is waited.
type Pacer struct {
	base    time.Duration
	jitter  Jitter
	sleeper Sleeper
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewPacer builds a pacer with base gap base.
func NewPacer(base time.Duration, sleeper Sleeper) *Pacer {
	if sleeper == nil {
		sleeper = TimerSleeper
	}
	return &Pacer{
		base:    base,
		jitter:  PacingJitter,
		sleeper: sleeper,
		now:     time.Now,
	}
}

// Wait blocks until the required gap since the previous call has elapsed, then
// stamps the current time as the latest request.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		required := p.jitter.Apply(p.base)
		if remaining := required - p.now().Sub(p.last); remaining > 0 {
			if err := p.sleeper.Sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	p.last = p.now()
	return nil
}
