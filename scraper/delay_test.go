package scraper

import (
	"context"
	"testing"
	"time"
)

func TestJitterBounds(t *testing.T) {
	base := 3 * time.Second
	for i := 0; i < 200; i++ {
		got := PacingJitter.Apply(base)
		if got < 1500*time.Millisecond || got > 4500*time.Millisecond {
			t.Fatalf("pacing jitter %v outside [1.5s, 4.5s]", got)
		}
		floored := RetryJitter.Above(60 * time.Second)
		if floored < 60*time.Second || floored > 78*time.Second {
			t.Fatalf("floored jitter %v outside [60s, 78s]", floored)
		}
	}
	if got := RetryJitter.Apply(0); got != 0 {
		t.Fatalf("zero duration jittered to %v", got)
	}
	if got := RetryJitter.Above(-time.Second); got != 0 {
		t.Fatalf("negative floor jittered to %v", got)
	}
}

func TestPacerWaitsOnlyRemainder(t *testing.T) {
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sleeper := &recordingSleeper{}
	pacer := NewPacer(4*time.Second, sleeper)
	pacer.jitter = Jitter{Min: 1, Max: 1}
	pacer.now = func() time.Time { return clock }

	ctx := context.Background()
	if err := pacer.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if len(sleeper.waits) != 0 {
		t.Fatalf("first request should not wait, got %v", sleeper.waits)
	}

	clock = clock.Add(time.Second)
	if err := pacer.Wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if len(sleeper.waits) != 1 || sleeper.waits[0] != 3*time.Second {
		t.Fatalf("waits = %v, want [3s]", sleeper.waits)
	}

	clock = clock.Add(10 * time.Second)
	if err := pacer.Wait(ctx); err != nil {
		t.Fatalf("third wait: %v", err)
	}
	if len(sleeper.waits) != 1 {
		t.Fatalf("gap already elapsed, got waits %v", sleeper.waits)
	}
}

func TestNilPacer(t *testing.T) {
	var pacer *Pacer
	if err := pacer.Wait(context.Background()); err != nil {
		t.Fatalf("nil pacer: %v", err)
	}
}

func TestTimerSleeperCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := TimerSleeper.Sleep(ctx, time.Hour); err == nil {
		t.Fatalf("expected cancellation")
	}
}
