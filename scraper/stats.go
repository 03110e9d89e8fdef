package scraper

import (
	"sync"
	"sync/atomic"

	"github.com/aluiziolira/steamfetch/models"
)

// Stats counts requests issued by one controller. Each campaign owns its own
// instance so concurrent campaigns never share counters.
type Stats struct {
	requests atomic.Int64
	failures atomic.Int64
	retries  atomic.Int64

	mu     sync.Mutex
	byKind map[Kind]int
	failed []string
}

func (s *Stats) recordRequest() {
	s.requests.Add(1)
}

func (s *Stats) recordFailure(kind Kind) {
	s.failures.Add(1)
	s.mu.Lock()
	if s.byKind == nil {
		s.byKind = make(map[Kind]int)
	}
	s.byKind[kind]++
	s.mu.Unlock()
}

func (s *Stats) recordRetry() {
	s.retries.Add(1)
}

func (s *Stats) recordExhausted(target string) {
	s.mu.Lock()
	s.failed = append(s.failed, target)
	s.mu.Unlock()
}

// Requests returns the number of attempts issued.
func (s *Stats) Requests() int64 {
	return s.requests.Load()
}

// Failures returns the number of failed attempts.
func (s *Stats) Failures() int64 {
	return s.failures.Load()
}

// Retries returns the number of retries scheduled.
func (s *Stats) Retries() int64 {
	return s.retries.Load()
}

// SuccessRate is the share of attempts that succeeded, in [0, 1].
func (s *Stats) SuccessRate() float64 {
	requests := s.Requests()
	if requests == 0 {
		return 0
	}
	return float64(requests-s.Failures()) / float64(requests)
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() models.FetchStats {
	return models.FetchStats{
		Requests:    s.Requests(),
		Failures:    s.Failures(),
		Retries:     s.Retries(),
		SuccessRate: s.SuccessRate(),
	}
}

// FailuresByKind copies the per-kind failure counts.
func (s *Stats) FailuresByKind() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.byKind))
	for k, v := range s.byKind {
		out[string(k)] = v
	}
	return out
}

// ExhaustedTargets lists targets that failed every attempt.
func (s *Stats) ExhaustedTargets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failed))
	copy(out, s.failed)
	return out
}
