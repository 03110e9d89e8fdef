// Package checkpoint persists the campaign cursor and the daily detail quota.
package checkpoint

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aluiziolira/steamfetch/snapshot"
)

// Store owns one progress file. Mutators only change memory; callers Save when
// the change must survive a crash.
type Store struct {
	path       string
	dailyLimit int
	now        func() time.Time

	mu    sync.Mutex
	state ProgressState
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now, which decides the daily reset.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns a store for path with the given daily detail allowance.
func NewStore(path string, dailyLimit int, opts ...Option) *Store {
	s := &Store{
		path:       path,
		dailyLimit: dailyLimit,
		now:        time.Now,
		state:      defaultState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the progress file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the progress file. A missing or unreadable record starts from
// defaults and is written back immediately. The daily counter is reset when the
// stored day is not today.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Info("no progress record, starting fresh", slog.String("path", s.path))
		s.replace(defaultState())
	case err != nil:
		return fmt.Errorf("read progress: %w", err)
	default:
		state, migrated, decodeErr := decodeState(data)
		if decodeErr != nil {
			slog.Warn("progress record unreadable, starting fresh",
				slog.String("path", s.path),
				slog.Any("error", decodeErr),
			)
			state = defaultState()
		} else if migrated {
			slog.Info("progress record migrated", slog.Int("version", CurrentVersion))
		}
		s.replace(state)
	}

	s.ShouldResetDaily()
	st := s.State()
	slog.Info("progress loaded",
		slog.Int("last_page", st.LastPage),
		slog.Int("last_detail_index", st.LastDetailIndex),
		slog.Int("daily_details", st.DailyDetailsCount),
		slog.String("day", st.LastDailyReset),
	)
	return s.Save()
}

// Save writes the record atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	s.state.LastUpdated = s.now().UTC()
	state := s.state
	s.mu.Unlock()

	if err := snapshot.WriteJSONAtomic(s.path, state); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// ShouldResetDaily zeroes the daily counter when the stored day differs from
// today and reports whether it did.
func (s *Store) ShouldResetDaily() bool {
	today := dateKey(s.now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.LastDailyReset == today {
		return false
	}
	s.state.LastDailyReset = today
	s.state.DailyDetailsCount = 0
	return true
}

// CanFetchMoreDetails reports whether today's allowance is not yet used up.
func (s *Store) CanFetchMoreDetails() bool {
	return s.RemainingQuota() > 0
}

// RemainingQuota is the number of detail fetches left today.
func (s *Store) RemainingQuota() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(s.dailyLimit-s.state.DailyDetailsCount, 0)
}

// DailyLimit returns the configured allowance.
func (s *Store) DailyLimit() int {
	return s.dailyLimit
}

// UpdatePageProgress moves the page cursor forward. Lower values are ignored.
func (s *Store) UpdatePageProgress(page int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page > s.state.LastPage {
		s.state.LastPage = page
	}
}

// UpdateDetailProgress sets the detail cursor. It wraps, so it is not monotonic.
func (s *Store) UpdateDetailProgress(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.LastDetailIndex = max(index, 0)
}

// IncrementDailyDetails counts one successful detail fetch.
func (s *Store) IncrementDailyDetails() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.DailyDetailsCount++
}

// UpdateTotalGames records the collection size.
func (s *Store) UpdateTotalGames(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TotalGames = n
}

// UpdateTotalDetails records the number of stored details.
func (s *Store) UpdateTotalDetails(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.TotalDetails = n
}

// Reset clears all cursors and counters.
func (s *Store) Reset() {
	s.replace(defaultState())
	s.ShouldResetDaily()
}

// State returns a copy of the current record.
func (s *Store) State() ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Store) replace(state ProgressState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}
