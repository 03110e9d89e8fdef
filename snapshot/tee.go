package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrMirror marks a failed mirror write; the primary files were written.
var ErrMirror = errors.New("snapshot mirror")

// Tee writes every bundle to a primary store and then to each mirror.
type Tee struct {
	primary Writer
	mirrors []Writer
	mu      sync.Mutex
}

// NewTee builds a writer fanning out to primary and mirrors, in order.
func NewTee(primary Writer, mirrors ...Writer) *Tee {
	return &Tee{primary: primary, mirrors: mirrors}
}

// WriteBundle stops at the first primary failure; mirror failures are collected.
func (t *Tee) WriteBundle(ctx context.Context, b *Bundle) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.primary.WriteBundle(ctx, b); err != nil {
		return fmt.Errorf("primary write failed: %w", err)
	}

	var errs []error
	for i, m := range t.mirrors {
		if err := m.WriteBundle(ctx, b); err != nil {
			errs = append(errs, fmt.Errorf("%w %d write failed: %w", ErrMirror, i, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes the primary and every mirror.
func (t *Tee) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	if err := t.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close failed: %w", err))
	}
	for i, m := range t.mirrors {
		if err := m.Close(); err != nil {
			errs = append(errs, fmt.Errorf("mirror %d close failed: %w", i, err))
		}
	}
	return errors.Join(errs...)
}
