// Package parser turns raw SteamSpy and Steam Store payloads into models.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/steamfetch/models"
)

var (
	// ErrNoListData is returned for a list page without entries; it ends pagination.
	ErrNoListData = errors.New("list page has no entries")
	// ErrNotListed is returned when the store answers success:false for an app.
	ErrNotListed = errors.New("app not listed in store")
)

const (
	maxTags        = 10
	maxScreenshots = 3
	maxMovies      = 2
	maxCategories  = 8
	maxDLC         = 5

	unknownDeveloper = "未知开发商"
	unknownPublisher = "未知发行商"
	unknownOwners    = "未知"
)

// ValidateSummary ensures a list row carries the fields the snapshot relies on.
func ValidateSummary(s *models.GameSummary) error {
	if s == nil {
		return fmt.Errorf("summary is nil")
	}
	if strings.TrimSpace(s.SteamID) == "" {
		return fmt.Errorf("summary missing steam id")
	}
	for _, r := range s.SteamID {
		if r < '0' || r > '9' {
			return fmt.Errorf("summary has non-numeric steam id %q", s.SteamID)
		}
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("summary missing name for %s", s.SteamID)
	}
	if s.Price < 0 {
		return fmt.Errorf("summary has negative price for %s", s.SteamID)
	}
	return nil
}

// ValidateDetail ensures a detail record can be published.
func ValidateDetail(d *models.GameDetail) error {
	if d == nil {
		return fmt.Errorf("detail is nil")
	}
	if strings.TrimSpace(d.SteamID) == "" {
		return fmt.Errorf("detail missing steam id")
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("detail missing name for %s", d.SteamID)
	}
	return nil
}

// NormalizeName trims and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return orDefault(values[0], fallback)
}

func truncate[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
