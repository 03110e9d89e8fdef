package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/aluiziolira/steamfetch/models"
)

// ParseSearchPage extracts result rows from the storefront HTML search page.
// Bundles and packages carry no app id and are skipped.
func ParseSearchPage(body []byte, limit int, now time.Time) ([]models.GameSummary, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	var out []models.GameSummary
	seen := make(map[string]struct{})
	doc.Find("#search_resultsRows a.search_result_row").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}
		raw, ok := row.Attr("data-ds-appid")
		if !ok {
			return true
		}
		// Multi-app rows list several ids; the first is the base game.
		id := strings.TrimSpace(strings.Split(raw, ",")[0])
		if _, err := strconv.ParseInt(id, 10, 64); err != nil {
			return true
		}
		if _, dup := seen[id]; dup {
			return true
		}
		seen[id] = struct{}{}

		name := NormalizeName(row.Find(".title").First().Text())
		if name == "" {
			name = "Game " + id
		}
		summary := models.GameSummary{
			SteamID:     id,
			Name:        name,
			Developer:   unknownDeveloper,
			Publisher:   unknownPublisher,
			Tags:        []string{},
			Owners:      unknownOwners,
			LastUpdated: now,
		}
		if final, ok := row.Find("[data-price-final]").First().Attr("data-price-final"); ok {
			if cents, err := strconv.ParseInt(strings.TrimSpace(final), 10, 64); err == nil {
				summary.Price = float64(cents) / 100
			}
		}
		out = append(out, summary)
		return true
	})
	if len(out) == 0 {
		return nil, ErrNoListData
	}
	return out, nil
}
