// Package snapshot persists the published data files the UI consumes.
package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aluiziolira/steamfetch/models"
)

// Layout names the files of one bundle inside the data directory.
type Layout struct {
	List     string
	Details  string
	Index    string
	Metadata string
}

var (
	// DailyLayout is written by the incremental campaign.
	DailyLayout = Layout{
		List:     "steamspy-games.json",
		Details:  "game-details.json",
		Index:    "search-index.json",
		Metadata: "metadata.json",
	}
	// PopularLayout is written by the popular campaign.
	PopularLayout = Layout{
		List:     "popular-games.json",
		Details:  "game-details.json",
		Index:    "search-index.json",
		Metadata: "metadata.json",
	}
)

// Bundle is one complete published state of the dataset.
type Bundle struct {
	Summaries []models.GameSummary
	Details   []models.GameDetail
	Index     []models.SearchEntry
	Metadata  models.Metadata
}

// Finalize stamps the metadata with a fresh release id, the write time and the counts.
func (b *Bundle) Finalize(now time.Time) {
	if b.Summaries == nil {
		b.Summaries = []models.GameSummary{}
	}
	if b.Details == nil {
		b.Details = []models.GameDetail{}
	}
	if b.Index == nil {
		b.Index = []models.SearchEntry{}
	}
	b.Metadata.ReleaseID = uuid.NewString()
	b.Metadata.LastUpdated = now
	b.Metadata.TotalGames = len(b.Summaries)
	b.Metadata.TotalDetails = len(b.Details)
}

// Writer persists bundles.
type Writer interface {
	WriteBundle(ctx context.Context, b *Bundle) error
	Close() error
}
