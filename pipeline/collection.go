package pipeline

import (
	"maps"
	"sync"

	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/parser"
)

// Collection accumulates summaries and details across pages and runs. Summaries
// are deduplicated by steam id with the first occurrence kept; details are
// upserted by steam id.
type Collection struct {
	summaries []models.GameSummary
	seen      map[string]struct{}

	details   []models.GameDetail
	detailPos map[string]int

	metrics metrics
}

// NewCollection seeds a collection from previously published files.
func NewCollection(summaries []models.GameSummary, details []models.GameDetail) *Collection {
	c := &Collection{
		summaries: make([]models.GameSummary, 0, len(summaries)),
		seen:      make(map[string]struct{}, len(summaries)),
		details:   make([]models.GameDetail, 0, len(details)),
		detailPos: make(map[string]int, len(details)),
		metrics:   newMetrics(),
	}
	c.MergeSummaries(summaries)
	for _, d := range details {
		c.UpsertDetail(d)
	}
	return c
}

// MergeSummaries appends rows whose steam id is new and returns how many were added.
// Merging the same rows twice leaves the collection unchanged.
func (c *Collection) MergeSummaries(rows []models.GameSummary) int {
	added := 0
	for i := range rows {
		row := rows[i]
		if err := parser.ValidateSummary(&row); err != nil {
			c.metrics.addValidation("invalid_summary")
			continue
		}
		if _, ok := c.seen[row.SteamID]; ok {
			c.metrics.addValidation("duplicate_id")
			continue
		}
		c.seen[row.SteamID] = struct{}{}
		row.Name = parser.NormalizeName(row.Name)
		c.summaries = append(c.summaries, row)
		c.metrics.incrementProcessed()
		added++
	}
	return added
}

// UpsertDetail inserts d or overwrites the stored detail with the same steam id.
// It reports false when d fails validation.
func (c *Collection) UpsertDetail(d models.GameDetail) bool {
	if err := parser.ValidateDetail(&d); err != nil {
		c.metrics.addValidation("invalid_detail")
		return false
	}
	if pos, ok := c.detailPos[d.SteamID]; ok {
		c.details[pos] = d
		return true
	}
	c.detailPos[d.SteamID] = len(c.details)
	c.details = append(c.details, d)
	return true
}

// HasDetail reports whether a detail exists for id.
func (c *Collection) HasDetail(id string) bool {
	_, ok := c.detailPos[id]
	return ok
}

// Len returns the number of summaries.
func (c *Collection) Len() int {
	return len(c.summaries)
}

// Summaries returns the summaries in merge order.
func (c *Collection) Summaries() []models.GameSummary {
	return c.summaries
}

// Details returns the details in first-insert order.
func (c *Collection) Details() []models.GameDetail {
	return c.details
}

// ValidationDrops returns rows dropped per reason.
func (c *Collection) ValidationDrops() map[string]int {
	return c.metrics.snapshot().validation
}

// Processed returns the number of summaries accepted.
func (c *Collection) Processed() int64 {
	return c.metrics.snapshot().processed
}

type metrics struct {
	mu         *sync.Mutex
	processed  int64
	validation map[string]int
}

type metricsSnapshot struct {
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		mu:         &sync.Mutex{},
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metricsSnapshot{
		processed:  m.processed,
		validation: maps.Clone(m.validation),
	}
}
