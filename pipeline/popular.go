package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aluiziolira/steamfetch/config"
	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/parser"
	"github.com/aluiziolira/steamfetch/scraper"
	"github.com/aluiziolira/steamfetch/search"
	"github.com/aluiziolira/steamfetch/snapshot"
)

const (
	popularVersion = "1.1.0"
	perTermLimit   = 10
)

// PopularTerms are the storefront search terms used when the top list is unavailable.
var PopularTerms = []string{"action", "rpg", "strategy", "simulation", "sports"}

// ErrNoSource means every popular source failed or returned nothing.
var ErrNoSource = errors.New("no popular source returned data")

type popularSource struct {
	name  string
	fetch func(ctx context.Context) ([]models.GameSummary, error)
}

// Popular publishes the currently popular games with fresh details for the top entries.
type Popular struct {
	runner
}

// NewPopular wires a popular campaign. store must use snapshot.PopularLayout.
func NewPopular(cfg *config.Config, controller *scraper.Controller, store *snapshot.FileStore, opts ...Option) *Popular {
	return &Popular{runner: newRunner(cfg, controller, store, opts)}
}

// Run tries each source in order and keeps the first non-empty list.
func (p *Popular) Run(ctx context.Context) (*models.RunResult, error) {
	result := &models.RunResult{
		Mode:       ModePopular,
		StartTime:  p.now(),
		DailyLimit: p.cfg.PopularDetailsLimit,
	}
	defer p.finish(result)

	sources := []popularSource{
		{name: "SteamSpy top100in2weeks", fetch: p.fromTopList},
		{name: "Steam storesearch", fetch: p.fromStoreSearch},
		{name: "Steam search page", fetch: p.fromSearchPage},
	}
	var (
		rows   []models.GameSummary
		source string
	)
	for _, src := range sources {
		found, err := src.fetch(ctx)
		if err != nil && fatal(ctx, err) {
			return result, err
		}
		if err != nil || len(found) == 0 {
			slog.Warn("popular source unavailable", slog.String("source", src.name), slog.Any("error", err))
			continue
		}
		rows, source = found, src.name
		break
	}
	if len(rows) == 0 {
		return result, ErrNoSource
	}
	slog.Info("popular list fetched", slog.String("source", source), slog.Int("games", len(rows)))

	existing, err := p.store.Load()
	if err != nil {
		return result, err
	}
	coll := NewCollection(nil, existing.Details)
	result.NewGames = coll.MergeSummaries(rows)
	result.PagesFetched = 1

	if err := p.fetchDetails(ctx, coll, result); err != nil && ctx.Err() == nil {
		return result, err
	}

	stop := "source: " + source
	if ctx.Err() != nil {
		stop = StopCanceled
	}
	result.StopReason = stop
	result.TotalGames = coll.Len()
	result.TotalDetails = len(coll.Details())
	result.DailyDetails = result.DetailsFetched
	result.ValidationDrops = coll.ValidationDrops()

	bundle := &snapshot.Bundle{
		Summaries: coll.Summaries(),
		Details:   coll.Details(),
		Index:     search.BuildIndex(coll.Summaries(), coll.Details()),
		Metadata: models.Metadata{
			Version:      popularVersion,
			DataSource:   source,
			Mode:         ModePopular,
			StopReason:   stop,
			RequestStats: p.controller.Stats().Snapshot(),
		},
	}
	bundle.Finalize(p.now())
	if err := p.write(ctx, bundle); err != nil {
		return result, err
	}
	logStats("popular campaign finished", p.controller.Stats())
	return result, ctx.Err()
}

func (p *Popular) fromTopList(ctx context.Context) ([]models.GameSummary, error) {
	body, err := p.controller.Do(ctx, p.endpoints.TopList())
	if err != nil {
		return nil, err
	}
	return parser.ParseTopList(body, p.cfg.PopularLimit, p.now())
}

func (p *Popular) fromStoreSearch(ctx context.Context) ([]models.GameSummary, error) {
	return p.perTerm(ctx, func(term string) ([]models.GameSummary, error) {
		body, err := p.controller.Do(ctx, p.endpoints.StoreSearch(term))
		if err != nil {
			return nil, err
		}
		return parser.ParseStoreSearch(body, perTermLimit, p.now())
	})
}

func (p *Popular) fromSearchPage(ctx context.Context) ([]models.GameSummary, error) {
	return p.perTerm(ctx, func(term string) ([]models.GameSummary, error) {
		body, err := p.controller.Do(ctx, p.endpoints.SearchPage(term))
		if err != nil {
			return nil, err
		}
		return parser.ParseSearchPage(body, perTermLimit, p.now())
	})
}

// perTerm merges results of fetch over PopularTerms up to PopularLimit. A failed
// term is skipped; the last error is returned only when nothing was found.
func (p *Popular) perTerm(ctx context.Context, fetch func(term string) ([]models.GameSummary, error)) ([]models.GameSummary, error) {
	var (
		out     []models.GameSummary
		seen    = make(map[string]struct{})
		lastErr error
	)
	for i, term := range PopularTerms {
		if len(out) >= p.cfg.PopularLimit {
			break
		}
		if i > 0 {
			if err := p.pause(ctx, p.cfg.RequestDelay); err != nil {
				return nil, err
			}
		}
		rows, err := fetch(term)
		if err != nil {
			if fatal(ctx, err) {
				return nil, err
			}
			lastErr = fmt.Errorf("term %q: %w", term, err)
			continue
		}
		for _, row := range rows {
			if _, dup := seen[row.SteamID]; dup {
				continue
			}
			seen[row.SteamID] = struct{}{}
			out = append(out, row)
		}
	}
	if len(out) > p.cfg.PopularLimit {
		out = out[:p.cfg.PopularLimit]
	}
	if len(out) == 0 {
		return nil, lastErr
	}
	return out, nil
}

// fetchDetails refreshes details for the first PopularDetailsLimit games in
// batches of BatchSize, pausing between batches.
func (p *Popular) fetchDetails(ctx context.Context, coll *Collection, result *models.RunResult) error {
	ids := make([]string, 0, p.cfg.PopularDetailsLimit)
	for _, s := range coll.Summaries() {
		if len(ids) == p.cfg.PopularDetailsLimit {
			break
		}
		ids = append(ids, s.SteamID)
	}

	size := max(p.cfg.BatchSize, 1)
	for start := 0; start < len(ids); start += size {
		if start > 0 {
			if err := p.pause(ctx, p.cfg.BatchPause); err != nil {
				return err
			}
		}
		end := min(start+size, len(ids))
		for _, id := range ids[start:end] {
			body, err := p.controller.Do(ctx, p.endpoints.AppDetails(id))
			if err != nil {
				if fatal(ctx, err) {
					return err
				}
				result.DetailsFailed++
				p.metrics.IncDetails("failed")
				slog.Warn("detail skipped", slog.String("steam_id", id), slog.Any("error", err))
				continue
			}
			detail, err := parser.ParseAppDetails(id, body, p.now())
			switch {
			case errors.Is(err, parser.ErrNotListed):
				result.DetailsSkipped++
				p.metrics.IncDetails("not_listed")
			case err != nil:
				result.DetailsFailed++
				p.metrics.IncDetails("failed")
				slog.Warn("detail unreadable", slog.String("steam_id", id), slog.Any("error", err))
			case coll.UpsertDetail(*detail):
				result.DetailsFetched++
				p.metrics.IncDetails("fetched")
			default:
				result.DetailsFailed++
				p.metrics.IncDetails("invalid")
			}
		}
		slog.Info("popular detail batch done",
			slog.Int("batch_end", end),
			slog.Int("of", len(ids)),
		)
	}
	return nil
}
