// Package pipeline drives fetch campaigns: list pagination, detail enrichment
// under the daily quota, and the final snapshot write.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/steamfetch/checkpoint"
	"github.com/aluiziolira/steamfetch/config"
	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/parser"
	"github.com/aluiziolira/steamfetch/scraper"
	"github.com/aluiziolira/steamfetch/search"
	"github.com/aluiziolira/steamfetch/snapshot"
)

// Campaign modes, as written to metadata.
const (
	ModeDaily   = "daily-incremental"
	ModePopular = "popular"
)

// Reasons a run stopped.
const (
	StopQuota      = "quota reached"
	StopMaxPages   = "max pages reached"
	StopNoMoreData = "no more data"
	StopCeiling    = "ceiling reached"
	StopListFailed = "list fetch failed"
	StopCanceled   = "canceled"
)

const (
	dailyVersion    = "1.0.0"
	dailyDataSource = "SteamSpy + Steam Store"

	// DefaultProgressInterval is how often a running campaign logs request counters.
	DefaultProgressInterval = 30 * time.Second
)

var (
	// ErrExhaustedAtFirstPage means the list endpoint could not be reached for the
	// first page of a run, so there is nothing to merge.
	ErrExhaustedAtFirstPage = errors.New("list endpoint unreachable on first page")
)

// Option customizes a campaign.
type Option func(*runner)

// WithSleeper replaces the sleeper used for page and detail pauses.
func WithSleeper(s scraper.Sleeper) Option {
	return func(r *runner) {
		r.sleeper = s
	}
}

// WithMetrics records merged pages and detail results on m.
func WithMetrics(m *scraper.Metrics) Option {
	return func(r *runner) {
		r.metrics = m
	}
}

// WithClock replaces time.Now for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *runner) {
		r.now = now
	}
}

// WithMirrors also writes every bundle to each mirror. Mirror failures are logged.
func WithMirrors(mirrors ...snapshot.Writer) Option {
	return func(r *runner) {
		r.mirrors = append(r.mirrors, mirrors...)
	}
}

// WithProgressInterval sets how often request counters are logged; zero disables it.
func WithProgressInterval(d time.Duration) Option {
	return func(r *runner) {
		r.progressEvery = d
	}
}

// runner holds what both campaign kinds share.
type runner struct {
	cfg           *config.Config
	endpoints     scraper.Endpoints
	controller    *scraper.Controller
	store         *snapshot.FileStore
	mirrors       []snapshot.Writer
	sleeper       scraper.Sleeper
	metrics       *scraper.Metrics
	now           func() time.Time
	progressEvery time.Duration
}

func newRunner(cfg *config.Config, controller *scraper.Controller, store *snapshot.FileStore, opts []Option) runner {
	r := runner{
		cfg:           cfg,
		endpoints:     scraper.EndpointsFromConfig(cfg),
		controller:    controller,
		store:         store,
		sleeper:       scraper.TimerSleeper,
		now:           time.Now,
		progressEvery: DefaultProgressInterval,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// pause sleeps a jittered base; it returns early with ctx's error.
func (r *runner) pause(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return ctx.Err()
	}
	return r.sleeper.Sleep(ctx, scraper.PacingJitter.Apply(base))
}

// write publishes bundle to the file store and mirrors. The write survives
// cancellation of ctx so that an interrupted run still publishes what it merged.
func (r *runner) write(ctx context.Context, bundle *snapshot.Bundle) error {
	tee := snapshot.NewTee(r.store, r.mirrors...)
	err := tee.WriteBundle(context.WithoutCancel(ctx), bundle)
	if errors.Is(err, snapshot.ErrMirror) {
		slog.Warn("snapshot mirror failed", slog.Any("error", err))
		return nil
	}
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// reportProgress logs request counters until the returned stop is called.
func (r *runner) reportProgress(ctx context.Context) (stop func()) {
	if r.progressEvery <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.progressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				logStats("fetch progress", r.controller.Stats())
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (r *runner) finish(result *models.RunResult) {
	stats := r.controller.Stats()
	result.EndTime = r.now()
	result.Stats = stats.Snapshot()
	result.ErrorsByKind = stats.FailuresByKind()
	result.FailedTargets = stats.ExhaustedTargets()
}

func logStats(msg string, stats *scraper.Stats) {
	slog.Info(msg,
		slog.Int64("requests", stats.Requests()),
		slog.Int64("failures", stats.Failures()),
		slog.Int64("retries", stats.Retries()),
		slog.String("success_rate", fmt.Sprintf("%.1f%%", stats.SuccessRate()*100)),
	)
}

// fatal reports errors that must abort a run rather than skip one unit.
func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, scraper.ErrConfiguration)
}

// Campaign is the daily incremental run: resume list pagination from the
// checkpoint, enrich details within the daily quota, publish the snapshot.
type Campaign struct {
	runner
	progress *checkpoint.Store
}

// NewCampaign wires a daily campaign. store must use snapshot.DailyLayout.
func NewCampaign(cfg *config.Config, controller *scraper.Controller, progress *checkpoint.Store, store *snapshot.FileStore, opts ...Option) *Campaign {
	return &Campaign{
		runner:   newRunner(cfg, controller, store, opts),
		progress: progress,
	}
}

type detailItem struct {
	id  string
	pos int
}

// Run executes one campaign. Per-page and per-item failures are skipped; only
// ErrExhaustedAtFirstPage, configuration errors and snapshot write errors are
// returned. When ctx is canceled the merged data is still published and ctx's
// error is returned.
func (c *Campaign) Run(ctx context.Context) (*models.RunResult, error) {
	result := &models.RunResult{
		Mode:      ModeDaily,
		StartTime: c.now(),
	}
	defer c.finish(result)

	if err := c.progress.Load(); err != nil {
		return result, err
	}
	existing, err := c.store.Load()
	if err != nil {
		return result, err
	}
	coll := NewCollection(existing.Summaries, existing.Details)
	result.StartPage = c.progress.State().LastPage
	result.DailyLimit = c.progress.DailyLimit()

	stopReporting := c.reportProgress(ctx)
	defer stopReporting()

	stop, err := c.fetchPages(ctx, coll, result)
	if err != nil && ctx.Err() == nil {
		return result, err
	}
	if ctx.Err() == nil {
		stop, err = c.fetchDetails(ctx, coll, result, stop)
		if err != nil && ctx.Err() == nil {
			return result, err
		}
	}
	if ctx.Err() != nil {
		stop = StopCanceled
	}

	state := c.progress.State()
	result.StopReason = stop
	result.LastPage = state.LastPage
	result.TotalGames = coll.Len()
	result.TotalDetails = len(coll.Details())
	result.DailyDetails = state.DailyDetailsCount
	result.ValidationDrops = coll.ValidationDrops()

	bundle := &snapshot.Bundle{
		Summaries: coll.Summaries(),
		Details:   coll.Details(),
		Index:     search.BuildIndex(coll.Summaries(), coll.Details()),
		Metadata: models.Metadata{
			LastPage:          state.LastPage,
			LastDetailIndex:   state.LastDetailIndex,
			DailyDetailsCount: state.DailyDetailsCount,
			Version:           dailyVersion,
			DataSource:        dailyDataSource,
			Mode:              ModeDaily,
			StopReason:        stop,
			RequestStats:      c.controller.Stats().Snapshot(),
		},
	}
	bundle.Finalize(c.now())
	if err := c.write(ctx, bundle); err != nil {
		return result, err
	}

	logStats("campaign finished", c.controller.Stats())
	slog.Info("campaign summary",
		slog.String("stop_reason", stop),
		slog.Int("pages_fetched", result.PagesFetched),
		slog.Int("last_page", result.LastPage),
		slog.Int("total_games", result.TotalGames),
		slog.Int("new_games", result.NewGames),
		slog.Int64("summaries_accepted", coll.Processed()),
		slog.Int("details_fetched", result.DetailsFetched),
		slog.Int("total_details", result.TotalDetails),
		slog.String("daily_quota", fmt.Sprintf("%d/%d", result.DailyDetails, result.DailyLimit)),
	)
	return result, ctx.Err()
}

// fetchPages walks list pages from the checkpoint until a stop condition.
func (c *Campaign) fetchPages(ctx context.Context, coll *Collection, result *models.RunResult) (string, error) {
	page := c.progress.State().LastPage
	first := true
	for {
		if page >= c.cfg.MaxPages {
			return StopMaxPages, nil
		}
		if coll.Len() >= c.cfg.TotalGamesLimit {
			return StopCeiling, nil
		}

		target := c.endpoints.ListPage(page)
		body, err := c.controller.Do(ctx, target)
		if err != nil {
			switch {
			case fatal(ctx, err):
				return "", err
			case first:
				return "", fmt.Errorf("%w: page %d: %w", ErrExhaustedAtFirstPage, page, err)
			}
			slog.Warn("list page failed, will retry next run",
				slog.Int("page", page),
				slog.String("kind", string(scraper.KindOf(err))),
				slog.Any("error", err),
			)
			return StopListFailed, nil
		}
		first = false

		rows, err := parser.ParseListPage(body, page, c.now())
		if errors.Is(err, parser.ErrNoListData) {
			slog.Info("list exhausted", slog.Int("page", page))
			return StopNoMoreData, nil
		}
		if err != nil {
			slog.Warn("list page unreadable", slog.Int("page", page), slog.Any("error", err))
			return StopListFailed, nil
		}

		added := coll.MergeSummaries(rows)
		result.PagesFetched++
		result.NewGames += added
		c.metrics.IncPages()

		c.progress.UpdatePageProgress(page + 1)
		c.progress.UpdateTotalGames(coll.Len())
		if err := c.progress.Save(); err != nil {
			slog.Error("checkpoint save failed", slog.Any("error", err))
		}
		slog.Info("list page merged",
			slog.Int("page", page),
			slog.Int("rows", len(rows)),
			slog.Int("added", added),
			slog.Int("total", coll.Len()),
		)
		page++

		if err := c.pause(ctx, c.cfg.PagePause); err != nil {
			return "", err
		}
	}
}

// selectDetailBatch scans summaries from start, wrapping once, and returns up
// to quota ids that have no detail yet. Ids with a detail use no quota.
func selectDetailBatch(summaries []models.GameSummary, has func(string) bool, start, quota int) []detailItem {
	n := len(summaries)
	if n == 0 || quota <= 0 {
		return nil
	}
	if start < 0 || start >= n {
		start = 0
	}
	var batch []detailItem
	for i := 0; i < n && len(batch) < quota; i++ {
		pos := (start + i) % n
		id := summaries[pos].SteamID
		if has(id) {
			continue
		}
		batch = append(batch, detailItem{id: id, pos: pos})
	}
	return batch
}

// fetchDetails enriches the selected batch while quota remains.
func (c *Campaign) fetchDetails(ctx context.Context, coll *Collection, result *models.RunResult, listStop string) (string, error) {
	summaries := coll.Summaries()
	state := c.progress.State()
	batch := selectDetailBatch(summaries, coll.HasDetail, state.LastDetailIndex, c.progress.RemainingQuota())
	slog.Info("detail batch selected",
		slog.Int("from", state.LastDetailIndex),
		slog.Int("size", len(batch)),
		slog.Int("remaining_quota", c.progress.RemainingQuota()),
	)

	for i, item := range batch {
		if !c.progress.CanFetchMoreDetails() {
			break
		}
		if i > 0 {
			if err := c.pause(ctx, c.cfg.DetailPause); err != nil {
				return listStop, err
			}
		}

		body, err := c.controller.Do(ctx, c.endpoints.AppDetails(item.id))
		switch {
		case err != nil && fatal(ctx, err):
			return listStop, err
		case err != nil:
			result.DetailsFailed++
			c.metrics.IncDetails("failed")
			slog.Warn("detail skipped",
				slog.String("steam_id", item.id),
				slog.String("kind", string(scraper.KindOf(err))),
				slog.Any("error", err),
			)
		default:
			c.storeDetail(coll, result, item.id, body)
		}

		c.progress.UpdateDetailProgress((item.pos + 1) % len(summaries))
		c.progress.UpdateTotalDetails(len(coll.Details()))
		if err := c.progress.Save(); err != nil {
			slog.Error("checkpoint save failed", slog.Any("error", err))
		}
	}

	if !c.progress.CanFetchMoreDetails() {
		return StopQuota, nil
	}
	return listStop, nil
}

func (c *Campaign) storeDetail(coll *Collection, result *models.RunResult, id string, body []byte) {
	detail, err := parser.ParseAppDetails(id, body, c.now())
	switch {
	case errors.Is(err, parser.ErrNotListed):
		result.DetailsSkipped++
		c.metrics.IncDetails("not_listed")
		slog.Info("app not listed, skipped", slog.String("steam_id", id))
	case err != nil:
		result.DetailsFailed++
		c.metrics.IncDetails("failed")
		slog.Warn("detail unreadable", slog.String("steam_id", id), slog.Any("error", err))
	case !coll.UpsertDetail(*detail):
		result.DetailsFailed++
		c.metrics.IncDetails("invalid")
	default:
		c.progress.IncrementDailyDetails()
		result.DetailsFetched++
		c.metrics.IncDetails("fetched")
		slog.Debug("detail stored", slog.String("steam_id", id), slog.String("name", detail.Name))
	}
}
