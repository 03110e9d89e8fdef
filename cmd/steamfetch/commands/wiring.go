package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aluiziolira/steamfetch/checkpoint"
	"github.com/aluiziolira/steamfetch/config"
	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/pipeline"
	"github.com/aluiziolira/steamfetch/scraper"
	"github.com/aluiziolira/steamfetch/snapshot"
)

// newController builds the transport for the configured mode behind a paced,
// retrying controller.
func newController(c *config.Config, metrics *scraper.Metrics) (*scraper.Controller, error) {
	endpoints := scraper.EndpointsFromConfig(c)
	proxies := c.Proxies()

	var fetcher scraper.Fetcher
	switch c.Mode {
	case config.ModeBrowser:
		browser, err := scraper.NewBrowserTransport(endpoints, browserOptions(c))
		if err != nil {
			return nil, err
		}
		fetcher = browser
	default:
		transport, err := scraper.NewHTTPTransport(endpoints, c.Timeout, scraper.WithProxies(proxies))
		if err != nil {
			return nil, err
		}
		fetcher = transport
	}

	return scraper.NewController(fetcher, scraper.PolicyFromConfig(c),
		scraper.WithMetrics(metrics),
		scraper.WithPacer(scraper.NewPacer(c.RequestDelay, nil)),
	), nil
}

// browserOptions draws the next proxy from the pool for this launch.
func browserOptions(c *config.Config) scraper.BrowserOptions {
	return scraper.BrowserOptions{
		ExecPath: c.BrowserPath,
		Headless: c.Headless,
		Timeout:  c.Timeout,
		Proxy:    browserProxies.Next(),
	}
}

// openMirrors opens the configured snapshot mirrors. close is always safe to call.
func openMirrors(ctx context.Context, c *config.Config) (mirrors []snapshot.Writer, closeAll func(), err error) {
	closeAll = func() {}
	if c.SQLitePath == "" {
		return nil, closeAll, nil
	}
	mirror, err := snapshot.OpenSQLiteMirror(ctx, c.SQLitePath)
	if err != nil {
		return nil, closeAll, err
	}
	closeAll = func() {
		if err := mirror.Close(); err != nil {
			slog.Error("close sqlite mirror", slog.Any("error", err))
		}
	}
	return []snapshot.Writer{mirror}, closeAll, nil
}

// serveMetrics exposes m on addr until the returned shutdown is called.
func serveMetrics(addr string, m *scraper.Metrics) (shutdown func()) {
	if addr == "" || m == nil {
		return func() {}
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}

func runDaily(ctx context.Context, c *config.Config, metrics *scraper.Metrics) (*models.RunResult, error) {
	controller, err := newController(c, metrics)
	if err != nil {
		return nil, err
	}
	defer controller.Close()

	mirrors, closeMirrors, err := openMirrors(ctx, c)
	if err != nil {
		return nil, err
	}
	defer closeMirrors()

	campaign := pipeline.NewCampaign(c, controller,
		checkpoint.NewStore(c.ProgressFile(), c.DailyDetailsLimit),
		snapshot.NewFileStore(c.DataDir, snapshot.DailyLayout),
		pipeline.WithMetrics(metrics),
		pipeline.WithMirrors(mirrors...),
	)
	return campaign.Run(ctx)
}

func runPopular(ctx context.Context, c *config.Config, metrics *scraper.Metrics) (*models.RunResult, error) {
	controller, err := newController(c, metrics)
	if err != nil {
		return nil, err
	}
	defer controller.Close()

	mirrors, closeMirrors, err := openMirrors(ctx, c)
	if err != nil {
		return nil, err
	}
	defer closeMirrors()

	popular := pipeline.NewPopular(c, controller,
		snapshot.NewFileStore(c.DataDir, snapshot.PopularLayout),
		pipeline.WithMetrics(metrics),
		pipeline.WithMirrors(mirrors...),
	)
	return popular.Run(ctx)
}

// finishRun prints the summary and maps an interrupt to a clean exit; the
// checkpoint already holds the progress.
func finishRun(result *models.RunResult, err error) error {
	if result != nil && !result.StartTime.IsZero() {
		printRunSummary(result)
	}
	if errors.Is(err, context.Canceled) {
		slog.Warn("interrupted, progress saved")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s run failed: %w", modeOf(result), err)
	}
	return nil
}

func modeOf(result *models.RunResult) string {
	if result == nil || result.Mode == "" {
		return "fetch"
	}
	return result.Mode
}
