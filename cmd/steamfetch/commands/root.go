// Package commands implements the steamfetch command line.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/steamfetch/config"
	"github.com/aluiziolira/steamfetch/scraper"
)

var (
	// cfg is loaded once per invocation by the root pre-run hook.
	cfg *config.Config
	// browserProxies rotates the proxy pool across browser launches.
	browserProxies *scraper.ProxyPool
)

// flagValues holds root flags that overlay the loaded configuration.
type flagValues struct {
	configPath  string
	verbose     bool
	dataDir     string
	cacheDir    string
	sqlitePath  string
	mode        string
	browserPath string
	maxPages    int
	dailyLimit  int
	metricsAddr string
	noProxy     bool
}

var flags flagValues

var rootCmd = &cobra.Command{
	Use:           "steamfetch",
	Short:         "steamfetch collects Steam catalog, detail and price data into static snapshot files.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(flags.configPath)
		if err != nil {
			return err
		}
		overlay(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded
		browserProxies = scraper.NewProxyPool(cfg.Proxies())

		logger, level := newLogger(cfg.Verbose)
		slog.SetDefault(logger)
		slog.SetLogLoggerLevel(level.Level())
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default: steamfetch.{yaml,json,toml} in . or ./config)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory of the published snapshot files")
	pf.StringVar(&flags.cacheDir, "cache-dir", "", "directory of the progress checkpoint")
	pf.StringVar(&flags.sqlitePath, "sqlite", "", "also mirror snapshots into this SQLite database")
	pf.StringVar(&flags.mode, "mode", "", "transport mode: http or browser")
	pf.StringVar(&flags.browserPath, "browser-path", "", "Chrome or Chromium binary for browser mode")
	pf.IntVar(&flags.maxPages, "max-pages", 0, "maximum list pages (safety bound)")
	pf.IntVar(&flags.dailyLimit, "daily-limit", 0, "detail fetches allowed per day")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	pf.BoolVar(&flags.noProxy, "no-proxy", false, "ignore configured proxies")
}

// overlay copies the flags the user set onto c, zero values included. Unset
// flags keep the file and environment values.
func overlay(cmd *cobra.Command, c *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("verbose") {
		c.Verbose = flags.verbose
	}
	if fs.Changed("data-dir") {
		c.DataDir = flags.dataDir
	}
	if fs.Changed("cache-dir") {
		c.CacheDir = flags.cacheDir
	}
	if fs.Changed("sqlite") {
		c.SQLitePath = flags.sqlitePath
	}
	if fs.Changed("mode") {
		c.Mode = flags.mode
	}
	if fs.Changed("browser-path") {
		c.BrowserPath = flags.browserPath
	}
	if fs.Changed("max-pages") {
		c.MaxPages = flags.maxPages
	}
	if fs.Changed("daily-limit") {
		c.DailyDetailsLimit = flags.dailyLimit
	}
	if fs.Changed("metrics-addr") {
		c.MetricsAddr = flags.metricsAddr
	}
	if fs.Changed("no-proxy") {
		c.DisableProxy = flags.noProxy
	}
}

// ExecuteContext runs the command line under ctx.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
