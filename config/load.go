package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STEAMFETCH_MAX_PAGES.
const EnvPrefix = "STEAMFETCH"

// Load reads the optional config file and environment overrides on top of DefaultConfig.
// An empty path searches for steamfetch.{yaml,json,toml} in . and ./config.
// A .env file in the working directory is loaded first; variables already set win.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", slog.Any("error", err))
	}

	v := viper.New()
	for key, value := range defaults(cfg) {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("steamfetch")
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// NO_PROXY is the switch CI runners already export.
	if _, ok := EnvString("NO_PROXY"); ok {
		cfg.DisableProxy = true
	}

	return cfg, nil
}

func defaults(c *Config) map[string]any {
	return map[string]any{
		"spy_url":               c.SpyURL,
		"store_url":             c.StoreURL,
		"language":              c.Language,
		"region":                c.Region,
		"data_dir":              c.DataDir,
		"cache_dir":             c.CacheDir,
		"sqlite_path":           c.SQLitePath,
		"mode":                  c.Mode,
		"browser_path":          c.BrowserPath,
		"headless":              c.Headless,
		"timeout":               c.Timeout,
		"max_attempts":          c.MaxAttempts,
		"retry_backoff":         c.RetryBackoff,
		"retry_backoff_max":     c.RetryBackoffMax,
		"rate_limit_floor":      c.RateLimitFloor,
		"bot_floor_http":        c.BotFloorHTTP,
		"bot_floor_browser":     c.BotFloorBrowser,
		"timeout_floor":         c.TimeoutFloor,
		"request_delay":         c.RequestDelay,
		"page_pause":            c.PagePause,
		"detail_pause":          c.DetailPause,
		"batch_pause":           c.BatchPause,
		"daily_details_limit":   c.DailyDetailsLimit,
		"total_games_limit":     c.TotalGamesLimit,
		"max_pages":             c.MaxPages,
		"popular_limit":         c.PopularLimit,
		"popular_details_limit": c.PopularDetailsLimit,
		"batch_size":            c.BatchSize,
		"video_url":             c.VideoURL,
		"video_max_scrolls":     c.VideoMaxScrolls,
		"video_max_new":         c.VideoMaxNew,
		"video_scroll_distance": c.VideoScrollDistance,
		"video_scroll_wait":     c.VideoScrollWait,
		"price_cache_ttl":       c.PriceCacheTTL,
		"price_rps":             c.PriceRPS,
		"proxy_urls":            c.ProxyURLs,
		"disable_proxy":         c.DisableProxy,
		"metrics_addr":          c.MetricsAddr,
		"schedule":              c.Schedule,
		"verbose":               c.Verbose,
	}
}
