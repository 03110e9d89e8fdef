package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

// Transport modes.
const (
	ModeHTTP    = "http"
	ModeBrowser = "browser"
)

// Backoff floors. Upstream scripts disagreed on the bot-challenge cool-down, so
// each transport mode keeps its own value.
const (
	DefaultRateLimitFloor  = 60 * time.Second
	DefaultBotFloorHTTP    = 120 * time.Second
	DefaultBotFloorBrowser = 60 * time.Second
	DefaultTimeoutFloor    = 10 * time.Second
)

// Quotas and safety bounds.
const (
	DefaultDailyDetailsLimit   = 100
	DefaultTotalGamesLimit     = 1000
	DefaultMaxPages            = 20
	DefaultPopularLimit        = 50
	DefaultPopularDetailsLimit = 20
	DefaultMaxAttempts         = 3
	DefaultVideoMaxScrolls     = 12
	DefaultVideoMaxNew         = 15
)

// Config holds fetcher configuration.
type Config struct {
	SpyURL   string `mapstructure:"spy_url"`
	StoreURL string `mapstructure:"store_url"`
	Language string `mapstructure:"language"`
	Region   string `mapstructure:"region"`

	DataDir    string `mapstructure:"data_dir"`
	CacheDir   string `mapstructure:"cache_dir"`
	SQLitePath string `mapstructure:"sqlite_path"`

	Mode        string `mapstructure:"mode"` // http or browser
	BrowserPath string `mapstructure:"browser_path"`
	Headless    bool   `mapstructure:"headless"`

	Timeout         time.Duration `mapstructure:"timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"`
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max"`

	RateLimitFloor  time.Duration `mapstructure:"rate_limit_floor"`
	BotFloorHTTP    time.Duration `mapstructure:"bot_floor_http"`
	BotFloorBrowser time.Duration `mapstructure:"bot_floor_browser"`
	TimeoutFloor    time.Duration `mapstructure:"timeout_floor"`

	RequestDelay time.Duration `mapstructure:"request_delay"`
	PagePause    time.Duration `mapstructure:"page_pause"`
	DetailPause  time.Duration `mapstructure:"detail_pause"`
	BatchPause   time.Duration `mapstructure:"batch_pause"`

	DailyDetailsLimit   int `mapstructure:"daily_details_limit"`
	TotalGamesLimit     int `mapstructure:"total_games_limit"`
	MaxPages            int `mapstructure:"max_pages"`
	PopularLimit        int `mapstructure:"popular_limit"`
	PopularDetailsLimit int `mapstructure:"popular_details_limit"`
	BatchSize           int `mapstructure:"batch_size"`

	VideoURL            string        `mapstructure:"video_url"`
	VideoMaxScrolls     int           `mapstructure:"video_max_scrolls"`
	VideoMaxNew         int           `mapstructure:"video_max_new"`
	VideoScrollDistance int           `mapstructure:"video_scroll_distance"`
	VideoScrollWait     time.Duration `mapstructure:"video_scroll_wait"`

	PriceCacheTTL time.Duration `mapstructure:"price_cache_ttl"`
	PriceRPS      float64       `mapstructure:"price_rps"`

	ProxyURLs    []string `mapstructure:"proxy_urls"`
	DisableProxy bool     `mapstructure:"disable_proxy"`

	MetricsAddr string `mapstructure:"metrics_addr"`
	Schedule    string `mapstructure:"schedule"`
	Verbose     bool   `mapstructure:"verbose"`
}

// DefaultConfig returns conservative defaults for the public Steam endpoints.
func DefaultConfig() *Config {
	return &Config{
		SpyURL:   "https://steamspy.com/api.php",
		StoreURL: "https://store.steampowered.com",
		Language: "schinese",
		Region:   "CN",

		DataDir:  "public/data",
		CacheDir: "cache",

		Mode:     ModeHTTP,
		Headless: true,

		Timeout:         15 * time.Second,
		MaxAttempts:     DefaultMaxAttempts,
		RetryBackoff:    2 * time.Second,
		RetryBackoffMax: 5 * time.Minute,

		RateLimitFloor:  DefaultRateLimitFloor,
		BotFloorHTTP:    DefaultBotFloorHTTP,
		BotFloorBrowser: DefaultBotFloorBrowser,
		TimeoutFloor:    DefaultTimeoutFloor,

		RequestDelay: 3 * time.Second,
		PagePause:    5 * time.Second,
		DetailPause:  3 * time.Second,
		BatchPause:   time.Second,

		DailyDetailsLimit:   DefaultDailyDetailsLimit,
		TotalGamesLimit:     DefaultTotalGamesLimit,
		MaxPages:            DefaultMaxPages,
		PopularLimit:        DefaultPopularLimit,
		PopularDetailsLimit: DefaultPopularDetailsLimit,
		BatchSize:           5,

		VideoURL:            "https://www.bilibili.com/",
		VideoMaxScrolls:     DefaultVideoMaxScrolls,
		VideoMaxNew:         DefaultVideoMaxNew,
		VideoScrollDistance: 800,
		VideoScrollWait:     6 * time.Second,

		PriceCacheTTL: 5 * time.Minute,
		PriceRPS:      2,

		Schedule: "0 3 * * *",
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	for name, raw := range map[string]string{"spy URL": c.SpyURL, "store URL": c.StoreURL, "video URL": c.VideoURL} {
		if raw == "" {
			return fmt.Errorf("%s cannot be empty", name)
		}
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s must include a host", name)
		}
	}
	for _, raw := range c.ProxyURLs {
		parsed, err := url.Parse(raw)
		if err != nil || parsed.Host == "" {
			return fmt.Errorf("invalid proxy URL %q", raw)
		}
	}

	if c.Mode != ModeHTTP && c.Mode != ModeBrowser {
		return fmt.Errorf("mode must be %s or %s", ModeHTTP, ModeBrowser)
	}
	if c.DataDir == "" {
		return fmt.Errorf("data dir cannot be empty")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("cache dir cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	for name, d := range map[string]time.Duration{
		"rate limit floor":  c.RateLimitFloor,
		"bot floor http":    c.BotFloorHTTP,
		"bot floor browser": c.BotFloorBrowser,
		"timeout floor":     c.TimeoutFloor,
		"request delay":     c.RequestDelay,
		"page pause":        c.PagePause,
		"detail pause":      c.DetailPause,
		"batch pause":       c.BatchPause,
		"video scroll wait": c.VideoScrollWait,
	} {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	if c.DailyDetailsLimit < 0 {
		return fmt.Errorf("daily details limit cannot be negative")
	}
	if c.TotalGamesLimit <= 0 {
		return fmt.Errorf("total games limit must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.PopularLimit <= 0 {
		return fmt.Errorf("popular limit must be positive")
	}
	if c.PopularDetailsLimit < 0 {
		return fmt.Errorf("popular details limit cannot be negative")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.PriceRPS <= 0 {
		return fmt.Errorf("price rps must be positive")
	}
	if c.VideoMaxScrolls < 0 {
		return fmt.Errorf("video max scrolls cannot be negative")
	}
	if c.VideoMaxNew <= 0 {
		return fmt.Errorf("video max new must be positive")
	}
	if c.VideoScrollDistance <= 0 {
		return fmt.Errorf("video scroll distance must be positive")
	}
	return nil
}

// BotFloor returns the bot-challenge cool-down for the configured transport mode.
func (c *Config) BotFloor() time.Duration {
	if c.Mode == ModeBrowser {
		return c.BotFloorBrowser
	}
	return c.BotFloorHTTP
}

// Proxies returns the proxy pool, or nil when proxies are disabled.
func (c *Config) Proxies() []string {
	if c.DisableProxy {
		return nil
	}
	return c.ProxyURLs
}

// ProgressFile is the checkpoint location inside the cache dir.
func (c *Config) ProgressFile() string {
	return filepath.Join(c.CacheDir, "steamspy-progress.json")
}
