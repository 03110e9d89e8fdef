package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "zero max pages",
			mutate: func(cfg *Config) {
				cfg.MaxPages = 0
			},
			wantErr: "max pages",
		},
		{
			name: "empty spy url",
			mutate: func(cfg *Config) {
				cfg.SpyURL = ""
			},
			wantErr: "spy URL",
		},
		{
			name: "store url without host",
			mutate: func(cfg *Config) {
				cfg.StoreURL = "http://"
			},
			wantErr: "store URL",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "unknown mode",
			mutate: func(cfg *Config) {
				cfg.Mode = "curl"
			},
			wantErr: "mode",
		},
		{
			name: "backoff above max",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "negative floor",
			mutate: func(cfg *Config) {
				cfg.RateLimitFloor = -time.Second
			},
			wantErr: "rate limit floor",
		},
		{
			name: "bad proxy",
			mutate: func(cfg *Config) {
				cfg.ProxyURLs = []string{"::nope"}
			},
			wantErr: "proxy",
		},
		{
			name: "zero batch size",
			mutate: func(cfg *Config) {
				cfg.BatchSize = 0
			},
			wantErr: "batch size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.DailyDetailsLimit != 100 || cfg.MaxPages != 20 || cfg.TotalGamesLimit != 1000 {
		t.Fatalf("unexpected quota defaults: %+v", cfg)
	}
}

func TestBotFloorFollowsMode(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.BotFloor(); got != DefaultBotFloorHTTP {
		t.Fatalf("http bot floor = %v, want %v", got, DefaultBotFloorHTTP)
	}
	cfg.Mode = ModeBrowser
	if got := cfg.BotFloor(); got != DefaultBotFloorBrowser {
		t.Fatalf("browser bot floor = %v, want %v", got, DefaultBotFloorBrowser)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("NO_PROXY", "")
	t.Setenv("STEAMFETCH_MAX_PAGES", "7")

	dir := t.TempDir()
	path := filepath.Join(dir, "steamfetch.json")
	body := `{
  "mode": "browser",
  "page_pause": "250ms",
  "daily_details_limit": 12,
  "proxy_urls": ["http://127.0.0.1:7890"]
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeBrowser {
		t.Fatalf("mode = %q, want browser", cfg.Mode)
	}
	if cfg.PagePause != 250*time.Millisecond {
		t.Fatalf("page pause = %v, want 250ms", cfg.PagePause)
	}
	if cfg.DailyDetailsLimit != 12 {
		t.Fatalf("daily limit = %d, want 12", cfg.DailyDetailsLimit)
	}
	if cfg.MaxPages != 7 {
		t.Fatalf("max pages = %d, want env override 7", cfg.MaxPages)
	}
	if cfg.DetailPause != 3*time.Second {
		t.Fatalf("detail pause = %v, want default 3s", cfg.DetailPause)
	}
	if got := cfg.Proxies(); len(got) != 1 {
		t.Fatalf("proxies = %v, want one entry", got)
	}
}

func TestLoadNoProxyDisablesPool(t *testing.T) {
	t.Setenv("NO_PROXY", "1")
	t.Setenv("STEAMFETCH_PROXY_URLS", "http://127.0.0.1:7890")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("explicit missing config file should fail, got %+v", cfg)
	}

	t.Chdir(t.TempDir())
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load without file: %v", err)
	}
	if !cfg.DisableProxy || cfg.Proxies() != nil {
		t.Fatalf("NO_PROXY should disable the pool, got %v", cfg.Proxies())
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STEAMFETCH_MAX_PAGES", "6")
	t.Cleanup(func() { os.Unsetenv("STEAMFETCH_DAILY_DETAILS_LIMIT") })

	dotenv := "STEAMFETCH_DAILY_DETAILS_LIMIT=9\nSTEAMFETCH_MAX_PAGES=4\n"
	if err := os.WriteFile(".env", []byte(dotenv), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DailyDetailsLimit != 9 {
		t.Fatalf("daily limit = %d, want 9 from .env", cfg.DailyDetailsLimit)
	}
	if cfg.MaxPages != 6 {
		t.Fatalf("max pages = %d, want process env 6 over .env", cfg.MaxPages)
	}
}

func TestEnvString(t *testing.T) {
	t.Setenv("STEAMFETCH_TEST_STR", "  value ")
	if v, ok := EnvString("STEAMFETCH_TEST_STR"); !ok || v != "value" {
		t.Fatalf("EnvString = %q %v, want value true", v, ok)
	}
	t.Setenv("STEAMFETCH_TEST_STR", "   ")
	if _, ok := EnvString("STEAMFETCH_TEST_STR"); ok {
		t.Fatalf("blank variable reported as present")
	}
}
