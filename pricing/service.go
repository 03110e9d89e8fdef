// Package pricing looks up current store prices for individual apps.
package pricing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/go-resty/resty/v2"
	"github.com/gocolly/colly/v2/proxy"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/aluiziolira/steamfetch/config"
	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/parser"
	"github.com/aluiziolira/steamfetch/scraper"
)

const (
	// ChunkSize is the number of uncached ids requested per batch.
	ChunkSize = 10
	cacheSize = 4096
)

// Options configures a Service.
type Options struct {
	Endpoints   scraper.Endpoints
	Timeout     time.Duration
	RPS         float64
	CacheTTL    time.Duration
	Concurrency int
	BatchPause  time.Duration
	Policy      scraper.Policy
	Proxies     []string
	Sleeper     scraper.Sleeper
	Metrics     *scraper.Metrics
}

// OptionsFromConfig maps the configured endpoints, limits and retry policy.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Endpoints:   scraper.EndpointsFromConfig(cfg),
		Timeout:     cfg.Timeout,
		RPS:         cfg.PriceRPS,
		CacheTTL:    cfg.PriceCacheTTL,
		Concurrency: cfg.BatchSize,
		BatchPause:  cfg.BatchPause,
		Policy:      scraper.PolicyFromConfig(cfg),
	}
	opts.Proxies = cfg.Proxies()
	return opts
}

// Service resolves price quotes through a rate-limited REST client with a
// short-lived cache. Concurrent lookups of the same id share one request.
type Service struct {
	http       *resty.Client
	endpoints  scraper.Endpoints
	controller *scraper.Controller

	cache *expirable.LRU[string, models.PriceQuote]
	group singleflight.Group

	concurrency int
	batchPause  time.Duration
	sleeper     scraper.Sleeper
	now         func() time.Time
}

func defaultOptions() Options {
	return Options{
		Timeout:     15 * time.Second,
		RPS:         2,
		CacheTTL:    5 * time.Minute,
		Concurrency: 5,
	}
}

// New builds a Service. Zero fields of opts take the package defaults. With
// more than one proxy, requests rotate through them round-robin.
func New(opts Options) (*Service, error) {
	if err := mergo.Merge(&opts, defaultOptions()); err != nil {
		return nil, fmt.Errorf("apply pricing defaults: %w", err)
	}
	if opts.Sleeper == nil {
		opts.Sleeper = scraper.TimerSleeper
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	if len(opts.Proxies) > 0 {
		switcher, err := proxy.RoundRobinProxySwitcher(opts.Proxies...)
		if err != nil {
			return nil, fmt.Errorf("%w: price proxies: %v", scraper.ErrConfiguration, err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = switcher
		client.SetTransport(transport)
	}

	burst := max(int(opts.RPS), 1)
	limiter := rate.NewLimiter(rate.Limit(opts.RPS), burst)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})

	s := &Service{
		http:        client,
		endpoints:   opts.Endpoints,
		cache:       expirable.NewLRU[string, models.PriceQuote](cacheSize, nil, opts.CacheTTL),
		concurrency: opts.Concurrency,
		batchPause:  opts.BatchPause,
		sleeper:     opts.Sleeper,
		now:         time.Now,
	}
	fetcher := &restyFetcher{
		client:   client,
		identity: scraper.NewIdentity(nil, opts.Endpoints.StoreURL),
	}
	s.controller = scraper.NewController(fetcher, opts.Policy,
		scraper.WithSleeper(opts.Sleeper),
		scraper.WithMetrics(opts.Metrics),
	)
	return s, nil
}

// Stats returns the request counters of this service.
func (s *Service) Stats() *scraper.Stats {
	return s.controller.Stats()
}

// Price returns the quote for one app, from cache when fresh.
func (s *Service) Price(ctx context.Context, id string) (*models.PriceQuote, error) {
	if quote, ok := s.cache.Get(id); ok {
		return &quote, nil
	}
	v, err, shared := s.group.Do(id, func() (any, error) {
		body, err := s.controller.Do(ctx, s.endpoints.PriceOverview(id))
		if err != nil {
			return nil, err
		}
		quote, err := parser.ParsePriceOverview(id, body, s.now())
		if err != nil {
			return nil, err
		}
		s.cache.Add(id, *quote)
		return *quote, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("price lookup coalesced", slog.String("steam_id", id))
	}
	quote := v.(models.PriceQuote)
	return &quote, nil
}

// Prices resolves ids in chunks of ChunkSize with bounded concurrency and a pause
// between chunks. Every requested id is present in the result; failed lookups
// map to nil.
func (s *Service) Prices(ctx context.Context, ids []string) map[string]*models.PriceQuote {
	out := make(map[string]*models.PriceQuote, len(ids))
	var pending []string
	for _, id := range ids {
		if _, dup := out[id]; dup {
			continue
		}
		out[id] = nil
		if quote, ok := s.cache.Get(id); ok {
			out[id] = &quote
			continue
		}
		pending = append(pending, id)
	}

	var mu sync.Mutex
	for start := 0; start < len(pending); start += ChunkSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+ChunkSize, len(pending))

		var g errgroup.Group
		g.SetLimit(s.concurrency)
		for _, id := range pending[start:end] {
			g.Go(func() error {
				quote, err := s.Price(ctx, id)
				if err != nil {
					slog.Warn("price lookup failed",
						slog.String("steam_id", id),
						slog.String("kind", string(scraper.KindOf(err))),
						slog.Any("error", err),
					)
					return nil
				}
				mu.Lock()
				out[id] = quote
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if end < len(pending) && s.batchPause > 0 {
			if err := s.sleeper.Sleep(ctx, s.batchPause); err != nil {
				break
			}
		}
	}

	slog.Info("price lookups finished",
		slog.Int("requested", len(out)),
		slog.Int("fetched", len(pending)),
		slog.Int64("requests", s.controller.Stats().Requests()),
	)
	return out
}
