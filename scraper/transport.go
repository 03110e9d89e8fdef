package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/proxy"
)

const responseKey = "response"

// HTTPTransport performs single plain-HTTP attempts through a synchronous colly collector.
type HTTPTransport struct {
	collector *colly.Collector
	identity  *Identity
	landing   Target
}

// HTTPOption customizes an HTTPTransport.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	roundTripper http.RoundTripper
	proxies      []string
	agents       []string
}

// WithRoundTripper replaces the network transport; tests inject httpmock here.
func WithRoundTripper(rt http.RoundTripper) HTTPOption {
	return func(o *httpOptions) {
		o.roundTripper = rt
	}
}

// WithProxies rotates requests round-robin over the given proxy URLs.
func WithProxies(urls []string) HTTPOption {
	return func(o *httpOptions) {
		o.proxies = urls
	}
}

// WithUserAgents replaces the User-Agent pool.
func WithUserAgents(agents []string) HTTPOption {
	return func(o *httpOptions) {
		o.agents = agents
	}
}

// NewHTTPTransport builds a transport for endpoints with a per-request timeout.
func NewHTTPTransport(endpoints Endpoints, timeout time.Duration, opts ...HTTPOption) (*HTTPTransport, error) {
	var o httpOptions
	for _, opt := range opts {
		opt(&o)
	}

	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
		colly.MaxBodySize(32*1024*1024),
	)
	collector.SetRequestTimeout(timeout)

	rt := o.roundTripper
	if rt == nil {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		if len(o.proxies) > 0 {
			switcher, err := proxy.RoundRobinProxySwitcher(o.proxies...)
			if err != nil {
				return nil, fmt.Errorf("%w: proxy pool: %v", ErrConfiguration, err)
			}
			transport.Proxy = switcher
		}
		rt = transport
	}
	collector.WithTransport(rt)

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(responseKey, r)
	})

	return &HTTPTransport{
		collector: collector,
		identity:  NewIdentity(o.agents, endpoints.StoreURL),
		landing:   endpoints.Landing(),
	}, nil
}

// Fetch issues one GET and classifies the outcome.
func (t *HTTPTransport) Fetch(ctx context.Context, target Target) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cctx := colly.NewContext()
	hdr := t.identity.Headers(target.ExpectJSON)
	if err := t.collector.Request(http.MethodGet, target.URL, nil, cctx, hdr); err != nil {
		return nil, ClassifyError(err)
	}

	resp, ok := cctx.GetAny(responseKey).(*colly.Response)
	if !ok || resp == nil {
		return nil, ErrConnection{Err: fmt.Errorf("no response for %s", target.URL)}
	}

	contentType := ""
	if resp.Headers != nil {
		contentType = resp.Headers.Get("Content-Type")
	}
	slog.Debug("fetched",
		slog.String("target", target.Name),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(resp.Body)),
	)
	return Classify(resp.StatusCode, contentType, resp.Body, target.ExpectJSON)
}

// Rewarm regenerates the session headers. Plain HTTP has no page state to rebuild.
func (t *HTTPTransport) Rewarm(ctx context.Context) error {
	t.identity.Reset()
	slog.Info("session headers regenerated", slog.String("landing", t.landing.URL))
	return nil
}

// Close is a no-op; colly keeps no resources beyond idle connections.
func (t *HTTPTransport) Close() error {
	return nil
}
