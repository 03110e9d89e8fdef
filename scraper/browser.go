package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ResourceFilter decides whether the page may load a sub-resource.
type ResourceFilter func(kind network.ResourceType, url string) bool

// BlockHeavyResources drops images, stylesheets, fonts and media.
func BlockHeavyResources(kind network.ResourceType, _ string) bool {
	switch kind {
	case network.ResourceTypeImage, network.ResourceTypeStylesheet, network.ResourceTypeFont, network.ResourceTypeMedia:
		return false
	default:
		return true
	}
}

// AllowAll loads every resource.
func AllowAll(network.ResourceType, string) bool {
	return true
}

// BrowserOptions configures the headless browser.
type BrowserOptions struct {
	ExecPath  string
	Headless  bool
	Proxy     string
	Timeout   time.Duration
	UserAgent string
	Filter    ResourceFilter
	Sleeper   Sleeper
	// Landing overrides the page revisited on Rewarm; the store front by default.
	Landing Target
}

// BrowserTransport performs single attempts as full page navigations.
type BrowserTransport struct {
	allocCancel context.CancelFunc
	tab         context.Context
	tabCancel   context.CancelFunc

	timeout time.Duration
	filter  ResourceFilter
	landing Target
	sleeper Sleeper
}

var browserCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
	"headless-shell",
}

// resolveBrowser finds a Chrome binary; its absence is a configuration error.
func resolveBrowser(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("%w: browser binary %q: %v", ErrConfiguration, path, err)
		}
		return path, nil
	}
	for _, name := range browserCandidates {
		if found, err := exec.LookPath(name); err == nil {
			return found, nil
		}
	}
	if runtime.GOOS == "darwin" {
		const mac = "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome"
		if _, err := os.Stat(mac); err == nil {
			return mac, nil
		}
	}
	return "", fmt.Errorf("%w: no Chrome or Chromium binary found", ErrConfiguration)
}

// NewBrowserTransport launches a browser and enables request interception.
func NewBrowserTransport(endpoints Endpoints, opts BrowserOptions) (*BrowserTransport, error) {
	execPath, err := resolveBrowser(opts.ExecPath)
	if err != nil {
		return nil, err
	}
	if opts.UserAgent == "" {
		opts.UserAgent = NewIdentity(nil, "").UserAgent()
	}
	if opts.Filter == nil {
		opts.Filter = BlockHeavyResources
	}
	if opts.Sleeper == nil {
		opts.Sleeper = TimerSleeper
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Landing.URL == "" {
		opts.Landing = endpoints.Landing()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(execPath),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(1366, 768),
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "zh-CN"),
	)
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tab, fetch.Enable()); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: launch browser: %v", ErrConfiguration, err)
	}

	slog.Info("browser launched",
		slog.String("exec", execPath),
		slog.Bool("headless", opts.Headless),
		slog.String("proxy", opts.Proxy),
	)

	return &BrowserTransport{
		allocCancel: allocCancel,
		tab:         tab,
		tabCancel:   tabCancel,
		timeout:     opts.Timeout,
		filter:      opts.Filter,
		landing:     opts.Landing,
		sleeper:     opts.Sleeper,
	}, nil
}

// Fetch navigates to target and classifies the document response.
func (b *BrowserTransport) Fetch(ctx context.Context, target Target) ([]byte, error) {
	status, mime, body, err := b.Navigate(ctx, target, b.filter)
	if err != nil {
		return nil, ClassifyError(err)
	}
	return Classify(status, mime, body, target.ExpectJSON)
}

// Navigate loads target with filter deciding which sub-resources may load.
// JSON targets return the rendered text, HTML targets the serialized document.
func (b *BrowserTransport) Navigate(ctx context.Context, target Target, filter ResourceFilter) (int, string, []byte, error) {
	nav, cancel := context.WithTimeout(b.tab, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if filter == nil {
		filter = AllowAll
	}
	chromedp.ListenTarget(nav, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(nav)
			if c == nil || c.Target == nil {
				return
			}
			execCtx := cdp.WithExecutor(nav, c.Target)
			reqURL := ""
			if paused.Request != nil {
				reqURL = paused.Request.URL
			}
			if filter(paused.ResourceType, reqURL) {
				_ = fetch.ContinueRequest(paused.RequestID).Do(execCtx)
				return
			}
			_ = fetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
		}()
	})

	resp, err := chromedp.RunResponse(nav, chromedp.Navigate(target.URL))
	if err != nil {
		return 0, "", nil, err
	}
	if resp == nil {
		return 0, "", nil, fmt.Errorf("no document response for %s", target.URL)
	}

	script := `document.documentElement.outerHTML`
	if target.ExpectJSON && !isHTMLMime(resp.MimeType) {
		script = `document.body ? document.body.innerText : ""`
	}
	var text string
	if err := chromedp.Run(nav, chromedp.Evaluate(script, &text)); err != nil {
		return 0, "", nil, err
	}
	return int(resp.Status), resp.MimeType, []byte(text), nil
}

// Rewarm revisits the store landing page and scrolls like a reader would.
func (b *BrowserTransport) Rewarm(ctx context.Context) error {
	slog.Info("rewarming browser session", slog.String("url", b.landing.URL))
	if _, _, _, err := b.Navigate(ctx, b.landing, b.filter); err != nil {
		return fmt.Errorf("rewarm navigate: %w", err)
	}
	if err := b.sleeper.Sleep(ctx, PacingJitter.Apply(2*time.Second)); err != nil {
		return err
	}

	scroll, cancel := context.WithTimeout(b.tab, b.timeout)
	defer cancel()
	if err := chromedp.Run(scroll, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight / 2)`, nil)); err != nil {
		return fmt.Errorf("rewarm scroll: %w", err)
	}
	return b.sleeper.Sleep(ctx, PacingJitter.Apply(time.Second))
}

// Height reports the scroll height of the current document.
func (b *BrowserTransport) Height(ctx context.Context) (int64, error) {
	var height int64
	err := b.eval(ctx, `document.body ? document.body.scrollHeight : 0`, &height)
	return height, err
}

// ScrollBy scrolls the current document down by distance pixels.
func (b *BrowserTransport) ScrollBy(ctx context.Context, distance int) error {
	return b.eval(ctx, fmt.Sprintf(`window.scrollBy(0, %d)`, distance), nil)
}

// Document serializes the current DOM without navigating.
func (b *BrowserTransport) Document(ctx context.Context) ([]byte, error) {
	var html string
	if err := b.eval(ctx, `document.documentElement.outerHTML`, &html); err != nil {
		return nil, err
	}
	return []byte(html), nil
}

func (b *BrowserTransport) eval(ctx context.Context, script string, out any) error {
	run, cancel := context.WithTimeout(b.tab, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(run, chromedp.Evaluate(script, out)); err != nil {
		return ClassifyError(err)
	}
	return nil
}

// Close shuts the browser down.
func (b *BrowserTransport) Close() error {
	b.tabCancel()
	b.allocCancel()
	return nil
}

func isHTMLMime(mime string) bool {
	return mime == "text/html" || mime == "application/xhtml+xml"
}
