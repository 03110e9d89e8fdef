package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/steamfetch/checkpoint"
	"github.com/aluiziolira/steamfetch/config"
	"github.com/aluiziolira/steamfetch/models"
	"github.com/aluiziolira/steamfetch/scraper"
	"github.com/aluiziolira/steamfetch/snapshot"
)

var testNow = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

// upstream fakes SteamSpy and the store detail endpoint.
type upstream struct {
	mu sync.Mutex

	pages    map[int]int // rows served per list page; missing pages are empty
	failList map[int]bool
	flaky    map[int]int // 429s served before the page succeeds
	failTop  bool

	failDetail map[string]bool
	unlisted   map[string]bool

	listCalls   []int
	detailCalls []string
}

func pageID(page, i int) string {
	return strconv.Itoa(100000 + page*1000 + i)
}

func (u *upstream) spy(req *http.Request) (*http.Response, error) {
	q := req.URL.Query()
	if q.Get("request") == "top100in2weeks" {
		if u.failTop {
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, ``), nil
		}
		return jsonResponse(`{"570":{"appid":570,"name":"Dota 2"},"730":{"appid":730,"name":"Counter-Strike 2"}}`), nil
	}

	page, _ := strconv.Atoi(q.Get("page"))
	u.mu.Lock()
	u.listCalls = append(u.listCalls, page)
	fail := u.failList[page]
	if u.flaky[page] > 0 {
		u.flaky[page]--
		fail = true
	}
	rows := u.pages[page]
	u.mu.Unlock()

	if fail {
		return httpmock.NewStringResponse(http.StatusTooManyRequests, ``), nil
	}
	if rows == 0 {
		return jsonResponse(`[]`), nil
	}
	parts := make([]string, 0, rows)
	for i := 0; i < rows; i++ {
		id := pageID(page, i)
		parts = append(parts, fmt.Sprintf(`"%s":{"appid":%s,"name":"Game %s","developer":"Dev","publisher":"Pub","price":"999","tags":{"Indie":10}}`, id, id, id))
	}
	return jsonResponse("{" + strings.Join(parts, ",") + "}"), nil
}

func (u *upstream) details(req *http.Request) (*http.Response, error) {
	id := req.URL.Query().Get("appids")
	u.mu.Lock()
	u.detailCalls = append(u.detailCalls, id)
	fail := u.failDetail[id]
	unlisted := u.unlisted[id]
	u.mu.Unlock()

	switch {
	case fail:
		return httpmock.NewStringResponse(http.StatusInternalServerError, `{}`), nil
	case unlisted:
		return jsonResponse(fmt.Sprintf(`{"%s":{"success":false}}`, id)), nil
	}
	return jsonResponse(fmt.Sprintf(`{"%s":{"success":true,"data":{"name":"Detail %s","genres":[{"description":"Action"}],"price_overview":{"currency":"CNY","initial":1999,"final":1999}}}}`, id, id)), nil
}

func (u *upstream) calls() ([]int, []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]int(nil), u.listCalls...), append([]string(nil), u.detailCalls...)
}

func jsonResponse(body string) *http.Response {
	resp := httpmock.NewStringResponse(http.StatusOK, body)
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

type countingSleeper struct {
	mu      sync.Mutex
	calls   int
	onSleep func(n int)
}

func (s *countingSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	s.mu.Lock()
	s.calls++
	n, hook := s.calls, s.onSleep
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

type harness struct {
	cfg      *config.Config
	up       *upstream
	mock     *httpmock.MockTransport
	sleeper  *countingSleeper
	progress *checkpoint.Store
	store    *snapshot.FileStore
}

func newHarness(t *testing.T, up *upstream) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.SpyURL = "http://spy.test/api.php"
	cfg.StoreURL = "http://store.test"
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.CacheDir = filepath.Join(dir, "cache")
	cfg.MaxAttempts = 2
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, cfg.SpyURL, up.spy)
	mock.RegisterResponder(http.MethodGet, "http://store.test/api/appdetails", up.details)

	return &harness{cfg: cfg, up: up, mock: mock, sleeper: &countingSleeper{}}
}

// campaign builds a fresh process: new controller, checkpoint and store over
// the same directories, as a restarted binary would.
func (h *harness) campaign(t *testing.T) *Campaign {
	t.Helper()
	transport, err := scraper.NewHTTPTransport(scraper.EndpointsFromConfig(h.cfg), 5*time.Second, scraper.WithRoundTripper(h.mock))
	if err != nil {
		t.Fatalf("transport: %v", err)
	}
	controller := scraper.NewController(transport, scraper.PolicyFromConfig(h.cfg), scraper.WithSleeper(h.sleeper))
	h.progress = checkpoint.NewStore(h.cfg.ProgressFile(), h.cfg.DailyDetailsLimit, checkpoint.WithClock(testClock))
	h.store = snapshot.NewFileStore(h.cfg.DataDir, snapshot.DailyLayout)
	return NewCampaign(h.cfg, controller, h.progress, h.store,
		WithSleeper(h.sleeper),
		WithClock(testClock),
		WithProgressInterval(0),
	)
}

func (h *harness) published(t *testing.T) *snapshot.Bundle {
	t.Helper()
	b, err := h.store.Load()
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	return b
}

func assertUniqueIDs(t *testing.T, summaries []models.GameSummary) {
	t.Helper()
	seen := make(map[string]bool, len(summaries))
	for _, s := range summaries {
		if seen[s.SteamID] {
			t.Fatalf("duplicate steam id %s", s.SteamID)
		}
		seen[s.SteamID] = true
	}
}

func TestCampaignStopsOnEmptyPage(t *testing.T) {
	h := newHarness(t, &upstream{pages: map[int]int{0: 50}})

	result, err := h.campaign(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	listCalls, detailCalls := h.up.calls()
	if fmt.Sprint(listCalls) != "[0 1]" {
		t.Fatalf("list calls = %v, want [0 1]", listCalls)
	}
	if got := h.progress.State().LastPage; got != 1 {
		t.Fatalf("lastPage = %d, want 1", got)
	}
	if result.TotalGames != 50 || result.PagesFetched != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.StopReason != StopNoMoreData {
		t.Fatalf("stop reason = %q, want %q", result.StopReason, StopNoMoreData)
	}
	if len(detailCalls) != 50 || result.DetailsFetched != 50 {
		t.Fatalf("details fetched = %d (calls %d), want 50", result.DetailsFetched, len(detailCalls))
	}

	b := h.published(t)
	if len(b.Summaries) != 50 || len(b.Details) != 50 {
		t.Fatalf("published %d summaries, %d details", len(b.Summaries), len(b.Details))
	}
	if err := h.store.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	index, err := h.store.LoadIndex()
	if err != nil || len(index) != 50 {
		t.Fatalf("index = %d entries, err %v", len(index), err)
	}
	meta, found, err := h.store.LoadMetadata()
	if err != nil || !found {
		t.Fatalf("metadata found=%v err=%v", found, err)
	}
	if meta.Mode != ModeDaily || meta.LastPage != 1 || meta.ReleaseID == "" || meta.StopReason != StopNoMoreData {
		t.Fatalf("metadata = %+v", meta)
	}
}

func TestCampaignRetriedPageCountsOnce(t *testing.T) {
	h := newHarness(t, &upstream{
		pages: map[int]int{0: 5, 1: 5, 2: 5},
		flaky: map[int]int{1: 1},
	})
	h.cfg.DailyDetailsLimit = 0

	result, err := h.campaign(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	listCalls, _ := h.up.calls()
	if fmt.Sprint(listCalls) != "[0 1 1 2 3]" {
		t.Fatalf("list calls = %v, want [0 1 1 2 3]", listCalls)
	}
	if got := h.progress.State().LastPage; got != 3 {
		t.Fatalf("lastPage = %d, want 3 after three successful pages", got)
	}
	if got := h.progress.State().TotalGames; got != 15 {
		t.Fatalf("totalGames = %d, want 15", got)
	}
	if result.PagesFetched != 3 || result.Stats.Retries != 1 {
		t.Fatalf("pages fetched = %d, retries = %d, want 3 and 1", result.PagesFetched, result.Stats.Retries)
	}
	assertUniqueIDs(t, h.published(t).Summaries)
}

func TestCampaignResumesAfterInterrupt(t *testing.T) {
	up := &upstream{pages: map[int]int{0: 10, 1: 10, 2: 10, 3: 10, 4: 10}}
	h := newHarness(t, up)
	h.cfg.DailyDetailsLimit = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// The third page pause is the one after page 2 completes.
	h.sleeper.onSleep = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	result, err := h.campaign(t).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("first run err = %v, want context.Canceled", err)
	}
	if result.StopReason != StopCanceled || result.LastPage != 3 {
		t.Fatalf("first run result = %+v", result)
	}
	if got := len(h.published(t).Summaries); got != 30 {
		t.Fatalf("published after interrupt = %d, want 30", got)
	}

	h.sleeper.onSleep = nil
	up.mu.Lock()
	up.listCalls = nil
	up.mu.Unlock()

	result, err = h.campaign(t).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	listCalls, _ := up.calls()
	if fmt.Sprint(listCalls) != "[3 4 5]" {
		t.Fatalf("resumed list calls = %v, want [3 4 5]", listCalls)
	}
	if result.StartPage != 3 || result.LastPage != 5 {
		t.Fatalf("second run pages = %d..%d", result.StartPage, result.LastPage)
	}

	b := h.published(t)
	if len(b.Summaries) != 50 {
		t.Fatalf("summaries = %d, want 50", len(b.Summaries))
	}
	assertUniqueIDs(t, b.Summaries)
}

func TestCampaignRerunIsIdempotent(t *testing.T) {
	h := newHarness(t, &upstream{pages: map[int]int{0: 5}})
	h.cfg.DailyDetailsLimit = 0

	if _, err := h.campaign(t).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Rewind the cursor so the same page is merged again.
	c := h.campaign(t)
	if err := h.progress.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	h.progress.Reset()
	if err := h.progress.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	result, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.NewGames != 0 || result.TotalGames != 5 {
		t.Fatalf("rerun result = %+v", result)
	}
	assertUniqueIDs(t, h.published(t).Summaries)
}

func TestCampaignQuotaAllowsOneMoreDetail(t *testing.T) {
	h := newHarness(t, &upstream{pages: map[int]int{0: 2}})
	h.cfg.DailyDetailsLimit = 5

	seed := checkpoint.NewStore(h.cfg.ProgressFile(), 5, checkpoint.WithClock(testClock))
	if err := seed.Load(); err != nil {
		t.Fatalf("seed load: %v", err)
	}
	for i := 0; i < 4; i++ {
		seed.IncrementDailyDetails()
	}
	if err := seed.Save(); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	result, err := h.campaign(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	_, detailCalls := h.up.calls()
	if len(detailCalls) != 1 {
		t.Fatalf("detail calls = %v, want exactly one", detailCalls)
	}
	if result.DailyDetails != 5 || result.StopReason != StopQuota {
		t.Fatalf("result = %+v", result)
	}
	if got := h.progress.State().LastDetailIndex; got != 1 {
		t.Fatalf("detail cursor = %d, want 1", got)
	}
}

func TestCampaignSkipsExhaustedAndUnlistedDetails(t *testing.T) {
	up := &upstream{
		pages:      map[int]int{0: 4},
		failDetail: map[string]bool{pageID(0, 1): true},
		unlisted:   map[string]bool{pageID(0, 2): true},
	}
	h := newHarness(t, up)

	result, err := h.campaign(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.DetailsFetched != 2 || result.DetailsFailed != 1 || result.DetailsSkipped != 1 {
		t.Fatalf("result = %+v", result)
	}
	if result.DailyDetails != 2 {
		t.Fatalf("daily details = %d, want 2 (failures and unlisted use no quota)", result.DailyDetails)
	}
	wantFailed := "appdetails " + pageID(0, 1)
	if len(result.FailedTargets) != 1 || result.FailedTargets[0] != wantFailed {
		t.Fatalf("failed targets = %v, want [%s]", result.FailedTargets, wantFailed)
	}

	b := h.published(t)
	have := map[string]bool{}
	for _, d := range b.Details {
		have[d.SteamID] = true
	}
	if have[pageID(0, 1)] || have[pageID(0, 2)] || !have[pageID(0, 0)] || !have[pageID(0, 3)] {
		t.Fatalf("published details = %v", have)
	}
	if got := h.progress.State().LastDetailIndex; got != 0 {
		t.Fatalf("detail cursor = %d, want 0 after wrapping", got)
	}
}

func TestCampaignFirstPageExhausted(t *testing.T) {
	h := newHarness(t, &upstream{pages: map[int]int{0: 5}, failList: map[int]bool{0: true}})

	_, err := h.campaign(t).Run(context.Background())
	if !errors.Is(err, ErrExhaustedAtFirstPage) {
		t.Fatalf("err = %v, want ErrExhaustedAtFirstPage", err)
	}
	if scraper.KindOf(err) != scraper.KindRateLimited {
		t.Fatalf("kind = %q, want rate_limited cause", scraper.KindOf(err))
	}
	if _, found, _ := h.store.LoadMetadata(); found {
		t.Fatalf("no snapshot expected after a fatal run")
	}
}

func TestCampaignLaterPageFailureStopsList(t *testing.T) {
	h := newHarness(t, &upstream{pages: map[int]int{0: 5, 1: 5}, failList: map[int]bool{1: true}})

	result, err := h.campaign(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != StopListFailed {
		t.Fatalf("stop reason = %q, want %q", result.StopReason, StopListFailed)
	}
	if got := h.progress.State().LastPage; got != 1 {
		t.Fatalf("lastPage = %d, want 1 so the failed page is retried", got)
	}
	if result.TotalGames != 5 || result.DetailsFetched != 5 {
		t.Fatalf("result = %+v", result)
	}
}

func TestCampaignMaxPages(t *testing.T) {
	h := newHarness(t, &upstream{pages: map[int]int{0: 3, 1: 3, 2: 3}})
	h.cfg.MaxPages = 2
	h.cfg.DailyDetailsLimit = 100

	result, err := h.campaign(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.StopReason != StopMaxPages || result.LastPage != 2 || result.TotalGames != 6 {
		t.Fatalf("result = %+v", result)
	}
}

func TestCampaignCeiling(t *testing.T) {
	h := newHarness(t, &upstream{pages: map[int]int{0: 4, 1: 4, 2: 4}})
	h.cfg.TotalGamesLimit = 5

	result, err := h.campaign(t).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	listCalls, _ := h.up.calls()
	if fmt.Sprint(listCalls) != "[0 1]" || result.StopReason != StopCeiling {
		t.Fatalf("list calls = %v, stop = %q", listCalls, result.StopReason)
	}
}

func TestSelectDetailBatch(t *testing.T) {
	summaries := []models.GameSummary{{SteamID: "1"}, {SteamID: "2"}, {SteamID: "3"}, {SteamID: "4"}}
	has := func(ids ...string) func(string) bool {
		set := map[string]bool{}
		for _, id := range ids {
			set[id] = true
		}
		return func(id string) bool { return set[id] }
	}

	tests := []struct {
		name  string
		has   func(string) bool
		start int
		quota int
		want  string
	}{
		{name: "from start", has: has(), start: 0, quota: 2, want: "[{1 0} {2 1}]"},
		{name: "existing skipped without quota", has: has("1", "2"), start: 0, quota: 2, want: "[{3 2} {4 3}]"},
		{name: "wraps", has: has(), start: 3, quota: 2, want: "[{4 3} {1 0}]"},
		{name: "cursor out of range", has: has(), start: 9, quota: 1, want: "[{1 0}]"},
		{name: "no quota", has: has(), start: 0, quota: 0, want: "[]"},
		{name: "all present", has: has("1", "2", "3", "4"), start: 1, quota: 3, want: "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectDetailBatch(summaries, tt.has, tt.start, tt.quota)
			if fmt.Sprint(got) != tt.want {
				t.Fatalf("batch = %v, want %s", got, tt.want)
			}
		})
	}
}

type failingMirror struct{}

func (failingMirror) WriteBundle(context.Context, *snapshot.Bundle) error {
	return errors.New("disk full")
}

func (failingMirror) Close() error { return nil }

func TestCampaignMirrorFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, &upstream{pages: map[int]int{0: 2}})
	c := h.campaign(t)
	WithMirrors(failingMirror{})(&c.runner)

	if _, err := c.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := h.store.Validate(); err != nil {
		t.Fatalf("primary files must be written: %v", err)
	}
}
