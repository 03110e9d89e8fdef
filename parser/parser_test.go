package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aluiziolira/steamfetch/models"
)

var fixedNow = time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)

func TestValidateSummary(t *testing.T) {
	tests := []struct {
		name    string
		summary *models.GameSummary
		wantErr bool
	}{
		{
			name:    "valid summary",
			summary: &models.GameSummary{SteamID: "730", Name: "Counter-Strike 2"},
			wantErr: false,
		},
		{
			name:    "nil",
			summary: nil,
			wantErr: true,
		},
		{
			name:    "missing id",
			summary: &models.GameSummary{SteamID: " ", Name: "Dota 2"},
			wantErr: true,
		},
		{
			name:    "non numeric id",
			summary: &models.GameSummary{SteamID: "abc", Name: "Dota 2"},
			wantErr: true,
		},
		{
			name:    "missing name",
			summary: &models.GameSummary{SteamID: "570"},
			wantErr: true,
		},
		{
			name:    "negative price",
			summary: &models.GameSummary{SteamID: "570", Name: "Dota 2", Price: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSummary(tt.summary)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSummary() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "  Half-Life  2 ", expected: "Half-Life 2"},
		{input: "Portal", expected: "Portal"},
		{input: "\tStardew\nValley", expected: "Stardew Valley"},
		{input: "", expected: ""},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.expected {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseListPage(t *testing.T) {
	body := []byte(`{
		"570": {"appid": 570, "name": "Dota 2", "developer": "Valve", "publisher": "Valve",
			"score_rank": "", "owners": "200,000,000 .. 500,000,000", "average_forever": 1000,
			"price": "0", "tags": {"Free to Play": 50, "MOBA": 40}},
		"10": {"appid": 10, "name": "Counter-Strike", "developer": "", "publisher": "Valve",
			"score_rank": 97, "owners": "", "average_forever": "12", "price": "999", "tags": []}
	}`)

	got, err := ParseListPage(body, 2, fixedNow)
	if err != nil {
		t.Fatalf("ParseListPage: %v", err)
	}

	want := []models.GameSummary{
		{
			SteamID: "10", Name: "Counter-Strike", Developer: unknownDeveloper, Publisher: "Valve",
			Tags: []string{}, Price: 9.99, Owners: unknownOwners, AveragePlaytime: 12, Score: 97,
			Page: 2, LastUpdated: fixedNow,
		},
		{
			SteamID: "570", Name: "Dota 2", Developer: "Valve", Publisher: "Valve",
			Tags: []string{"Free to Play", "MOBA"}, Owners: "200,000,000 .. 500,000,000",
			AveragePlaytime: 1000, Page: 2, LastUpdated: fixedNow,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summaries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseListPageTagLimit(t *testing.T) {
	body := []byte(`{"1":{"appid":1,"name":"Many Tags","tags":{"a":1,"b":1,"c":1,"d":1,"e":1,"f":1,"g":1,"h":1,"i":1,"j":1,"k":1,"l":1}}}`)
	got, err := ParseListPage(body, 0, fixedNow)
	if err != nil {
		t.Fatalf("ParseListPage: %v", err)
	}
	if len(got[0].Tags) != 10 || got[0].Tags[9] != "j" {
		t.Fatalf("tags = %v, want first 10 in document order", got[0].Tags)
	}
}

func TestParseListPageEmpty(t *testing.T) {
	for _, body := range []string{`[]`, `{}`, ` `} {
		if _, err := ParseListPage([]byte(body), 5, fixedNow); !errors.Is(err, ErrNoListData) {
			t.Fatalf("ParseListPage(%q) error = %v, want ErrNoListData", body, err)
		}
	}
}

func TestParseTopListLimit(t *testing.T) {
	body := []byte(`{"30":{"appid":30,"name":"C"},"10":{"appid":10,"name":"A"},"20":{"appid":20,"name":"B"}}`)
	got, err := ParseTopList(body, 2, fixedNow)
	if err != nil {
		t.Fatalf("ParseTopList: %v", err)
	}
	if len(got) != 2 || got[0].SteamID != "10" || got[1].SteamID != "20" {
		t.Fatalf("top list = %+v", got)
	}
}

func TestParseAppDetailsFreeByPrice(t *testing.T) {
	body := []byte(`{"730":{"success":true,"data":{"name":"Counter-Strike 2","price_overview":{"final":0}}}}`)
	detail, err := ParseAppDetails("730", body, fixedNow)
	if err != nil {
		t.Fatalf("ParseAppDetails: %v", err)
	}
	if detail.Name != "Counter-Strike 2" {
		t.Fatalf("name = %q", detail.Name)
	}
	if !detail.IsFree && (detail.Price == nil || detail.Price.Final != 0) {
		t.Fatalf("expected free app, got %+v", detail)
	}
	if detail.Type != "game" || detail.Developer != unknownDeveloper {
		t.Fatalf("defaults not applied: %+v", detail)
	}
}

func TestParseAppDetailsFull(t *testing.T) {
	body := []byte(`{"620":{"success":true,"data":{
		"name":"Portal 2","type":"game","short_description":"short","detailed_description":"long",
		"developers":["Valve"],"publishers":["Valve","Other"],
		"release_date":{"coming_soon":false,"date":"2011年4月19日"},
		"header_image":"h.jpg",
		"screenshots":[{"path_thumbnail":"s1"},{"path_thumbnail":"s2"},{"path_thumbnail":"s3"},{"path_thumbnail":"s4"}],
		"movies":[{"id":1,"name":"m1","thumbnail":"t1","webm":{"480":"a","max":"b"}},{"id":2,"name":"m2","thumbnail":"t2","webm":{"480":"c"}},{"id":3}],
		"genres":[{"description":"Action"},{"description":"Puzzle"}],
		"categories":[{"description":"1"},{"description":"2"},{"description":"3"},{"description":"4"},{"description":"5"},{"description":"6"},{"description":"7"},{"description":"8"},{"description":"9"}],
		"platforms":{"windows":true,"mac":true,"linux":true},
		"price_overview":{"currency":"CNY","initial":4800,"final":960,"discount_percent":80,"final_formatted":"¥ 9.60"},
		"dlc":[1,2,3,4,5,6],
		"achievements":{"total":51},
		"metacritic":{"score":95},
		"recommendations":{"total":300000}
	}}}`)

	got, err := ParseAppDetails("620", body, fixedNow)
	if err != nil {
		t.Fatalf("ParseAppDetails: %v", err)
	}
	score := 95
	want := &models.GameDetail{
		SteamID: "620", Name: "Portal 2", Type: "game", Description: "short", FullDescription: "long",
		Developer: "Valve", Publisher: "Valve", ReleaseDate: "2011年4月19日", HeaderImage: "h.jpg",
		Screenshots: []string{"s1", "s2", "s3"},
		Movies: []models.Movie{
			{ID: 1, Name: "m1", Thumbnail: "t1", Webm: "b"},
			{ID: 2, Name: "m2", Thumbnail: "t2", Webm: "c"},
		},
		Genres:          []string{"Action", "Puzzle"},
		Categories:      []string{"1", "2", "3", "4", "5", "6", "7", "8"},
		Platforms:       models.Platforms{Windows: true, Mac: true, Linux: true},
		Price:           &models.Price{Currency: "CNY", Initial: 48, Final: 9.6, DiscountPercent: 80, Formatted: "¥ 9.60"},
		DLC:             []int64{1, 2, 3, 4, 5},
		Achievements:    51,
		MetacriticScore: &score,
		Recommendations: 300000,
		LastUpdated:     fixedNow,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("detail mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAppDetailsNotListed(t *testing.T) {
	body := []byte(`{"999999":{"success":false}}`)
	if _, err := ParseAppDetails("999999", body, fixedNow); !errors.Is(err, ErrNotListed) {
		t.Fatalf("error = %v, want ErrNotListed", err)
	}
}

func TestParseAppDetailsMissingEntry(t *testing.T) {
	body := []byte(`{"1":{"success":true,"data":{"name":"x"}}}`)
	_, err := ParseAppDetails("2", body, fixedNow)
	if err == nil || errors.Is(err, ErrNotListed) {
		t.Fatalf("error = %v, want decode failure", err)
	}
}

func TestParsePriceOverview(t *testing.T) {
	tests := []struct {
		name string
		body string
		want *models.PriceQuote
	}{
		{
			name: "on sale",
			body: `{"1091500":{"success":true,"data":{"price_overview":{"currency":"CNY","initial":29800,"final":14900,"discount_percent":50,"final_formatted":"¥ 149.00"}}}}`,
			want: &models.PriceQuote{
				SteamID: "1091500", Price: 149, OriginalPrice: 298, DiscountPercent: 50,
				Currency: "CNY", Formatted: "¥ 149.00", OnSale: true, LastUpdated: fixedNow,
			},
		},
		{
			name: "free app",
			body: `{"1091500":{"success":true,"data":[]}}`,
			want: &models.PriceQuote{SteamID: "1091500", IsFree: true, LastUpdated: fixedNow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePriceOverview("1091500", []byte(tt.body), fixedNow)
			if err != nil {
				t.Fatalf("ParsePriceOverview: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("quote mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseStoreSearch(t *testing.T) {
	body := []byte(`{"total":3,"items":[
		{"type":"app","name":"Elden Ring","id":1245620,"price":{"currency":"CNY","initial":29800,"final":29800}},
		{"type":"app","name":"Hades","id":"1145360"},
		{"type":"sub","name":"Bundle","id":0}
	]}`)
	got, err := ParseStoreSearch(body, 10, fixedNow)
	if err != nil {
		t.Fatalf("ParseStoreSearch: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("items = %d, want 2", len(got))
	}
	if got[0].SteamID != "1245620" || got[0].Price != 298 {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].SteamID != "1145360" || got[1].Developer != unknownDeveloper {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestParseSearchPage(t *testing.T) {
	page := []byte(`<html><body><div id="search_resultsRows">
		<a class="search_result_row" data-ds-appid="292030" href="#"><span class="title">The Witcher 3: Wild Hunt</span>
			<div class="search_price_discount_combined" data-price-final="3900"></div></a>
		<a class="search_result_row" data-ds-appid="292030" href="#"><span class="title">Duplicate</span></a>
		<a class="search_result_row" data-ds-bundleid="1" href="#"><span class="title">Bundle</span></a>
		<a class="search_result_row" data-ds-appid="413150,1" href="#"><span class="title"> Stardew  Valley </span></a>
	</div></body></html>`)

	got, err := ParseSearchPage(page, 0, fixedNow)
	if err != nil {
		t.Fatalf("ParseSearchPage: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2: %+v", len(got), got)
	}
	if got[0].SteamID != "292030" || got[0].Name != "The Witcher 3: Wild Hunt" || got[0].Price != 39 {
		t.Fatalf("first = %+v", got[0])
	}
	if got[1].SteamID != "413150" || got[1].Name != "Stardew Valley" {
		t.Fatalf("second = %+v", got[1])
	}
}

func TestParseSearchPageNoRows(t *testing.T) {
	if _, err := ParseSearchPage([]byte(`<html><body>nothing</body></html>`), 5, fixedNow); !errors.Is(err, ErrNoListData) {
		t.Fatalf("error = %v, want ErrNoListData", err)
	}
}

const videoFeed = `<html><body><div class="feed2">
<div class="bili-video-card"><div class="bili-video-card__wrap">
	<a class="bili-video-card__image--link" href="//www.bilibili.com/video/BV1xK4y1a7Zq/">
		<div class="bili-video-card__cover"><picture>
			<source srcset="//i0.hdslb.com/bfs/archive/cover.jpg@672w.avif" type="image/avif">
			<source srcset="//i0.hdslb.com/bfs/archive/cover.jpg@672w.webp" type="image/webp">
		</picture></div>
		<div class="bili-video-card__stats">
			<span class="bili-video-card__stats--text">12.3万</span>
			<span class="bili-video-card__stats__duration">10:42</span>
		</div>
	</a>
	<div class="bili-video-card__info">
		<h3 class="bili-video-card__info--tit"><a href="https://www.bilibili.com/video/BV1xK4y1a7Zq/">  Elden   Ring speedrun </a></h3>
		<a class="bili-video-card__info--owner" href="//space.bilibili.com/42">
			<span class="bili-video-card__info--author">Speedy</span>
			<span class="bili-video-card__info--date">· 3-14</span>
		</a>
	</div>
</div></div>
<div class="bili-video-card"><div class="bili-video-card__wrap">
	<a class="bili-video-card__image--link" href="https://live.bilibili.com/123"></a>
	<h3 class="bili-video-card__info--tit">Live room</h3>
</div></div>
<div class="bili-video-card"><div class="bili-video-card__wrap">
	<a class="bili-video-card__image--link" href="/video/BV1Ab411c7Xy"></a>
	<h3 class="bili-video-card__info--tit">Plain title</h3>
</div></div>
</div></body></html>`

func TestParseVideoCards(t *testing.T) {
	got, dropped, err := ParseVideoCards([]byte(videoFeed), "https://www.bilibili.com/", fixedNow)
	if err != nil {
		t.Fatalf("ParseVideoCards: %v", err)
	}
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1 (live room)", dropped)
	}

	want := []models.Video{
		{
			BvID:           "BV1xK4y1a7Zq",
			Timestamp:      fixedNow,
			VideoURL:       "https://www.bilibili.com/video/BV1xK4y1a7Zq/",
			Title:          "Elden Ring speedrun",
			CoverURL:       "https://i0.hdslb.com/bfs/archive/cover.jpg@672w.webp",
			PlayCount:      "12.3万",
			Duration:       "10:42",
			Author:         "Speedy",
			AuthorSpaceURL: "https://space.bilibili.com/42",
			PublishDate:    "3-14",
		},
		{
			BvID:      "BV1Ab411c7Xy",
			Timestamp: fixedNow,
			VideoURL:  "https://www.bilibili.com/video/BV1Ab411c7Xy",
			Title:     "Plain title",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("videos mismatch (-want +got):\n%s", diff)
	}
}

func TestParseVideoCardsEmptyFeed(t *testing.T) {
	got, dropped, err := ParseVideoCards([]byte(`<html><body>loading</body></html>`), "https://www.bilibili.com/", fixedNow)
	if err != nil || len(got) != 0 || dropped != 0 {
		t.Fatalf("empty feed = %v, %d, %v", got, dropped, err)
	}
}
