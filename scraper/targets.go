package scraper

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/aluiziolira/steamfetch/config"
)

// Target identifies one remote resource. It is immutable per request.
type Target struct {
	Name       string
	URL        string
	ExpectJSON bool
}

func (t Target) String() string {
	return t.Name
}

// Endpoints builds targets for the SteamSpy and Steam Store surfaces and the
// video feed.
type Endpoints struct {
	SpyURL   string
	StoreURL string
	VideoURL string
	Language string
	Region   string
}

// EndpointsFromConfig maps the configured upstream URLs and locale.
func EndpointsFromConfig(cfg *config.Config) Endpoints {
	return Endpoints{
		SpyURL:   cfg.SpyURL,
		StoreURL: cfg.StoreURL,
		VideoURL: cfg.VideoURL,
		Language: cfg.Language,
		Region:   cfg.Region,
	}
}

// ListPage is one page of the SteamSpy "all" listing.
func (e Endpoints) ListPage(page int) Target {
	q := url.Values{}
	q.Set("request", "all")
	q.Set("page", strconv.Itoa(page))
	return Target{Name: "list page " + strconv.Itoa(page), URL: e.SpyURL + "?" + q.Encode(), ExpectJSON: true}
}

// TopList is the SteamSpy top-100 over the last two weeks.
func (e Endpoints) TopList() Target {
	return Target{Name: "top100in2weeks", URL: e.SpyURL + "?request=top100in2weeks", ExpectJSON: true}
}

// AppDetails is the store detail endpoint for one app.
func (e Endpoints) AppDetails(id string) Target {
	q := e.locale()
	q.Set("appids", id)
	return Target{Name: "appdetails " + id, URL: e.store() + "/api/appdetails?" + q.Encode(), ExpectJSON: true}
}

// PriceOverview is AppDetails restricted to the price block.
func (e Endpoints) PriceOverview(id string) Target {
	q := e.locale()
	q.Set("appids", id)
	q.Set("filters", "price_overview")
	return Target{Name: "price " + id, URL: e.store() + "/api/appdetails?" + q.Encode(), ExpectJSON: true}
}

// StoreSearch is the JSON storefront search.
func (e Endpoints) StoreSearch(term string) Target {
	q := e.locale()
	q.Set("term", term)
	return Target{Name: "storesearch " + term, URL: e.store() + "/api/storesearch/?" + q.Encode(), ExpectJSON: true}
}

// SearchPage is the HTML storefront search results page.
func (e Endpoints) SearchPage(term string) Target {
	q := e.locale()
	q.Set("term", term)
	return Target{Name: "search page " + term, URL: e.store() + "/search/?" + q.Encode()}
}

// Landing is the trusted page revisited after a bot challenge.
func (e Endpoints) Landing() Target {
	return Target{Name: "landing", URL: e.store() + "/"}
}

// VideoFeed is the scrolling home feed of the video site.
func (e Endpoints) VideoFeed() Target {
	return Target{Name: "video feed", URL: e.VideoURL}
}

func (e Endpoints) store() string {
	return strings.TrimSuffix(e.StoreURL, "/")
}

func (e Endpoints) locale() url.Values {
	q := url.Values{}
	if e.Language != "" {
		q.Set("l", e.Language)
	}
	if e.Region != "" {
		q.Set("cc", e.Region)
	}
	return q
}
