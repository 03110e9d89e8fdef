// Package models defines data structures shared by the fetcher, the pipeline and the snapshot writer.
package models

import "time"

// GameSummary is one row of the SteamSpy list endpoint.
type GameSummary struct {
	SteamID         string    `json:"steamId"`
	Name            string    `json:"name"`
	Developer       string    `json:"developer"`
	Publisher       string    `json:"publisher"`
	Tags            []string  `json:"tags"`
	Price           float64   `json:"price"`
	Owners          string    `json:"owners"`
	AveragePlaytime int       `json:"averagePlaytime"`
	Score           int       `json:"score"`
	Page            int       `json:"page"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// Price is the structured price of a store item. Amounts are in major units.
type Price struct {
	Currency        string  `json:"currency"`
	Initial         float64 `json:"initial"`
	Final           float64 `json:"final"`
	DiscountPercent int     `json:"discount_percent"`
	Formatted       string  `json:"formatted"`
}

// Platforms lists the operating systems a game ships for.
type Platforms struct {
	Windows bool `json:"windows"`
	Mac     bool `json:"mac"`
	Linux   bool `json:"linux"`
}

// Movie references a trailer.
type Movie struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
	Webm      string `json:"webm,omitempty"`
}

// GameDetail is the enriched record built from the store appdetails endpoint.
type GameDetail struct {
	SteamID         string    `json:"steamId"`
	Name            string    `json:"name"`
	Type            string    `json:"type"`
	Description     string    `json:"description"`
	FullDescription string    `json:"fullDescription"`
	Developer       string    `json:"developer"`
	Publisher       string    `json:"publisher"`
	ReleaseDate     string    `json:"releaseDate"`
	ComingSoon      bool      `json:"comingSoon"`
	HeaderImage     string    `json:"headerImage"`
	Screenshots     []string  `json:"screenshots"`
	Movies          []Movie   `json:"movies"`
	Genres          []string  `json:"genres"`
	Categories      []string  `json:"categories"`
	Platforms       Platforms `json:"platforms"`
	Price           *Price    `json:"price"`
	IsFree          bool      `json:"isFree"`
	DLC             []int64   `json:"dlc"`
	Achievements    int       `json:"achievements"`
	MetacriticScore *int      `json:"metacriticScore,omitempty"`
	Recommendations int       `json:"recommendations"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// SearchEntry is one flattened, lower-cased projection used for client-side matching.
type SearchEntry struct {
	SteamID    string   `json:"steamId"`
	Name       string   `json:"name"`
	Developer  string   `json:"developer"`
	Publisher  string   `json:"publisher"`
	Tags       []string `json:"tags"`
	NameWords  []string `json:"nameWords"`
	SearchText string   `json:"searchText"`
}

// PriceQuote is a point-in-time price for a single app.
type PriceQuote struct {
	SteamID         string    `json:"steamId"`
	Price           float64   `json:"price"`
	OriginalPrice   float64   `json:"originalPrice"`
	DiscountPercent int       `json:"discountPercent"`
	Currency        string    `json:"currency"`
	Formatted       string    `json:"formatted"`
	IsFree          bool      `json:"isFree"`
	OnSale          bool      `json:"onSale"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// FetchStats is a copy of request counters at one point in time.
type FetchStats struct {
	Requests    int64   `json:"requests"`
	Failures    int64   `json:"failures"`
	Retries     int64   `json:"retries"`
	SuccessRate float64 `json:"successRate"`
}

// Metadata describes one published snapshot bundle. It is written after every data file.
type Metadata struct {
	ReleaseID         string     `json:"releaseId"`
	LastUpdated       time.Time  `json:"lastUpdated"`
	TotalGames        int        `json:"totalGames"`
	TotalDetails      int        `json:"totalDetails"`
	LastPage          int        `json:"lastPage"`
	LastDetailIndex   int        `json:"lastDetailIndex"`
	DailyDetailsCount int        `json:"dailyDetailsCount"`
	Version           string     `json:"version"`
	DataSource        string     `json:"dataSource"`
	Mode              string     `json:"mode"`
	StopReason        string     `json:"stopReason,omitempty"`
	RequestStats      FetchStats `json:"requestStats"`
}

// RunResult holds the overall result of one fetch campaign.
type RunResult struct {
	Mode            string
	StartTime       time.Time
	EndTime         time.Time
	StartPage       int
	LastPage        int
	PagesFetched    int
	TotalGames      int
	NewGames        int
	TotalDetails    int
	DetailsFetched  int
	DetailsSkipped  int
	DetailsFailed   int
	DailyDetails    int
	DailyLimit      int
	StopReason      string
	FailedTargets   []string
	ErrorsByKind    map[string]int
	Stats           FetchStats
	ValidationDrops map[string]int
}
