package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aluiziolira/steamfetch/models"
)

type appEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type storePrice struct {
	Currency        string  `json:"currency"`
	Initial         flexInt `json:"initial"`
	Final           flexInt `json:"final"`
	DiscountPercent flexInt `json:"discount_percent"`
	FinalFormatted  string  `json:"final_formatted"`
}

type storeApp struct {
	Name                string   `json:"name"`
	Type                string   `json:"type"`
	ShortDescription    string   `json:"short_description"`
	DetailedDescription string   `json:"detailed_description"`
	Developers          []string `json:"developers"`
	Publishers          []string `json:"publishers"`
	ReleaseDate         *struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
	HeaderImage string `json:"header_image"`
	Screenshots []struct {
		PathThumbnail string `json:"path_thumbnail"`
	} `json:"screenshots"`
	Movies []struct {
		ID        int64             `json:"id"`
		Name      string            `json:"name"`
		Thumbnail string            `json:"thumbnail"`
		Webm      map[string]string `json:"webm"`
	} `json:"movies"`
	Genres []struct {
		Description string `json:"description"`
	} `json:"genres"`
	Categories []struct {
		Description string `json:"description"`
	} `json:"categories"`
	Platforms     models.Platforms `json:"platforms"`
	PriceOverview *storePrice      `json:"price_overview"`
	IsFree        bool             `json:"is_free"`
	DLC           []int64          `json:"dlc"`
	Achievements  *struct {
		Total int `json:"total"`
	} `json:"achievements"`
	Metacritic *struct {
		Score int `json:"score"`
	} `json:"metacritic"`
	Recommendations *struct {
		Total int `json:"total"`
	} `json:"recommendations"`
}

// lookupApp extracts the envelope for id. success:false is ErrNotListed.
func lookupApp(id string, body []byte) (json.RawMessage, error) {
	var envelopes map[string]appEnvelope
	if err := json.Unmarshal(body, &envelopes); err != nil {
		return nil, fmt.Errorf("decode appdetails: %w", err)
	}
	env, ok := envelopes[id]
	if !ok {
		return nil, fmt.Errorf("appdetails has no entry for %s", id)
	}
	if !env.Success {
		return nil, fmt.Errorf("%s: %w", id, ErrNotListed)
	}
	return bytes.TrimSpace(env.Data), nil
}

// ParseAppDetails maps the appdetails payload for id. Amounts are converted to
// major units; a zero final price marks the app free.
func ParseAppDetails(id string, body []byte, now time.Time) (*models.GameDetail, error) {
	data, err := lookupApp(id, body)
	if err != nil {
		return nil, err
	}
	var app storeApp
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("decode appdetails data for %s: %w", id, err)
	}

	detail := &models.GameDetail{
		SteamID:         id,
		Name:            NormalizeName(app.Name),
		Type:            orDefault(app.Type, "game"),
		Description:     app.ShortDescription,
		FullDescription: app.DetailedDescription,
		Developer:       firstOr(app.Developers, unknownDeveloper),
		Publisher:       firstOr(app.Publishers, unknownPublisher),
		HeaderImage:     app.HeaderImage,
		Screenshots:     []string{},
		Movies:          []models.Movie{},
		Genres:          []string{},
		Categories:      []string{},
		Platforms:       app.Platforms,
		IsFree:          app.IsFree,
		DLC:             truncate(app.DLC, maxDLC),
		LastUpdated:     now,
	}
	if detail.DLC == nil {
		detail.DLC = []int64{}
	}
	if app.ReleaseDate != nil {
		detail.ReleaseDate = app.ReleaseDate.Date
		detail.ComingSoon = app.ReleaseDate.ComingSoon
	}
	for _, shot := range truncate(app.Screenshots, maxScreenshots) {
		detail.Screenshots = append(detail.Screenshots, shot.PathThumbnail)
	}
	for _, movie := range truncate(app.Movies, maxMovies) {
		webm := movie.Webm["max"]
		if webm == "" {
			webm = movie.Webm["480"]
		}
		detail.Movies = append(detail.Movies, models.Movie{
			ID:        movie.ID,
			Name:      movie.Name,
			Thumbnail: movie.Thumbnail,
			Webm:      webm,
		})
	}
	for _, genre := range app.Genres {
		detail.Genres = append(detail.Genres, genre.Description)
	}
	for _, category := range truncate(app.Categories, maxCategories) {
		detail.Categories = append(detail.Categories, category.Description)
	}
	if app.PriceOverview != nil {
		detail.Price = toPrice(app.PriceOverview)
		if detail.Price.Final == 0 {
			detail.IsFree = true
		}
	}
	if app.Achievements != nil {
		detail.Achievements = app.Achievements.Total
	}
	if app.Metacritic != nil {
		score := app.Metacritic.Score
		detail.MetacriticScore = &score
	}
	if app.Recommendations != nil {
		detail.Recommendations = app.Recommendations.Total
	}
	if err := ValidateDetail(detail); err != nil {
		return nil, err
	}
	return detail, nil
}

// ParsePriceOverview maps the price_overview-filtered appdetails payload. An
// app without a price block is reported free.
func ParsePriceOverview(id string, body []byte, now time.Time) (*models.PriceQuote, error) {
	data, err := lookupApp(id, body)
	if err != nil {
		return nil, err
	}
	quote := &models.PriceQuote{SteamID: id, LastUpdated: now}

	// The store sends "data": [] when the filtered block is empty.
	if len(data) == 0 || data[0] != '{' {
		quote.IsFree = true
		return quote, nil
	}
	var payload struct {
		PriceOverview *storePrice `json:"price_overview"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode price for %s: %w", id, err)
	}
	if payload.PriceOverview == nil {
		quote.IsFree = true
		return quote, nil
	}
	price := toPrice(payload.PriceOverview)
	quote.Price = price.Final
	quote.OriginalPrice = price.Initial
	quote.DiscountPercent = price.DiscountPercent
	quote.Currency = price.Currency
	quote.Formatted = price.Formatted
	quote.OnSale = price.DiscountPercent > 0
	quote.IsFree = price.Final == 0
	return quote, nil
}

func toPrice(p *storePrice) *models.Price {
	return &models.Price{
		Currency:        p.Currency,
		Initial:         float64(p.Initial) / 100,
		Final:           float64(p.Final) / 100,
		DiscountPercent: int(p.DiscountPercent),
		Formatted:       p.FinalFormatted,
	}
}

type storeSearchResult struct {
	Total int `json:"total"`
	Items []struct {
		Type  string      `json:"type"`
		Name  string      `json:"name"`
		ID    flexInt     `json:"id"`
		Price *storePrice `json:"price"`
	} `json:"items"`
}

// ParseStoreSearch maps the storesearch JSON to summaries, keeping at most limit items.
func ParseStoreSearch(body []byte, limit int, now time.Time) ([]models.GameSummary, error) {
	var result storeSearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode storesearch: %w", err)
	}
	items := result.Items
	if limit > 0 {
		items = truncate(items, limit)
	}
	out := make([]models.GameSummary, 0, len(items))
	for _, item := range items {
		if item.ID <= 0 {
			continue
		}
		id := strconv.FormatInt(int64(item.ID), 10)
		summary := models.GameSummary{
			SteamID:     id,
			Name:        orDefault(NormalizeName(item.Name), "Game "+id),
			Developer:   unknownDeveloper,
			Publisher:   unknownPublisher,
			Tags:        []string{},
			Owners:      unknownOwners,
			LastUpdated: now,
		}
		if item.Price != nil {
			summary.Price = float64(item.Price.Final) / 100
		}
		out = append(out, summary)
	}
	return out, nil
}
