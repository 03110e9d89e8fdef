package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aluiziolira/steamfetch/models"
)

type spyApp struct {
	AppID          flexInt         `json:"appid"`
	Name           string          `json:"name"`
	Developer      string          `json:"developer"`
	Publisher      string          `json:"publisher"`
	ScoreRank      flexInt         `json:"score_rank"`
	Owners         string          `json:"owners"`
	AverageForever flexInt         `json:"average_forever"`
	Price          flexInt         `json:"price"`
	Tags           json.RawMessage `json:"tags"`
}

// flexInt accepts numbers, numeric strings and empty strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("flexInt %q: %w", s, err)
		}
		*f = flexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// ParseListPage maps one page of the SteamSpy "all" listing. Entries are ordered by
// numeric app id. An empty page returns ErrNoListData.
func ParseListPage(body []byte, page int, now time.Time) ([]models.GameSummary, error) {
	apps, err := decodeSpyMap(body)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, ErrNoListData
	}
	out := make([]models.GameSummary, 0, len(apps))
	for _, id := range sortedIDs(apps) {
		summary := toSummary(id, apps[id], maxTags)
		summary.Page = page
		summary.LastUpdated = now
		out = append(out, summary)
	}
	return out, nil
}

// ParseTopList maps the top100in2weeks payload, keeping at most limit entries.
func ParseTopList(body []byte, limit int, now time.Time) ([]models.GameSummary, error) {
	apps, err := decodeSpyMap(body)
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, ErrNoListData
	}
	ids := sortedIDs(apps)
	if limit > 0 {
		ids = truncate(ids, limit)
	}
	out := make([]models.GameSummary, 0, len(ids))
	for _, id := range ids {
		summary := toSummary(id, apps[id], maxTags)
		summary.LastUpdated = now
		out = append(out, summary)
	}
	return out, nil
}

func decodeSpyMap(body []byte) (map[string]spyApp, error) {
	trimmed := bytes.TrimSpace(body)
	// SteamSpy answers an out-of-range page with an empty array.
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("[]")) || bytes.Equal(trimmed, []byte("{}")) {
		return nil, nil
	}
	var apps map[string]spyApp
	if err := json.Unmarshal(trimmed, &apps); err != nil {
		return nil, fmt.Errorf("decode steamspy payload: %w", err)
	}
	return apps, nil
}

func toSummary(id string, app spyApp, tagLimit int) models.GameSummary {
	if app.AppID > 0 {
		id = strconv.FormatInt(int64(app.AppID), 10)
	}
	name := NormalizeName(app.Name)
	if name == "" {
		name = "Game " + id
	}
	return models.GameSummary{
		SteamID:         id,
		Name:            name,
		Developer:       orDefault(app.Developer, unknownDeveloper),
		Publisher:       orDefault(app.Publisher, unknownPublisher),
		Tags:            truncate(tagNames(app.Tags), tagLimit),
		Price:           float64(app.Price) / 100,
		Owners:          orDefault(app.Owners, unknownOwners),
		AveragePlaytime: int(app.AverageForever),
		Score:           int(app.ScoreRank),
	}
}

// tagNames returns the keys of the tags object in document order. SteamSpy
// sends [] when an app has no tags.
func tagNames(raw json.RawMessage) []string {
	tags := []string{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return tags
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return tags
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			slog.Debug("tag decode stopped", slog.Any("error", err))
			return tags
		}
		key, ok := tok.(string)
		if !ok {
			return tags
		}
		tags = append(tags, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return tags
		}
	}
	return tags
}

func sortedIDs(apps map[string]spyApp) []string {
	ids := make([]string, 0, len(apps))
	for id := range apps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.ParseInt(ids[i], 10, 64)
		b, errB := strconv.ParseInt(ids[j], 10, 64)
		if errA != nil || errB != nil {
			return ids[i] < ids[j]
		}
		return a < b
	})
	return ids
}
