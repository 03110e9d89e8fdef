// Package search builds and queries the flattened index shipped to the UI.
package search

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/aluiziolira/steamfetch/models"
)

// FuzzyThreshold is the minimum Jaro-Winkler similarity for a fuzzy name hit.
const FuzzyThreshold = 0.85

// BuildIndex projects summaries, then details without a summary, into search
// entries. Summary tags are used when present, otherwise the detail genres.
// The output depends only on its inputs.
func BuildIndex(summaries []models.GameSummary, details []models.GameDetail) []models.SearchEntry {
	byID := make(map[string]models.GameDetail, len(details))
	for _, d := range details {
		byID[d.SteamID] = d
	}

	index := make([]models.SearchEntry, 0, len(summaries)+len(details))
	seen := make(map[string]struct{}, len(summaries))
	for _, s := range summaries {
		if _, dup := seen[s.SteamID]; dup {
			continue
		}
		seen[s.SteamID] = struct{}{}

		tags := s.Tags
		if d, ok := byID[s.SteamID]; ok && len(tags) == 0 {
			tags = d.Genres
		}
		index = append(index, entry(s.SteamID, s.Name, s.Developer, s.Publisher, tags))
	}
	for _, d := range details {
		if _, dup := seen[d.SteamID]; dup {
			continue
		}
		seen[d.SteamID] = struct{}{}
		index = append(index, entry(d.SteamID, d.Name, d.Developer, d.Publisher, d.Genres))
	}
	return index
}

func entry(id, name, developer, publisher string, tags []string) models.SearchEntry {
	lowered := strings.ToLower(name)
	out := models.SearchEntry{
		SteamID:    id,
		Name:       name,
		Developer:  developer,
		Publisher:  publisher,
		Tags:       append([]string{}, tags...),
		NameWords:  strings.Fields(lowered),
		SearchText: strings.ToLower(name + " " + developer + " " + publisher),
	}
	if out.NameWords == nil {
		out.NameWords = []string{}
	}
	return out
}

// Hit is one ranked query result.
type Hit struct {
	Entry models.SearchEntry
	Score float64
	Exact bool
}

// Query ranks entries against term. Substring matches on the search text rank
// first with score 1; otherwise the best Jaro-Winkler similarity between the
// term and any name word counts when it reaches FuzzyThreshold.
func Query(index []models.SearchEntry, term string, limit int) []Hit {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	termWords := strings.Fields(term)

	var hits []Hit
	for _, e := range index {
		if strings.Contains(e.SearchText, term) || tagMatch(e.Tags, term) {
			hits = append(hits, Hit{Entry: e, Score: 1, Exact: true})
			continue
		}
		if score := fuzzyScore(termWords, e.NameWords); score >= FuzzyThreshold {
			hits = append(hits, Hit{Entry: e, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Exact != hits[j].Exact {
			return hits[i].Exact
		}
		return hits[i].Score > hits[j].Score
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// fuzzyScore averages, over the term words, the best similarity to any name word.
func fuzzyScore(termWords, nameWords []string) float64 {
	if len(termWords) == 0 || len(nameWords) == 0 {
		return 0
	}
	var total float64
	for _, tw := range termWords {
		var best float64
		for _, nw := range nameWords {
			if sim := matchr.JaroWinkler(tw, nw, false); sim > best {
				best = sim
			}
		}
		total += best
	}
	return total / float64(len(termWords))
}

func tagMatch(tags []string, term string) bool {
	for _, tag := range tags {
		if strings.EqualFold(tag, term) {
			return true
		}
	}
	return false
}
