package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// CurrentVersion is the record layout written by this package.
const CurrentVersion = 1

const (
	dateKeyLayout = "2006-01-02"
	// legacyDateLayout matches JavaScript's Date.prototype.toDateString.
	legacyDateLayout = "Mon Jan 02 2006"
)

// ProgressState is the durable cursor of a fetch campaign.
type ProgressState struct {
	Version           int       `json:"version"`
	LastPage          int       `json:"lastPage"`
	LastDetailIndex   int       `json:"lastDetailIndex"`
	TotalGames        int       `json:"totalGames"`
	TotalDetails      int       `json:"totalDetails"`
	DailyDetailsCount int       `json:"dailyDetailsCount"`
	LastDailyReset    string    `json:"lastDailyReset"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

func defaultState() ProgressState {
	return ProgressState{Version: CurrentVersion}
}

// storedState accepts both the versioned layout and the older unversioned one,
// whose lastUpdated may be null or a locale string.
type storedState struct {
	Version           int             `json:"version"`
	LastPage          int             `json:"lastPage"`
	LastDetailIndex   int             `json:"lastDetailIndex"`
	TotalGames        int             `json:"totalGames"`
	TotalDetails      int             `json:"totalDetails"`
	DailyDetailsCount int             `json:"dailyDetailsCount"`
	LastDailyReset    *string         `json:"lastDailyReset"`
	LastUpdated       json.RawMessage `json:"lastUpdated"`
}

// decodeState parses a stored record and upgrades it to CurrentVersion.
func decodeState(data []byte) (ProgressState, bool, error) {
	var stored storedState
	if err := json.Unmarshal(data, &stored); err != nil {
		return ProgressState{}, false, fmt.Errorf("decode progress: %w", err)
	}
	if stored.Version > CurrentVersion {
		return ProgressState{}, false, fmt.Errorf("progress version %d is newer than supported %d", stored.Version, CurrentVersion)
	}

	migrated := stored.Version < CurrentVersion
	state := ProgressState{
		Version:           stored.Version,
		LastPage:          max(stored.LastPage, 0),
		LastDetailIndex:   max(stored.LastDetailIndex, 0),
		TotalGames:        max(stored.TotalGames, 0),
		TotalDetails:      max(stored.TotalDetails, 0),
		DailyDetailsCount: max(stored.DailyDetailsCount, 0),
		LastUpdated:       parseUpdated(stored.LastUpdated),
	}
	if stored.LastDailyReset != nil {
		key, legacy := normalizeDateKey(*stored.LastDailyReset)
		state.LastDailyReset = key
		migrated = migrated || legacy
	}

	state.Version = CurrentVersion
	return state, migrated, nil
}

// normalizeDateKey converts a toDateString value to an ISO date key.
func normalizeDateKey(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	if _, err := time.Parse(dateKeyLayout, value); err == nil {
		return value, false
	}
	if parsed, err := time.Parse(legacyDateLayout, value); err == nil {
		return parsed.Format(dateKeyLayout), true
	}
	// Unknown format: drop it so the next daily check resets the counter.
	return "", true
}

func parseUpdated(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return time.Time{}
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func dateKey(t time.Time) string {
	return t.Format(dateKeyLayout)
}
