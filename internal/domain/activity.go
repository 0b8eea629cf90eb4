package domain

import (
	"fmt"
	"strings"
	"time"
)

// LocalStartLayout is the layout of the provider's local start time once the zone marker is stripped.
const LocalStartLayout = "2006-01-02T15:04:05"

// RawActivity is an activity as returned by the activity source.
type RawActivity struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	SportType      string `json:"sport_type,omitempty"`
	StartDateLocal string `json:"start_date_local"`
}

// StoredActivity is the row persisted in the activity store, one per distinct ID.
type StoredActivity struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Time time.Time `json:"time"`
}

// ParseLocalStart strips a trailing zone designator and parses the remainder as UTC.
//
// The provider's local start time is not actually UTC; storing it as such is the established
// behaviour and is kept deliberately.
func ParseLocalStart(value string) (time.Time, error) {
	trimmed := strings.TrimSuffix(value, "Z")
	parsed, err := time.ParseInLocation(LocalStartLayout, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse local start time %q: %w", value, err)
	}
	return parsed, nil
}

// Normalize turns a raw activity into its stored shape.
func Normalize(raw RawActivity) (StoredActivity, error) {
	ts, err := ParseLocalStart(raw.StartDateLocal)
	if err != nil {
		return StoredActivity{}, err
	}
	return StoredActivity{ID: raw.ID, Name: raw.Name, Time: ts}, nil
}
