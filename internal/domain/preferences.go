package domain

import (
	"strings"
)

// Any is the sentinel stored when the user leaves a selection open.
const Any = "Any"

// StablePreferences are the long-lived taste settings.
type StablePreferences struct {
	WatchFrequency string   `json:"watchFrequency" yaml:"watchFrequency"`
	FavoritePeople []string `json:"favoritePeople" yaml:"favoritePeople"`
	Languages      []string `json:"languages" yaml:"languages"`
	Platforms      []string `json:"platforms" yaml:"platforms"`
	Eras           []string `json:"eras" yaml:"eras"`
	MovieDurations []string `json:"movieDurations" yaml:"movieDurations"`
	SeriesLengths  []string `json:"seriesLengths" yaml:"seriesLengths"`
	Country        string   `json:"country" yaml:"country"`
}

// SessionPreferences are the short-lived choices of one request.
type SessionPreferences struct {
	Genres         []string `json:"genres" yaml:"genres"`
	ExcludedGenres []string `json:"excludedGenres" yaml:"excludedGenres"`
	Mood           string   `json:"mood" yaml:"mood"`
	Keywords       string   `json:"keywords" yaml:"keywords"`
}

// UserPreferences is the union of stable and session preferences.
type UserPreferences struct {
	StablePreferences  `yaml:",inline"`
	SessionPreferences `yaml:",inline"`
}

// Normalize returns a copy where every list holds at least one entry, using
// the Any sentinel for cleared selections.
func (p StablePreferences) Normalize() StablePreferences {
	return StablePreferences{
		WatchFrequency: scalarOrAny(p.WatchFrequency),
		FavoritePeople: listOrAny(p.FavoritePeople),
		Languages:      listOrAny(p.Languages),
		Platforms:      listOrAny(p.Platforms),
		Eras:           listOrAny(p.Eras),
		MovieDurations: listOrAny(p.MovieDurations),
		SeriesLengths:  listOrAny(p.SeriesLengths),
		Country:        scalarOrAny(p.Country),
	}
}

// Normalize returns a copy with Any substituted for empty genre lists and
// trimmed free text.
func (p SessionPreferences) Normalize() SessionPreferences {
	return SessionPreferences{
		Genres:         listOrAny(p.Genres),
		ExcludedGenres: listOrAny(p.ExcludedGenres),
		Mood:           strings.TrimSpace(p.Mood),
		Keywords:       strings.TrimSpace(p.Keywords),
	}
}

// Normalize normalizes both halves.
func (p UserPreferences) Normalize() UserPreferences {
	return UserPreferences{
		StablePreferences:  p.StablePreferences.Normalize(),
		SessionPreferences: p.SessionPreferences.Normalize(),
	}
}

// IsAny reports whether a normalized list carries no constraint.
func IsAny(values []string) bool {
	for _, v := range values {
		if !strings.EqualFold(v, Any) {
			return false
		}
	}
	return true
}

func scalarOrAny(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return Any
	}
	return s
}

// listOrAny trims, drops blanks and case-insensitive duplicates, keeps order.
// An explicit Any mixed with real values is dropped: the values narrow.
func listOrAny(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || strings.EqualFold(v, Any) {
			continue
		}
		k := strings.ToLower(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return []string{Any}
	}
	return out
}
