// Package domain holds the entities, error taxonomy and ports of the
// recommendation pipeline.
package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fairyhunter13/reelmatch/pkg/textx"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrMissingCredential = errors.New("missing api credential")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrUpstreamTransient = errors.New("upstream transient error")
	ErrSafetyBlocked     = errors.New("blocked by safety filters")
	ErrMalformedOutput   = errors.New("AI response format error")
	ErrInternal          = errors.New("internal error")
)

// Kind selects what is being recommended.
type Kind string

const (
	KindMovie  Kind = "movie"
	KindSeries Kind = "series"
)

// ParseKind accepts "movie" or "series" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindMovie:
		return KindMovie, nil
	case KindSeries:
		return KindSeries, nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidArgument, s)
}

// Noun returns the singular word used for the kind in prompts.
func (k Kind) Noun() string {
	if k == KindSeries {
		return "TV series"
	}
	return "movie"
}

// PluralNoun returns the plural word used for the kind in prompts.
func (k Kind) PluralNoun() string {
	if k == KindSeries {
		return "TV series"
	}
	return "movies"
}

// Movie is the normalized recommendation item. It is used for series too.
// Invariants: ID == textx.ItemID(Title, Year); Genres non-empty; Summary
// non-empty; MatchScore, when present, is within [0,100].
type Movie struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Year             int      `json:"year"`
	Summary          string   `json:"summary"`
	Genres           []string `json:"genres"`
	SimilarTo        *string  `json:"similarTo,omitempty"`
	TMDBID           *string  `json:"tmdbId,omitempty"`
	AvailabilityNote *string  `json:"availabilityNote,omitempty"`
	PosterURL        *string  `json:"posterUrl,omitempty"`
	DurationMinutes  *int     `json:"durationMinutes,omitempty"`
	MatchScore       *int     `json:"matchScore,omitempty"`
	Justification    *string  `json:"justification,omitempty"`
}

// TitleRef identifies an item by title and release year.
type TitleRef struct {
	Title string `json:"title" yaml:"title"`
	Year  int    `json:"year" yaml:"year"`
}

// ID returns the derived stable identifier of the referenced item.
func (r TitleRef) ID() string { return textx.ItemID(r.Title, r.Year) }

// String renders the reference the way prompts list it.
func (r TitleRef) String() string { return fmt.Sprintf("%s (%d)", r.Title, r.Year) }

// FeedbackValue enumerates how a user rated an item.
type FeedbackValue string

const (
	FeedbackLiked         FeedbackValue = "liked"
	FeedbackDisliked      FeedbackValue = "disliked"
	FeedbackNotInterested FeedbackValue = "not_interested"
	FeedbackWatched       FeedbackValue = "watched"
)

// ParseFeedbackValue validates a user supplied rating.
func ParseFeedbackValue(s string) (FeedbackValue, error) {
	v := FeedbackValue(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case FeedbackLiked, FeedbackDisliked, FeedbackNotInterested, FeedbackWatched:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown feedback %q", ErrInvalidArgument, s)
}

// FeedbackSourceKind names the surface a rating came from.
type FeedbackSourceKind string

const (
	SourceCard       FeedbackSourceKind = "card"
	SourceDiscovery  FeedbackSourceKind = "discovery"
	SourceSimilar    FeedbackSourceKind = "similar"
	SourceTasteCheck FeedbackSourceKind = "taste_check"
)

// FeedbackRecord is one persisted rating.
type FeedbackRecord struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Year      int                `json:"year"`
	Feedback  FeedbackValue      `json:"feedback"`
	Source    FeedbackSourceKind `json:"source,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Ref returns the title+year pair of the record.
func (f FeedbackRecord) Ref() TitleRef { return TitleRef{Title: f.Title, Year: f.Year} }

// GenerationConfig carries the sampling parameters of one upstream call.
// Field order is part of the cache key and must stay fixed.
type GenerationConfig struct {
	Temperature float32 `json:"temperature"`
	TopP        float32 `json:"topP"`
	TopK        int     `json:"topK"`
}

// GenerateRequest is one call against the upstream generation API.
type GenerateRequest struct {
	Model  string
	Prompt string
	Config GenerationConfig
}

// CacheStats summarizes the response cache.
type CacheStats struct {
	TotalEntries   int `json:"totalEntries"`
	ValidEntries   int `json:"validEntries"`
	ExpiredEntries int `json:"expiredEntries"`
}

// ModelInfo describes the router's rotation state.
type ModelInfo struct {
	CurrentModel    string   `json:"currentModel"`
	CurrentIndex    int      `json:"currentIndex"`
	TotalModels     int      `json:"totalModels"`
	AvailableModels []string `json:"availableModels"`
}

// TasteMatchResult is the outcome of a taste check. Error carries a
// user-readable message when the check could not be completed.
type TasteMatchResult struct {
	ItemFound     bool    `json:"itemFound"`
	Movie         *Movie  `json:"movie"`
	Justification *string `json:"justification"`
	Error         string  `json:"error,omitempty"`
}

// AppSettings are the user settings the pipeline reads.
type AppSettings struct {
	RecommendationCount int `json:"numberOfRecommendations" yaml:"numberOfRecommendations" validate:"min=1,max=10"`
}

// DefaultRecommendationCount is used when no valid setting is stored.
const DefaultRecommendationCount = 3

// Ports

// Generator is the upstream text generation API. Implementations return the
// raw response text and wrap failures with the sentinels above where they
// can classify them.
type Generator interface {
	// Provider names the upstream for logs and metrics.
	Provider() string
	// Ready reports ErrMissingCredential when no credential is configured.
	Ready() error
	Generate(ctx Context, req GenerateRequest) (string, error)
}

// FeedbackSource reads the locally stored feedback history.
type FeedbackSource interface {
	FeedbackHistory(ctx Context) ([]FeedbackRecord, error)
}

// SettingsSource reads the locally stored app settings.
type SettingsSource interface {
	Settings(ctx Context) (AppSettings, error)
}

// Context aliases the standard context so ports read compactly.
type Context = context.Context
