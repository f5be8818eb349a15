package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/fairyhunter13/reelmatch/internal/domain"
	"github.com/fairyhunter13/reelmatch/pkg/textx"
)

// Placeholders for missing required fields.
const (
	PlaceholderTitle   = "Unknown Title"
	PlaceholderSummary = "No summary available."
	PlaceholderGenre   = "Unknown"
)

// fenceRe matches a response that is exactly one fenced code block.
var fenceRe = regexp.MustCompile("(?s)^```[A-Za-z0-9_+-]*[ \t]*\r?\n?(.*?)\r?\n?```$")

var refusalIndicators = []string{
	"i'm sorry", "i am sorry", "i cannot", "i can't", "i'm unable", "i am unable",
	"i apologize", "i'm afraid", "i won't be able",
}

// StripCodeFence trims raw and unwraps it when the whole text is a single
// fenced block. Prose around JSON is left alone.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseRecommendationList turns a raw model answer into normalized items.
// An empty answer is an empty list. Anything that is not a JSON array is
// reported as domain.ErrMalformedOutput.
func ParseRecommendationList(raw string) ([]domain.Movie, error) {
	s := StripCodeFence(raw)
	if s == "" {
		return []domain.Movie{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, malformed("usecase.ParseRecommendationList", s, err)
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("op=usecase.ParseRecommendationList: %w: expected a JSON array, got %s", domain.ErrMalformedOutput, jsonType(v))
	}

	out := make([]domain.Movie, 0, len(arr))
	seen := make(map[string]struct{}, len(arr))
	for _, el := range arr {
		obj, _ := el.(map[string]any)
		m, stub := normalizeItem(obj)
		if stub {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

// ParseSingleItem turns a raw model answer into one normalized item. A JSON
// null, an empty array or an object without a title means "no match" and
// yields (nil, nil).
func ParseSingleItem(raw string) (*domain.Movie, error) {
	s := StripCodeFence(raw)
	if s == "" {
		return nil, fmt.Errorf("op=usecase.ParseSingleItem: %w: empty response", domain.ErrMalformedOutput)
	}
	if strings.EqualFold(s, "null") {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, malformed("usecase.ParseSingleItem", s, err)
	}

	var obj map[string]any
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		obj = t
	case []any:
		if len(t) == 0 {
			return nil, nil
		}
		first, ok := t[0].(map[string]any)
		if !ok {
			if t[0] == nil {
				return nil, nil
			}
			return nil, fmt.Errorf("op=usecase.ParseSingleItem: %w: expected an object, got array of %s", domain.ErrMalformedOutput, jsonType(t[0]))
		}
		obj = first
	default:
		return nil, fmt.Errorf("op=usecase.ParseSingleItem: %w: expected an object, got %s", domain.ErrMalformedOutput, jsonType(v))
	}

	if stringField(obj, "title") == "" {
		return nil, nil
	}
	m, _ := normalizeItem(obj)
	return &m, nil
}

// normalizeItem coerces a decoded object into a Movie and reports whether
// every identifying field fell back to its placeholder.
func normalizeItem(obj map[string]any) (domain.Movie, bool) {
	m := domain.Movie{
		Title:   stringField(obj, "title"),
		Summary: stringField(obj, "summary"),
	}
	if m.Title == "" {
		m.Title = PlaceholderTitle
	}
	if m.Summary == "" {
		m.Summary = PlaceholderSummary
	}
	if f, ok := numberField(obj, "year"); ok {
		m.Year = int(f)
	}
	stub := m.Title == PlaceholderTitle && m.Year == 0 && m.Summary == PlaceholderSummary

	if arr, ok := obj["genres"].([]any); ok {
		for _, g := range arr {
			if s, ok := g.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					m.Genres = append(m.Genres, s)
				}
			}
		}
	}
	if len(m.Genres) == 0 {
		m.Genres = []string{PlaceholderGenre}
	}

	m.SimilarTo = optString(obj, "similarTo")
	m.TMDBID = optString(obj, "tmdbId")
	m.AvailabilityNote = optString(obj, "availabilityNote")
	m.PosterURL = optString(obj, "posterUrl")
	m.Justification = optString(obj, "justification")

	if f, ok := numberField(obj, "durationMinutes"); ok {
		m.DurationMinutes = intPtr(int(math.Round(f)))
	}
	if f, ok := numberField(obj, "matchScore"); ok && f >= 0 && f <= 100 {
		m.MatchScore = intPtr(int(math.Round(f)))
	}

	m.ID = textx.ItemID(m.Title, m.Year)
	return m, stub
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "null") {
		return ""
	}
	return s
}

func optString(obj map[string]any, key string) *string {
	if s := stringField(obj, key); s != "" {
		return &s
	}
	return nil
}

// maxNumber bounds numeric fields so the int conversion is well defined.
const maxNumber = 1e6

func numberField(obj map[string]any, key string) (float64, bool) {
	f, ok := obj[key].(float64)
	if !ok || math.IsNaN(f) || math.Abs(f) >= maxNumber {
		return 0, false
	}
	return f, true
}

func intPtr(v int) *int { return &v }

// malformed wraps a decode failure. Answers that read like a refusal also
// match domain.ErrSafetyBlocked.
func malformed(op, text string, err error) error {
	if looksLikeRefusal(text) {
		return fmt.Errorf("op=%s: %w: %v (%w)", op, domain.ErrMalformedOutput, err, domain.ErrSafetyBlocked)
	}
	return fmt.Errorf("op=%s: %w: %v", op, domain.ErrMalformedOutput, err)
}

func looksLikeRefusal(text string) bool {
	head := strings.ToLower(text)
	if len(head) > 200 {
		head = head[:200]
	}
	for _, p := range refusalIndicators {
		if strings.Contains(head, p) {
			return true
		}
	}
	return false
}

func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "bool"
	}
	return fmt.Sprintf("%T", v)
}
