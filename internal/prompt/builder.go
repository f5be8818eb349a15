// Package prompt renders the natural-language instructions sent to the
// generation model. Every builder is a pure function: identical inputs yield
// byte-identical prompts, which the response cache relies on.
package prompt

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/reelmatch/internal/domain"
	"github.com/fairyhunter13/reelmatch/pkg/textx"
)

// DefaultNewUserThreshold is the feedback history length below which the
// user is treated as new.
const DefaultNewUserThreshold = 5

// RecommendationInput is everything the full recommendation prompt needs.
type RecommendationInput struct {
	Prefs            domain.UserPreferences
	Kind             domain.Kind
	Count            int
	Feedback         []domain.FeedbackRecord
	SessionExcluded  []domain.TitleRef
	NewUserThreshold int
}

// BuildRecommendationPrompt renders the full recommendation prompt.
func BuildRecommendationPrompt(in RecommendationInput) string {
	prefs := in.Prefs.Normalize()
	count := in.Count
	if count < 1 {
		count = domain.DefaultRecommendationCount
	}
	threshold := in.NewUserThreshold
	if threshold <= 0 {
		threshold = DefaultNewUserThreshold
	}
	noun := in.Kind.PluralNoun()

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s curator. Recommend exactly %d %s for the user described below.\n\n", in.Kind.Noun(), count, noun)

	b.WriteString("QUALITY CONTROL:\n")
	if len(in.Feedback) < threshold {
		fmt.Fprintf(&b, "- This is a new user with little rating history. Favour widely acclaimed, well-reviewed %s that are easy to enjoy, and avoid obscure or divisive picks.\n", noun)
	} else {
		fmt.Fprintf(&b, "- This is an experienced user who has rated %d titles. Go beyond the obvious blockbusters: include hidden gems and critically respected %s that fit the preferences closely.\n", len(in.Feedback), noun)
	}
	b.WriteString("- Every recommendation must be a real, released title. Never invent titles, years or people.\n\n")

	b.WriteString("USER PREFERENCES:\n")
	writeStableBullets(&b, prefs.StablePreferences, in.Kind)
	writeSessionBullets(&b, prefs.SessionPreferences)
	b.WriteString("\n")

	writeAvoidList(&b, avoidRefs(in.Feedback, in.SessionExcluded))

	writeOutputFormat(&b, in.Kind, true)
	writeFormattingRules(&b, true)
	return b.String()
}

func writeStableBullets(b *strings.Builder, p domain.StablePreferences, kind domain.Kind) {
	fmt.Fprintf(b, "- Watch frequency: %s\n", line(p.WatchFrequency))
	fmt.Fprintf(b, "- Favourite actors/directors: %s\n", list(p.FavoritePeople, "no particular preference"))
	fmt.Fprintf(b, "- Preferred languages: %s\n", list(p.Languages, "any language"))
	fmt.Fprintf(b, "- Streaming platforms: %s\n", list(p.Platforms, "any platform"))
	if domain.IsAny(p.Eras) {
		b.WriteString("- Era: any era, but lean toward releases from the last 15 years\n")
	} else {
		fmt.Fprintf(b, "- Era: %s\n", list(p.Eras, ""))
	}
	if kind == domain.KindSeries {
		if domain.IsAny(p.SeriesLengths) {
			b.WriteString("- Season length: any, but prefer series with a typical number of episodes per season\n")
		} else {
			fmt.Fprintf(b, "- Season length: %s\n", list(p.SeriesLengths, ""))
		}
	} else {
		if domain.IsAny(p.MovieDurations) {
			b.WriteString("- Duration: any, but prefer standard feature length (around 90 to 140 minutes)\n")
		} else {
			fmt.Fprintf(b, "- Duration: %s\n", list(p.MovieDurations, ""))
		}
	}
	fmt.Fprintf(b, "- Country of residence (for availability): %s\n", line(p.Country))
}

func writeSessionBullets(b *strings.Builder, p domain.SessionPreferences) {
	fmt.Fprintf(b, "- Genres to include: %s\n", list(p.Genres, "any genre"))
	if !domain.IsAny(p.ExcludedGenres) {
		fmt.Fprintf(b, "- MUST NOT be in genres: %s\n", list(p.ExcludedGenres, ""))
	}
	if mood := textx.SingleLine(p.Mood); mood != "" {
		fmt.Fprintf(b, "- Current mood: %s\n", mood)
	}
	if kw := textx.SingleLine(p.Keywords); kw != "" {
		fmt.Fprintf(b, "- Keywords: %s\n", kw)
	}
}

// avoidRefs merges feedback history and session exclusions, de-duplicated by
// derived id, feedback first.
func avoidRefs(feedback []domain.FeedbackRecord, session []domain.TitleRef) []domain.TitleRef {
	out := make([]domain.TitleRef, 0, len(feedback)+len(session))
	seen := make(map[string]struct{}, len(feedback)+len(session))
	add := func(r domain.TitleRef) {
		r.Title = textx.SingleLine(r.Title)
		if r.Title == "" {
			return
		}
		id := r.ID()
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, r)
	}
	for _, f := range feedback {
		add(f.Ref())
	}
	for _, r := range session {
		add(r)
	}
	return out
}

func writeAvoidList(b *strings.Builder, refs []domain.TitleRef) {
	if len(refs) == 0 {
		return
	}
	b.WriteString("DO NOT RECOMMEND any of the following titles. The user has already rated or dismissed them:\n")
	for _, r := range refs {
		fmt.Fprintf(b, "- %s\n", r.String())
	}
	b.WriteString("\n")
}

func exampleObject(kind domain.Kind) string {
	if kind == domain.KindSeries {
		return `{
  "title": "Dark",
  "year": 2017,
  "summary": "A missing child sets four families on a frantic hunt for answers that spans three generations in a small German town.",
  "genres": ["Sci-Fi", "Mystery", "Thriller"],
  "similarTo": "Stranger Things",
  "tmdbId": "70523",
  "availabilityNote": "Available on Netflix",
  "posterUrl": null,
  "durationMinutes": 60,
  "matchScore": 92,
  "justification": "Matches your taste for slow-burn, cerebral science fiction."
}`
	}
	return `{
  "title": "Arrival",
  "year": 2016,
  "summary": "A linguist is recruited to communicate with extraterrestrial visitors before rising global tensions lead to war.",
  "genres": ["Sci-Fi", "Drama"],
  "similarTo": "Interstellar",
  "tmdbId": "329865",
  "availabilityNote": "Available on Paramount+",
  "posterUrl": null,
  "durationMinutes": 116,
  "matchScore": 92,
  "justification": "Matches your taste for thoughtful science fiction by Denis Villeneuve."
}`
}

func writeOutputFormat(b *strings.Builder, kind domain.Kind, array bool) {
	b.WriteString("OUTPUT FORMAT:\n")
	b.WriteString("Each item is a JSON object with exactly these fields:\n")
	b.WriteString("- \"title\" (string), \"year\" (number), \"summary\" (string, one or two sentences), \"genres\" (array of strings)\n")
	b.WriteString("- \"similarTo\" (string or null), \"tmdbId\" (string or null), \"availabilityNote\" (string or null), \"posterUrl\" (string or null)\n")
	if kind == domain.KindSeries {
		b.WriteString("- \"durationMinutes\" (number or null, typical episode length), \"matchScore\" (integer 0-100), \"justification\" (string)\n")
	} else {
		b.WriteString("- \"durationMinutes\" (number or null, running time), \"matchScore\" (integer 0-100), \"justification\" (string)\n")
	}
	if array {
		b.WriteString("Example item:\n")
	} else {
		b.WriteString("Example object:\n")
	}
	b.WriteString(exampleObject(kind))
	b.WriteString("\n\n")
}

func writeFormattingRules(b *strings.Builder, array bool) {
	b.WriteString("STRICT FORMATTING RULES:\n")
	if array {
		b.WriteString("- Respond with ONLY a JSON array of objects, starting with [ and ending with ].\n")
		b.WriteString("- Separate objects with a comma; no trailing comma after the last object, and close every object with } before the final ].\n")
	} else {
		b.WriteString("- Respond with ONLY a single JSON object, starting with { and ending with }.\n")
		b.WriteString("- No trailing comma after the last field.\n")
	}
	b.WriteString("- No prose, no explanations, no markdown and no code fences before or after the JSON.\n")
	b.WriteString("- Escape any double quote inside a string value as \\\".\n")
}

func line(s string) string {
	s = textx.SingleLine(s)
	if s == "" {
		return domain.Any
	}
	return s
}

func list(values []string, anyText string) string {
	if domain.IsAny(values) && anyText != "" {
		return anyText
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = textx.SingleLine(v); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return domain.Any
	}
	return strings.Join(parts, ", ")
}

// BuildSimilarItemPrompt asks for the single best item similar to title.
func BuildSimilarItemPrompt(title string, kind domain.Kind, stable domain.StablePreferences) string {
	stable = stable.Normalize()
	query := textx.SingleLine(title)
	noun := kind.Noun()

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s curator. The user wants ONE %s that is similar to \"%s\".\n\n", noun, noun, query)
	b.WriteString("RULES:\n")
	fmt.Fprintf(&b, "- Recommend a DIFFERENT title. Never return \"%s\" itself, a re-release of it or the same title under another name.\n", query)
	b.WriteString("- Match the tone, themes and style of the query title first, then the user's preferences.\n")
	fmt.Fprintf(&b, "- If \"%s\" is not a real %s or no good match exists, respond with exactly: null\n\n", query, noun)

	b.WriteString("USER PREFERENCES:\n")
	writeStableBullets(&b, stable, kind)
	b.WriteString("\n")

	writeOutputFormat(&b, kind, false)
	writeFormattingRules(&b, false)
	b.WriteString("- The only allowed non-object answer is the bare word null.\n")
	return b.String()
}

// BuildMoreSimilarPrompt asks for count more items similar to a seed, skipping
// the seed and every title in avoid.
func BuildMoreSimilarPrompt(queryTitle string, queryYear int, kind domain.Kind, count int, stable domain.StablePreferences, avoid []domain.TitleRef) string {
	stable = stable.Normalize()
	if count < 1 {
		count = domain.DefaultRecommendationCount
	}
	seed := domain.TitleRef{Title: textx.SingleLine(queryTitle), Year: queryYear}
	plural := kind.PluralNoun()

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s curator. Recommend exactly %d %s similar to %s.\n\n", kind.Noun(), count, plural, seed.String())
	b.WriteString("RULES:\n")
	fmt.Fprintf(&b, "- Do not include %s itself.\n", seed.String())
	b.WriteString("- Offer variety: mix well known and lesser known titles that share the seed's tone and themes.\n")
	b.WriteString("- Every recommendation must be a real, released title.\n\n")

	b.WriteString("USER PREFERENCES:\n")
	writeStableBullets(&b, stable, kind)
	b.WriteString("\n")

	writeAvoidList(&b, avoidRefs(nil, avoid))

	writeOutputFormat(&b, kind, true)
	writeFormattingRules(&b, true)
	return b.String()
}

// BuildTasteCheckPrompt asks the model to identify title and score it against
// the user's taste profile and rating history.
func BuildTasteCheckPrompt(title string, kind domain.Kind, stable domain.StablePreferences, feedback []domain.FeedbackRecord) string {
	stable = stable.Normalize()
	query := textx.SingleLine(title)
	noun := kind.Noun()

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s critic. Identify the %s \"%s\" and judge how well it matches the taste of the user described below.\n\n", noun, noun, query)
	b.WriteString("RULES:\n")
	b.WriteString("- Fill in the real details of the identified title.\n")
	b.WriteString("- \"matchScore\" is an integer from 0 (certain dislike) to 100 (perfect match).\n")
	b.WriteString("- \"justification\" explains the score in one or two sentences, referring to the preferences or ratings.\n")
	fmt.Fprintf(&b, "- If \"%s\" cannot be identified as a real %s, respond with exactly: null\n\n", query, noun)

	b.WriteString("USER PREFERENCES:\n")
	writeStableBullets(&b, stable, kind)
	b.WriteString("\n")

	writeRatingHistory(&b, feedback)

	writeOutputFormat(&b, kind, false)
	writeFormattingRules(&b, false)
	b.WriteString("- The only allowed non-object answer is the bare word null.\n")
	return b.String()
}

func writeRatingHistory(b *strings.Builder, feedback []domain.FeedbackRecord) {
	groups := []struct {
		value domain.FeedbackValue
		label string
	}{
		{domain.FeedbackLiked, "Liked"},
		{domain.FeedbackWatched, "Watched"},
		{domain.FeedbackDisliked, "Disliked"},
		{domain.FeedbackNotInterested, "Not interested"},
	}
	wrote := false
	for _, g := range groups {
		var titles []string
		for _, f := range feedback {
			if f.Feedback != g.value {
				continue
			}
			if t := textx.SingleLine(f.Title); t != "" {
				titles = append(titles, domain.TitleRef{Title: t, Year: f.Year}.String())
			}
		}
		if len(titles) == 0 {
			continue
		}
		if !wrote {
			b.WriteString("RATING HISTORY:\n")
			wrote = true
		}
		fmt.Fprintf(b, "- %s: %s\n", g.label, strings.Join(titles, "; "))
	}
	if wrote {
		b.WriteString("\n")
	}
}
