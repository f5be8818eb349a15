package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

func feedback(n int) []domain.FeedbackRecord {
	out := make([]domain.FeedbackRecord, 0, n)
	for i := 0; i < n; i++ {
		title := string(rune('A'+i)) + " Movie"
		out = append(out, domain.FeedbackRecord{Title: title, Year: 2000 + i, Feedback: domain.FeedbackLiked})
	}
	return out
}

func TestBuildRecommendationPrompt_Idempotent(t *testing.T) {
	in := RecommendationInput{
		Prefs: domain.UserPreferences{
			SessionPreferences: domain.SessionPreferences{Genres: []string{"Sci-Fi"}, Mood: "thoughtful"},
		},
		Kind:     domain.KindMovie,
		Count:    4,
		Feedback: feedback(2),
	}
	assert.Equal(t, BuildRecommendationPrompt(in), BuildRecommendationPrompt(in))
}

func TestBuildRecommendationPrompt_UserClause(t *testing.T) {
	tests := []struct {
		name      string
		feedback  int
		threshold int
		want      string
		notWant   string
	}{
		{name: "new user", feedback: 4, want: "new user", notWant: "experienced user"},
		{name: "at threshold", feedback: 5, want: "experienced user", notWant: "new user"},
		{name: "custom threshold", feedback: 5, threshold: 10, want: "new user", notWant: "experienced user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BuildRecommendationPrompt(RecommendationInput{
				Kind:             domain.KindMovie,
				Count:            3,
				Feedback:         feedback(tt.feedback),
				NewUserThreshold: tt.threshold,
			})
			assert.Contains(t, p, tt.want)
			assert.NotContains(t, p, tt.notWant)
		})
	}
}

func TestBuildRecommendationPrompt_AvoidList(t *testing.T) {
	p := BuildRecommendationPrompt(RecommendationInput{
		Kind:  domain.KindMovie,
		Count: 3,
		Feedback: []domain.FeedbackRecord{
			{ID: "dune2021", Title: "Dune", Year: 2021, Feedback: domain.FeedbackWatched},
			{ID: "heat1995", Title: "Heat", Year: 1995, Feedback: domain.FeedbackDisliked},
		},
		SessionExcluded: []domain.TitleRef{
			{Title: "DUNE", Year: 2021},
			{Title: "Arrival", Year: 2016},
		},
	})

	assert.Contains(t, p, "DO NOT RECOMMEND")
	assert.Contains(t, p, "- Dune (2021)\n")
	assert.Contains(t, p, "- Heat (1995)\n")
	assert.Contains(t, p, "- Arrival (2016)\n")
	assert.NotContains(t, p, "DUNE (2021)")
	assert.Less(t, strings.Index(p, "Heat (1995)"), strings.Index(p, "Arrival (2016)"))
}

func TestBuildRecommendationPrompt_NoAvoidListWhenEmpty(t *testing.T) {
	p := BuildRecommendationPrompt(RecommendationInput{Kind: domain.KindMovie, Count: 3})
	assert.NotContains(t, p, "DO NOT RECOMMEND")
}

func TestBuildRecommendationPrompt_Preferences(t *testing.T) {
	p := BuildRecommendationPrompt(RecommendationInput{
		Kind:  domain.KindMovie,
		Count: 5,
		Prefs: domain.UserPreferences{
			StablePreferences: domain.StablePreferences{
				FavoritePeople: []string{"Denis Villeneuve"},
				Languages:      []string{"English", "French"},
			},
			SessionPreferences: domain.SessionPreferences{
				Genres:         []string{"Sci-Fi"},
				ExcludedGenres: []string{"Horror", "Musical"},
				Keywords:       "space\x00 exploration",
			},
		},
	})

	assert.Contains(t, p, "Recommend exactly 5 movies")
	assert.Contains(t, p, "Favourite actors/directors: Denis Villeneuve")
	assert.Contains(t, p, "Preferred languages: English, French")
	assert.Contains(t, p, "MUST NOT be in genres: Horror, Musical")
	assert.Contains(t, p, "Keywords: space exploration")
	assert.Contains(t, p, "lean toward releases from the last 15 years")
	assert.Contains(t, p, "standard feature length")
	assert.NotContains(t, p, "Current mood")
	assert.Contains(t, p, "JSON array")
}

func TestBuildRecommendationPrompt_SeriesVocabulary(t *testing.T) {
	p := BuildRecommendationPrompt(RecommendationInput{
		Kind:  domain.KindSeries,
		Count: 2,
		Prefs: domain.UserPreferences{
			StablePreferences: domain.StablePreferences{SeriesLengths: []string{"Limited series"}},
		},
	})
	assert.Contains(t, p, "Recommend exactly 2 TV series")
	assert.Contains(t, p, "Season length: Limited series")
	assert.NotContains(t, p, "Duration:")
	assert.NotContains(t, p, "MUST NOT be in genres")
}

func TestBuildSimilarItemPrompt(t *testing.T) {
	p := BuildSimilarItemPrompt("Inception", domain.KindMovie, domain.StablePreferences{})
	assert.Contains(t, p, `similar to "Inception"`)
	assert.Contains(t, p, `Never return "Inception" itself`)
	assert.Contains(t, p, "respond with exactly: null")
	assert.Contains(t, p, "single JSON object")
	assert.Equal(t, p, BuildSimilarItemPrompt("Inception", domain.KindMovie, domain.StablePreferences{}))
}

func TestBuildMoreSimilarPrompt(t *testing.T) {
	p := BuildMoreSimilarPrompt("Heat", 1995, domain.KindMovie, 4, domain.StablePreferences{},
		[]domain.TitleRef{{Title: "Collateral", Year: 2004}, {Title: "collateral", Year: 2004}})
	assert.Contains(t, p, "Recommend exactly 4 movies similar to Heat (1995)")
	assert.Contains(t, p, "Do not include Heat (1995) itself")
	assert.Equal(t, 1, strings.Count(strings.ToLower(p), "collateral (2004)"))
}

func TestBuildTasteCheckPrompt(t *testing.T) {
	p := BuildTasteCheckPrompt("Severance", domain.KindSeries, domain.StablePreferences{}, []domain.FeedbackRecord{
		{Title: "Dark", Year: 2017, Feedback: domain.FeedbackLiked},
		{Title: "Lost", Year: 2004, Feedback: domain.FeedbackDisliked},
	})
	assert.Contains(t, p, `Identify the TV series "Severance"`)
	assert.Contains(t, p, "- Liked: Dark (2017)")
	assert.Contains(t, p, "- Disliked: Lost (2004)")
	assert.Contains(t, p, "matchScore")
	assert.NotContains(t, p, "Not interested:")
}
