package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserPreferences_Normalize(t *testing.T) {
	p := UserPreferences{
		StablePreferences: StablePreferences{
			FavoritePeople: []string{" Denis Villeneuve ", "", "denis villeneuve"},
			Languages:      nil,
			Platforms:      []string{"Any", "Netflix"},
			Eras:           []string{"  "},
		},
		SessionPreferences: SessionPreferences{
			Genres: []string{"Sci-Fi", "Drama"},
			Mood:   "  cozy ",
		},
	}

	n := p.Normalize()

	assert.Equal(t, Any, n.WatchFrequency)
	assert.Equal(t, Any, n.Country)
	assert.Equal(t, []string{"Denis Villeneuve"}, n.FavoritePeople)
	assert.Equal(t, []string{Any}, n.Languages)
	assert.Equal(t, []string{"Netflix"}, n.Platforms)
	assert.Equal(t, []string{Any}, n.Eras)
	assert.Equal(t, []string{Any}, n.MovieDurations)
	assert.Equal(t, []string{Any}, n.SeriesLengths)
	assert.Equal(t, []string{"Sci-Fi", "Drama"}, n.Genres)
	assert.Equal(t, []string{Any}, n.ExcludedGenres)
	assert.Equal(t, "cozy", n.Mood)
	assert.Empty(t, n.Keywords)
}

func TestNormalize_NeverEmptyLists(t *testing.T) {
	n := UserPreferences{}.Normalize()
	lists := [][]string{
		n.FavoritePeople, n.Languages, n.Platforms, n.Eras,
		n.MovieDurations, n.SeriesLengths, n.Genres, n.ExcludedGenres,
	}
	for i, l := range lists {
		assert.NotEmpty(t, l, "list %d", i)
		assert.True(t, IsAny(l), "list %d", i)
	}
}

func TestIsAny(t *testing.T) {
	assert.True(t, IsAny([]string{"Any"}))
	assert.True(t, IsAny([]string{"any"}))
	assert.False(t, IsAny([]string{"Any", "Horror"}))
	assert.False(t, IsAny([]string{"Horror"}))
}
