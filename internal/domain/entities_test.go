package domain

import (
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"movie", KindMovie, false},
		{" Series ", KindSeries, false},
		{"MOVIE", KindMovie, false},
		{"anime", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidArgument) {
					t.Fatalf("expected ErrInvalidArgument, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseKind(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestParseFeedbackValue(t *testing.T) {
	for _, in := range []string{"liked", "Disliked", "not_interested", "watched"} {
		if _, err := ParseFeedbackValue(in); err != nil {
			t.Errorf("ParseFeedbackValue(%q): %v", in, err)
		}
	}
	if _, err := ParseFeedbackValue("meh"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTitleRef(t *testing.T) {
	r := TitleRef{Title: "Dune", Year: 2021}
	if r.ID() != "dune2021" {
		t.Errorf("unexpected id %q", r.ID())
	}
	if r.String() != "Dune (2021)" {
		t.Errorf("unexpected string %q", r.String())
	}
	fb := FeedbackRecord{ID: "dune2021", Title: "Dune", Year: 2021}
	if fb.Ref() != r {
		t.Errorf("unexpected ref %+v", fb.Ref())
	}
}

func TestKindNouns(t *testing.T) {
	if KindMovie.Noun() != "movie" || KindMovie.PluralNoun() != "movies" {
		t.Error("unexpected movie nouns")
	}
	if KindSeries.Noun() != "TV series" || KindSeries.PluralNoun() != "TV series" {
		t.Error("unexpected series nouns")
	}
}
