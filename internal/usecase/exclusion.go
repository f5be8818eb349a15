package usecase

import (
	"strconv"
	"strings"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// ExclusionSet holds the ids and title+year pairs a result must not contain.
type ExclusionSet struct {
	ids  map[string]struct{}
	refs map[string]struct{}
}

// NewExclusionSet collects the rated items of feedback.
func NewExclusionSet(feedback []domain.FeedbackRecord) *ExclusionSet {
	s := &ExclusionSet{ids: map[string]struct{}{}, refs: map[string]struct{}{}}
	for _, f := range feedback {
		s.AddID(f.ID)
		s.AddRef(f.Ref())
	}
	return s
}

// AddID excludes an explicit item id. Empty ids are ignored.
func (s *ExclusionSet) AddID(id string) *ExclusionSet {
	if id = strings.TrimSpace(id); id != "" {
		s.ids[id] = struct{}{}
	}
	return s
}

// AddRef excludes a title+year pair and its derived id.
func (s *ExclusionSet) AddRef(ref domain.TitleRef) *ExclusionSet {
	if strings.TrimSpace(ref.Title) == "" {
		return s
	}
	s.refs[refKey(ref.Title, ref.Year)] = struct{}{}
	s.ids[ref.ID()] = struct{}{}
	return s
}

// Contains reports whether m matches an exclusion by id or by title+year.
func (s *ExclusionSet) Contains(m domain.Movie) bool {
	if _, ok := s.ids[m.ID]; ok {
		return true
	}
	_, ok := s.refs[refKey(m.Title, m.Year)]
	return ok
}

// Filter returns the items of in that are not excluded, preserving order.
func (s *ExclusionSet) Filter(in []domain.Movie) []domain.Movie {
	out := make([]domain.Movie, 0, len(in))
	for _, m := range in {
		if !s.Contains(m) {
			out = append(out, m)
		}
	}
	return out
}

func refKey(title string, year int) string {
	return strings.ToLower(strings.TrimSpace(title)) + "\x00" + strconv.Itoa(year)
}
