package main

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// refList collects repeated "Title:Year" flags.
type refList []domain.TitleRef

func (r *refList) String() string {
	parts := make([]string, 0, len(*r))
	for _, ref := range *r {
		parts = append(parts, ref.String())
	}
	return strings.Join(parts, ", ")
}

func (r *refList) Set(v string) error {
	ref, err := parseRef(v)
	if err != nil {
		return err
	}
	*r = append(*r, ref)
	return nil
}

// parseRef reads "Title:Year". The year is taken after the last colon so
// titles like "Mission: Impossible:1996" parse.
func parseRef(v string) (domain.TitleRef, error) {
	i := strings.LastIndex(v, ":")
	if i <= 0 {
		return domain.TitleRef{}, fmt.Errorf("%w: %q is not Title:Year", domain.ErrInvalidArgument, v)
	}
	year, err := strconv.Atoi(strings.TrimSpace(v[i+1:]))
	if err != nil {
		return domain.TitleRef{}, fmt.Errorf("%w: bad year in %q", domain.ErrInvalidArgument, v)
	}
	title := strings.TrimSpace(v[:i])
	if title == "" {
		return domain.TitleRef{}, fmt.Errorf("%w: empty title in %q", domain.ErrInvalidArgument, v)
	}
	return domain.TitleRef{Title: title, Year: year}, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func flagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func isNotFound(err error) bool { return errors.Is(err, domain.ErrNotFound) }

var errUnterminatedQuote = errors.New("unterminated quote")

// splitArgs splits a shell line on whitespace, honouring single and double
// quotes so titles with spaces stay one argument.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quote   rune
		inToken bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inToken = true
		case unicode.IsSpace(r):
			if inToken {
				args = append(args, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if quote != 0 {
		return nil, errUnterminatedQuote
	}
	if inToken {
		args = append(args, cur.String())
	}
	return args, nil
}
