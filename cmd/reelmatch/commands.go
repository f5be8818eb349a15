package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/reelmatch/internal/app"
	"github.com/fairyhunter13/reelmatch/internal/config"
	"github.com/fairyhunter13/reelmatch/internal/domain"
	"github.com/fairyhunter13/reelmatch/internal/usecase"
)

type cli struct {
	app     *app.App
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	json    bool
	inShell bool
}

type handler func(ctx context.Context, c *cli, args []string) error

var commands map[string]handler

func init() {
	commands = map[string]handler{
		"recommend": cmdRecommend,
		"similar":   cmdSimilar,
		"more":      cmdMore,
		"taste":     cmdTaste,
		"rate":      cmdRate,
		"unrate":    cmdUnrate,
		"history":   cmdHistory,
		"prefs":     cmdPrefs,
		"settings":  cmdSettings,
		"status":    cmdStatus,
		"cache":     cmdCache,
		"model":     cmdModel,
		"shell":     cmdShell,
	}
}

func (c *cli) dispatch(ctx context.Context, args []string) error {
	h, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(c.errOut, "unknown command %q\n", args[0])
		printUsage(c.errOut)
		return errUsage
	}
	return h(ctx, c, args[1:])
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func kindFlag(fs *flag.FlagSet) *string {
	return fs.String("kind", string(domain.KindMovie), "movie or series")
}

func titleArg(fs *flag.FlagSet) (string, error) {
	title := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if title == "" {
		return "", fmt.Errorf("%w: a title is required", domain.ErrInvalidArgument)
	}
	return title, nil
}

func cmdRecommend(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("recommend")
	kind := kindFlag(fs)
	prefsPath := fs.String("prefs", "", "YAML preference profile")
	genres := fs.String("genres", "", "comma separated genres to include")
	excludedGenres := fs.String("exclude-genres", "", "comma separated genres to avoid")
	mood := fs.String("mood", "", "current mood")
	keywords := fs.String("keywords", "", "free text keywords")
	var exclude refList
	fs.Var(&exclude, "exclude", `title to skip this session as "Title:Year" (repeatable)`)
	if err := parse(fs, args); err != nil {
		return err
	}

	var prefs domain.UserPreferences
	kindName := *kind
	if *prefsPath != "" {
		file, err := config.LoadPreferencesFile(*prefsPath)
		if err != nil {
			return err
		}
		prefs = file.Preferences
		exclude = append(exclude, file.Exclude...)
		if file.Kind != "" && !flagSet(fs, "kind") {
			kindName = file.Kind
		}
	} else {
		stable, err := c.app.Store.StablePreferences(ctx)
		if err != nil {
			return err
		}
		prefs.StablePreferences = stable
	}
	if *genres != "" {
		prefs.Genres = splitList(*genres)
	}
	if *excludedGenres != "" {
		prefs.ExcludedGenres = splitList(*excludedGenres)
	}
	if *mood != "" {
		prefs.Mood = *mood
	}
	if *keywords != "" {
		prefs.Keywords = *keywords
	}

	k, err := domain.ParseKind(kindName)
	if err != nil {
		return err
	}
	svc, err := c.app.Recommender(ctx)
	if err != nil {
		return err
	}
	items, err := svc.GetMovieRecommendations(ctx, prefs, k, exclude)
	if err != nil {
		return err
	}
	return c.printMovies(items, "No recommendations this time. Try again or widen your preferences.")
}

func cmdSimilar(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("similar")
	kind := kindFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	title, err := titleArg(fs)
	if err != nil {
		return err
	}
	k, stable, svc, err := c.prepare(ctx, *kind)
	if err != nil {
		return err
	}
	m, err := svc.FindSimilarItemByName(ctx, title, k, stable)
	if err != nil {
		return err
	}
	if m == nil {
		return c.printMovies(nil, fmt.Sprintf("No good match found for %q.", title))
	}
	return c.printMovies([]domain.Movie{*m}, "")
}

func cmdMore(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("more")
	kind := kindFlag(fs)
	year := fs.Int("year", 0, "release year of the seed title")
	excludeID := fs.String("exclude-id", "", "item id to leave out")
	if err := parse(fs, args); err != nil {
		return err
	}
	title, err := titleArg(fs)
	if err != nil {
		return err
	}
	k, stable, svc, err := c.prepare(ctx, *kind)
	if err != nil {
		return err
	}
	items, err := svc.GetMoreSimilarItems(ctx, title, *year, k, *excludeID, stable)
	if err != nil {
		return err
	}
	return c.printMovies(items, "Nothing new to suggest for this title.")
}

func cmdTaste(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("taste")
	kind := kindFlag(fs)
	if err := parse(fs, args); err != nil {
		return err
	}
	title, err := titleArg(fs)
	if err != nil {
		return err
	}
	k, stable, svc, err := c.prepare(ctx, *kind)
	if err != nil {
		return err
	}
	res, err := svc.CheckTasteMatch(ctx, title, k, stable)
	if err != nil {
		return err
	}
	if c.json {
		return c.printJSON(res)
	}
	switch {
	case res.Error != "":
		fmt.Fprintln(c.out, res.Error)
	case !res.ItemFound:
		fmt.Fprintf(c.out, "Could not identify %q.\n", title)
	default:
		writeMovie(c.out, 0, *res.Movie)
	}
	return nil
}

func (c *cli) prepare(ctx context.Context, kind string) (domain.Kind, domain.StablePreferences, *usecase.RecommendationService, error) {
	k, err := domain.ParseKind(kind)
	if err != nil {
		return "", domain.StablePreferences{}, nil, err
	}
	stable, err := c.app.Store.StablePreferences(ctx)
	if err != nil {
		return "", domain.StablePreferences{}, nil, err
	}
	svc, err := c.app.Recommender(ctx)
	if err != nil {
		return "", domain.StablePreferences{}, nil, err
	}
	return k, stable, svc, nil
}

func cmdRate(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("rate")
	year := fs.Int("year", 0, "release year")
	value := fs.String("value", "", "liked, disliked, not_interested or watched")
	source := fs.String("source", string(domain.SourceCard), "where the rating was made")
	if err := parse(fs, args); err != nil {
		return err
	}
	title, err := titleArg(fs)
	if err != nil {
		return err
	}
	v, err := domain.ParseFeedbackValue(*value)
	if err != nil {
		return err
	}
	rec, err := c.app.Store.RateItem(ctx, domain.TitleRef{Title: title, Year: *year}, v, domain.FeedbackSourceKind(*source))
	if err != nil {
		return err
	}
	if c.json {
		return c.printJSON(rec)
	}
	fmt.Fprintf(c.out, "Rated %s as %s (id %s).\n", rec.Ref(), rec.Feedback, rec.ID)
	return nil
}

func cmdUnrate(ctx context.Context, c *cli, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: unrate takes exactly one id", domain.ErrInvalidArgument)
	}
	if err := c.app.Store.RemoveFeedback(ctx, args[0]); err != nil {
		if isNotFound(err) {
			fmt.Fprintf(c.out, "No rating with id %s.\n", args[0])
			return nil
		}
		return err
	}
	fmt.Fprintf(c.out, "Removed rating %s.\n", args[0])
	return nil
}

func cmdHistory(ctx context.Context, c *cli, _ []string) error {
	recs, err := c.app.Store.FeedbackHistory(ctx)
	if err != nil {
		return err
	}
	if c.json {
		if recs == nil {
			recs = []domain.FeedbackRecord{}
		}
		return c.printJSON(recs)
	}
	if len(recs) == 0 {
		fmt.Fprintln(c.out, "No ratings yet.")
		return nil
	}
	for _, r := range recs {
		fmt.Fprintf(c.out, "%-24s %-15s %s\n", r.ID, r.Feedback, r.Ref())
	}
	return nil
}

func cmdPrefs(ctx context.Context, c *cli, args []string) error {
	if len(args) == 2 && args[0] == "save" {
		file, err := config.LoadPreferencesFile(args[1])
		if err != nil {
			return err
		}
		if err := c.app.Store.SaveStablePreferences(ctx, file.Preferences.StablePreferences); err != nil {
			return err
		}
		if file.Count > 0 {
			if err := c.app.Store.SaveSettings(ctx, domain.AppSettings{RecommendationCount: file.Count}); err != nil {
				return err
			}
		}
		fmt.Fprintln(c.out, "Preferences saved.")
		return nil
	}
	if len(args) != 0 {
		return fmt.Errorf("%w: usage: prefs [save <file.yaml>]", domain.ErrInvalidArgument)
	}
	p, err := c.app.Store.StablePreferences(ctx)
	if err != nil {
		return err
	}
	if c.json {
		return c.printJSON(p)
	}
	raw, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	_, err = c.out.Write(raw)
	return err
}

func cmdSettings(ctx context.Context, c *cli, args []string) error {
	fs := c.flags("settings")
	count := fs.Int("count", 0, "number of recommendations per request (1-10)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if flagSet(fs, "count") {
		if err := c.app.Store.SaveSettings(ctx, domain.AppSettings{RecommendationCount: *count}); err != nil {
			return err
		}
	}
	st, err := c.app.Store.Settings(ctx)
	if err != nil {
		return err
	}
	if c.json {
		return c.printJSON(st)
	}
	fmt.Fprintf(c.out, "Recommendations per request: %d\n", st.RecommendationCount)
	return nil
}

func cmdStatus(ctx context.Context, c *cli, _ []string) error {
	checks := c.app.Status(ctx)
	if c.json {
		return c.printJSON(checks)
	}
	for _, ch := range checks {
		mark := "ok"
		if !ch.OK {
			mark = "FAIL"
		}
		fmt.Fprintf(c.out, "%-10s %-4s %s\n", ch.Name, mark, ch.Details)
	}
	return nil
}

func cmdCache(ctx context.Context, c *cli, args []string) error {
	svc, err := c.app.Recommender(ctx)
	if err != nil {
		return err
	}
	switch {
	case len(args) == 1 && args[0] == "clear":
		svc.ClearCache()
		fmt.Fprintln(c.out, "Cache cleared.")
		return nil
	case len(args) != 0:
		return fmt.Errorf("%w: usage: cache [clear]", domain.ErrInvalidArgument)
	}
	st := svc.CacheStats()
	if c.json {
		return c.printJSON(st)
	}
	fmt.Fprintf(c.out, "entries %d, valid %d, expired %d\n", st.TotalEntries, st.ValidEntries, st.ExpiredEntries)
	return nil
}

func cmdModel(ctx context.Context, c *cli, args []string) error {
	svc, err := c.app.Recommender(ctx)
	if err != nil {
		return err
	}
	switch {
	case len(args) == 2 && args[0] == "switch":
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: model index must be a number", domain.ErrInvalidArgument)
		}
		if err := svc.SwitchModel(idx); err != nil {
			return err
		}
	case len(args) == 1 && args[0] == "reset":
		svc.ResetToFirstModel()
	case len(args) != 0:
		return fmt.Errorf("%w: usage: model [switch <index> | reset]", domain.ErrInvalidArgument)
	}
	info := svc.CurrentModelInfo()
	if c.json {
		return c.printJSON(info)
	}
	for i, m := range info.AvailableModels {
		mark := " "
		if i == info.CurrentIndex {
			mark = "*"
		}
		fmt.Fprintf(c.out, "%s %d %s\n", mark, i, m)
	}
	return nil
}

func (c *cli) printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.out, string(raw))
	return err
}

func (c *cli) printMovies(items []domain.Movie, empty string) error {
	if c.json {
		if items == nil {
			items = []domain.Movie{}
		}
		return c.printJSON(items)
	}
	if len(items) == 0 {
		fmt.Fprintln(c.out, empty)
		return nil
	}
	for i, m := range items {
		writeMovie(c.out, i+1, m)
	}
	return nil
}

func writeMovie(w io.Writer, n int, m domain.Movie) {
	if n > 0 {
		fmt.Fprintf(w, "%d. ", n)
	}
	fmt.Fprintf(w, "%s (%d) [%s]", m.Title, m.Year, strings.Join(m.Genres, ", "))
	if m.MatchScore != nil {
		fmt.Fprintf(w, " match %d%%", *m.MatchScore)
	}
	fmt.Fprintf(w, "\n   %s\n", m.Summary)
	if m.Justification != nil {
		fmt.Fprintf(w, "   why: %s\n", *m.Justification)
	}
	if m.AvailabilityNote != nil {
		fmt.Fprintf(w, "   where: %s\n", *m.AvailabilityNote)
	}
	fmt.Fprintf(w, "   id: %s\n", m.ID)
}
