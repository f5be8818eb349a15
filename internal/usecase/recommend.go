// Package usecase contains the recommendation operations: prompt, route,
// parse, filter.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fairyhunter13/reelmatch/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/reelmatch/internal/adapter/observability"
	"github.com/fairyhunter13/reelmatch/internal/domain"
	"github.com/fairyhunter13/reelmatch/internal/prompt"
)

// Operation names used in logs, spans and metrics.
const (
	OpRecommend   = "get_recommendations"
	OpFindSimilar = "find_similar"
	OpMoreSimilar = "more_similar"
	OpTasteCheck  = "taste_check"
)

// Sampling parameters per operation.
var (
	RecommendSampling   = domain.GenerationConfig{Temperature: 0.7, TopP: 0.95, TopK: 40}
	FindSimilarSampling = domain.GenerationConfig{Temperature: 0.3, TopP: 0.9, TopK: 20}
	MoreSimilarSampling = domain.GenerationConfig{Temperature: 0.9, TopP: 0.95, TopK: 50}
	TasteCheckSampling  = domain.GenerationConfig{Temperature: 0.3}
)

// Router sends a prompt to the upstream model pool. *ai.Router implements it.
type Router interface {
	Execute(ctx context.Context, prompt string, cfg domain.GenerationConfig) (string, error)
	CurrentModelInfo() domain.ModelInfo
	SwitchModel(index int) error
	ResetToFirstModel()
	ClearCache()
	CacheStats() domain.CacheStats
}

// Options tunes a RecommendationService.
type Options struct {
	// NewUserThreshold is the rating count below which prompts treat the
	// user as new. Zero uses prompt.DefaultNewUserThreshold.
	NewUserThreshold int
	Logger           *slog.Logger
	Counter          *tokencount.Counter
}

// RecommendationService implements the public recommendation operations.
type RecommendationService struct {
	router    Router
	feedback  domain.FeedbackSource
	settings  domain.SettingsSource
	counter   *tokencount.Counter
	log       *slog.Logger
	threshold int
}

// NewRecommendationService wires a service. All three dependencies are required.
func NewRecommendationService(r Router, fb domain.FeedbackSource, st domain.SettingsSource, opts Options) (*RecommendationService, error) {
	if r == nil || fb == nil || st == nil {
		return nil, fmt.Errorf("op=usecase.NewRecommendationService: %w: router, feedback and settings sources are required", domain.ErrInvalidArgument)
	}
	if opts.NewUserThreshold <= 0 {
		opts.NewUserThreshold = prompt.DefaultNewUserThreshold
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Counter == nil {
		opts.Counter = tokencount.Default
	}
	return &RecommendationService{
		router:    r,
		feedback:  fb,
		settings:  st,
		counter:   opts.Counter,
		log:       opts.Logger,
		threshold: opts.NewUserThreshold,
	}, nil
}

// GetMovieRecommendations returns fresh recommendations of kind for prefs,
// never including rated titles or sessionExcluded.
func (s *RecommendationService) GetMovieRecommendations(ctx context.Context, prefs domain.UserPreferences, kind domain.Kind, sessionExcluded []domain.TitleRef) (items []domain.Movie, err error) {
	ctx, span, lg := s.begin(ctx, OpRecommend, kind)
	defer func() { s.finish(span, OpRecommend, err, len(items)) }()

	if kind, err = domain.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("op=usecase.GetMovieRecommendations: %w", err)
	}
	feedback, err := s.feedbackHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.GetMovieRecommendations: %w", err)
	}
	count := s.recommendationCount(ctx)

	p := prompt.BuildRecommendationPrompt(prompt.RecommendationInput{
		Prefs:            prefs,
		Kind:             kind,
		Count:            count,
		Feedback:         feedback,
		SessionExcluded:  sessionExcluded,
		NewUserThreshold: s.threshold,
	})
	raw, err := s.execute(ctx, OpRecommend, p, RecommendSampling)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.GetMovieRecommendations: %w", err)
	}
	parsed, err := ParseRecommendationList(raw)
	if err != nil {
		lg.Warn("unparseable recommendation list", slog.Any("error", err), slog.Int("raw_len", len(raw)))
		return nil, fmt.Errorf("op=usecase.GetMovieRecommendations: %w", err)
	}

	excl := NewExclusionSet(feedback)
	for _, ref := range sessionExcluded {
		excl.AddRef(ref)
	}
	items = excl.Filter(parsed)
	lg.Info("recommendations ready",
		slog.Int("requested", count),
		slog.Int("parsed", len(parsed)),
		slog.Int("returned", len(items)))
	return items, nil
}

// FindSimilarItemByName returns the single best item similar to title, or
// nil when the model reports no match, answers with title itself or
// suggests something the user already rated.
func (s *RecommendationService) FindSimilarItemByName(ctx context.Context, title string, kind domain.Kind, stable domain.StablePreferences) (item *domain.Movie, err error) {
	ctx, span, lg := s.begin(ctx, OpFindSimilar, kind)
	defer func() { s.finish(span, OpFindSimilar, err, countOf(item)) }()

	if kind, err = domain.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("op=usecase.FindSimilarItemByName: %w", err)
	}
	query := strings.TrimSpace(title)
	if query == "" {
		return nil, fmt.Errorf("op=usecase.FindSimilarItemByName: %w: title is required", domain.ErrInvalidArgument)
	}
	feedback, err := s.feedbackHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.FindSimilarItemByName: %w", err)
	}

	raw, err := s.execute(ctx, OpFindSimilar, prompt.BuildSimilarItemPrompt(query, kind, stable), FindSimilarSampling)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.FindSimilarItemByName: %w", err)
	}
	m, err := ParseSingleItem(raw)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.FindSimilarItemByName: %w", err)
	}
	switch {
	case m == nil:
		lg.Info("no similar item found", slog.String("query", query))
		return nil, nil
	case strings.EqualFold(strings.TrimSpace(m.Title), query):
		lg.Info("model returned the query title itself", slog.String("query", query))
		return nil, nil
	case NewExclusionSet(feedback).Contains(*m):
		lg.Info("similar item already rated", slog.String("id", m.ID))
		return nil, nil
	}
	return m, nil
}

// GetMoreSimilarItems returns more items like the seed queryTitle (queryYear),
// excluding the seed, excludeID and every rated title.
func (s *RecommendationService) GetMoreSimilarItems(ctx context.Context, queryTitle string, queryYear int, kind domain.Kind, excludeID string, stable domain.StablePreferences) (items []domain.Movie, err error) {
	ctx, span, lg := s.begin(ctx, OpMoreSimilar, kind)
	defer func() { s.finish(span, OpMoreSimilar, err, len(items)) }()

	if kind, err = domain.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("op=usecase.GetMoreSimilarItems: %w", err)
	}
	seed := domain.TitleRef{Title: strings.TrimSpace(queryTitle), Year: queryYear}
	if seed.Title == "" {
		return nil, fmt.Errorf("op=usecase.GetMoreSimilarItems: %w: query title is required", domain.ErrInvalidArgument)
	}
	feedback, err := s.feedbackHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.GetMoreSimilarItems: %w", err)
	}
	count := s.recommendationCount(ctx)

	avoid := make([]domain.TitleRef, 0, len(feedback))
	for _, f := range feedback {
		avoid = append(avoid, f.Ref())
	}
	p := prompt.BuildMoreSimilarPrompt(seed.Title, seed.Year, kind, count, stable, avoid)
	raw, err := s.execute(ctx, OpMoreSimilar, p, MoreSimilarSampling)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.GetMoreSimilarItems: %w", err)
	}
	parsed, err := ParseRecommendationList(raw)
	if err != nil {
		return nil, fmt.Errorf("op=usecase.GetMoreSimilarItems: %w", err)
	}

	items = NewExclusionSet(feedback).AddID(excludeID).AddRef(seed).Filter(parsed)
	if len(items) > count {
		items = items[:count]
	}
	lg.Info("similar items ready", slog.String("seed", seed.String()), slog.Int("returned", len(items)))
	return items, nil
}

// CheckTasteMatch identifies title and scores it against the user's taste.
// Upstream and format failures are reported in the result; the error return
// is kept for invalid arguments and missing configuration.
func (s *RecommendationService) CheckTasteMatch(ctx context.Context, title string, kind domain.Kind, stable domain.StablePreferences) (res domain.TasteMatchResult, err error) {
	ctx, span, lg := s.begin(ctx, OpTasteCheck, kind)
	defer func() {
		items := 0
		if res.ItemFound {
			items = 1
		}
		s.finish(span, OpTasteCheck, err, items)
	}()

	if kind, err = domain.ParseKind(string(kind)); err != nil {
		return res, fmt.Errorf("op=usecase.CheckTasteMatch: %w", err)
	}
	query := strings.TrimSpace(title)
	if query == "" {
		return res, fmt.Errorf("op=usecase.CheckTasteMatch: %w: title is required", domain.ErrInvalidArgument)
	}
	feedback, ferr := s.feedbackHistory(ctx)
	if ferr != nil {
		lg.Warn("taste check without rating history", slog.Any("error", ferr))
	}

	raw, xerr := s.execute(ctx, OpTasteCheck, prompt.BuildTasteCheckPrompt(query, kind, stable, feedback), TasteCheckSampling)
	if xerr != nil {
		if errors.Is(xerr, domain.ErrMissingCredential) {
			return res, fmt.Errorf("op=usecase.CheckTasteMatch: %w", xerr)
		}
		lg.Warn("taste check failed", slog.Any("error", xerr))
		res.Error = UserMessage(xerr)
		return res, nil
	}
	m, perr := ParseSingleItem(raw)
	if perr != nil {
		lg.Warn("unparseable taste check", slog.Any("error", perr))
		res.Error = UserMessage(perr)
		return res, nil
	}
	if m == nil {
		return res, nil
	}
	res.ItemFound = true
	res.Movie = m
	res.Justification = m.Justification
	return res, nil
}

// ClearCache drops every cached upstream response.
func (s *RecommendationService) ClearCache() { s.router.ClearCache() }

// CacheStats reports response cache occupancy.
func (s *RecommendationService) CacheStats() domain.CacheStats { return s.router.CacheStats() }

// CurrentModelInfo reports the router's rotation state.
func (s *RecommendationService) CurrentModelInfo() domain.ModelInfo { return s.router.CurrentModelInfo() }

// SwitchModel pins the rotation pointer to index.
func (s *RecommendationService) SwitchModel(index int) error { return s.router.SwitchModel(index) }

// ResetToFirstModel moves the rotation pointer back to the first candidate.
func (s *RecommendationService) ResetToFirstModel() { s.router.ResetToFirstModel() }

func (s *RecommendationService) begin(ctx context.Context, op string, kind domain.Kind) (context.Context, trace.Span, *slog.Logger) {
	ctx, lg := observability.StartOperation(ctx, s.log, op)
	ctx, span := observability.Tracer().Start(ctx, "usecase."+op,
		trace.WithAttributes(
			attribute.String("operation.id", observability.OperationIDFromContext(ctx)),
			attribute.String("item.kind", string(kind)),
		))
	return ctx, span, lg
}

func (s *RecommendationService) finish(span trace.Span, op string, err error, items int) {
	defer span.End()
	observability.RecordOperation(op, err, items)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetAttributes(attribute.Int("items.returned", items))
}

func (s *RecommendationService) execute(ctx context.Context, op, p string, cfg domain.GenerationConfig) (string, error) {
	model := s.router.CurrentModelInfo().CurrentModel
	observability.ObservePromptTokens(op, s.counter.Estimate(p, model))
	return s.router.Execute(ctx, p, cfg)
}

func (s *RecommendationService) feedbackHistory(ctx context.Context) ([]domain.FeedbackRecord, error) {
	recs, err := s.feedback.FeedbackHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read feedback history: %v", domain.ErrInternal, err)
	}
	return recs, nil
}

// recommendationCount reads the stored count and falls back to the default
// when it is missing or out of range.
func (s *RecommendationService) recommendationCount(ctx context.Context) int {
	st, err := s.settings.Settings(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn("settings unavailable, using default count", slog.Any("error", err))
		return domain.DefaultRecommendationCount
	}
	if st.RecommendationCount < 1 || st.RecommendationCount > 10 {
		return domain.DefaultRecommendationCount
	}
	return st.RecommendationCount
}

func countOf(m *domain.Movie) int {
	if m == nil {
		return 0
	}
	return 1
}

// UserMessage renders err as a short message fit for the end user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrMissingCredential):
		return "The AI service is not configured. Set the API key for the selected provider and try again."
	case errors.Is(err, domain.ErrSafetyBlocked):
		return "The AI declined this request because of its safety filters. Try rephrasing it."
	case errors.Is(err, domain.ErrUpstreamRateLimit):
		return "The AI service is busy right now (rate limit reached). Please wait a moment and try again."
	case errors.Is(err, domain.ErrMalformedOutput):
		return "The AI returned an unexpected response format. Please try again."
	case errors.Is(err, domain.ErrInvalidArgument):
		msg := err.Error()
		if i := strings.Index(msg, domain.ErrInvalidArgument.Error()); i >= 0 {
			msg = msg[i:]
		}
		return "Invalid request: " + msg
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "The request was cancelled before the AI answered."
	}
	return "Something went wrong while contacting the AI service. Please try again."
}
