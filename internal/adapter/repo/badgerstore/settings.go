package badgerstore

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// Settings implements domain.SettingsSource. Missing settings yield the
// defaults.
func (s *Store) Settings(ctx context.Context) (domain.AppSettings, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "settings.Get")
	defer span.End()
	if err := ctxErr(ctx, "settings.get"); err != nil {
		return domain.AppSettings{}, err
	}

	st := domain.AppSettings{RecommendationCount: domain.DefaultRecommendationCount}
	if _, err := s.getJSON(settingsKey, &st); err != nil {
		return domain.AppSettings{}, fmt.Errorf("op=settings.get: %w", err)
	}
	return st, nil
}

// SaveSettings validates and stores st.
func (s *Store) SaveSettings(ctx context.Context, st domain.AppSettings) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "settings.Save")
	defer span.End()
	if err := ctxErr(ctx, "settings.save"); err != nil {
		return err
	}

	if err := validate.Struct(st); err != nil {
		return fmt.Errorf("op=settings.save: %w: %v", domain.ErrInvalidArgument, err)
	}
	if err := s.setJSON(settingsKey, st); err != nil {
		return fmt.Errorf("op=settings.save: %w", err)
	}
	return nil
}

// StablePreferences returns the saved long-lived preferences, normalized.
// Nothing saved means every field is "Any".
func (s *Store) StablePreferences(ctx context.Context) (domain.StablePreferences, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "prefs.Get")
	defer span.End()
	if err := ctxErr(ctx, "prefs.get"); err != nil {
		return domain.StablePreferences{}, err
	}

	var p domain.StablePreferences
	if _, err := s.getJSON(stablePrefsKey, &p); err != nil {
		return domain.StablePreferences{}, fmt.Errorf("op=prefs.get: %w", err)
	}
	return p.Normalize(), nil
}

// SaveStablePreferences stores p after normalization.
func (s *Store) SaveStablePreferences(ctx context.Context, p domain.StablePreferences) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "prefs.Save")
	defer span.End()
	if err := ctxErr(ctx, "prefs.save"); err != nil {
		return err
	}

	if err := s.setJSON(stablePrefsKey, p.Normalize()); err != nil {
		return fmt.Errorf("op=prefs.save: %w", err)
	}
	return nil
}
