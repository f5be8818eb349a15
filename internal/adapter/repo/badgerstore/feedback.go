package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/reelmatch/internal/domain"
)

// RateItem stores (or replaces) the user's rating of ref.
func (s *Store) RateItem(ctx context.Context, ref domain.TitleRef, value domain.FeedbackValue, source domain.FeedbackSourceKind) (domain.FeedbackRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "feedback.RateItem")
	defer span.End()
	if err := ctxErr(ctx, "feedback.rate"); err != nil {
		return domain.FeedbackRecord{}, err
	}

	ref.Title = strings.TrimSpace(ref.Title)
	if ref.Title == "" {
		return domain.FeedbackRecord{}, fmt.Errorf("op=feedback.rate: %w: title is required", domain.ErrInvalidArgument)
	}
	if _, err := domain.ParseFeedbackValue(string(value)); err != nil {
		return domain.FeedbackRecord{}, fmt.Errorf("op=feedback.rate: %w", err)
	}
	rec := domain.FeedbackRecord{
		ID:        ref.ID(),
		Title:     ref.Title,
		Year:      ref.Year,
		Feedback:  value,
		Source:    source,
		CreatedAt: s.now(),
	}
	span.SetAttributes(attribute.String("feedback.id", rec.ID))
	if err := s.setJSON(feedbackPrefix+rec.ID, rec); err != nil {
		return domain.FeedbackRecord{}, fmt.Errorf("op=feedback.rate: %w", err)
	}
	return rec, nil
}

// RemoveFeedback deletes the rating with id.
func (s *Store) RemoveFeedback(ctx context.Context, id string) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "feedback.RemoveFeedback")
	defer span.End()
	if err := ctxErr(ctx, "feedback.remove"); err != nil {
		return err
	}

	key := []byte(feedbackPrefix + id)
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("op=feedback.remove: %w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("op=feedback.remove: %w", err)
	}
	return nil
}

// FeedbackHistory implements domain.FeedbackSource. Records come back oldest
// first; undecodable entries are skipped.
func (s *Store) FeedbackHistory(ctx context.Context) ([]domain.FeedbackRecord, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "feedback.FeedbackHistory")
	defer span.End()
	if err := ctxErr(ctx, "feedback.history"); err != nil {
		return nil, err
	}

	var out []domain.FeedbackRecord
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(feedbackPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec domain.FeedbackRecord
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				continue
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("op=feedback.history: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	span.SetAttributes(attribute.Int("feedback.count", len(out)))
	return out, nil
}
