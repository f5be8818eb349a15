// Package badgerstore keeps the client-local state (ratings, settings and
// saved preferences) in an embedded Badger database.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
)

// Key layout
const (
	feedbackPrefix = "feedback:"
	settingsKey    = "settings"
	stablePrefsKey = "prefs:stable"
	tracerName     = "repo.badger"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Store is the Badger-backed local storage.
type Store struct {
	db  *badger.DB
	now func() time.Time
}

// Open opens (or creates) the database at path. inMemory ignores path and
// keeps everything in memory.
func Open(path string, inMemory bool) (*Store, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("op=badgerstore.Open: store path is empty")
	}
	opts = opts.WithLogger(slogLogger{lg: slog.Default().With(slog.String("component", "badger"))})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("op=badgerstore.Open: %w", err)
	}
	return New(db), nil
}

// New wraps an already open database.
func New(db *badger.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// getJSON decodes the value at key into dst and reports whether it existed.
func (s *Store) getJSON(key string, dst any) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error { return json.Unmarshal(val, dst) })
	})
	return found, err
}

func (s *Store) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error { return txn.Set([]byte(key), data) })
}

// slogLogger routes badger's internal logging to slog. Info and debug
// chatter is demoted to debug.
type slogLogger struct{ lg *slog.Logger }

var _ badger.Logger = slogLogger{}

func (l slogLogger) Errorf(f string, args ...any) {
	l.lg.Error(strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func (l slogLogger) Warningf(f string, args ...any) {
	l.lg.Warn(strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func (l slogLogger) Infof(f string, args ...any) {
	l.lg.Debug(strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func (l slogLogger) Debugf(f string, args ...any) {
	l.lg.Debug(strings.TrimSpace(fmt.Sprintf(f, args...)))
}

func ctxErr(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("op=%s: %w", op, err)
	}
	return nil
}
