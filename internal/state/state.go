// Package state holds the current character state (mood, appearance,
// clothing, location) in memory with write-through persistence. Every
// persisted change is a full snapshot of the map, never a diff.
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/kokoro-ai/kokoro/internal/model"
	"github.com/kokoro-ai/kokoro/internal/storage"
)

// Defaults seed the state when no snapshot has ever been persisted.
func Defaults() map[string]string {
	return map[string]string{
		"mood":            model.DefaultMood,
		"appearance":      "long silver hair, violet eyes, a soft knit cardigan",
		"clothing":        "casual loungewear",
		"location":        "her apartment, by the window",
		"current_thought": "",
	}
}

// Store is the process-wide character state. Construct exactly one per
// process with New and hand it to collaborators; all mutation is
// serialized through its mutex so interleaved updates cannot drop keys.
type Store struct {
	db     *storage.DB
	logger *slog.Logger

	mu    sync.Mutex
	state map[string]string
}

// New loads the most recent snapshot, or seeds and persists defaults if
// storage is empty. After New returns, storage always holds at least one
// snapshot.
func New(ctx context.Context, db *storage.DB, logger *slog.Logger) (*Store, error) {
	s := &Store{db: db, logger: logger}

	snap, err := db.LatestSnapshot(ctx)
	switch {
	case err == nil:
		s.state = Defaults()
		// Stored values override defaults key by key; defaults fill in
		// keys added after the snapshot was written.
		maps.Copy(s.state, snap.State)
	case errors.Is(err, storage.ErrNotFound):
		s.state = Defaults()
		if err := db.AppendSnapshot(ctx, s.state); err != nil {
			return nil, fmt.Errorf("state: seed defaults: %w", err)
		}
		logger.Info("state: seeded defaults")
	default:
		return nil, fmt.Errorf("state: load latest snapshot: %w", err)
	}

	return s, nil
}

// Get returns the current value for key, or def if the key is unset.
// Pure in-memory read.
func (s *Store) Get(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.state[key]; ok {
		return v
	}
	return def
}

// Set stores value under key and persists a full snapshot. Writing the
// value a key already holds is a no-op so idempotent callers do not grow
// the snapshot history.
func (s *Store) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.state[key]; ok && cur == value {
		return nil
	}
	s.state[key] = value
	return s.persistLocked(ctx)
}

// Update applies all entries of m and persists at most one snapshot for
// the whole batch. If nothing actually changed, nothing is persisted.
func (s *Store) Update(ctx context.Context, m map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for k, v := range m {
		if cur, ok := s.state[k]; !ok || cur != v {
			s.state[k] = v
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persistLocked(ctx)
}

// Snapshot returns a copy of the full state map.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.state)
}

// History returns the most recent persisted snapshots, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]model.StateSnapshot, error) {
	return s.db.SnapshotHistory(ctx, limit)
}

func (s *Store) persistLocked(ctx context.Context) error {
	if err := s.db.AppendSnapshot(ctx, s.state); err != nil {
		return fmt.Errorf("state: persist snapshot: %w", err)
	}
	return nil
}
