package storage

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokoro-ai/kokoro/internal/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "kokoro.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInsertAndRecentTurns(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id1, err := db.InsertTurn(ctx, model.RoleUser, "hello")
	require.NoError(t, err)
	id2, err := db.InsertTurn(ctx, model.RoleAssistant, "hi there")
	require.NoError(t, err)
	assert.Greater(t, id2, id1)

	turns, err := db.RecentTurns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	// Newest first.
	assert.Equal(t, "hi there", turns[0].Content)
	assert.Equal(t, model.RoleAssistant, turns[0].Role)
	assert.Equal(t, "hello", turns[1].Content)
	assert.False(t, turns[0].CreatedAt.Before(turns[1].CreatedAt))
}

func TestRecentTurnsLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for range 5 {
		_, err := db.InsertTurn(ctx, model.RoleUser, "msg")
		require.NoError(t, err)
	}

	turns, err := db.RecentTurns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, turns, 3)
}

func TestRecentUserTurnsSkipsOffset(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		_, err := db.InsertTurn(ctx, model.RoleUser, msg)
		require.NoError(t, err)
		_, err = db.InsertTurn(ctx, model.RoleAssistant, "reply to "+msg)
		require.NoError(t, err)
	}

	// Offset 1 skips the most recent user turn.
	turns, err := db.RecentUserTurns(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "second", turns[0].Content)
	assert.Equal(t, "first", turns[1].Content)
	for _, turn := range turns {
		assert.Equal(t, model.RoleUser, turn.Role)
	}
}

func TestRecentUserTurnsZeroLimit(t *testing.T) {
	db := newTestDB(t)

	turns, err := db.RecentUserTurns(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestThoughts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.InsertThought(ctx, "the rain sounds nice", 7)
	require.NoError(t, err)
	_, err = db.InsertThought(ctx, "tea would be good", model.DefaultThoughtImportance)
	require.NoError(t, err)

	thoughts, err := db.RecentThoughts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, thoughts, 2)
	assert.Equal(t, "tea would be good", thoughts[0].Content)
	assert.Equal(t, model.DefaultThoughtImportance, thoughts[0].Importance)
	assert.Equal(t, 7, thoughts[1].Importance)
}

func TestLatestMood(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.LatestMood(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.InsertMood(ctx, "curious", 0.8)
	require.NoError(t, err)
	_, err = db.InsertMood(ctx, "happy", 1.0)
	require.NoError(t, err)

	ev, err := db.LatestMood(ctx)
	require.NoError(t, err)
	assert.Equal(t, "happy", ev.Mood)
	assert.InDelta(t, 1.0, ev.Intensity, 1e-9)

	events, err := db.RecentMoods(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "happy", events[0].Mood)
	assert.Equal(t, "curious", events[1].Mood)
}

func TestTimeFormatSortsAcrossSecondBoundary(t *testing.T) {
	// The stored strings are compared lexicographically by ORDER BY, so
	// a timestamp landing exactly on a second boundary must still sort
	// before sub-second timestamps in the same second.
	exact := time.Date(2026, 8, 31, 12, 0, 5, 0, time.UTC).Format(timeFormat)
	frac := time.Date(2026, 8, 31, 12, 0, 5, 123, time.UTC).Format(timeFormat)
	next := time.Date(2026, 8, 31, 12, 0, 6, 0, time.UTC).Format(timeFormat)

	assert.Less(t, exact, frac)
	assert.Less(t, frac, next)

	// Round-trips through the reader's parse layout.
	parsed, err := time.Parse(time.RFC3339Nano, exact)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(time.Date(2026, 8, 31, 12, 0, 5, 0, time.UTC)))
}

func TestCorruptTimestampReadAsZeroTime(t *testing.T) {
	var logs bytes.Buffer
	db, err := Open(filepath.Join(t.TempDir(), "kokoro.db"),
		slog.New(slog.NewTextHandler(&logs, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	_, err = db.db.ExecContext(ctx,
		`INSERT INTO conversations (role, content, created_at) VALUES ('user', 'hello', 'not-a-time')`)
	require.NoError(t, err)

	turns, err := db.RecentTurns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.True(t, turns[0].CreatedAt.IsZero())
	assert.Contains(t, logs.String(), "corrupt timestamp")
}

func TestSnapshots(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.AppendSnapshot(ctx, map[string]string{"mood": "neutral"}))
	require.NoError(t, db.AppendSnapshot(ctx, map[string]string{"mood": "happy", "location": "garden"}))

	snap, err := db.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"mood": "happy", "location": "garden"}, snap.State)

	history, err := db.SnapshotHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "happy", history[0].State["mood"])
	assert.Equal(t, "neutral", history[1].State["mood"])
}

func TestSnapshotHistoryLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for range 4 {
		require.NoError(t, db.AppendSnapshot(ctx, map[string]string{"mood": "neutral"}))
	}

	history, err := db.SnapshotHistory(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
