package memory

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kokoro-ai/kokoro/internal/model"
	"github.com/kokoro-ai/kokoro/internal/storage"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "kokoro.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewLog(db, slog.Default())
}

func TestRecentTurnsChronological(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three"} {
		_, err := log.AppendTurn(ctx, model.RoleUser, msg)
		require.NoError(t, err)
	}

	turns, err := log.RecentTurns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	// Oldest of the window first, even though the store returns newest first.
	assert.Equal(t, "two", turns[0].Content)
	assert.Equal(t, "three", turns[1].Content)
	assert.True(t, turns[0].CreatedAt.Before(turns[1].CreatedAt) || turns[0].CreatedAt.Equal(turns[1].CreatedAt))
}

func TestCurrentMoodDefault(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	mood, err := log.CurrentMood(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultMood, mood)

	_, err = log.AppendMood(ctx, "wistful", 0.6)
	require.NoError(t, err)

	mood, err = log.CurrentMood(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wistful", mood)
}

func TestAppendThoughtDefaultImportance(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	_, err := log.AppendThought(ctx, "idle thought", 0)
	require.NoError(t, err)

	thoughts, err := log.RecentThoughts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, thoughts, 1)
	assert.Equal(t, model.DefaultThoughtImportance, thoughts[0].Importance)
}

func TestRelevantMemoriesExcludesLatestUserTurn(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	for _, msg := range []string{"we talked about rain", "we talked about tea", "in-flight query"} {
		_, err := log.AppendTurn(ctx, model.RoleUser, msg)
		require.NoError(t, err)
	}

	memories, err := log.RelevantMemories(ctx, "anything", 5)
	require.NoError(t, err)

	contents := make([]string, 0, len(memories))
	for _, m := range memories {
		contents = append(contents, m.Content)
		assert.Equal(t, model.MemorySourceConversation, m.Source)
		assert.Equal(t, model.ConversationMemoryImportance, m.Importance)
	}
	assert.NotContains(t, contents, "in-flight query")
	assert.Contains(t, contents, "we talked about rain")
	assert.Contains(t, contents, "we talked about tea")
}

func TestRelevantMemoriesRanking(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	_, err := log.AppendTurn(ctx, model.RoleUser, "old turn")
	require.NoError(t, err)
	_, err = log.AppendTurn(ctx, model.RoleUser, "current query")
	require.NoError(t, err)
	_, err = log.AppendThought(ctx, "big realization", 9)
	require.NoError(t, err)
	_, err = log.AppendThought(ctx, "minor note", 1)
	require.NoError(t, err)

	memories, err := log.RelevantMemories(ctx, "q", 2)
	require.NoError(t, err)
	require.Len(t, memories, 2)

	// Thought importance 9 first, then the turn at the fixed rank 3.
	assert.Equal(t, "big realization", memories[0].Content)
	assert.Equal(t, "old turn", memories[1].Content)
}

func TestRelevantMemoriesLimitOne(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	_, err := log.AppendTurn(ctx, model.RoleUser, "only turn")
	require.NoError(t, err)
	_, err = log.AppendThought(ctx, "a thought", 5)
	require.NoError(t, err)

	// limit-1 == 0 user turns requested; only the thought qualifies.
	memories, err := log.RelevantMemories(ctx, "q", 1)
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, model.MemorySourceThought, memories[0].Source)
}

func TestRelevantMemoriesZeroLimit(t *testing.T) {
	log := newTestLog(t)

	memories, err := log.RelevantMemories(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, memories)
}
