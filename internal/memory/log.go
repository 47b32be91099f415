// Package memory is the append-only conversation log: turns, extracted
// thoughts, and mood events, with recency and importance based retrieval.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/kokoro-ai/kokoro/internal/model"
	"github.com/kokoro-ai/kokoro/internal/storage"
)

// Log records and retrieves conversation history.
type Log struct {
	db     *storage.DB
	logger *slog.Logger
}

// NewLog creates a conversation log over the given database.
func NewLog(db *storage.DB, logger *slog.Logger) *Log {
	return &Log{db: db, logger: logger}
}

// AppendTurn logs one message and returns its identifier.
func (l *Log) AppendTurn(ctx context.Context, role model.Role, content string) (int64, error) {
	id, err := l.db.InsertTurn(ctx, role, content)
	if err != nil {
		return 0, fmt.Errorf("memory: append turn: %w", err)
	}
	return id, nil
}

// AppendThought logs a thought. Importance 0 or below gets the default rank.
func (l *Log) AppendThought(ctx context.Context, content string, importance int) (int64, error) {
	if importance <= 0 {
		importance = model.DefaultThoughtImportance
	}
	id, err := l.db.InsertThought(ctx, content, importance)
	if err != nil {
		return 0, fmt.Errorf("memory: append thought: %w", err)
	}
	return id, nil
}

// AppendMood logs a mood event. Intensity 0 or below defaults to 1.0.
func (l *Log) AppendMood(ctx context.Context, mood string, intensity float64) (int64, error) {
	if intensity <= 0 {
		intensity = 1.0
	}
	id, err := l.db.InsertMood(ctx, mood, intensity)
	if err != nil {
		return 0, fmt.Errorf("memory: append mood: %w", err)
	}
	return id, nil
}

// RecentTurns returns the last `limit` turns in chronological order.
// The store is queried newest-first; the reversal here is what callers
// rely on when they replay history into a prompt.
func (l *Log) RecentTurns(ctx context.Context, limit int) ([]model.Turn, error) {
	turns, err := l.db.RecentTurns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recent turns: %w", err)
	}
	slices.Reverse(turns)
	return turns, nil
}

// RecentThoughts returns the last `limit` thoughts, newest first.
func (l *Log) RecentThoughts(ctx context.Context, limit int) ([]model.Thought, error) {
	thoughts, err := l.db.RecentThoughts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recent thoughts: %w", err)
	}
	return thoughts, nil
}

// RecentMoods returns the last `limit` mood events, newest first.
func (l *Log) RecentMoods(ctx context.Context, limit int) ([]model.MoodEvent, error) {
	events, err := l.db.RecentMoods(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recent moods: %w", err)
	}
	return events, nil
}

// CurrentMood returns the most recently logged mood, or the default when
// nothing has been logged. Never empty.
func (l *Log) CurrentMood(ctx context.Context) (string, error) {
	ev, err := l.db.LatestMood(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return model.DefaultMood, nil
	}
	if err != nil {
		return "", fmt.Errorf("memory: current mood: %w", err)
	}
	return ev.Mood, nil
}

// RelevantMemories returns up to `limit` memories for prompt context: the
// `limit` most recent thoughts plus the `limit-1` most recent user turns
// excluding the single most recent one, which is assumed to be the query
// currently being answered. That exclusion goes by position, not by
// content; when history has gaps it can skip an unrelated turn instead.
// Turns carry a fixed importance so strong thoughts outrank them. Sorted
// by importance descending, recency breaking ties, truncated to limit.
func (l *Log) RelevantMemories(ctx context.Context, query string, limit int) ([]model.Memory, error) {
	if limit <= 0 {
		return nil, nil
	}

	thoughts, err := l.db.RecentThoughts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: relevant thoughts: %w", err)
	}
	turns, err := l.db.RecentUserTurns(ctx, 1, limit-1)
	if err != nil {
		return nil, fmt.Errorf("memory: relevant turns: %w", err)
	}

	memories := make([]model.Memory, 0, len(thoughts)+len(turns))
	for _, th := range thoughts {
		memories = append(memories, model.Memory{
			Content:    th.Content,
			Source:     model.MemorySourceThought,
			Importance: th.Importance,
			CreatedAt:  th.CreatedAt,
		})
	}
	for _, turn := range turns {
		memories = append(memories, model.Memory{
			Content:    turn.Content,
			Source:     model.MemorySourceConversation,
			Importance: model.ConversationMemoryImportance,
			CreatedAt:  turn.CreatedAt,
		})
	}

	sort.SliceStable(memories, func(i, j int) bool {
		if memories[i].Importance != memories[j].Importance {
			return memories[i].Importance > memories[j].Importance
		}
		return memories[i].CreatedAt.After(memories[j].CreatedAt)
	})
	if len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}
