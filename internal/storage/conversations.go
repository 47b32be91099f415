package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kokoro-ai/kokoro/internal/model"
)

// timeFormat is how timestamps are stored. The fractional second is
// fixed-width so lexicographic ORDER BY matches chronological order;
// RFC3339Nano drops a zero fraction entirely, which would sort a row
// stamped exactly on a second boundary after its sub-second neighbors.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// InsertTurn appends a conversation turn and returns its row ID.
func (s *DB) InsertTurn(ctx context.Context, role model.Role, content string) (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (role, content, created_at) VALUES (?, ?, ?)`,
		string(role), content, now)
	if err != nil {
		return 0, fmt.Errorf("storage: insert turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: insert turn id: %w", err)
	}
	return id, nil
}

// RecentTurns returns the most recent turns, newest first.
func (s *DB) RecentTurns(ctx context.Context, limit int) ([]model.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM conversations
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query recent turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []model.Turn
	for rows.Next() {
		var (
			t         model.Turn
			role      string
			createdAt string
		)
		if err := rows.Scan(&t.ID, &role, &t.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan turn: %w", err)
		}
		t.Role = model.Role(role)
		t.CreatedAt = s.parseTime(createdAt)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate turns: %w", err)
	}
	return turns, nil
}

// RecentUserTurns returns user turns newest first, skipping the first
// `offset` rows. The memory retriever passes offset 1 so the in-flight
// query is not fed back to itself as context.
func (s *DB) RecentUserTurns(ctx context.Context, offset, limit int) ([]model.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM conversations
		 WHERE role = ? ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		string(model.RoleUser), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage: query user turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []model.Turn
	for rows.Next() {
		var (
			t         model.Turn
			role      string
			createdAt string
		)
		if err := rows.Scan(&t.ID, &role, &t.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan user turn: %w", err)
		}
		t.Role = model.Role(role)
		t.CreatedAt = s.parseTime(createdAt)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate user turns: %w", err)
	}
	return turns, nil
}

// InsertThought appends a thought and returns its row ID.
func (s *DB) InsertThought(ctx context.Context, content string, importance int) (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO thoughts (content, importance, created_at) VALUES (?, ?, ?)`,
		content, importance, now)
	if err != nil {
		return 0, fmt.Errorf("storage: insert thought: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: insert thought id: %w", err)
	}
	return id, nil
}

// RecentThoughts returns the most recent thoughts, newest first.
func (s *DB) RecentThoughts(ctx context.Context, limit int) ([]model.Thought, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, importance, created_at FROM thoughts
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query thoughts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var thoughts []model.Thought
	for rows.Next() {
		var (
			th        model.Thought
			createdAt string
		)
		if err := rows.Scan(&th.ID, &th.Content, &th.Importance, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan thought: %w", err)
		}
		th.CreatedAt = s.parseTime(createdAt)
		thoughts = append(thoughts, th)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate thoughts: %w", err)
	}
	return thoughts, nil
}

// InsertMood appends a mood event and returns its row ID.
func (s *DB) InsertMood(ctx context.Context, mood string, intensity float64) (int64, error) {
	now := time.Now().UTC().Format(timeFormat)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO emotions (mood, intensity, created_at) VALUES (?, ?, ?)`,
		mood, intensity, now)
	if err != nil {
		return 0, fmt.Errorf("storage: insert mood: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage: insert mood id: %w", err)
	}
	return id, nil
}

// LatestMood returns the most recent mood event, or ErrNotFound if the
// emotions table is empty.
func (s *DB) LatestMood(ctx context.Context) (model.MoodEvent, error) {
	var (
		ev        model.MoodEvent
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, mood, intensity, created_at FROM emotions
		 ORDER BY created_at DESC, id DESC LIMIT 1`).
		Scan(&ev.ID, &ev.Mood, &ev.Intensity, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MoodEvent{}, ErrNotFound
	}
	if err != nil {
		return model.MoodEvent{}, fmt.Errorf("storage: query latest mood: %w", err)
	}
	ev.CreatedAt = s.parseTime(createdAt)
	return ev, nil
}

// RecentMoods returns the most recent mood events, newest first.
func (s *DB) RecentMoods(ctx context.Context, limit int) ([]model.MoodEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mood, intensity, created_at FROM emotions
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query moods: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []model.MoodEvent
	for rows.Next() {
		var (
			ev        model.MoodEvent
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.Mood, &ev.Intensity, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan mood: %w", err)
		}
		ev.CreatedAt = s.parseTime(createdAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate moods: %w", err)
	}
	return events, nil
}

// parseTime decodes a stored timestamp, accepting rows written before
// the fractional second became fixed-width. A corrupt value is logged
// and read as the zero time rather than failing the whole query.
func (s *DB) parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.logger.Warn("storage: corrupt timestamp", "value", raw, "error", err)
	}
	return t
}
