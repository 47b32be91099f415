package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kokoro-ai/kokoro/internal/model"
)

// AppendSnapshot stores a full copy of the character state map.
// Snapshots are never diffed or updated in place; history is the sequence
// of whole maps ordered by insertion time.
func (s *DB) AppendSnapshot(ctx context.Context, state map[string]string) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("storage: marshal state: %w", err)
	}
	now := time.Now().UTC().Format(timeFormat)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO character_state (state_json, created_at) VALUES (?, ?)`,
		string(blob), now); err != nil {
		return fmt.Errorf("storage: append snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent state snapshot, or ErrNotFound
// if none has been written yet.
func (s *DB) LatestSnapshot(ctx context.Context) (model.StateSnapshot, error) {
	var (
		snap      model.StateSnapshot
		blob      string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, state_json, created_at FROM character_state
		 ORDER BY created_at DESC, id DESC LIMIT 1`).
		Scan(&snap.ID, &blob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StateSnapshot{}, ErrNotFound
	}
	if err != nil {
		return model.StateSnapshot{}, fmt.Errorf("storage: query latest snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(blob), &snap.State); err != nil {
		return model.StateSnapshot{}, fmt.Errorf("storage: decode snapshot %d: %w", snap.ID, err)
	}
	snap.CreatedAt = s.parseTime(createdAt)
	return snap, nil
}

// SnapshotHistory returns the most recent snapshots, newest first.
// Rows with undecodable JSON are skipped rather than failing the read.
func (s *DB) SnapshotHistory(ctx context.Context, limit int) ([]model.StateSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state_json, created_at FROM character_state
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query snapshot history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []model.StateSnapshot
	for rows.Next() {
		var (
			snap      model.StateSnapshot
			blob      string
			createdAt string
		)
		if err := rows.Scan(&snap.ID, &blob, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: scan snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(blob), &snap.State); err != nil {
			s.logger.Warn("storage: skipping corrupt snapshot", "id", snap.ID, "error", err)
			continue
		}
		snap.CreatedAt = s.parseTime(createdAt)
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate snapshots: %w", err)
	}
	return snaps, nil
}
