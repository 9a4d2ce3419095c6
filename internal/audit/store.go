// Package audit persists a history of room and acquisition events to a
// local sqlite database, independent of the in-memory room state. It exists
// purely as an append-only log for later inspection; nothing in the live
// protocol path reads it back.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a sqlite-backed append-only event log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the audit database and runs migrations.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit database path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	st := &Store{db: db}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Info("audit store opened", "path", path)
	return st, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS room_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_code TEXT NOT NULL,
	event TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_room_events_room ON room_events(room_code, created_at_unix_ms);

CREATE TABLE IF NOT EXISTS acquisitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	song_id TEXT NOT NULL,
	url TEXT NOT NULL,
	outcome TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_acquisitions_song ON acquisitions(song_id);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("run audit migrations: %w", err)
	}

	for _, stmt := range []string{
		`ALTER TABLE room_events ADD COLUMN actor TEXT NOT NULL DEFAULT ''`,
	} {
		_, _ = s.db.ExecContext(ctx, stmt)
	}

	slog.Debug("audit migrations applied")
	return nil
}

// RecordRoomEvent appends one room lifecycle event (room_created,
// room_deleted, host_promoted, track_played, and so on).
func (s *Store) RecordRoomEvent(ctx context.Context, roomCode, event, actor, detail string) error {
	if strings.TrimSpace(roomCode) == "" || strings.TrimSpace(event) == "" {
		return fmt.Errorf("room code and event are required")
	}
	const q = `INSERT INTO room_events (room_code, event, actor, detail, created_at_unix_ms) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, roomCode, event, actor, detail, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert room event: %w", err)
	}
	return nil
}

// RecordAcquisition appends one acquisition pipeline outcome.
func (s *Store) RecordAcquisition(ctx context.Context, songID, url, outcome, detail string) error {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(outcome) == "" {
		return fmt.Errorf("url and outcome are required")
	}
	const q = `INSERT INTO acquisitions (song_id, url, outcome, detail, created_at_unix_ms) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q, songID, url, outcome, detail, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert acquisition event: %w", err)
	}
	return nil
}

// RoomEventRow is one persisted room lifecycle event.
type RoomEventRow struct {
	ID        int64
	RoomCode  string
	Event     string
	Actor     string
	Detail    string
	CreatedAt time.Time
}

// RecentRoomEvents returns the most recent events for a room, oldest first.
func (s *Store) RecentRoomEvents(ctx context.Context, roomCode string, limit int) ([]RoomEventRow, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, room_code, event, actor, detail, created_at_unix_ms
FROM room_events
WHERE room_code = ?
ORDER BY created_at_unix_ms DESC, id DESC
LIMIT ?
`
	rows, err := s.db.QueryContext(ctx, q, roomCode, limit)
	if err != nil {
		return nil, fmt.Errorf("query room events: %w", err)
	}
	defer rows.Close()

	var out []RoomEventRow
	for rows.Next() {
		var r RoomEventRow
		var createdMs int64
		if err := rows.Scan(&r.ID, &r.RoomCode, &r.Event, &r.Actor, &r.Detail, &createdMs); err != nil {
			return nil, fmt.Errorf("scan room event: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, r)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}
