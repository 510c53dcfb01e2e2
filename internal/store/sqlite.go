package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed archive.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS transcripts (
		room_id TEXT NOT NULL,
		spec_name TEXT NOT NULL,
		version INTEGER NOT NULL,
		path TEXT NOT NULL,
		written_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_room ON transcripts(room_id, written_at);

	CREATE TABLE IF NOT EXISTS participants (
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		room_token TEXT NOT NULL,
		joined_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_participants_room ON participants(room_token);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordTranscript indexes a written transcript artifact.
func (s *SQLiteStore) RecordTranscript(ctx context.Context, rec TranscriptRecord) error {
	query := `INSERT INTO transcripts (room_id, spec_name, version, path, written_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		rec.RoomID, rec.SpecName, rec.Version, rec.Path, rec.WrittenAt.Unix()); err != nil {
		return fmt.Errorf("insert transcript record: %w", err)
	}
	return nil
}

// RecordParticipant records a participant join.
func (s *SQLiteStore) RecordParticipant(ctx context.Context, rec ParticipantRecord) error {
	query := `INSERT INTO participants (user_id, name, room_token, joined_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		rec.UserID, rec.Name, rec.RoomToken, rec.JoinedAt.Unix()); err != nil {
		return fmt.Errorf("insert participant record: %w", err)
	}
	return nil
}

// ListTranscripts returns the transcript index for a room, oldest first.
func (s *SQLiteStore) ListTranscripts(ctx context.Context, roomID string) ([]TranscriptRecord, error) {
	query := `
		SELECT room_id, spec_name, version, path, written_at
		FROM transcripts WHERE room_id = ? ORDER BY written_at, version`

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var recs []TranscriptRecord
	for rows.Next() {
		var rec TranscriptRecord
		var writtenAt int64
		if err := rows.Scan(&rec.RoomID, &rec.SpecName, &rec.Version, &rec.Path, &writtenAt); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		rec.WrittenAt = time.Unix(writtenAt, 0)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript rows: %w", err)
	}
	return recs, nil
}
