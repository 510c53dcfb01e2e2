// Package store provides the persistent archive of transcript artifacts and
// participant records. Live room state is memory-resident; this store exists
// for post-session analysis and diagnostics only.
package store

import (
	"context"
	"time"
)

// TranscriptRecord describes one written transcript artifact.
type TranscriptRecord struct {
	RoomID    string    `json:"room_id"`
	SpecName  string    `json:"spec_name"`
	Version   int       `json:"version"`
	Path      string    `json:"path"`
	WrittenAt time.Time `json:"written_at"`
}

// ParticipantRecord describes one participant join.
type ParticipantRecord struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	RoomToken string    `json:"room_token"`
	JoinedAt  time.Time `json:"joined_at"`
}

// Repository defines the archive persistence interface.
type Repository interface {
	// RecordTranscript indexes a written transcript artifact.
	RecordTranscript(ctx context.Context, rec TranscriptRecord) error

	// RecordParticipant records a participant join.
	RecordParticipant(ctx context.Context, rec ParticipantRecord) error

	// ListTranscripts returns the transcript index for a room, oldest first.
	ListTranscripts(ctx context.Context, roomID string) ([]TranscriptRecord, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
