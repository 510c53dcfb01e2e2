// Package transcript persists windowed discussion logs as structured
// artifacts, one file per window.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/YatingPan/chat-room/internal/domain"
	"github.com/YatingPan/chat-room/internal/store"
)

// Writer writes transcript snapshot files and indexes them in the archive.
// Archive failures are logged, not propagated; the file artifact is the
// primary output.
type Writer struct {
	dir     string
	archive store.Repository // may be nil
}

// NewWriter creates a writer rooted at dir, creating it if needed.
func NewWriter(dir string, archive store.Repository) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	return &Writer{dir: dir, archive: archive}, nil
}

// Write serializes a windowed log to a deterministically named file:
// <specBase>_<timestamp>_<version>.log.json.
func (w *Writer) Write(ctx context.Context, log domain.WindowedLog, version int) (string, error) {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}

	specBase := strings.TrimSuffix(log.SpecName, filepath.Ext(log.SpecName))
	now := time.Now()
	name := fmt.Sprintf("%s_%s_%d.log.json", specBase, now.Format("2.01.2006-15:04"), version)
	path := filepath.Join(w.dir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write transcript %s: %w", name, err)
	}

	if w.archive != nil {
		rec := store.TranscriptRecord{
			RoomID:    log.RoomID,
			SpecName:  log.SpecName,
			Version:   version,
			Path:      path,
			WrittenAt: now,
		}
		if err := w.archive.RecordTranscript(ctx, rec); err != nil {
			slog.Error("Failed to index transcript in archive",
				"room", log.RoomID, "version", version, "error", err)
		}
	}
	return path, nil
}
