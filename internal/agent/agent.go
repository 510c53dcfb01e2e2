// Package agent implements the moderator intervention agent: an external
// collaborator that reads the discussion so far and produces one additional
// moderator comment.
package agent

import (
	"context"

	"github.com/YatingPan/chat-room/internal/domain"
)

// Moderator produces intervention content from a windowed discussion log.
// Implementations are fallible and latency-bearing; callers must treat an
// error as "skip this intervention", never as fatal.
type Moderator interface {
	// Generate returns the text of a single moderator comment for the given
	// window. usedArgumentIDs lists argument identifiers already raised in
	// earlier interventions so the agent does not repeat itself.
	Generate(ctx context.Context, log domain.WindowedLog, usedArgumentIDs []string) (string, error)
}
