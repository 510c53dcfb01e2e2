// Package participant maps external identities to anonymous display
// identities that stay stable across reconnects.
package participant

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"

	"github.com/YatingPan/chat-room/internal/chatlog"
	"github.com/YatingPan/chat-room/internal/domain"
)

// Registry allocates display names from a finite pool and keeps one
// Participant per distinct external identity.
type Registry struct {
	logs *chatlog.Store

	mu    sync.Mutex
	pool  []string
	taken map[int]bool
	byID  map[string]*domain.Participant
}

// NewRegistry loads the nickname pool from a JSON array file.
func NewRegistry(nicknamePath string, logs *chatlog.Store) (*Registry, error) {
	raw, err := os.ReadFile(nicknamePath)
	if err != nil {
		return nil, fmt.Errorf("read nickname pool: %w", err)
	}
	var pool []string
	if err := json.Unmarshal(raw, &pool); err != nil {
		return nil, fmt.Errorf("parse nickname pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, fmt.Errorf("nickname pool is empty")
	}
	return newRegistry(pool, logs), nil
}

func newRegistry(pool []string, logs *chatlog.Store) *Registry {
	return &Registry{
		logs:  logs,
		pool:  pool,
		taken: make(map[int]bool),
		byID:  make(map[string]*domain.Participant),
	}
}

// Join returns the Participant for an external identity, creating it on
// first contact. Re-joining with a known identity preserves the display
// name and moves the participant to the requested room.
func (r *Registry) Join(info domain.AccessInfo, connID string) domain.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.User != nil && info.User.ID != "" {
		if p, ok := r.byID[info.User.ID]; ok {
			if p.RoomToken != info.AccessCode {
				p.RoomToken = info.AccessCode
			}
			return *p
		}
	}

	p := &domain.Participant{
		Author:    domain.Author{ID: connID, Name: r.pickNickname()},
		RoomToken: info.AccessCode,
	}
	r.byID[connID] = p

	if err := r.logs.AppendParticipant(info.AccessCode, p.Author); err != nil {
		slog.Error("Failed to record participant in room log",
			"room", info.AccessCode, "user_id", connID, "error", err)
	}
	slog.Info("Participant joined", "user_id", p.Author.ID, "name", p.Author.Name, "room", p.RoomToken)
	return *p
}

// Lookup returns the Participant for an external identity, if known.
func (r *Registry) Lookup(externalID string) (domain.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[externalID]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

// pickNickname draws uniformly at random without replacement. When the pool
// is exhausted it resets rather than erroring.
func (r *Registry) pickNickname() string {
	if len(r.taken) == len(r.pool) {
		r.taken = make(map[int]bool)
	}
	for {
		i := rand.IntN(len(r.pool))
		if !r.taken[i] {
			r.taken[i] = true
			return r.pool[i]
		}
	}
}
