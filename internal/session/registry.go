// Package session lazily materializes live room sessions from the catalog
// and anchors their wall-clock lifecycle.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/YatingPan/chat-room/internal/catalog"
	"github.com/YatingPan/chat-room/internal/chatlog"
	"github.com/YatingPan/chat-room/internal/domain"
	"github.com/YatingPan/chat-room/internal/scheduler"
	"github.com/YatingPan/chat-room/internal/telemetry"
)

// Session is the live, time-bounded instantiation of a room spec. Exactly
// one exists per token at any time; startTime is set once at creation and
// never recomputed.
type Session struct {
	ID           string // = token
	SpecName     string
	Name         string
	StartTime    time.Time
	Duration     int // minutes
	BotType      string
	OutboundLink string
	Post         domain.Post
}

// RoomInfo returns the client-facing view of the session.
func (s *Session) RoomInfo() domain.RoomInfo {
	return domain.RoomInfo{
		ID:           s.ID,
		Name:         s.Name,
		StartTime:    s.StartTime,
		Duration:     s.Duration,
		BotType:      s.BotType,
		OutboundLink: s.OutboundLink,
		Post:         s.Post,
	}
}

// Registry creates sessions on first access and hands back the existing one
// afterwards. Creation is single-flight per token: two simultaneous joins to
// a brand-new room materialize exactly one session.
type Registry struct {
	catalog *catalog.Catalog
	logs    *chatlog.Store
	sched   *scheduler.Scheduler
	metrics *telemetry.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session
	creating singleflight.Group
}

// NewRegistry creates an empty session registry. metrics may be nil.
func NewRegistry(cat *catalog.Catalog, logs *chatlog.Store, sched *scheduler.Scheduler, metrics *telemetry.Metrics) *Registry {
	return &Registry{
		catalog:  cat,
		logs:     logs,
		sched:    sched,
		metrics:  metrics,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate resolves a token to its session, materializing it on first
// access. An unknown token yields domain.ErrNotFound.
func (r *Registry) GetOrCreate(ctx context.Context, token string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[token]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.creating.Do(token, func() (any, error) {
		// Re-check under the flight: a concurrent first access may have
		// finished creation while this call queued.
		r.mu.RLock()
		s, ok := r.sessions[token]
		r.mu.RUnlock()
		if ok {
			return s, nil
		}
		return r.create(token)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) create(token string) (*Session, error) {
	specName, err := r.catalog.Resolve(token)
	if err != nil {
		return nil, err
	}
	spec, post, err := r.catalog.Load(specName)
	if err != nil {
		return nil, fmt.Errorf("materialize session for %s: %w", specName, err)
	}

	s := &Session{
		ID:           token,
		SpecName:     specName,
		Name:         spec.RoomName,
		StartTime:    time.Now(),
		Duration:     spec.Duration,
		BotType:      spec.BotType,
		OutboundLink: spec.OutboundLink,
		Post:         *post,
	}

	meta := chatlog.Meta{
		RoomID:       s.ID,
		SpecName:     s.SpecName,
		Name:         s.Name,
		StartTime:    s.StartTime,
		Duration:     s.Duration,
		PostTitle:    post.Title,
		BotType:      s.BotType,
		OutboundLink: s.OutboundLink,
	}
	r.logs.Init(meta, spec.Comments)
	r.sched.Arm(meta)

	r.mu.Lock()
	r.sessions[token] = s
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SessionsCreated.Inc()
	}
	slog.Info("Session created", "room", token, "spec", specName,
		"start_time", s.StartTime, "duration_min", s.Duration, "bot_type", s.BotType)
	return s, nil
}

// Get returns an existing session without creating one.
func (r *Registry) Get(token string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[token]
	return s, ok
}

// Remove drops a session after teardown. A later join with the same token
// starts a fresh session with a fresh start time.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}
