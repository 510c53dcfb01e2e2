// Package hub is the broadcast gateway: it fans new comments, replies, and
// action updates out to every connection joined to a room channel, with the
// comment log as the source of truth.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/YatingPan/chat-room/internal/chatlog"
	"github.com/YatingPan/chat-room/internal/domain"
	"github.com/YatingPan/chat-room/internal/telemetry"
)

// Event names produced on the room channel.
const (
	EventComment       = "comment"
	EventReply         = "reply"
	EventActionsUpdate = "actionsUpdate"
	EventDisconnect    = "userDisconnect"
)

// Subscriber is one connection joined to a room channel.
type Subscriber interface {
	// Send delivers one event to the connection.
	Send(ctx context.Context, event string, payload any) error
	// Shutdown closes the connection with a reason.
	Shutdown(reason string)
}

type room struct {
	mu   sync.Mutex // serializes append+fanout: single writer per room
	subs map[Subscriber]struct{}
}

// Gateway manages room channels. Every broadcast appends to the comment log
// first; nothing is fanned out that was not durably appended, and fanout
// order matches append order for a given room.
type Gateway struct {
	logs    *chatlog.Store
	metrics *telemetry.Metrics

	mu    sync.RWMutex
	rooms map[string]*room
}

// NewGateway creates a gateway over the given log store. metrics may be nil.
func NewGateway(logs *chatlog.Store, metrics *telemetry.Metrics) *Gateway {
	return &Gateway{
		logs:    logs,
		metrics: metrics,
		rooms:   make(map[string]*room),
	}
}

func (g *Gateway) room(roomID string) *room {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.rooms[roomID]
	if !ok {
		r = &room{subs: make(map[Subscriber]struct{})}
		g.rooms[roomID] = r
	}
	return r
}

// Join adds a connection to a room channel.
func (g *Gateway) Join(roomID string, sub Subscriber) {
	r := g.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub] = struct{}{}
}

// Leave removes a connection from a room channel and notifies the room.
func (g *Gateway) Leave(ctx context.Context, roomID string, sub Subscriber) {
	g.mu.RLock()
	r, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if !ok {
		return
	}
	r.mu.Lock()
	delete(r.subs, sub)
	r.fanout(ctx, g.metrics, EventDisconnect, "A user has left the chat")
	r.mu.Unlock()
}

// CloseRoom shuts down every connection in a room and drops the channel.
func (g *Gateway) CloseRoom(roomID, reason string) {
	g.mu.Lock()
	r, ok := g.rooms[roomID]
	delete(g.rooms, roomID)
	g.mu.Unlock()
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.subs {
		sub.Shutdown(reason)
	}
	r.subs = make(map[Subscriber]struct{})
	slog.Info("Room channel closed", "room", roomID, "reason", reason)
}

// BroadcastComment appends a proposed comment to the log and fans the logged
// representation out to the sender's room.
func (g *Gateway) BroadcastComment(ctx context.Context, sender domain.Participant, proposed domain.ProposedComment) (domain.Comment, error) {
	r := g.room(sender.RoomToken)
	r.mu.Lock()
	defer r.mu.Unlock()

	comment, err := g.logs.AppendTopLevelComment(sender.RoomToken, domain.Comment{
		Content: proposed.Content,
		Author:  sender.Author,
		Time:    time.Now(),
	})
	if err != nil {
		return domain.Comment{}, err
	}
	r.fanout(ctx, g.metrics, EventComment, comment)
	return comment, nil
}

// BroadcastReply appends a proposed reply to the log and fans it out.
func (g *Gateway) BroadcastReply(ctx context.Context, sender domain.Participant, proposed domain.ProposedReply) (domain.Reply, error) {
	r := g.room(sender.RoomToken)
	r.mu.Lock()
	defer r.mu.Unlock()

	reply, err := g.logs.AppendReply(sender.RoomToken, domain.Reply{
		Comment: domain.Comment{
			Content: proposed.Comment.Content,
			Author:  sender.Author,
			Time:    time.Now(),
		},
		ParentID: proposed.ParentID,
	})
	if err != nil {
		return domain.Reply{}, err
	}
	r.fanout(ctx, g.metrics, EventReply, reply)
	return reply, nil
}

// BroadcastActionUpdate records an action update and fans it out.
func (g *Gateway) BroadcastActionUpdate(ctx context.Context, sender domain.Participant, update domain.ActionUpdate) error {
	r := g.room(sender.RoomToken)
	r.mu.Lock()
	defer r.mu.Unlock()

	update.SenderID = sender.Author.ID
	if update.Time.IsZero() {
		update.Time = time.Now()
	}
	if err := g.logs.RecordActionUpdate(sender.RoomToken, update); err != nil {
		return err
	}
	r.fanout(ctx, g.metrics, EventActionsUpdate, update)
	return nil
}

// BroadcastIntervention appends an agent-authored top-level comment and fans
// it out as a regular comment event.
func (g *Gateway) BroadcastIntervention(ctx context.Context, roomID, botName, content string) (domain.LoggedComment, error) {
	r := g.room(roomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	lc, err := g.logs.AppendAgentComment(roomID, botName, content, time.Now())
	if err != nil {
		return domain.LoggedComment{}, err
	}
	r.fanout(ctx, g.metrics, EventComment, domain.Comment{
		ID:      lc.ID,
		Content: lc.Content,
		Author:  domain.Author{ID: "moderator", Name: lc.AuthorName},
		Time:    lc.Time,
	})
	return lc, nil
}

// fanout delivers one event to every subscriber. Callers hold r.mu.
func (r *room) fanout(ctx context.Context, metrics *telemetry.Metrics, event string, payload any) {
	for sub := range r.subs {
		if err := sub.Send(ctx, event, payload); err != nil {
			slog.Debug("Fanout write failed", "event", event, "error", err)
		}
	}
	if metrics != nil {
		metrics.BroadcastsTotal.WithLabelValues(event).Inc()
	}
}
