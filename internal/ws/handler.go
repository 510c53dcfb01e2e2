// Package ws implements the real-time channel protocol between clients and
// the room server.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/YatingPan/chat-room/internal/chatlog"
	"github.com/YatingPan/chat-room/internal/domain"
	"github.com/YatingPan/chat-room/internal/hub"
	"github.com/YatingPan/chat-room/internal/lobby"
	"github.com/YatingPan/chat-room/internal/participant"
	"github.com/YatingPan/chat-room/internal/session"
	"github.com/YatingPan/chat-room/internal/store"
	"github.com/coder/websocket"
)

// Client-to-server event names.
const (
	eventAccessInfo    = "accessInfo"
	eventComment       = "broadcastComment"
	eventReply         = "broadcastReply"
	eventActionsUpdate = "broadcastActionsUpdate"
)

// Server-to-client event names specific to the join flow.
const (
	eventRequestAccessCode = "requestAccessCode"
	eventUserAssignment    = "userAssignment"
	eventAccessDenied      = "accessDenied"
)

// Handler upgrades connections and speaks the channel protocol.
type Handler struct {
	sessions     *session.Registry
	participants *participant.Registry
	gateway      *hub.Gateway
	logs         *chatlog.Store
	archive      store.Repository // may be nil
	lobby        *lobby.Lobby

	allowedOrigin string
	isDev         bool
}

// NewHandler creates a websocket handler.
func NewHandler(sessions *session.Registry, participants *participant.Registry, gateway *hub.Gateway,
	logs *chatlog.Store, archive store.Repository, lb *lobby.Lobby, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		sessions:      sessions,
		participants:  participants,
		gateway:       gateway,
		logs:          logs,
		archive:       archive,
		lobby:         lb,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	conn, err := newConn(ws)
	if err != nil {
		slog.Error("Failed to initialize connection", "error", err)
		return
	}
	slog.Info("Client connected", "conn_id", conn.ID(), "ip", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.lobby.Add(ctx, conn)
	defer h.lobby.Remove(conn)

	st := &connState{}
	defer func() {
		if st.roomID != "" {
			h.gateway.Leave(context.Background(), st.roomID, conn)
		}
		slog.Info("Client disconnected", "conn_id", conn.ID(), "room", st.roomID)
	}()

	if err := conn.Send(ctx, eventRequestAccessCode, nil); err != nil {
		slog.Debug("Failed to request access code", "error", err)
		return
	}

	h.readLoop(ctx, conn, st)
}

// connState tracks what a single connection has joined.
type connState struct {
	roomID      string
	participant domain.Participant
}

func (h *Handler) readLoop(ctx context.Context, conn *Conn, st *connState) {
	for {
		_, message, err := conn.ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "conn_id", conn.ID())
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "conn_id", conn.ID())
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil || env.Event == "" {
			slog.Warn("Malformed channel frame", "conn_id", conn.ID(), "error", err)
			continue
		}
		h.dispatch(ctx, conn, st, env)
	}
}

func (h *Handler) dispatch(ctx context.Context, conn *Conn, st *connState, env envelope) {
	switch env.Event {
	case eventAccessInfo:
		var info domain.AccessInfo
		if err := json.Unmarshal(env.Data, &info); err != nil || info.AccessCode == "" {
			slog.Warn("Malformed access info", "conn_id", conn.ID(), "error", err)
			h.deny(ctx, conn)
			return
		}
		h.handleAccess(ctx, conn, st, info)

	case eventComment:
		var proposed domain.ProposedComment
		if err := json.Unmarshal(env.Data, &proposed); err != nil {
			slog.Warn("Malformed comment payload", "conn_id", conn.ID(), "error", err)
			return
		}
		sender, ok := h.sender(st, proposed.Author.ID)
		if !ok {
			return
		}
		if _, err := h.gateway.BroadcastComment(ctx, sender, proposed); err != nil {
			slog.Error("Failed to broadcast comment", "room", sender.RoomToken, "error", err)
		}

	case eventReply:
		var proposed domain.ProposedReply
		if err := json.Unmarshal(env.Data, &proposed); err != nil {
			slog.Warn("Malformed reply payload", "conn_id", conn.ID(), "error", err)
			return
		}
		sender, ok := h.sender(st, proposed.Comment.Author.ID)
		if !ok {
			return
		}
		if _, err := h.gateway.BroadcastReply(ctx, sender, proposed); err != nil {
			slog.Error("Failed to broadcast reply", "room", sender.RoomToken, "error", err)
		}

	case eventActionsUpdate:
		var update domain.ActionUpdate
		if err := json.Unmarshal(env.Data, &update); err != nil {
			slog.Warn("Malformed actions payload", "conn_id", conn.ID(), "error", err)
			return
		}
		sender, ok := h.sender(st, update.SenderID)
		if !ok {
			return
		}
		if err := h.gateway.BroadcastActionUpdate(ctx, sender, update); err != nil {
			slog.Error("Failed to broadcast action update", "room", sender.RoomToken, "error", err)
		}

	default:
		slog.Warn("Unknown channel event", "event", env.Event, "conn_id", conn.ID())
	}
}

func (h *Handler) handleAccess(ctx context.Context, conn *Conn, st *connState, info domain.AccessInfo) {
	sess, err := h.sessions.GetOrCreate(ctx, info.AccessCode)
	if err != nil {
		slog.Info("Access denied", "conn_id", conn.ID(), "token", info.AccessCode, "error", err)
		h.deny(ctx, conn)
		return
	}

	p := h.participants.Join(info, conn.ID())
	if h.archive != nil {
		if err := h.archive.RecordParticipant(ctx, store.ParticipantRecord{
			UserID:    p.Author.ID,
			Name:      p.Author.Name,
			RoomToken: p.RoomToken,
			JoinedAt:  time.Now(),
		}); err != nil {
			slog.Error("Failed to archive participant", "user_id", p.Author.ID, "error", err)
		}
	}

	comments, err := h.logs.Comments(sess.ID)
	if err != nil {
		slog.Error("Room log missing for assignment", "room", sess.ID, "error", err)
		h.deny(ctx, conn)
		return
	}
	replies, _ := h.logs.RawReplies(sess.ID)
	actions, _ := h.logs.RawActions(sess.ID)

	h.gateway.Join(sess.ID, conn)
	h.lobby.Remove(conn)
	st.roomID = sess.ID
	st.participant = p

	assignment := domain.Assignment{
		Room:    sess.RoomInfo(),
		User:    p,
		Logs:    comments,
		Replies: replies,
		Actions: actions,
	}
	if err := conn.Send(ctx, eventUserAssignment, assignment); err != nil {
		slog.Debug("Failed to send user assignment", "conn_id", conn.ID(), "error", err)
	}
}

// sender resolves the participant a payload claims to come from, falling
// back to the connection's own joined identity.
func (h *Handler) sender(st *connState, claimedID string) (domain.Participant, bool) {
	if claimedID != "" {
		if p, ok := h.participants.Lookup(claimedID); ok {
			return p, true
		}
	}
	if st.roomID != "" {
		return st.participant, true
	}
	slog.Warn("Dropping payload from unknown sender", "claimed_id", claimedID)
	return domain.Participant{}, false
}

func (h *Handler) deny(ctx context.Context, conn *Conn) {
	if err := conn.Send(ctx, eventAccessDenied, "accessDenied"); err != nil {
		slog.Debug("Failed to send access denial", "error", err)
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
