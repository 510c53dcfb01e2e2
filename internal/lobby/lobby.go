// Package lobby holds connections that have not yet been assigned a room.
// Once enough participants are waiting, everyone is pointed at a room link;
// if too few arrive within the wait window, the lobby announces failure and
// resets.
package lobby

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/YatingPan/chat-room/internal/hub"
)

// Event names produced for lobby members.
const (
	EventChatRoomURL = "chatRoomURL"
	EventMessage     = "message"
)

// Lobby counts waiting connections and releases them in batches.
type Lobby struct {
	threshold int
	wait      time.Duration
	selectURL func() (string, error)

	mu      sync.Mutex
	subs    map[hub.Subscriber]struct{}
	waiting int
	timer   *time.Timer
}

// New creates a lobby. selectURL picks the room link announced when the
// threshold is met.
func New(threshold int, wait time.Duration, selectURL func() (string, error)) *Lobby {
	return &Lobby{
		threshold: threshold,
		wait:      wait,
		selectURL: selectURL,
		subs:      make(map[hub.Subscriber]struct{}),
	}
}

// Add registers a newly connected client. When the waiting count reaches the
// threshold, every lobby member receives the selected room URL.
func (l *Lobby) Add(ctx context.Context, sub hub.Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.subs[sub] = struct{}{}
	l.waiting++

	if l.waiting >= l.threshold {
		if l.timer != nil {
			l.timer.Stop()
			l.timer = nil
		}
		url, err := l.selectURL()
		if err != nil {
			slog.Error("Failed to select room URL for lobby", "error", err)
			return
		}
		l.broadcast(ctx, EventChatRoomURL, url)
		slog.Info("Lobby released", "url", url, "waiting", l.waiting)
		l.waiting = 0
		return
	}

	if l.timer == nil {
		l.timer = time.AfterFunc(l.wait, l.expire)
	}
}

// Remove unregisters a disconnected or room-assigned client.
func (l *Lobby) Remove(sub hub.Subscriber) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[sub]; !ok {
		return
	}
	delete(l.subs, sub)
	if l.waiting > 0 {
		l.waiting--
	}
}

func (l *Lobby) expire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.waiting < l.threshold {
		l.broadcast(context.Background(), EventMessage, "Fail to start")
		slog.Info("Lobby wait expired", "waiting", l.waiting, "threshold", l.threshold)
	}
	l.waiting = 0
	l.timer = nil
}

// broadcast delivers an event to every lobby member. Callers hold l.mu.
func (l *Lobby) broadcast(ctx context.Context, event string, payload any) {
	for sub := range l.subs {
		if err := sub.Send(ctx, event, payload); err != nil {
			slog.Debug("Lobby send failed", "event", event, "error", err)
		}
	}
}
