package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/coder/websocket"
)

// envelope is the wire frame for every channel event, in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn adapts a websocket connection to the gateway's subscriber contract.
type Conn struct {
	id string
	ws *websocket.Conn
	mu sync.Mutex
}

func newConn(ws *websocket.Conn) (*Conn, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate connection id: %w", err)
	}
	return &Conn{id: hex.EncodeToString(buf), ws: ws}, nil
}

// ID returns the server-assigned external identity for this connection.
func (c *Conn) ID() string {
	return c.id
}

// Send delivers one event over the connection.
func (c *Conn) Send(ctx context.Context, event string, payload any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", event, err)
		}
		data = b
	}
	frame, err := json.Marshal(envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.Write(ctx, websocket.MessageText, frame)
}

// Shutdown closes the connection with a reason.
func (c *Conn) Shutdown(reason string) {
	_ = c.ws.Close(websocket.StatusNormalClosure, reason)
}
