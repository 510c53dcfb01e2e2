package domain

import (
	"time"
)

// RoomSpec is the immutable description of a discussion room, loaded from a
// JSON resource in the room-spec directory. Identified externally by a token
// derived from the resource name.
type RoomSpec struct {
	RoomName     string            `json:"roomName"`
	Duration     int               `json:"duration"` // minutes
	BotType      string            `json:"botType"`
	PostName     string            `json:"postName"`
	OutboundLink string            `json:"outboundLink"`
	Comments     []ScriptedComment `json:"comments"`
}

// ScriptedComment is a pre-authored comment with a relative-second offset,
// materialized into the log at session creation. Replies nest recursively.
type ScriptedComment struct {
	Content string            `json:"content"`
	Offset  int               `json:"time"` // seconds after session start
	BotName string            `json:"botName"`
	Replies []ScriptedComment `json:"replies,omitempty"`
}

// Post is the article a room discusses, loaded from its own JSON resource.
type Post struct {
	ID              string    `json:"id"`
	Time            time.Time `json:"time"`
	Title           string    `json:"title"`
	Lead            string    `json:"lead"`
	Content         string    `json:"content"`
	ImageURL        string    `json:"imageURL"`
	InitialLikes    int       `json:"initialLikes"`
	InitialDislikes int       `json:"initialDislikes"`
}

// RoomInfo is the client-facing description of a live room, sent as part of
// a user assignment.
type RoomInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	StartTime    time.Time `json:"startTime"`
	Duration     int       `json:"duration"`
	BotType      string    `json:"botType"`
	OutboundLink string    `json:"outboundLink"`
	Post         Post      `json:"post"`
}
