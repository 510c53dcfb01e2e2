// Package domain contains core domain types for the discussion-room server.
package domain

import (
	"time"
)

// Author is the anonymous display identity a comment is attributed to.
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Comment is a fully materialized top-level comment as exchanged with clients.
type Comment struct {
	ID      int       `json:"id"`
	Content string    `json:"content"`
	Author  Author    `json:"user"`
	Time    time.Time `json:"time"`
}

// ProposedComment is a client-submitted comment before the server assigns
// an id and timestamp.
type ProposedComment struct {
	Content string `json:"content"`
	Author  Author `json:"user"`
}

// Reply attaches a comment to a parent top-level comment.
type Reply struct {
	Comment  Comment `json:"comment"`
	ParentID int     `json:"parentID"`
}

// ProposedReply is a client-submitted reply before id/timestamp assignment.
type ProposedReply struct {
	Comment  ProposedComment `json:"comment"`
	ParentID int             `json:"parentID"`
}

// ActionUpdate is a state change associated with a specific comment, such as
// a reaction or vote toggle. Every update is retained in the audit trail;
// per parent only the latest update is effective.
type ActionUpdate struct {
	ParentCommentID int             `json:"parentCommentID"`
	SenderID        string          `json:"senderID"`
	Actions         map[string]bool `json:"actions"`
	Time            time.Time       `json:"time"`
}

// LoggedComment is the durable, log-native representation of a comment.
// Human-authored comments occupy the positive id space, scripted and
// model-generated comments the negative one, so the two never collide.
type LoggedComment struct {
	ID         int             `json:"id"`
	IsAgent    bool            `json:"bot"`
	Time       time.Time       `json:"time"`
	AuthorName string          `json:"userName"`
	Content    string          `json:"content"`
	Replies    []LoggedComment `json:"replies,omitempty"`
}

// WindowedLog is a copy of a room's session metadata plus the top-level
// comments (with attached replies) whose elapsed time falls within a
// requested minute range.
type WindowedLog struct {
	RoomID       string          `json:"id"`
	SpecName     string          `json:"specFileName"`
	Name         string          `json:"name"`
	StartTime    time.Time       `json:"startTime"`
	Duration     int             `json:"duration"`
	PostTitle    string          `json:"postTitle"`
	BotType      string          `json:"botType"`
	OutboundLink string          `json:"outboundLink"`
	Participants []Author        `json:"users"`
	Comments     []LoggedComment `json:"comments"`
}
