package domain

// Participant maps an external identity to an anonymous display identity.
// The display identity is stable across reconnects and across rooms; the
// room token tracks the room the participant is currently associated with.
type Participant struct {
	Author    Author `json:"user"`
	RoomToken string `json:"accessCode"`
}

// AccessInfo is what a connecting client presents to join a room.
type AccessInfo struct {
	AccessCode  string  `json:"accessCode"`
	ProlificPID string  `json:"prolificPid,omitempty"`
	SessionID   string  `json:"sessionId,omitempty"`
	StudyID     string  `json:"studyId,omitempty"`
	User        *Author `json:"user,omitempty"`
}

// Assignment is the initial state handed to a client after a successful join:
// the room, the participant's identity, and the room's full log so far.
type Assignment struct {
	Room    RoomInfo        `json:"room"`
	User    Participant     `json:"user"`
	Logs    []LoggedComment `json:"logs"`
	Replies []Reply         `json:"replies"`
	Actions []ActionUpdate  `json:"actions"`
}
