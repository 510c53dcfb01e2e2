package domain

import "errors"

var (
	// ErrNotFound signals an unknown token, room, or parent id. Surfaced to
	// the requesting client as an access denial, never a crash.
	ErrNotFound = errors.New("not found")

	// ErrMalformedSpec signals a room-spec resource that fails to parse.
	// Fatal only for that resource's room, not the process.
	ErrMalformedSpec = errors.New("malformed room spec")
)
