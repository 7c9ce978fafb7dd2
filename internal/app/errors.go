package app

import "errors"

var (
	// ErrNotFound covers every lookup miss, including references that point
	// across stages (a group id from another stage behaves like no group).
	ErrNotFound = errors.New("not found")

	// ErrInvalidPassword is returned when a stage requires a password and the
	// supplied one does not match.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrUnauthorized is returned when the requester lacks the right to touch
	// the entity (non-admin stage mutation, foreign overlay or device).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInconsistent signals persisted state that violates an invariant, such
	// as a joined user whose stage member row is gone. The transport reacts by
	// resending a full snapshot.
	ErrInconsistent = errors.New("inconsistent state")
)
