package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxStageNameLen = 100

var (
	ErrStageNameEmpty   = errors.New("stage name empty")
	ErrStageNameTooLong = errors.New("stage name too long")
	ErrStageNoAdmin     = errors.New("stage requires at least one admin")
)

type StageID string

// Acoustics are the room-simulation parameters shared by every member of a
// stage.
type Acoustics struct {
	Width            float64 `json:"width"`
	Length           float64 `json:"length"`
	Height           float64 `json:"height"`
	ReflectionFactor float64 `json:"reflection"`
	Absorption       float64 `json:"absorption"`
}

func DefaultAcoustics() Acoustics {
	return Acoustics{Width: 25, Length: 13, Height: 7.5, ReflectionFactor: 0.7, Absorption: 0.6}
}

// Stage is a room owned by one or more admins. PasswordHash is a bcrypt hash
// when the stage is protected, empty otherwise.
type Stage struct {
	ID           StageID   `json:"id"`
	Name         string    `json:"name"`
	PasswordHash []byte    `json:"passwordHash,omitempty"`
	Admins       []UserID  `json:"admins"`
	Acoustics    Acoustics `json:"acoustics"`
}

// NewStage creates a stage with the creator as its first admin, which keeps
// the at-least-one-admin invariant true by construction.
func NewStage(name string, creator UserID) (*Stage, error) {
	if len(name) == 0 {
		return nil, ErrStageNameEmpty
	}
	if len(name) > MaxStageNameLen {
		return nil, ErrStageNameTooLong
	}
	return &Stage{
		ID:        StageID(uuid.NewString()),
		Name:      name,
		Admins:    []UserID{creator},
		Acoustics: DefaultAcoustics(),
	}, nil
}

func (s Stage) Key() string { return string(s.ID) }

// Sanitized returns a copy safe to put on the wire. The hash is persisted
// with the document but never leaves the server.
func (s Stage) Sanitized() Stage {
	s.PasswordHash = nil
	return s
}

// IsAdmin reports whether the given user manages this stage.
func (s Stage) IsAdmin(userID UserID) bool {
	for _, id := range s.Admins {
		if id == userID {
			return true
		}
	}
	return false
}
