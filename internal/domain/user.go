// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxDisplayNameLen = 64

var (
	ErrDisplayNameTooLong = errors.New("display name too long")
	ErrDisplayNameEmpty   = errors.New("display name empty")
)

type UserID string

// User is a global account. ActiveStageID and ActiveStageMemberID are set
// exactly while the user is joined to a stage; both are set and cleared
// together.
type User struct {
	ID                  UserID         `json:"id"`
	DisplayName         string         `json:"displayName"`
	AvatarURL           string         `json:"avatarUrl,omitempty"`
	ActiveStageID       *StageID       `json:"stageId,omitempty"`
	ActiveStageMemberID *StageMemberID `json:"stageMemberId,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(displayName string) (*User, error) {
	if len(displayName) == 0 {
		return nil, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return nil, ErrDisplayNameTooLong
	}
	return &User{ID: UserID(uuid.NewString()), DisplayName: displayName}, nil
}

func (u User) Key() string { return string(u.ID) }

// Joined reports whether the user currently has an active stage.
func (u User) Joined() bool { return u.ActiveStageID != nil }
