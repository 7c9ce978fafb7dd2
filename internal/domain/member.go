package domain

import "github.com/google/uuid"

type StageMemberID string

// StageMember is the durable association between a user and a stage, one per
// (user, stage) pair. It survives leaving with Online=false so the user keeps
// their per-stage settings on rejoin.
type StageMember struct {
	ID         StageMemberID `json:"id"`
	StageID    StageID       `json:"stageId"`
	GroupID    GroupID       `json:"groupId"`
	UserID     UserID        `json:"userId"`
	Online     bool          `json:"online"`
	IsDirector bool          `json:"isDirector"`
	Volume     float64       `json:"volume"`
	Muted      bool          `json:"muted"`
	Position   Position      `json:"position"`
}

func NewStageMember(stageID StageID, groupID GroupID, userID UserID) *StageMember {
	return &StageMember{
		ID:       StageMemberID(uuid.NewString()),
		StageID:  stageID,
		GroupID:  groupID,
		UserID:   userID,
		Online:   true,
		Volume:   1,
		Position: CenterPosition(),
	}
}

func (m StageMember) Key() string { return string(m.ID) }
