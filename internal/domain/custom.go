package domain

import "github.com/google/uuid"

type CustomID string

// CustomGroup is a per-viewer overlay over a group's volume and placement.
// Composite-unique on (UserID, GroupID); StageID is denormalized for queries.
// Overlays are private: they are never broadcast to other viewers.
type CustomGroup struct {
	ID       CustomID `json:"id"`
	UserID   UserID   `json:"userId"`
	GroupID  GroupID  `json:"groupId"`
	StageID  StageID  `json:"stageId"`
	Volume   float64  `json:"volume"`
	Muted    bool     `json:"muted"`
	Position Position `json:"position"`
}

func NewCustomGroup(userID UserID, group *Group) *CustomGroup {
	return &CustomGroup{
		ID:       CustomID(uuid.NewString()),
		UserID:   userID,
		GroupID:  group.ID,
		StageID:  group.StageID,
		Volume:   group.Volume,
		Muted:    group.Muted,
		Position: group.Position,
	}
}

func (c CustomGroup) Key() string { return string(c.ID) }

// CustomStageMember is a per-viewer overlay over another member's volume and
// placement. Composite-unique on (UserID, StageMemberID).
type CustomStageMember struct {
	ID            CustomID      `json:"id"`
	UserID        UserID        `json:"userId"`
	StageMemberID StageMemberID `json:"stageMemberId"`
	StageID       StageID       `json:"stageId"`
	Volume        float64       `json:"volume"`
	Muted         bool          `json:"muted"`
	Position      Position      `json:"position"`
}

func NewCustomStageMember(userID UserID, member *StageMember) *CustomStageMember {
	return &CustomStageMember{
		ID:            CustomID(uuid.NewString()),
		UserID:        userID,
		StageMemberID: member.ID,
		StageID:       member.StageID,
		Volume:        member.Volume,
		Muted:         member.Muted,
		Position:      member.Position,
	}
}

func (c CustomStageMember) Key() string { return string(c.ID) }

// CustomRemoteProducer is a per-viewer overlay over a remote audio producer.
// Composite-unique on (UserID, RemoteProducerID).
type CustomRemoteProducer struct {
	ID               CustomID         `json:"id"`
	UserID           UserID           `json:"userId"`
	RemoteProducerID RemoteProducerID `json:"remoteAudioProducerId"`
	StageID          StageID          `json:"stageId"`
	Volume           float64          `json:"volume"`
	Muted            bool             `json:"muted"`
	Position         Position         `json:"position"`
}

func NewCustomRemoteProducer(userID UserID, remote *RemoteProducer) *CustomRemoteProducer {
	return &CustomRemoteProducer{
		ID:               CustomID(uuid.NewString()),
		UserID:           userID,
		RemoteProducerID: remote.ID,
		StageID:          remote.StageID,
		Volume:           remote.Volume,
		Position:         remote.Position,
	}
}

func (c CustomRemoteProducer) Key() string { return string(c.ID) }

// CustomRemoteOvTrack is a per-viewer overlay over a remote OV track.
// Composite-unique on (UserID, RemoteOvTrackID).
type CustomRemoteOvTrack struct {
	ID              CustomID        `json:"id"`
	UserID          UserID          `json:"userId"`
	RemoteOvTrackID RemoteOvTrackID `json:"remoteOvTrackId"`
	StageID         StageID         `json:"stageId"`
	Volume          float64         `json:"volume"`
	Muted           bool            `json:"muted"`
	Position        Position        `json:"position"`
}

func NewCustomRemoteOvTrack(userID UserID, remote *RemoteOvTrack) *CustomRemoteOvTrack {
	return &CustomRemoteOvTrack{
		ID:              CustomID(uuid.NewString()),
		UserID:          userID,
		RemoteOvTrackID: remote.ID,
		StageID:         remote.StageID,
		Volume:          remote.Volume,
		Position:        remote.Position,
	}
}

func (c CustomRemoteOvTrack) Key() string { return string(c.ID) }
