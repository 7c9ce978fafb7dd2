package domain

import "github.com/google/uuid"

type (
	ProducerID       string
	OvTrackID        string
	RemoteProducerID string
	RemoteOvTrackID  string
)

// MediaKind distinguishes the producer collections without reflection.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// Producer is a published media source owned by a device, independent of any
// stage membership. RouterID is opaque routing info owned by the media layer.
type Producer struct {
	ID       ProducerID `json:"id"`
	Kind     MediaKind  `json:"kind"`
	DeviceID DeviceID   `json:"deviceId"`
	UserID   UserID     `json:"userId"`
	Online   bool       `json:"online"`
	RouterID string     `json:"routerId,omitempty"`
}

func NewProducer(kind MediaKind, deviceID DeviceID, userID UserID, routerID string) *Producer {
	return &Producer{
		ID:       ProducerID(uuid.NewString()),
		Kind:     kind,
		DeviceID: deviceID,
		UserID:   userID,
		Online:   true,
		RouterID: routerID,
	}
}

func (p Producer) Key() string { return string(p.ID) }

// OvTrack is a published low-latency audio track owned by a device.
type OvTrack struct {
	ID       OvTrackID `json:"id"`
	DeviceID DeviceID  `json:"deviceId"`
	UserID   UserID    `json:"userId"`
	Channel  int       `json:"channel"`
}

func NewOvTrack(deviceID DeviceID, userID UserID, channel int) *OvTrack {
	return &OvTrack{ID: OvTrackID(uuid.NewString()), DeviceID: deviceID, UserID: userID, Channel: channel}
}

func (t OvTrack) Key() string { return string(t.ID) }

// RemoteProducer is the stage-scoped projection of a Producer, the unit other
// stage members subscribe to.
type RemoteProducer struct {
	ID            RemoteProducerID `json:"id"`
	Kind          MediaKind        `json:"kind"`
	StageMemberID StageMemberID    `json:"stageMemberId"`
	StageID       StageID          `json:"stageId"`
	ProducerID    ProducerID       `json:"globalProducerId"`
	Online        bool             `json:"online"`
	Volume        float64          `json:"volume"`
	Position      Position         `json:"position"`
}

func NewRemoteProducer(p *Producer, member *StageMember) *RemoteProducer {
	return &RemoteProducer{
		ID:            RemoteProducerID(uuid.NewString()),
		Kind:          p.Kind,
		StageMemberID: member.ID,
		StageID:       member.StageID,
		ProducerID:    p.ID,
		Online:        true,
		Volume:        1,
		Position:      CenterPosition(),
	}
}

func (r RemoteProducer) Key() string { return string(r.ID) }

// RemoteOvTrack is the stage-scoped projection of an OvTrack.
type RemoteOvTrack struct {
	ID            RemoteOvTrackID `json:"id"`
	StageMemberID StageMemberID   `json:"stageMemberId"`
	StageID       StageID         `json:"stageId"`
	OvTrackID     OvTrackID       `json:"ovTrackId"`
	Online        bool            `json:"online"`
	Volume        float64         `json:"volume"`
	Position      Position        `json:"position"`
}

func NewRemoteOvTrack(t *OvTrack, member *StageMember) *RemoteOvTrack {
	return &RemoteOvTrack{
		ID:            RemoteOvTrackID(uuid.NewString()),
		StageMemberID: member.ID,
		StageID:       member.StageID,
		OvTrackID:     t.ID,
		Online:        true,
		Volume:        1,
		Position:      CenterPosition(),
	}
}

func (r RemoteOvTrack) Key() string { return string(r.ID) }
