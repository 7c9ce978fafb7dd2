package app

import "github.com/ovstage/stagehub/internal/domain"

// EventName identifies an outbound event on the wire.
type EventName string

const (
	StageAdded   EventName = "stage-added"
	StageChanged EventName = "stage-changed"
	StageRemoved EventName = "stage-removed"

	GroupAdded   EventName = "group-added"
	GroupChanged EventName = "group-changed"
	GroupRemoved EventName = "group-removed"

	MemberAdded   EventName = "stage-member-added"
	MemberChanged EventName = "stage-member-changed"
	MemberRemoved EventName = "stage-member-removed"

	CustomGroupAdded   EventName = "custom-group-added"
	CustomGroupChanged EventName = "custom-group-changed"
	CustomGroupRemoved EventName = "custom-group-removed"

	CustomMemberAdded   EventName = "custom-stage-member-added"
	CustomMemberChanged EventName = "custom-stage-member-changed"
	CustomMemberRemoved EventName = "custom-stage-member-removed"

	CustomRemoteProducerAdded   EventName = "custom-remote-producer-added"
	CustomRemoteProducerChanged EventName = "custom-remote-producer-changed"
	CustomRemoteProducerRemoved EventName = "custom-remote-producer-removed"

	CustomRemoteOvTrackAdded   EventName = "custom-remote-ov-track-added"
	CustomRemoteOvTrackChanged EventName = "custom-remote-ov-track-changed"
	CustomRemoteOvTrackRemoved EventName = "custom-remote-ov-track-removed"

	ProducerAdded   EventName = "producer-added"
	ProducerRemoved EventName = "producer-removed"

	OvTrackAdded   EventName = "ov-track-added"
	OvTrackRemoved EventName = "ov-track-removed"

	RemoteProducerAdded   EventName = "remote-producer-added"
	RemoteProducerChanged EventName = "remote-producer-changed"
	RemoteProducerRemoved EventName = "remote-producer-removed"

	RemoteOvTrackAdded   EventName = "remote-ov-track-added"
	RemoteOvTrackChanged EventName = "remote-ov-track-changed"
	RemoteOvTrackRemoved EventName = "remote-ov-track-removed"

	DeviceAdded   EventName = "device-added"
	DeviceChanged EventName = "device-changed"
	DeviceRemoved EventName = "device-removed"

	StageJoined EventName = "stage-joined"
	StageLeft   EventName = "stage-left"
)

// Event is one outbound notification. Payload is marshaled as-is by the
// transport adapter.
type Event struct {
	Name    EventName `json:"name"`
	Payload any       `json:"payload,omitempty"`
}

// StageJoinedPayload confirms a completed join and carries the ids the client
// needs to anchor subsequent member events.
type StageJoinedPayload struct {
	StageID       domain.StageID       `json:"stageId"`
	GroupID       domain.GroupID       `json:"groupId"`
	StageMemberID domain.StageMemberID `json:"stageMemberId"`
}

// Target selects the audience of a fan-out. The set of implementations is
// closed; Router.Send switches over all of them.
type Target interface{ isTarget() }

// ToSession addresses a single transport session.
type ToSession struct{ Session Session }

// ToUser addresses every connected session of one user.
type ToUser struct{ UserID domain.UserID }

// ToStage addresses the stage's admins plus every user who ever held a
// membership in it, online or not.
type ToStage struct{ StageID domain.StageID }

// ToStageAdmins addresses only the stage's admins.
type ToStageAdmins struct{ StageID domain.StageID }

// ToJoinedMembers addresses users whose active stage is this one right now.
type ToJoinedMembers struct{ StageID domain.StageID }

func (ToSession) isTarget()       {}
func (ToUser) isTarget()          {}
func (ToStage) isTarget()         {}
func (ToStageAdmins) isTarget()   {}
func (ToJoinedMembers) isTarget() {}
