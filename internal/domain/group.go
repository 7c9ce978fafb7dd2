package domain

import "github.com/google/uuid"

type GroupID string

// Group is a sub-partition of a stage (band, audience, ...). Volume and
// Position are the shared defaults every viewer sees unless they set a
// CustomGroup overlay.
type Group struct {
	ID       GroupID  `json:"id"`
	StageID  StageID  `json:"stageId"`
	Name     string   `json:"name"`
	Volume   float64  `json:"volume"`
	Muted    bool     `json:"muted"`
	Position Position `json:"position"`
}

func NewGroup(stageID StageID, name string) *Group {
	return &Group{
		ID:       GroupID(uuid.NewString()),
		StageID:  stageID,
		Name:     name,
		Volume:   1,
		Position: CenterPosition(),
	}
}

func (g Group) Key() string { return string(g.ID) }
