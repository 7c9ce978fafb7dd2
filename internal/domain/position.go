package domain

// Position is a placement in stage space plus orientation, used by groups,
// stage members and remote audio sources.
type Position struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	RX float64 `json:"rX"`
	RY float64 `json:"rY"`
	RZ float64 `json:"rZ"`
}

// CenterPosition is the default placement for new groups and members.
func CenterPosition() Position {
	return Position{X: 0, Y: -1, Z: 0, RX: 0, RY: 0, RZ: -180}
}
