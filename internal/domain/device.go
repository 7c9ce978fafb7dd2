package domain

import "github.com/google/uuid"

type DeviceID string

// Capabilities describes what a device can publish and consume.
type Capabilities struct {
	CanAudio     bool `json:"canAudio"`
	CanVideo     bool `json:"canVideo"`
	CanOv        bool `json:"canOv"`
	SendAudio    bool `json:"sendAudio"`
	SendVideo    bool `json:"sendVideo"`
	ReceiveAudio bool `json:"receiveAudio"`
	ReceiveVideo bool `json:"receiveVideo"`
}

// Device is one connected endpoint of a user. A device with a Mac is a
// persistent hardware identity and is reused across reconnects; a device
// without one is ephemeral and deleted on disconnect.
type Device struct {
	ID           DeviceID     `json:"id"`
	UserID       UserID       `json:"userId"`
	Online       bool         `json:"online"`
	Mac          string       `json:"mac,omitempty"`
	Name         string       `json:"name"`
	Capabilities Capabilities `json:"capabilities"`
	Server       string       `json:"server"`
}

func NewDevice(userID UserID, name, mac string, caps Capabilities) *Device {
	return &Device{
		ID:           DeviceID(uuid.NewString()),
		UserID:       userID,
		Online:       true,
		Mac:          mac,
		Name:         name,
		Capabilities: caps,
	}
}

func (d Device) Key() string { return string(d.ID) }

// Ephemeral devices have no hardware identity and do not outlive their
// connection.
func (d Device) Ephemeral() bool { return d.Mac == "" }
