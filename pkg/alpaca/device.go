package alpaca

import (
	"fmt"
	"net/http"
)

type DeviceType int

const (
	DeviceTypeFocuser DeviceType = iota
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeFocuser:
		return "Focuser"
	default:
		return fmt.Sprintf("DeviceType(%d)", int(t))
	}
}

func (t DeviceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

type DeviceInfo struct {
	Name        string     `json:"DeviceName"`
	Description string     `json:"-"`
	Type        DeviceType `json:"DeviceType"`
	Number      int        `json:"DeviceNumber"`
	UniqueID    string     `json:"UniqueID"`
}

type DriverInfo struct {
	Name             string
	Version          string
	InterfaceVersion int
}

type StateProperty struct {
	Name  string
	Value interface{}
}

type Device interface {
	DeviceInfo() DeviceInfo
	DriverInfo() DriverInfo
	GetState() []StateProperty

	Connected() bool
	Connecting() bool
	Connect() error
	Disconnect() error
}

// SetupHandler is implemented by devices that serve their own setup page.
type SetupHandler interface {
	HandleSetup(w http.ResponseWriter, r *http.Request)
}
