package indi

import (
	log "github.com/sirupsen/logrus"
)

// Driver is the contract between the host and a device driver. The host calls
// every method serially; drivers do not need to lock.
type Driver interface {
	DeviceName() string
	Props() *Registry
	TCP() *TCPConnection

	// InitProperties declares the driver's properties. It runs once, before
	// any saved configuration is replayed.
	InitProperties() error

	Connect() error
	Disconnect() error
	Connected() bool

	NewNumber(name string, values map[string]float64) error
	NewText(name string, texts map[string]string) error
	NewSwitch(name string, states map[string]SwitchState) error

	SaveConfigItems(w *ConfigWriter) error
}

// DefaultDevice carries the pieces every driver needs: its name, the property
// registry, the TCP connection helper and a logger.
type DefaultDevice struct {
	name   string
	props  *Registry
	tcp    *TCPConnection
	Logger log.FieldLogger
}

func NewDefaultDevice(name string, logger log.FieldLogger) DefaultDevice {
	return DefaultDevice{
		name:   name,
		props:  NewRegistry(name),
		tcp:    NewTCPConnection(name),
		Logger: logger,
	}
}

func (d *DefaultDevice) DeviceName() string {
	return d.name
}

func (d *DefaultDevice) Props() *Registry {
	return d.props
}

func (d *DefaultDevice) TCP() *TCPConnection {
	return d.tcp
}
