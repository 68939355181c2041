package indi

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DeviceAddressProperty = "DEVICE_ADDRESS"
	AddressElement        = "ADDRESS"
	PortElement           = "PORT"
)

// TCPConnection owns the host and port a driver connects to.
type TCPConnection struct {
	address *TextVector

	defaultHost string
	defaultPort int
}

func NewTCPConnection(device string) *TCPConnection {
	return &TCPConnection{
		address: NewTextVector(device, DeviceAddressProperty, "Server", ConnectionTab, ReadWrite,
			Text{Name: AddressElement, Label: "Address"},
			Text{Name: PortElement, Label: "Port"},
		),
	}
}

func (c *TCPConnection) SetDefaultHost(host string) {
	c.defaultHost = host
	c.address.Find(AddressElement).Value = host
}

func (c *TCPConnection) SetDefaultPort(port int) {
	c.defaultPort = port
	c.address.Find(PortElement).Value = strconv.Itoa(port)
}

func (c *TCPConnection) Host() string {
	if h := strings.TrimSpace(c.address.Find(AddressElement).Value); h != "" {
		return h
	}
	return c.defaultHost
}

// Port returns the configured port, falling back to the default when the
// property does not hold a valid port number.
func (c *TCPConnection) Port() int {
	port, err := strconv.Atoi(strings.TrimSpace(c.address.Find(PortElement).Value))
	if err != nil || port <= 0 || port > 65535 {
		return c.defaultPort
	}
	return port
}

func (c *TCPConnection) Property() *TextVector {
	return c.address
}

// Update handles a client write to DEVICE_ADDRESS. The new endpoint is used
// from the next connect on.
func (c *TCPConnection) Update(props *Registry, texts map[string]string) error {
	if p, ok := texts[PortElement]; ok {
		port, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || port <= 0 || port > 65535 {
			c.address.State = StateAlert
			props.Update(c.address, "invalid port %q", p)
			return fmt.Errorf("%w: port %q", ErrInvalidValue, p)
		}
	}
	if err := c.address.Update(texts); err != nil {
		return err
	}
	c.address.State = StateOk
	props.Update(c.address, "")
	return nil
}

func (c *TCPConnection) SaveConfigItems(w *ConfigWriter) {
	w.SaveText(c.address)
}
