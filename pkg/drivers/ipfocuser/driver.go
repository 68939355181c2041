package ipfocuser

import (
	"context"
	"errors"
	"fmt"

	"ipfocuser/pkg/indi"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultName          = "IP Focuser"
	DefaultHost          = "192.168.1.203"
	DefaultPort          = 80
	DefaultBacklashSteps = 300
	DefaultApproach      = "CCW"
)

type connState int

const (
	connStateDisconnected connState = iota
	connStateConnecting
	connStateConnected
	// Reserved for unrecoverable internal errors, never entered.
	connStateFaulted
)

func (s connState) String() string {
	switch s {
	case connStateDisconnected:
		return "Disconnected"
	case connStateConnecting:
		return "Connecting"
	case connStateConnected:
		return "Connected"
	case connStateFaulted:
		return "Faulted"
	default:
		return fmt.Sprintf("connState(%d)", int(s))
	}
}

type Options struct {
	Name          string
	Host          string
	Port          int
	BacklashSteps int
	Approach      string

	// Client defaults to NewClient().
	Client *Client
}

// DefaultOptions returns the factory settings. BacklashSteps and Approach are
// taken from Options as they are, zero and empty being valid settings.
func DefaultOptions() Options {
	return Options{
		Name:          DefaultName,
		Host:          DefaultHost,
		Port:          DefaultPort,
		BacklashSteps: DefaultBacklashSteps,
		Approach:      DefaultApproach,
	}
}

// Driver talks to a focuser controller that exposes its state as JSON over
// HTTP. Moves are absolute; the controller compensates backlash by always
// finishing the approach in the configured direction.
type Driver struct {
	*indi.Focuser

	opts   Options
	client *Client
	state  connState

	// Set by the handshake, cleared on disconnect.
	endpoint string

	backlash *indi.TextVector
	approach *indi.TextVector

	ctx    context.Context
	cancel context.CancelFunc
}

func NewDriver(opts Options, logger log.FieldLogger) *Driver {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.Client == nil {
		opts.Client = NewClient()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Driver{
		Focuser: indi.NewFocuser(opts.Name, logger.WithField("device", opts.Name)),
		opts:    opts,
		client:  opts.Client,
		state:   connStateDisconnected,
		ctx:     ctx,
		cancel:  cancel,
	}
	d.SetMover(d)
	return d
}

func (d *Driver) InitProperties() error {
	d.TCP().SetDefaultHost(d.opts.Host)
	d.TCP().SetDefaultPort(d.opts.Port)
	d.initOptionProperties()
	return nil
}

// Close aborts a request in flight. The driver cannot be used afterwards.
func (d *Driver) Close() {
	if d.ctx.Err() != nil {
		return
	}
	d.Logger.Info("Closing focuser driver")
	d.cancel()
}

func (d *Driver) Connected() bool {
	return d.state == connStateConnected
}

func (d *Driver) Connect() error {
	if d.state == connStateConnected {
		return nil
	}

	d.state = connStateConnecting
	if err := d.Handshake(); err != nil {
		d.state = connStateDisconnected
		d.endpoint = ""
		return err
	}

	d.state = connStateConnected
	d.UpdateProperties(true)
	return nil
}

// Handshake fetches the controller's status and takes over its position and
// bounds. Nothing is changed when the request or the reply fails.
func (d *Driver) Handshake() error {
	endpoint := endpointURL(d.TCP().Host(), d.TCP().Port())
	d.Logger.Debugf("Handshake with %s", endpoint)

	body, err := d.client.Get(d.ctx, endpoint, HandshakeTimeout)
	if err != nil {
		d.Logger.Errorf("Failed to reach focuser: %v", err)
		hint := ""
		var te *TransportError
		if errors.As(err, &te) {
			hint = ": " + te.Hint()
		}
		d.Logger.Errorf("Handshake failed, verify the endpoint is reachable%s", hint)
		return err
	}

	st, err := ParseStatus(body)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			d.Logger.WithField("body", string(body)).Errorf("Invalid focuser status at offset %d: %s", pe.Offset, pe.Msg)
		}
		return err
	}

	d.endpoint = endpoint
	d.applyStatus(st)
	abs := d.FocusAbsPos.Find(indi.AbsPositionElement)
	d.Logger.Infof("Focuser at %s is online, position %.f in [%.f, %.f]", d.endpoint, abs.Value, abs.Min, abs.Max)
	return nil
}

func (d *Driver) applyStatus(st Status) {
	abs := d.FocusAbsPos.Find(indi.AbsPositionElement)
	if st.MinPosition != nil {
		abs.Min = *st.MinPosition
	}
	if st.MaxPosition != nil {
		abs.Max = *st.MaxPosition
	}
	if st.AbsolutePosition != nil {
		abs.Value = *st.AbsolutePosition
	}
	abs.Step = indi.DefaultFocusStep
	if span := abs.Max - abs.Min; span > 0 && span < abs.Step {
		abs.Step = span
	}
}

func (d *Driver) Disconnect() error {
	if d.state != connStateConnected {
		return ErrNotConnected
	}

	d.state = connStateDisconnected
	d.endpoint = ""
	d.UpdateProperties(false)
	d.Logger.Info("Focuser is offline")
	return nil
}
