package indi

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

const (
	ConnectionProperty = "CONNECTION"
	ConnectElement     = "CONNECT"
	DisconnectElement  = "DISCONNECT"
)

// Host loads a driver and dispatches lifecycle calls and client writes to it.
// Every entry point is serialized: a driver never sees two calls at once, and
// a call blocks for as long as the driver's device I/O takes.
type Host struct {
	mu      sync.Mutex
	drv     Driver
	store   ConfigStore
	logger  log.FieldLogger
	started bool

	connection *SwitchVector

	// Mirrors of the connection state for readers that must not wait for an
	// in-flight call.
	connected  atomic.Bool
	connecting atomic.Bool
}

// NewHost creates a host for drv. store may be nil, in which case
// configuration is neither loaded nor saved.
func NewHost(drv Driver, store ConfigStore, logger log.FieldLogger) *Host {
	return &Host{
		drv:    drv,
		store:  store,
		logger: logger,
		connection: NewSwitchVector(drv.DeviceName(), ConnectionProperty, "Connection", MainControlTab, ReadWrite, OneOfMany,
			Switch{Name: ConnectElement, Label: "Connect", State: SwitchOff},
			Switch{Name: DisconnectElement, Label: "Disconnect", State: SwitchOn},
		),
	}
}

func (h *Host) DeviceName() string {
	return h.drv.DeviceName()
}

func (h *Host) Registry() *Registry {
	return h.drv.Props()
}

// Start declares the driver's properties, replays the saved configuration
// and announces the connection properties.
func (h *Host) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}

	if err := h.drv.InitProperties(); err != nil {
		return fmt.Errorf("failed to init properties: %v", err)
	}

	if err := h.loadConfig(); err != nil {
		h.logger.Warnf("Failed to load config: %v", err)
	}

	h.drv.Props().Define(h.connection)
	h.drv.Props().Define(h.drv.TCP().Property())

	h.started = true
	h.logger.Debugf("%s started", h.drv.DeviceName())
	return nil
}

// loadConfig replays saved items through the regular write path.
func (h *Host) loadConfig() error {
	if h.store == nil {
		return nil
	}

	cfg, err := h.store.LoadConfig(h.drv.DeviceName())
	if err != nil {
		return err
	}

	names := make([]string, 0, len(cfg))
	for name := range cfg {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		item := cfg[name]
		var err error
		switch item.Kind {
		case TextKind:
			err = h.setText(name, item.Values)
		case NumberKind:
			var values map[string]float64
			if values, err = item.Numbers(); err == nil {
				err = h.drv.NewNumber(name, values)
			}
		case SwitchKind:
			var states map[string]SwitchState
			if states, err = item.Switches(); err == nil {
				err = h.drv.NewSwitch(name, states)
			}
		default:
			err = fmt.Errorf("unknown kind %q", item.Kind)
		}
		if err != nil {
			h.logger.Warnf("Failed to load config item %s: %v", name, err)
			continue
		}
		h.logger.Debugf("Loaded config item %s", name)
	}
	return nil
}

func (h *Host) Connect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connect()
}

func (h *Host) connect() error {
	if h.drv.Connected() {
		return nil
	}

	h.connecting.Store(true)
	defer h.connecting.Store(false)

	tcp := h.drv.TCP()
	h.connection.State = StateBusy
	h.drv.Props().Update(h.connection, "Connecting to %s:%d", tcp.Host(), tcp.Port())

	if err := h.drv.Connect(); err != nil {
		_ = h.connection.Update(map[string]SwitchState{DisconnectElement: SwitchOn})
		h.connection.State = StateAlert
		h.drv.Props().Update(h.connection, "Connection failed: %v", err)
		return err
	}

	_ = h.connection.Update(map[string]SwitchState{ConnectElement: SwitchOn})
	h.connection.State = StateOk
	h.connected.Store(true)
	h.drv.Props().Update(h.connection, "%s is online", h.drv.DeviceName())
	return nil
}

func (h *Host) Disconnect() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disconnect()
}

func (h *Host) disconnect() error {
	var err error
	if h.drv.Connected() {
		err = h.drv.Disconnect()
	}
	h.connected.Store(false)

	_ = h.connection.Update(map[string]SwitchState{DisconnectElement: SwitchOn})
	h.connection.State = StateIdle
	h.drv.Props().Update(h.connection, "%s is offline", h.drv.DeviceName())
	return err
}

func (h *Host) Connected() bool {
	return h.connected.Load()
}

func (h *Host) Connecting() bool {
	return h.connecting.Load()
}

func (h *Host) SetNumber(name string, values map[string]float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.drv.NewNumber(name, values)
}

func (h *Host) SetText(name string, texts map[string]string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.setText(name, texts)
}

func (h *Host) setText(name string, texts map[string]string) error {
	if name == DeviceAddressProperty {
		return h.drv.TCP().Update(h.drv.Props(), texts)
	}
	return h.drv.NewText(name, texts)
}

func (h *Host) SetSwitch(name string, states map[string]SwitchState) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if name != ConnectionProperty {
		return h.drv.NewSwitch(name, states)
	}

	if st, ok := states[ConnectElement]; ok && st == SwitchOn {
		return h.connect()
	}
	if st, ok := states[DisconnectElement]; ok && st == SwitchOn {
		return h.disconnect()
	}
	return fmt.Errorf("%w: %s requires %s or %s on", ErrMissingElement, name, ConnectElement, DisconnectElement)
}

// Exec runs fn in turn with the other entry points, for callers that read
// or change driver state directly.
func (h *Host) Exec(fn func() error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn()
}

// SaveConfig writes the connection helper's and the driver's config items.
func (h *Host) SaveConfig() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.store == nil {
		return fmt.Errorf("no config store")
	}

	w := NewConfigWriter()
	h.drv.TCP().SaveConfigItems(w)
	if err := h.drv.SaveConfigItems(w); err != nil {
		return fmt.Errorf("failed to save config items: %v", err)
	}

	if err := h.store.SaveConfig(h.drv.DeviceName(), w.Config()); err != nil {
		return fmt.Errorf("failed to save config: %v", err)
	}
	h.logger.Infof("Saved configuration of %s", h.drv.DeviceName())
	return nil
}

// Close disconnects the driver if it is still connected.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Infof("Closing %s", h.drv.DeviceName())
	if !h.drv.Connected() {
		return nil
	}
	return h.disconnect()
}
