package indi

import (
	"errors"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDriver has one option property that is announced while connected.
type fakeDriver struct {
	DefaultDevice

	option    *TextVector
	connected bool
	failWith  error
	calls     []string
}

func newFakeDriver() *fakeDriver {
	d := &fakeDriver{DefaultDevice: NewDefaultDevice("fake", log.New())}
	d.option = NewTextVector("fake", "OPTION", "Option", OptionsTab, ReadWrite, Text{Name: "VALUE", Value: "default"})
	d.TCP().SetDefaultHost("127.0.0.1")
	d.TCP().SetDefaultPort(80)
	return d
}

func (d *fakeDriver) InitProperties() error {
	d.calls = append(d.calls, "init")
	return nil
}

func (d *fakeDriver) Connect() error {
	d.calls = append(d.calls, "connect")
	if d.failWith != nil {
		return d.failWith
	}
	d.connected = true
	d.Props().Define(d.option)
	return nil
}

func (d *fakeDriver) Disconnect() error {
	d.calls = append(d.calls, "disconnect")
	d.connected = false
	d.Props().Delete(d.option.Name)
	return nil
}

func (d *fakeDriver) Connected() bool { return d.connected }

func (d *fakeDriver) NewNumber(name string, values map[string]float64) error {
	return ErrUnknownProperty
}

func (d *fakeDriver) NewText(name string, texts map[string]string) error {
	if name != d.option.Name {
		return ErrUnknownProperty
	}
	d.calls = append(d.calls, "text:"+texts["VALUE"])
	if err := d.option.Update(texts); err != nil {
		return err
	}
	d.option.State = StateOk
	d.Props().Update(d.option, "")
	return nil
}

func (d *fakeDriver) NewSwitch(name string, states map[string]SwitchState) error {
	return ErrUnknownProperty
}

func (d *fakeDriver) SaveConfigItems(w *ConfigWriter) error {
	w.SaveText(d.option)
	return nil
}

func TestHostStart(t *testing.T) {
	drv := newFakeDriver()
	host := NewHost(drv, nil, log.New())

	require.NoError(t, host.Start())
	require.NoError(t, host.Start())
	assert.Equal(t, []string{"init"}, drv.calls)

	assert.True(t, drv.Props().IsDefined(ConnectionProperty))
	assert.True(t, drv.Props().IsDefined(DeviceAddressProperty))
	assert.False(t, drv.Props().IsDefined("OPTION"))

	conn, ok := drv.Props().Switch(ConnectionProperty)
	require.True(t, ok)
	assert.Equal(t, DisconnectElement, conn.OnSwitch())
}

func TestHostConnectDisconnect(t *testing.T) {
	rec := &recorder{}
	drv := newFakeDriver()
	drv.Props().AddPublisher(rec)
	host := NewHost(drv, nil, log.New())
	require.NoError(t, host.Start())

	require.NoError(t, host.SetSwitch(ConnectionProperty, map[string]SwitchState{ConnectElement: SwitchOn}))
	assert.True(t, host.Connected())
	assert.False(t, host.Connecting())
	assert.True(t, drv.Props().IsDefined("OPTION"))

	conn, _ := drv.Props().Switch(ConnectionProperty)
	assert.Equal(t, ConnectElement, conn.OnSwitch())
	assert.Equal(t, StateOk, conn.State)

	// Connecting twice is a no-op.
	require.NoError(t, host.Connect())
	assert.Equal(t, []string{"init", "connect"}, drv.calls)

	require.NoError(t, host.SetSwitch(ConnectionProperty, map[string]SwitchState{DisconnectElement: SwitchOn}))
	assert.False(t, host.Connected())
	assert.False(t, drv.Props().IsDefined("OPTION"))

	conn, _ = drv.Props().Switch(ConnectionProperty)
	assert.Equal(t, DisconnectElement, conn.OnSwitch())
	assert.Equal(t, StateIdle, conn.State)

	var busyBeforeOk bool
	for i, ev := range rec.events {
		if ev.Name != ConnectionProperty || ev.Kind != EventSet {
			continue
		}
		if sv := ev.Property.(*SwitchVector); sv.State == StateBusy {
			next := rec.events[i+1:]
			for _, n := range next {
				if n.Name == ConnectionProperty && n.Property.(*SwitchVector).State == StateOk {
					busyBeforeOk = true
				}
			}
		}
	}
	assert.True(t, busyBeforeOk)
}

func TestHostConnectFailure(t *testing.T) {
	drv := newFakeDriver()
	drv.failWith = errors.New("unreachable")
	host := NewHost(drv, nil, log.New())
	require.NoError(t, host.Start())

	err := host.Connect()
	assert.EqualError(t, err, "unreachable")
	assert.False(t, host.Connected())

	conn, _ := drv.Props().Switch(ConnectionProperty)
	assert.Equal(t, DisconnectElement, conn.OnSwitch())
	assert.Equal(t, StateAlert, conn.State)
}

func TestHostDeviceAddress(t *testing.T) {
	drv := newFakeDriver()
	host := NewHost(drv, nil, log.New())
	require.NoError(t, host.Start())

	require.NoError(t, host.SetText(DeviceAddressProperty, map[string]string{AddressElement: "10.0.0.5", PortElement: "8080"}))
	assert.Equal(t, "10.0.0.5", drv.TCP().Host())
	assert.Equal(t, 8080, drv.TCP().Port())

	err := host.SetText(DeviceAddressProperty, map[string]string{PortElement: "http"})
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, 8080, drv.TCP().Port())

	addr, _ := drv.Props().Text(DeviceAddressProperty)
	assert.Equal(t, StateAlert, addr.State)
}

func TestHostConfigReplay(t *testing.T) {
	store := openStore(t)

	drv := newFakeDriver()
	host := NewHost(drv, store, log.New())
	require.NoError(t, host.Start())
	require.NoError(t, host.SetText("OPTION", map[string]string{"VALUE": "saved"}))
	require.NoError(t, host.SetText(DeviceAddressProperty, map[string]string{AddressElement: "10.0.0.9"}))
	require.NoError(t, host.SaveConfig())

	restarted := newFakeDriver()
	host = NewHost(restarted, store, log.New())
	require.NoError(t, host.Start())

	assert.Equal(t, "saved", restarted.option.Find("VALUE").Value)
	assert.Equal(t, "10.0.0.9", restarted.TCP().Host())
	assert.Equal(t, []string{"init", "text:saved"}, restarted.calls)
}

func TestHostSaveConfigWithoutStore(t *testing.T) {
	host := NewHost(newFakeDriver(), nil, log.New())
	require.NoError(t, host.Start())
	assert.Error(t, host.SaveConfig())
}

func TestHostClose(t *testing.T) {
	drv := newFakeDriver()
	host := NewHost(drv, nil, log.New())
	require.NoError(t, host.Start())
	require.NoError(t, host.Connect())

	require.NoError(t, host.Close())
	assert.False(t, drv.connected)
	assert.False(t, host.Connected())
}
