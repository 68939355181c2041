package indi

import (
	"fmt"
	"strconv"
)

// ConfigItem is a saved property: its kind and element values as text.
type ConfigItem struct {
	Kind   PropertyKind      `json:"type"`
	Values map[string]string `json:"values"`
}

// Config maps property names to their saved values.
type Config map[string]ConfigItem

// ConfigStore persists one Config per device.
type ConfigStore interface {
	LoadConfig(device string) (Config, error)
	SaveConfig(device string, cfg Config) error
}

// ConfigWriter collects the items a driver chooses to save.
type ConfigWriter struct {
	cfg Config
}

func NewConfigWriter() *ConfigWriter {
	return &ConfigWriter{cfg: make(Config)}
}

func (w *ConfigWriter) SaveText(tv *TextVector) {
	values := make(map[string]string, len(tv.Texts))
	for _, t := range tv.Texts {
		values[t.Name] = t.Value
	}
	w.cfg[tv.Name] = ConfigItem{Kind: TextKind, Values: values}
}

func (w *ConfigWriter) SaveNumber(nv *NumberVector) {
	values := make(map[string]string, len(nv.Numbers))
	for _, n := range nv.Numbers {
		values[n.Name] = strconv.FormatFloat(n.Value, 'g', -1, 64)
	}
	w.cfg[nv.Name] = ConfigItem{Kind: NumberKind, Values: values}
}

func (w *ConfigWriter) SaveSwitch(sv *SwitchVector) {
	values := make(map[string]string, len(sv.Switches))
	for _, s := range sv.Switches {
		if s.State == SwitchOn {
			values[s.Name] = "On"
		} else {
			values[s.Name] = "Off"
		}
	}
	w.cfg[sv.Name] = ConfigItem{Kind: SwitchKind, Values: values}
}

func (w *ConfigWriter) Config() Config {
	return w.cfg
}

// Numbers converts a saved number item back to float values.
func (it ConfigItem) Numbers() (map[string]float64, error) {
	values := make(map[string]float64, len(it.Values))
	for name, v := range it.Values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %s=%q: %w", name, v, err)
		}
		values[name] = f
	}
	return values, nil
}

// Switches converts a saved switch item back to switch states.
func (it ConfigItem) Switches() (map[string]SwitchState, error) {
	states := make(map[string]SwitchState, len(it.Values))
	for name, v := range it.Values {
		var st SwitchState
		if err := st.UnmarshalText([]byte(v)); err != nil {
			return nil, err
		}
		states[name] = st
	}
	return states, nil
}
