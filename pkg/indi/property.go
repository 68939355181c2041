package indi

import (
	"fmt"
)

// Property groups, shown as tabs by clients.
const (
	MainControlTab = "Main Control"
	ConnectionTab  = "Connection"
	OptionsTab     = "Options"
)

type PropertyState int

const (
	StateIdle PropertyState = iota
	StateOk
	StateBusy
	StateAlert
)

func (s PropertyState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOk:
		return "Ok"
	case StateBusy:
		return "Busy"
	case StateAlert:
		return "Alert"
	default:
		return fmt.Sprintf("PropertyState(%d)", int(s))
	}
}

func (s PropertyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *PropertyState) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateAlert; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("invalid property state %q", string(b))
}

type Permission string

const (
	ReadOnly  Permission = "ro"
	WriteOnly Permission = "wo"
	ReadWrite Permission = "rw"
)

type PropertyKind string

const (
	NumberKind PropertyKind = "number"
	TextKind   PropertyKind = "text"
	SwitchKind PropertyKind = "switch"
)

type SwitchState bool

const (
	SwitchOn  SwitchState = true
	SwitchOff SwitchState = false
)

func (s SwitchState) MarshalText() ([]byte, error) {
	if s {
		return []byte("On"), nil
	}
	return []byte("Off"), nil
}

func (s *SwitchState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "On", "on", "ON", "true":
		*s = SwitchOn
	case "Off", "off", "OFF", "false":
		*s = SwitchOff
	default:
		return fmt.Errorf("invalid switch state %q", string(b))
	}
	return nil
}

type SwitchRule string

const (
	OneOfMany SwitchRule = "OneOfMany"
	AtMostOne SwitchRule = "AtMostOne"
	AnyOfMany SwitchRule = "AnyOfMany"
)

// Vector holds the attributes shared by every property type.
type Vector struct {
	Type   PropertyKind  `json:"type"`
	Device string        `json:"device"`
	Name   string        `json:"name"`
	Label  string        `json:"label"`
	Group  string        `json:"group"`
	Perm   Permission    `json:"perm"`
	State  PropertyState `json:"state"`
}

// Property is a named, typed, client-visible datum with a status.
type Property interface {
	Header() Vector
	clone() Property
}

type Number struct {
	Name   string  `json:"name"`
	Label  string  `json:"label"`
	Format string  `json:"format"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Step   float64 `json:"step"`
	Value  float64 `json:"value"`
}

type NumberVector struct {
	Vector
	Numbers []Number `json:"numbers"`
}

func NewNumberVector(device, name, label, group string, perm Permission, numbers ...Number) *NumberVector {
	return &NumberVector{
		Vector: Vector{
			Type:   NumberKind,
			Device: device,
			Name:   name,
			Label:  label,
			Group:  group,
			Perm:   perm,
		},
		Numbers: numbers,
	}
}

func (nv *NumberVector) Header() Vector { return nv.Vector }

func (nv *NumberVector) clone() Property {
	c := *nv
	c.Numbers = append([]Number(nil), nv.Numbers...)
	return &c
}

// Find returns the element with the given name or nil.
func (nv *NumberVector) Find(name string) *Number {
	for i := range nv.Numbers {
		if nv.Numbers[i].Name == name {
			return &nv.Numbers[i]
		}
	}
	return nil
}

type Text struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value string `json:"value"`
}

type TextVector struct {
	Vector
	Texts []Text `json:"texts"`
}

func NewTextVector(device, name, label, group string, perm Permission, texts ...Text) *TextVector {
	return &TextVector{
		Vector: Vector{
			Type:   TextKind,
			Device: device,
			Name:   name,
			Label:  label,
			Group:  group,
			Perm:   perm,
		},
		Texts: texts,
	}
}

func (tv *TextVector) Header() Vector { return tv.Vector }

func (tv *TextVector) clone() Property {
	c := *tv
	c.Texts = append([]Text(nil), tv.Texts...)
	return &c
}

func (tv *TextVector) Find(name string) *Text {
	for i := range tv.Texts {
		if tv.Texts[i].Name == name {
			return &tv.Texts[i]
		}
	}
	return nil
}

// Update copies the named values into the vector. Unknown element names are
// reported as ErrMissingElement and leave the vector untouched.
func (tv *TextVector) Update(texts map[string]string) error {
	for name := range texts {
		if tv.Find(name) == nil {
			return fmt.Errorf("%w: %s.%s", ErrMissingElement, tv.Name, name)
		}
	}
	for name, value := range texts {
		tv.Find(name).Value = value
	}
	return nil
}

type Switch struct {
	Name  string      `json:"name"`
	Label string      `json:"label"`
	State SwitchState `json:"state"`
}

type SwitchVector struct {
	Vector
	Rule     SwitchRule `json:"rule"`
	Switches []Switch   `json:"switches"`
}

func NewSwitchVector(device, name, label, group string, perm Permission, rule SwitchRule, switches ...Switch) *SwitchVector {
	return &SwitchVector{
		Vector: Vector{
			Type:   SwitchKind,
			Device: device,
			Name:   name,
			Label:  label,
			Group:  group,
			Perm:   perm,
		},
		Rule:     rule,
		Switches: switches,
	}
}

func (sv *SwitchVector) Header() Vector { return sv.Vector }

func (sv *SwitchVector) clone() Property {
	c := *sv
	c.Switches = append([]Switch(nil), sv.Switches...)
	return &c
}

func (sv *SwitchVector) Find(name string) *Switch {
	for i := range sv.Switches {
		if sv.Switches[i].Name == name {
			return &sv.Switches[i]
		}
	}
	return nil
}

// OnSwitch returns the name of the first switch that is on.
func (sv *SwitchVector) OnSwitch() string {
	for _, s := range sv.Switches {
		if s.State == SwitchOn {
			return s.Name
		}
	}
	return ""
}

// Update applies the requested states honoring the vector's rule.
func (sv *SwitchVector) Update(states map[string]SwitchState) error {
	for name := range states {
		if sv.Find(name) == nil {
			return fmt.Errorf("%w: %s.%s", ErrMissingElement, sv.Name, name)
		}
	}

	if sv.Rule == OneOfMany || sv.Rule == AtMostOne {
		on := ""
		for name, st := range states {
			if st == SwitchOn {
				if on != "" {
					return fmt.Errorf("%s: %s allows a single switch on", sv.Name, sv.Rule)
				}
				on = name
			}
		}
		if on != "" {
			for i := range sv.Switches {
				sv.Switches[i].State = SwitchState(sv.Switches[i].Name == on)
			}
			return nil
		}
		if sv.Rule == OneOfMany {
			// Turning the active switch off is not allowed without selecting another.
			return nil
		}
	}

	for name, st := range states {
		sv.Find(name).State = st
	}
	return nil
}
