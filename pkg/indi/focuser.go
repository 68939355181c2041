package indi

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	FocusMotionProperty = "FOCUS_MOTION"
	FocusInwardElement  = "FOCUS_INWARD"
	FocusOutwardElement = "FOCUS_OUTWARD"

	RelPositionProperty = "REL_FOCUS_POSITION"
	RelPositionElement  = "FOCUS_RELATIVE_POSITION"

	AbsPositionProperty = "ABS_FOCUS_POSITION"
	AbsPositionElement  = "FOCUS_ABSOLUTE_POSITION"
)

// DefaultFocusStep is the client increment for the position properties.
const DefaultFocusStep = 1000

type FocusDirection int

const (
	FocusInward FocusDirection = iota
	FocusOutward
)

func (d FocusDirection) String() string {
	if d == FocusOutward {
		return "outward"
	}
	return "inward"
}

// FocuserCapability is the set of motion features a focuser advertises.
type FocuserCapability uint

const (
	CanAbsMove FocuserCapability = 1 << iota
	CanRelMove
	HasVariableSpeed
)

func (c FocuserCapability) Has(flag FocuserCapability) bool {
	return c&flag != 0
}

// AbsMover moves the focuser to an absolute step position.
type AbsMover interface {
	MoveAbsFocuser(target uint32) PropertyState
}

// RelMover moves the focuser by a number of steps in a direction.
type RelMover interface {
	MoveRelFocuser(dir FocusDirection, ticks uint32) PropertyState
}

// TimedMover runs the motor at a speed for a duration.
type TimedMover interface {
	MoveFocuser(dir FocusDirection, speed int, duration time.Duration) PropertyState
}

// Focuser is the focuser role: the standard motion properties and the
// dispatch of client writes to the capability interfaces the driver satisfies.
type Focuser struct {
	DefaultDevice

	FocusMotion *SwitchVector
	FocusRelPos *NumberVector
	FocusAbsPos *NumberVector

	mover      any
	capability FocuserCapability
}

func NewFocuser(name string, logger log.FieldLogger) *Focuser {
	f := &Focuser{
		DefaultDevice: NewDefaultDevice(name, logger),
	}

	f.FocusMotion = NewSwitchVector(name, FocusMotionProperty, "Direction", MainControlTab, ReadWrite, OneOfMany,
		Switch{Name: FocusInwardElement, Label: "Focus In", State: SwitchOn},
		Switch{Name: FocusOutwardElement, Label: "Focus Out", State: SwitchOff},
	)
	f.FocusRelPos = NewNumberVector(name, RelPositionProperty, "Relative Position", MainControlTab, ReadWrite,
		Number{Name: RelPositionElement, Label: "Steps", Format: "%.f", Min: 0, Max: 5000, Step: DefaultFocusStep},
	)
	f.FocusAbsPos = NewNumberVector(name, AbsPositionProperty, "Absolute Position", MainControlTab, ReadWrite,
		Number{Name: AbsPositionElement, Label: "Steps", Format: "%.f", Min: 0, Max: 5000, Step: DefaultFocusStep},
	)

	return f
}

// SetMover binds the driver that implements the motion capabilities and
// derives the advertised capability set from the interfaces it satisfies.
func (f *Focuser) SetMover(m any) {
	f.mover = m
	f.capability = 0
	if _, ok := m.(AbsMover); ok {
		f.capability |= CanAbsMove
	}
	if _, ok := m.(RelMover); ok {
		f.capability |= CanRelMove
	}
	if _, ok := m.(TimedMover); ok {
		f.capability |= HasVariableSpeed
	}
}

func (f *Focuser) Capabilities() FocuserCapability {
	return f.capability
}

// Direction returns the direction selected in FOCUS_MOTION.
func (f *Focuser) Direction() FocusDirection {
	if f.FocusMotion.OnSwitch() == FocusOutwardElement {
		return FocusOutward
	}
	return FocusInward
}

// UpdateProperties announces the motion properties once connected. They are
// re-announced on every connect so clients pick up new bounds.
func (f *Focuser) UpdateProperties(connected bool) {
	if !connected {
		return
	}
	if f.capability.Has(CanRelMove) {
		f.props.Define(f.FocusMotion)
		f.props.Define(f.FocusRelPos)
	}
	if f.capability.Has(CanAbsMove) {
		f.props.Define(f.FocusAbsPos)
	}
}

func (f *Focuser) NewNumber(name string, values map[string]float64) error {
	switch name {
	case AbsPositionProperty:
		mover, ok := f.mover.(AbsMover)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
		}
		v, ok := values[AbsPositionElement]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrMissingElement, name, AbsPositionElement)
		}
		if v < 0 || v > math.MaxUint32 || math.IsNaN(v) {
			f.FocusAbsPos.State = StateAlert
			f.props.Update(f.FocusAbsPos, "invalid target %g", v)
			return nil
		}
		mover.MoveAbsFocuser(uint32(math.Round(v)))
		return nil

	case RelPositionProperty:
		mover, ok := f.mover.(RelMover)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
		}
		v, ok := values[RelPositionElement]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrMissingElement, name, RelPositionElement)
		}
		rel := f.FocusRelPos.Find(RelPositionElement)
		if v < rel.Min || v > rel.Max || math.IsNaN(v) {
			f.FocusRelPos.State = StateAlert
			f.props.Update(f.FocusRelPos, "relative move %g outside [%g, %g]", v, rel.Min, rel.Max)
			return nil
		}

		rel.Value = v
		f.FocusRelPos.State = StateBusy
		f.props.Update(f.FocusRelPos, "")

		f.FocusRelPos.State = mover.MoveRelFocuser(f.Direction(), uint32(math.Round(v)))
		f.props.Update(f.FocusRelPos, "")
		return nil
	}

	return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
}

func (f *Focuser) NewSwitch(name string, states map[string]SwitchState) error {
	if name != FocusMotionProperty {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	if err := f.FocusMotion.Update(states); err != nil {
		f.FocusMotion.State = StateAlert
		f.props.Update(f.FocusMotion, "%v", err)
		return err
	}
	f.FocusMotion.State = StateOk
	f.props.Update(f.FocusMotion, "")
	return nil
}

func (f *Focuser) NewText(name string, texts map[string]string) error {
	return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
}
