package ipfocuser

import (
	"math"

	"ipfocuser/pkg/indi"
)

// MoveAbsFocuser asks the controller to move to target and waits for the
// reply. The absolute position goes Busy before the request and ends Ok or
// Alert.
func (d *Driver) MoveAbsFocuser(target uint32) indi.PropertyState {
	abs := d.FocusAbsPos.Find(indi.AbsPositionElement)

	if d.state != connStateConnected {
		return d.failMove("Cannot move to %d: %v", target, ErrNotConnected)
	}
	if t := float64(target); t < abs.Min || t > abs.Max {
		return d.failMove("Cannot move to %d: %v [%.f, %.f]", target, ErrOutOfRange, abs.Min, abs.Max)
	}

	d.FocusAbsPos.State = indi.StateBusy
	d.Props().Update(d.FocusAbsPos, "Moving to %d", target)

	u := moveURL(d.endpoint, target, d.BacklashSteps(), d.Approach())
	d.Logger.Debugf("GET %s", u)

	body, err := d.client.Get(d.ctx, u, MoveTimeout)
	if err != nil {
		return d.failMove("Move to %d failed: %v", target, err)
	}

	abs.Value = d.landedPosition(target, body)
	d.FocusAbsPos.State = indi.StateOk
	d.Props().Update(d.FocusAbsPos, "Focuser at %.f", abs.Value)
	return indi.StateOk
}

// MoveRelFocuser moves by ticks steps from the current position.
func (d *Driver) MoveRelFocuser(dir indi.FocusDirection, ticks uint32) indi.PropertyState {
	if d.state != connStateConnected {
		return d.failMove("Cannot move %s by %d: %v", dir, ticks, ErrNotConnected)
	}

	abs := d.FocusAbsPos.Find(indi.AbsPositionElement)
	target := abs.Value + float64(ticks)
	if dir == indi.FocusInward {
		target = abs.Value - float64(ticks)
	}
	if target < abs.Min || target > abs.Max || target > math.MaxUint32 {
		return d.failMove("Cannot move %s by %d to %.f: %v [%.f, %.f]", dir, ticks, target, ErrOutOfRange, abs.Min, abs.Max)
	}

	return d.MoveAbsFocuser(uint32(target))
}

func (d *Driver) failMove(format string, args ...any) indi.PropertyState {
	d.Logger.Errorf(format, args...)
	d.FocusAbsPos.State = indi.StateAlert
	d.Props().Update(d.FocusAbsPos, format, args...)
	return indi.StateAlert
}

// landedPosition prefers the position the controller reports after the move
// and falls back to the requested target.
func (d *Driver) landedPosition(target uint32, body []byte) float64 {
	st, err := ParseStatus(body)
	if err != nil {
		d.Logger.Debugf("Ignoring move reply: %v", err)
		return float64(target)
	}
	if st.AbsolutePosition == nil {
		return float64(target)
	}
	if *st.AbsolutePosition != float64(target) {
		d.Logger.Warnf("Focuser landed at %.f instead of %d", *st.AbsolutePosition, target)
	}
	return *st.AbsolutePosition
}
