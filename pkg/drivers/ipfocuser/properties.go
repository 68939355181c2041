package ipfocuser

import (
	"strconv"
	"strings"

	"ipfocuser/pkg/indi"
)

const (
	BacklashStepsProperty = "BACKLASH_STEPS_SETTINGS"
	BacklashStepsElement  = "BACKLASH_STEPS"

	ApproachProperty = "BACKLASH_APPROACH_SETTINGS"
	ApproachElement  = "ALWAYS_APPROACH_DIR"
)

func (d *Driver) initOptionProperties() {
	d.backlash = indi.NewTextVector(d.DeviceName(), BacklashStepsProperty, "Backlash", indi.OptionsTab, indi.ReadWrite,
		indi.Text{Name: BacklashStepsElement, Label: "Steps", Value: strconv.Itoa(d.opts.BacklashSteps)},
	)
	d.approach = indi.NewTextVector(d.DeviceName(), ApproachProperty, "Approach", indi.OptionsTab, indi.ReadWrite,
		indi.Text{Name: ApproachElement, Label: "Always approach CW/CCW", Value: d.opts.Approach},
	)
}

// UpdateProperties announces the backlash options while connected and
// withdraws them on disconnect. The motion properties stay announced.
func (d *Driver) UpdateProperties(connected bool) {
	d.Focuser.UpdateProperties(connected)

	if connected {
		d.Props().Define(d.backlash)
		d.Props().Define(d.approach)
		return
	}
	d.Props().Delete(BacklashStepsProperty)
	d.Props().Delete(ApproachProperty)
}

// NewText accepts backlash settings as given. They only take effect with the
// next move, so no request is made.
func (d *Driver) NewText(name string, texts map[string]string) error {
	var tv *indi.TextVector
	switch name {
	case BacklashStepsProperty:
		tv = d.backlash
	case ApproachProperty:
		tv = d.approach
	default:
		return d.Focuser.NewText(name, texts)
	}

	if err := tv.Update(texts); err != nil {
		return err
	}
	tv.State = indi.StateOk
	d.Props().Update(tv, "")

	if name == BacklashStepsProperty {
		if _, ok := d.parseBacklash(); !ok {
			d.Logger.Warnf("Backlash %q is not a step count, moves will use 0", d.backlash.Find(BacklashStepsElement).Value)
		}
	}
	return nil
}

func (d *Driver) SaveConfigItems(w *indi.ConfigWriter) error {
	w.SaveText(d.approach)
	w.SaveText(d.backlash)
	return nil
}

func (d *Driver) parseBacklash() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(d.backlash.Find(BacklashStepsElement).Value))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// BacklashSteps returns the configured backlash, 0 when it is not a valid
// step count.
func (d *Driver) BacklashSteps() int {
	n, _ := d.parseBacklash()
	return n
}

// Approach returns the direction the controller finishes every move in:
// CW, CCW or empty for no compensation.
func (d *Driver) Approach() string {
	return d.approach.Find(ApproachElement).Value
}
