package ipfocuser

import (
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ipfocuser/pkg/alpaca"
	"ipfocuser/pkg/indi"

	log "github.com/sirupsen/logrus"
)

const (
	driverName       = "IP Focuser Driver"
	driverVersion    = "1.0"
	interfaceVersion = 4
)

// AlpacaFocuser exposes a hosted driver as an ASCOM Alpaca focuser. Getters
// read the published property snapshots; commands go through the host.
type AlpacaFocuser struct {
	host   *indi.Host
	drv    *Driver
	info   alpaca.DeviceInfo
	tmpl   *template.Template
	logger log.FieldLogger

	moving atomic.Bool
	wg     sync.WaitGroup
}

func NewAlpacaFocuser(number int, uniqueID string, host *indi.Host, drv *Driver, tmpl *template.Template, logger log.FieldLogger) *AlpacaFocuser {
	return &AlpacaFocuser{
		host:   host,
		drv:    drv,
		tmpl:   tmpl,
		logger: logger,
		info: alpaca.DeviceInfo{
			Name:        drv.DeviceName(),
			Description: "Focuser controlled over HTTP",
			Type:        alpaca.DeviceTypeFocuser,
			Number:      number,
			UniqueID:    uniqueID,
		},
	}
}

// Wait blocks until the move in progress, if any, is over.
func (f *AlpacaFocuser) Wait() {
	f.wg.Wait()
}

func (f *AlpacaFocuser) DeviceInfo() alpaca.DeviceInfo {
	return f.info
}

func (f *AlpacaFocuser) DriverInfo() alpaca.DriverInfo {
	return alpaca.DriverInfo{
		Name:             driverName,
		Version:          driverVersion,
		InterfaceVersion: interfaceVersion,
	}
}

func (f *AlpacaFocuser) GetState() []alpaca.StateProperty {
	props := []alpaca.StateProperty{
		{
			Name:  "TimeStamp",
			Value: time.Now().Format(time.RFC3339),
		},
	}

	if f.Connected() {
		pos, _ := f.Position()
		status := alpaca.FocuserStatus{IsMoving: f.IsMoving(), Position: pos}
		props = append(props, status.ToProperties()...)
	}
	return props
}

func (f *AlpacaFocuser) Connected() bool {
	return f.host.Connected()
}

func (f *AlpacaFocuser) Connecting() bool {
	return f.host.Connecting()
}

func (f *AlpacaFocuser) Connect() error {
	if err := f.host.Connect(); err != nil {
		return fmt.Errorf("failed to connect to focuser: %v", err)
	}
	return nil
}

func (f *AlpacaFocuser) Disconnect() error {
	if err := f.host.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %v", err)
	}
	return nil
}

// absolute returns the published absolute position element.
func (f *AlpacaFocuser) absolute() (indi.Number, bool) {
	nv, ok := f.host.Registry().Number(indi.AbsPositionProperty)
	if !ok || len(nv.Numbers) == 0 {
		return indi.Number{}, false
	}
	return nv.Numbers[0], true
}

func (f *AlpacaFocuser) Absolute() bool {
	return true
}

func (f *AlpacaFocuser) IsMoving() bool {
	return f.moving.Load()
}

func (f *AlpacaFocuser) MaxIncrement() int {
	return f.MaxStep()
}

func (f *AlpacaFocuser) MaxStep() int {
	abs, _ := f.absolute()
	return int(abs.Max)
}

func (f *AlpacaFocuser) Position() (int, error) {
	if !f.Connected() {
		return 0, alpaca.ErrNotConnected
	}
	abs, _ := f.absolute()
	return int(abs.Value), nil
}

func (f *AlpacaFocuser) StepSize() (float64, error) {
	return 0, alpaca.ErrPropertyNotImplemented
}

func (f *AlpacaFocuser) Temperature() (float64, error) {
	return 0, alpaca.ErrPropertyNotImplemented
}

func (f *AlpacaFocuser) TempComp() bool {
	return false
}

func (f *AlpacaFocuser) TempCompAvailable() bool {
	return false
}

func (f *AlpacaFocuser) SetTempComp(enabled bool) error {
	if enabled {
		return alpaca.ErrPropertyNotImplemented
	}
	return nil
}

// Halt is not supported: the controller has no stop command.
func (f *AlpacaFocuser) Halt() error {
	return alpaca.ErrPropertyNotImplemented
}

// Move starts an absolute move and returns at once. Clients poll IsMoving.
func (f *AlpacaFocuser) Move(position int) error {
	if !f.Connected() {
		return alpaca.ErrNotConnected
	}

	abs, _ := f.absolute()
	if float64(position) < abs.Min || float64(position) > abs.Max {
		return alpaca.NewError(alpaca.ErrInvalidValue, "position %d outside [%.f, %.f]", position, abs.Min, abs.Max)
	}

	if !f.moving.CompareAndSwap(false, true) {
		return alpaca.NewError(alpaca.ErrInvalidOperation, "focuser is already moving")
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.moving.Store(false)

		err := f.host.SetNumber(indi.AbsPositionProperty, map[string]float64{indi.AbsPositionElement: float64(position)})
		if err != nil {
			f.logger.Errorf("Failed to move to %d: %v", position, err)
			return
		}
		if nv, ok := f.host.Registry().Number(indi.AbsPositionProperty); ok && nv.State == indi.StateAlert {
			f.logger.Warnf("Move to %d did not complete", position)
		}
	}()

	return nil
}

type focuserSetup struct {
	Name          string
	Connected     bool
	Position      int
	Host          string
	Port          int
	BacklashSteps int
	Approach      string
}

func (f *AlpacaFocuser) HandleSetup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		f.renderSetupForm(w, f.currentSetup(), false, "")

	case http.MethodPost:
		setup, err := parseFocuserSetupForm(r)
		if err != nil {
			f.renderSetupForm(w, setup, false, err.Error())
			return
		}

		f.logger.Infof("Setting focuser config: %+v", setup)
		if err := f.applySetup(setup); err != nil {
			f.renderSetupForm(w, setup, false, err.Error())
			return
		}
		f.renderSetupForm(w, f.currentSetup(), true, "")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (f *AlpacaFocuser) currentSetup() focuserSetup {
	setup := focuserSetup{Name: f.info.Name, Connected: f.Connected()}
	setup.Position, _ = f.Position()

	f.host.Exec(func() error {
		setup.Host = f.drv.TCP().Host()
		setup.Port = f.drv.TCP().Port()
		setup.BacklashSteps = f.drv.BacklashSteps()
		setup.Approach = f.drv.Approach()
		return nil
	})
	return setup
}

func (f *AlpacaFocuser) applySetup(setup focuserSetup) error {
	err := f.host.SetText(indi.DeviceAddressProperty, map[string]string{
		indi.AddressElement: setup.Host,
		indi.PortElement:    strconv.Itoa(setup.Port),
	})
	if err != nil {
		return err
	}
	err = f.host.SetText(BacklashStepsProperty, map[string]string{BacklashStepsElement: strconv.Itoa(setup.BacklashSteps)})
	if err != nil {
		return err
	}
	err = f.host.SetText(ApproachProperty, map[string]string{ApproachElement: setup.Approach})
	if err != nil {
		return err
	}
	return f.host.SaveConfig()
}

func (f *AlpacaFocuser) renderSetupForm(w http.ResponseWriter, setup focuserSetup, success bool, err string) {
	data := struct {
		focuserSetup
		Success bool
		Error   string
	}{setup, success, err}

	if err := f.tmpl.ExecuteTemplate(w, "focuser_setup.html", data); err != nil {
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		f.logger.Errorf("Error rendering template: %v", err)
	}
}

func parseFocuserSetupForm(r *http.Request) (focuserSetup, error) {
	if err := r.ParseForm(); err != nil {
		return focuserSetup{}, fmt.Errorf("error parsing form: %v", err)
	}

	setup := focuserSetup{
		Host:     strings.TrimSpace(r.FormValue("host")),
		Approach: r.FormValue("approach"),
	}
	if setup.Host == "" {
		return setup, fmt.Errorf("address cannot be empty")
	}

	port, err := getFormInt(r, "port")
	if err != nil {
		return setup, err
	}
	if port <= 0 || port > 65535 {
		return setup, fmt.Errorf("invalid port: %d", port)
	}
	setup.Port = port

	backlash, err := getFormInt(r, "backlash")
	if err != nil {
		return setup, err
	}
	if backlash < 0 {
		return setup, fmt.Errorf("invalid backlash: %d", backlash)
	}
	setup.BacklashSteps = backlash

	switch setup.Approach {
	case "", "CW", "CCW":
	default:
		return setup, fmt.Errorf("invalid approach direction %q", setup.Approach)
	}
	return setup, nil
}

func getFormInt(r *http.Request, key string) (int, error) {
	value := r.FormValue(key)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", key, err)
	}
	return intValue, nil
}
