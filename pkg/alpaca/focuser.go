package alpaca

import (
	"net/http"
	"net/url"
)

type FocuserStatus struct {
	IsMoving bool
	Position int
}

func (fs FocuserStatus) ToProperties() []StateProperty {
	return []StateProperty{
		{"IsMoving", fs.IsMoving},
		{"Position", fs.Position},
	}
}

type Focuser interface {
	Device

	Absolute() bool
	IsMoving() bool
	MaxIncrement() int
	MaxStep() int
	Position() (int, error)
	StepSize() (float64, error)
	Temperature() (float64, error)

	TempComp() bool
	TempCompAvailable() bool
	SetTempComp(bool) error

	Halt() error
	Move(position int) error
}

type FocuserHandler struct {
	DeviceHandler
	dev Focuser
}

func NewFocuserHandler(dev Focuser) *FocuserHandler {
	return &FocuserHandler{
		DeviceHandler: DeviceHandler{dev: dev},
		dev:           dev,
	}
}

func (fh *FocuserHandler) RegisterRoutes(mux *http.ServeMux) {
	fh.DeviceHandler.RegisterRoutes(mux)

	mux.Handle("GET /absolute", handleAPI(fh.handleAbsolute))
	mux.Handle("GET /ismoving", handleAPI(fh.handleIsMoving))
	mux.Handle("GET /maxincrement", handleAPI(fh.handleMaxIncrement))
	mux.Handle("GET /maxstep", handleAPI(fh.handleMaxStep))
	mux.Handle("GET /position", handleAPI(fh.handlePosition))
	mux.Handle("GET /stepsize", handleAPI(fh.handleStepSize))
	mux.Handle("GET /temperature", handleAPI(fh.handleTemperature))
	mux.Handle("GET /tempcomp", handleAPI(fh.handleTempComp))
	mux.Handle("PUT /tempcomp", handleAPI(fh.handleSetTempComp))
	mux.Handle("GET /tempcompavailable", handleAPI(fh.handleTempCompAvailable))

	mux.Handle("PUT /halt", handleAPI(fh.handleHalt))
	mux.Handle("PUT /move", handleAPI(fh.handleMove))
}

func (fh *FocuserHandler) handleAbsolute(r *http.Request, _ url.Values) (any, error) {
	return fh.dev.Absolute(), nil
}

func (fh *FocuserHandler) handleIsMoving(r *http.Request, _ url.Values) (any, error) {
	if !fh.dev.Connected() {
		return nil, ErrNotConnected
	}
	return fh.dev.IsMoving(), nil
}

func (fh *FocuserHandler) handleMaxIncrement(r *http.Request, _ url.Values) (any, error) {
	return fh.dev.MaxIncrement(), nil
}

func (fh *FocuserHandler) handleMaxStep(r *http.Request, _ url.Values) (any, error) {
	return fh.dev.MaxStep(), nil
}

func (fh *FocuserHandler) handlePosition(r *http.Request, _ url.Values) (any, error) {
	return fh.dev.Position()
}

func (fh *FocuserHandler) handleStepSize(r *http.Request, _ url.Values) (any, error) {
	return fh.dev.StepSize()
}

func (fh *FocuserHandler) handleTemperature(r *http.Request, _ url.Values) (any, error) {
	return fh.dev.Temperature()
}

func (fh *FocuserHandler) handleTempComp(r *http.Request, _ url.Values) (any, error) {
	return fh.dev.TempComp(), nil
}

func (fh *FocuserHandler) handleSetTempComp(r *http.Request, params url.Values) (any, error) {
	enabled, err := paramBool(params, "TempComp")
	if err != nil {
		return nil, err
	}
	return nil, fh.dev.SetTempComp(enabled)
}

func (fh *FocuserHandler) handleTempCompAvailable(r *http.Request, _ url.Values) (any, error) {
	return fh.dev.TempCompAvailable(), nil
}

func (fh *FocuserHandler) handleHalt(r *http.Request, _ url.Values) (any, error) {
	return nil, fh.dev.Halt()
}

func (fh *FocuserHandler) handleMove(r *http.Request, params url.Values) (any, error) {
	position, err := paramInt(params, "Position")
	if err != nil {
		return nil, err
	}
	return nil, fh.dev.Move(position)
}
