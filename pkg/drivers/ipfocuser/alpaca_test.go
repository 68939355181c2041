package ipfocuser

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"ipfocuser/pkg/alpaca"
	"ipfocuser/pkg/drivers/focuser_simulator"
	"ipfocuser/pkg/indi"
	"ipfocuser/templates"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newAlpacaFocuser(t *testing.T, f *fixture) *AlpacaFocuser {
	t.Helper()
	tmpl, err := templates.LoadTemplates()
	require.NoError(t, err)
	af := NewAlpacaFocuser(0, "test-id", f.host, f.drv, tmpl, f.drv.Logger)
	t.Cleanup(af.Wait)
	return af
}

func TestAlpacaFocuserInfo(t *testing.T) {
	_, srv := newSimulator(t, focuser_simulator.Config{MaxPosition: 30000, Position: 1000})
	af := newAlpacaFocuser(t, newFixture(t, srv.URL, nil))

	info := af.DeviceInfo()
	assert.Equal(t, DefaultName, info.Name)
	assert.Equal(t, alpaca.DeviceTypeFocuser, info.Type)
	assert.Equal(t, "test-id", info.UniqueID)
	assert.Equal(t, interfaceVersion, af.DriverInfo().InterfaceVersion)

	assert.True(t, af.Absolute())
	assert.False(t, af.TempComp())
	assert.False(t, af.TempCompAvailable())
	assert.NoError(t, af.SetTempComp(false))
	assert.ErrorIs(t, af.SetTempComp(true), alpaca.ErrPropertyNotImplemented)
	assert.ErrorIs(t, af.Halt(), alpaca.ErrPropertyNotImplemented)

	_, err := af.StepSize()
	assert.ErrorIs(t, err, alpaca.ErrPropertyNotImplemented)
	_, err = af.Temperature()
	assert.ErrorIs(t, err, alpaca.ErrPropertyNotImplemented)
}

func TestAlpacaFocuserConnect(t *testing.T) {
	_, srv := newSimulator(t, focuser_simulator.Config{MaxPosition: 30000, Position: 1000})
	af := newAlpacaFocuser(t, newFixture(t, srv.URL, nil))

	_, err := af.Position()
	assert.ErrorIs(t, err, alpaca.ErrNotConnected)
	assert.Len(t, af.GetState(), 1)

	require.NoError(t, af.Connect())
	assert.True(t, af.Connected())
	assert.False(t, af.Connecting())

	pos, err := af.Position()
	require.NoError(t, err)
	assert.Equal(t, 1000, pos)
	assert.Equal(t, 30000, af.MaxStep())
	assert.Equal(t, 30000, af.MaxIncrement())

	state := af.GetState()
	require.Len(t, state, 3)
	assert.Equal(t, "Position", state[2].Name)
	assert.Equal(t, 1000, state[2].Value)

	require.NoError(t, af.Disconnect())
	assert.False(t, af.Connected())
}

func TestAlpacaFocuserConnectFails(t *testing.T) {
	af := newAlpacaFocuser(t, newFixture(t, "http://"+closedAddr(t), nil))

	assert.Error(t, af.Connect())
	assert.False(t, af.Connected())
}

func TestAlpacaFocuserMove(t *testing.T) {
	sim, srv := newSimulator(t, focuser_simulator.Config{MaxPosition: 30000, Position: 1000})
	f := newFixture(t, srv.URL, nil)
	af := newAlpacaFocuser(t, f)

	assert.ErrorIs(t, af.Move(2000), alpaca.ErrNotConnected)

	require.NoError(t, af.Connect())
	require.NoError(t, af.Move(2000))
	af.Wait()

	assert.False(t, af.IsMoving())
	pos, err := af.Position()
	require.NoError(t, err)
	assert.Equal(t, 2000, pos)
	assert.Equal(t, uint32(2000), sim.Position())
	assert.Equal(t, indi.StateOk, f.absState(t))
}

func TestAlpacaFocuserMoveRejected(t *testing.T) {
	sim, srv := newSimulator(t, focuser_simulator.Config{MaxPosition: 30000, Position: 1000})
	af := newAlpacaFocuser(t, newFixture(t, srv.URL, nil))
	require.NoError(t, af.Connect())

	assert.ErrorIs(t, af.Move(-1), alpaca.ErrInvalidValue)
	assert.ErrorIs(t, af.Move(30001), alpaca.ErrInvalidValue)

	af.moving.Store(true)
	assert.ErrorIs(t, af.Move(2000), alpaca.ErrInvalidOperation)
	af.moving.Store(false)

	af.Wait()
	assert.Empty(t, sim.Moves())
}

func TestAlpacaFocuserSetup(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "indi.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	store, err := indi.NewStore(db)
	require.NoError(t, err)

	_, srv := newSimulator(t, focuser_simulator.Config{MaxPosition: 30000, Position: 1000})
	f := newFixture(t, srv.URL, store)
	af := newAlpacaFocuser(t, f)
	host, port := splitURL(t, srv.URL)

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		af.HandleSetup(rec, httptest.NewRequest(http.MethodGet, "/setup", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, DefaultName)
		assert.Contains(t, body, `value="`+host+`"`)
		assert.Contains(t, body, `value="300"`)
	})

	post := func(form url.Values) string {
		req := httptest.NewRequest(http.MethodPost, "/setup", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		af.HandleSetup(rec, req)
		body, _ := io.ReadAll(rec.Result().Body)
		return string(body)
	}

	t.Run("post", func(t *testing.T) {
		body := post(url.Values{
			"host":     {host},
			"port":     {strconv.Itoa(port)},
			"backlash": {"120"},
			"approach": {"CW"},
		})
		assert.Contains(t, body, "Configuration saved.")

		assert.Equal(t, 120, f.drv.BacklashSteps())
		assert.Equal(t, "CW", f.drv.Approach())

		cfg, err := store.LoadConfig(DefaultName)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{BacklashStepsElement: "120"}, cfg[BacklashStepsProperty].Values)
	})

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"empty host", url.Values{"host": {" "}, "port": {"80"}, "backlash": {"0"}}, "address cannot be empty"},
		{"bad port", url.Values{"host": {"focuser"}, "port": {"70000"}, "backlash": {"0"}}, "invalid port"},
		{"bad backlash", url.Values{"host": {"focuser"}, "port": {"80"}, "backlash": {"-5"}}, "invalid backlash"},
		{"bad approach", url.Values{"host": {"focuser"}, "port": {"80"}, "backlash": {"0"}, "approach": {"UP"}}, "invalid approach"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := post(tt.form)
			assert.Contains(t, body, tt.want)
			assert.NotContains(t, body, "Configuration saved.")
			assert.Equal(t, "CW", f.drv.Approach())
		})
	}
}
