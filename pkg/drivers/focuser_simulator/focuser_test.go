package focuser_simulator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func newTestSimulator(t *testing.T, cfg Config) (*Simulator, *httptest.Server) {
	t.Helper()

	sim, err := NewSimulator(cfg, nil, log.New())
	require.NoError(t, err)

	srv := httptest.NewServer(sim.RegisterRoutes())
	t.Cleanup(srv.Close)
	return sim, srv
}

func get(t *testing.T, u string) (int, Status) {
	t.Helper()

	resp, err := http.Get(u)
	require.NoError(t, err)
	defer resp.Body.Close()

	var st Status
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	}
	return resp.StatusCode, st
}

func TestStatus(t *testing.T) {
	_, srv := newTestSimulator(t, Config{MinPosition: 10, MaxPosition: 100000, Position: 1200})

	code, st := get(t, srv.URL+"/focuser")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, uint32(1200), st.AbsolutePosition)
	assert.Equal(t, uint32(10), st.MinPosition)
	assert.Equal(t, uint32(100000), st.MaxPosition)
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}$`, st.Uptime)
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		start    uint32
		query    string
		expected []uint32
	}{
		{
			name:     "Outward with CCW overshoots and comes back",
			start:    1000,
			query:    "absolutePosition=5000&backlashSteps=300&alwaysApproach=CCW",
			expected: []uint32{1000, 5300, 5000},
		},
		{
			name:     "Inward with CCW goes straight",
			start:    5000,
			query:    "absolutePosition=1000&backlashSteps=300&alwaysApproach=CCW",
			expected: []uint32{5000, 1000},
		},
		{
			name:     "Inward with CW overshoots and comes back",
			start:    5000,
			query:    "absolutePosition=1000&backlashSteps=300&alwaysApproach=CW",
			expected: []uint32{5000, 700, 1000},
		},
		{
			name:     "Overshoot is clamped at the range end",
			start:    1000,
			query:    "absolutePosition=9900&backlashSteps=300&alwaysApproach=CCW",
			expected: []uint32{1000, 10000, 9900},
		},
		{
			name:     "No approach direction",
			start:    1000,
			query:    "absolutePosition=5000&backlashSteps=300&alwaysApproach=",
			expected: []uint32{1000, 5000},
		},
		{
			name:     "Already there",
			start:    1000,
			query:    "absolutePosition=1000&backlashSteps=0&alwaysApproach=CW",
			expected: []uint32{1000},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sim, srv := newTestSimulator(t, Config{MaxPosition: 10000, Position: tc.start})

			code, st := get(t, srv.URL+"/focuser?"+tc.query)
			require.Equal(t, http.StatusOK, code)

			target := tc.expected[len(tc.expected)-1]
			assert.Equal(t, target, st.AbsolutePosition)
			assert.Equal(t, target, sim.Position())

			moves := sim.Moves()
			require.Len(t, moves, 1)
			assert.Equal(t, tc.expected, moves[0].Path)
			assert.Equal(t, []string{tc.query}, sim.Queries())
		})
	}
}

func TestMoveRejected(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"Above range", "absolutePosition=20000&backlashSteps=0&alwaysApproach="},
		{"Negative", "absolutePosition=-1&backlashSteps=0&alwaysApproach="},
		{"Not a number", "absolutePosition=abc"},
		{"Bad backlash", "absolutePosition=10&backlashSteps=x"},
		{"Bad approach", "absolutePosition=10&alwaysApproach=UP"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sim, srv := newTestSimulator(t, Config{MaxPosition: 10000, Position: 500})

			code, _ := get(t, srv.URL+"/focuser?"+tc.query)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, uint32(500), sim.Position())
			assert.Empty(t, sim.Moves())
		})
	}
}

func TestMoveIgnoresEscapedSeparators(t *testing.T) {
	sim, srv := newTestSimulator(t, Config{MaxPosition: 10000, Position: 500})

	code, _ := get(t, srv.URL+"/focuser?absolutePosition=10&amp;backlashSteps=300&amp;alwaysApproach=CCW")
	require.Equal(t, http.StatusOK, code)

	moves := sim.Moves()
	require.Len(t, moves, 1)
	assert.Equal(t, uint32(0), moves[0].Backlash)
	assert.Equal(t, "", moves[0].Approach)
}

func TestStorePersistsPosition(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "sim.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()

	st, err := NewStore(db, Config{MaxPosition: 10000, Position: 100})
	require.NoError(t, err)

	sim, err := NewSimulator(DefaultConfig(), st, log.New())
	require.NoError(t, err)
	assert.Equal(t, uint32(100), sim.Position(), "saved config wins over the given one")

	srv := httptest.NewServer(sim.RegisterRoutes())
	defer srv.Close()

	code, _ := get(t, srv.URL+"/focuser?absolutePosition=2500")
	require.Equal(t, http.StatusOK, code)

	cfg, err := st.GetConfig()
	require.NoError(t, err)
	assert.Equal(t, uint32(2500), cfg.Position)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{MinPosition: 10, MaxPosition: 5}.Validate())
	assert.Error(t, Config{MaxPosition: 5, Position: 6}.Validate())
}
