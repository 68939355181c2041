package focuser_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Status is the document the controller answers every request with.
type Status struct {
	Uptime           string `json:"uptime"`
	AbsolutePosition uint32 `json:"absolutePosition"`
	MaxPosition      uint32 `json:"maxPosition"`
	MinPosition      uint32 `json:"minPosition"`
}

// Move records the travel of one move request. Path holds the positions the
// focuser passed through: start, the backlash overshoot if any, and target.
type Move struct {
	Target   uint32
	Backlash uint32
	Approach string
	Path     []uint32
}

// Simulator emulates the focuser controller's HTTP endpoint. Moves block until
// the simulated travel is over, as the real controller does.
type Simulator struct {
	logger log.FieldLogger
	store  *store
	start  time.Time

	moveMu sync.Mutex // one move at a time

	mu       sync.Mutex
	config   Config
	queries  []string
	moves    []Move
	inMotion bool
}

// NewSimulator creates a simulator. store may be nil, in which case the
// position is not persisted.
func NewSimulator(cfg Config, store *store, logger log.FieldLogger) (*Simulator, error) {
	if store != nil {
		saved, err := store.GetConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to get simulator config: %v", err)
		}
		cfg = saved
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulator config: %v", err)
	}

	return &Simulator{
		logger: logger,
		store:  store,
		start:  time.Now(),
		config: cfg,
	}, nil
}

func (s *Simulator) RegisterRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /focuser", s.handleFocuser)
	return mux
}

func (s *Simulator) Position() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Position
}

func (s *Simulator) SetPosition(pos uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.Position = pos
}

func (s *Simulator) SetRange(min, max uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.MinPosition = min
	s.config.MaxPosition = max
}

// Queries returns the raw query strings received so far, empty for status
// requests.
func (s *Simulator) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *Simulator) Moves() []Move {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Move(nil), s.moves...)
}

func (s *Simulator) IsMoving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inMotion
}

func (s *Simulator) handleFocuser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.queries = append(s.queries, r.URL.RawQuery)
	s.mu.Unlock()

	q := r.URL.Query()
	if q.Has("absolutePosition") {
		move, err := s.parseMove(q)
		if err != nil {
			s.logger.Warnf("Rejecting move %q: %v", r.URL.RawQuery, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.move(r.Context(), move); err != nil {
			s.logger.Warnf("Move to %d aborted: %v", move.Target, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.status())
}

func (s *Simulator) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	up := time.Since(s.start)
	return Status{
		Uptime:           fmt.Sprintf("%02d:%02d:%02d", int(up.Hours()), int(up.Minutes())%60, int(up.Seconds())%60),
		AbsolutePosition: s.config.Position,
		MaxPosition:      s.config.MaxPosition,
		MinPosition:      s.config.MinPosition,
	}
}

func (s *Simulator) parseMove(q url.Values) (Move, error) {
	target, err := strconv.ParseUint(q.Get("absolutePosition"), 10, 32)
	if err != nil {
		return Move{}, fmt.Errorf("invalid absolutePosition: %v", err)
	}

	var backlash uint64
	if v := q.Get("backlashSteps"); v != "" {
		if backlash, err = strconv.ParseUint(v, 10, 32); err != nil {
			return Move{}, fmt.Errorf("invalid backlashSteps: %v", err)
		}
	}

	approach := q.Get("alwaysApproach")
	switch approach {
	case "", "CW", "CCW":
	default:
		return Move{}, fmt.Errorf("invalid alwaysApproach %q", approach)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if uint32(target) < s.config.MinPosition || uint32(target) > s.config.MaxPosition {
		return Move{}, fmt.Errorf("absolutePosition %d outside [%d, %d]", target, s.config.MinPosition, s.config.MaxPosition)
	}

	return Move{Target: uint32(target), Backlash: uint32(backlash), Approach: approach}, nil
}

// plan computes the waypoints of a move. CW finishes moving outward, CCW
// finishes moving inward; when the natural direction is the other one the
// focuser overshoots by the backlash and comes back.
func (s *Simulator) plan(from uint32, m Move) []uint32 {
	path := []uint32{from}

	switch {
	case m.Approach == "CW" && m.Target < from && m.Backlash > 0:
		over := s.config.MinPosition
		if m.Target-s.config.MinPosition > m.Backlash {
			over = m.Target - m.Backlash
		}
		if over != m.Target {
			path = append(path, over)
		}
	case m.Approach == "CCW" && m.Target > from && m.Backlash > 0:
		over := s.config.MaxPosition
		if s.config.MaxPosition-m.Target > m.Backlash {
			over = m.Target + m.Backlash
		}
		if over != m.Target {
			path = append(path, over)
		}
	}

	if m.Target != from {
		path = append(path, m.Target)
	}
	return path
}

func (s *Simulator) move(ctx context.Context, m Move) error {
	s.moveMu.Lock()
	defer s.moveMu.Unlock()

	s.mu.Lock()
	m.Path = s.plan(s.config.Position, m)
	delay := s.config.StepDelay
	s.inMotion = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inMotion = false
		s.moves = append(s.moves, m)
		s.mu.Unlock()
	}()

	s.logger.Debugf("Moving along %v", m.Path)
	for i := 1; i < len(m.Path); i++ {
		if err := s.travel(ctx, m.Path[i-1], m.Path[i], delay); err != nil {
			return err
		}
	}

	if s.store != nil {
		s.mu.Lock()
		cfg := s.config
		s.mu.Unlock()
		if err := s.store.SetConfig(cfg); err != nil {
			s.logger.Errorf("Failed to save simulator position: %v", err)
		}
	}
	return nil
}

// travel moves one leg, updating the position as it goes.
func (s *Simulator) travel(ctx context.Context, from, to uint32, delay time.Duration) error {
	const tick = 20 * time.Millisecond

	steps := int64(to) - int64(from)
	if steps < 0 {
		steps = -steps
	}
	total := time.Duration(steps) * delay
	started := time.Now()

	for {
		elapsed := time.Since(started)
		if elapsed >= total {
			s.SetPosition(to)
			return nil
		}

		done := uint32(int64(elapsed / delay))
		if to > from {
			s.SetPosition(from + done)
		} else {
			s.SetPosition(from - done)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(tick, total-elapsed)):
		}
	}
}
