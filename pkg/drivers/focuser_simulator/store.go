package focuser_simulator

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	bucket = "simulator"

	defaultMinPosition = 0
	defaultMaxPosition = 100000
	defaultPosition    = 50000
	defaultStepDelay   = 50 * time.Microsecond

	configKey = "focuser_config"
)

type Config struct {
	MinPosition uint32        `json:"min_position"`
	MaxPosition uint32        `json:"max_position"`
	Position    uint32        `json:"position"`
	StepDelay   time.Duration `json:"step_delay"` // travel time per step
}

func DefaultConfig() Config {
	return Config{
		MinPosition: defaultMinPosition,
		MaxPosition: defaultMaxPosition,
		Position:    defaultPosition,
		StepDelay:   defaultStepDelay,
	}
}

func (c Config) Validate() error {
	if c.MinPosition > c.MaxPosition {
		return fmt.Errorf("min position %d above max position %d", c.MinPosition, c.MaxPosition)
	}
	if c.Position < c.MinPosition || c.Position > c.MaxPosition {
		return fmt.Errorf("position %d outside [%d, %d]", c.Position, c.MinPosition, c.MaxPosition)
	}
	if c.StepDelay < 0 {
		return fmt.Errorf("negative step delay %v", c.StepDelay)
	}
	return nil
}

// store keeps the simulated focuser's range and last position so that the
// simulator resumes where it stopped.
type store struct {
	db *bolt.DB
}

func NewStore(db *bolt.DB, defaults Config) (*store, error) {
	st := store{db: db}

	if err := st.setDefaults(defaults); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *store) setDefaults(defaults Config) error {
	if _, err := s.GetConfig(); err != nil {
		log.Infof("Setting default simulator config")
		return s.SetConfig(defaults)
	}
	return nil
}

// SetConfig saves the simulator configuration as a json string in the database.
func (s *store) SetConfig(cfg Config) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}

		value, _ := json.Marshal(cfg)
		return b.Put([]byte(configKey), value)
	})
}

func (s *store) GetConfig() (Config, error) {
	var cfg Config

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		value := b.Get([]byte(configKey))
		if value == nil {
			return fmt.Errorf("key %s not found", configKey)
		}

		return json.Unmarshal(value, &cfg)
	})

	return cfg, err
}
