package alpaca

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const (
	bucket          = "alpaca"
	defaultLocation = "Observatory"

	configKey       = "server_config"
	uniqueIDsBucket = "unique_ids"
)

type Config struct {
	Location string `json:"location"`
}

// Store keeps the server settings and the unique IDs handed out to devices.
type Store struct {
	db *bolt.DB
}

func NewStore(db *bolt.DB) (*Store, error) {
	st := Store{db: db}

	if err := st.setDefaults(); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) setDefaults() error {
	if _, err := s.GetConfig(); err != nil {
		log.Infof("Setting default server config")
		return s.SetConfig(Config{Location: defaultLocation})
	}
	return nil
}

// SetConfig saves the server configuration as a json string in the database.
func (s *Store) SetConfig(cfg Config) error {
	if cfg.Location == "" {
		return fmt.Errorf("location cannot be empty")
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}

		value, _ := json.Marshal(cfg)
		return b.Put([]byte(configKey), value)
	})
}

// GetConfig retrieves the server configuration from the database.
func (s *Store) GetConfig() (Config, error) {
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

// UniqueID returns the unique ID of a device, generating it on first use.
// Clients use it to recognize a device across restarts.
func (s *Store) UniqueID(device string) (string, error) {
	var id string

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(bucket))
		if err != nil {
			return err
		}
		ids, err := b.CreateBucketIfNotExists([]byte(uniqueIDsBucket))
		if err != nil {
			return err
		}

		if value := ids.Get([]byte(device)); value != nil {
			id = string(value)
			return nil
		}

		id = uuid.NewString()
		return ids.Put([]byte(device), []byte(id))
	})

	return id, err
}
