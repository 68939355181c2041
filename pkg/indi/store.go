package indi

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const bucket = "indi"

// Store keeps device configurations in a bbolt database, one JSON document
// per device.
type Store struct {
	db *bolt.DB
}

func NewStore(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %v", bucket, err)
	}
	return &Store{db: db}, nil
}

// SaveConfig replaces the saved configuration of a device.
func (s *Store) SaveConfig(device string, cfg Config) error {
	value, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}
		return b.Put([]byte(device), value)
	})
}

// LoadConfig returns the saved configuration of a device. A device that never
// saved anything gets an empty Config.
func (s *Store) LoadConfig(device string) (Config, error) {
	cfg := make(Config)

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucket)
		}

		value := b.Get([]byte(device))
		if value == nil {
			return nil
		}
		return json.Unmarshal(value, &cfg)
	})

	return cfg, err
}
