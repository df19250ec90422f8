package permission

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketPermission = []byte("permission")
	keyGranted       = []byte("granted")
)

// Store persists the permission-granted flag across app restarts. It is the
// local-storage analog: a single boolean, written once on the false->true
// transition. Denied is never persisted.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (creating if needed) the state database at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("permission: create state dir: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("permission: open state db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPermission)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("permission: create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

// Granted reports whether the granted flag has been persisted.
func (s *Store) Granted() bool {
	var granted bool
	s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPermission).Get(keyGranted)
		granted = string(v) == "true"
		return nil
	})
	return granted
}

// SetGranted persists the granted flag. Idempotent.
func (s *Store) SetGranted() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPermission).Put(keyGranted, []byte("true"))
	})
	if err != nil {
		return fmt.Errorf("permission: persist granted flag: %w", err)
	}
	return nil
}

// Close closes the state database.
func (s *Store) Close() error {
	return s.db.Close()
}
