package wallet

import (
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var ErrSecretNotFound = errors.New("secret not found")

// SecretStore is the durable key-value store behind the wallet slots.
type SecretStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	// PutAll writes every entry or none of them.
	PutAll(entries map[string][]byte) error
	Delete(key string) error
	Close() error
}

// Slot keys.
const (
	slotPrimary      = "wallet/primary"
	slotBackup       = "wallet/backup"
	slotPassword     = "wallet/password_hash"
	slotLastBackup   = "wallet/last_backup"
	slotIntegrity    = "wallet/integrity"
	slotDeviceKey    = "wallet/device_key"
	slotCustomTokens = "wallet/custom_tokens"
)

// PebbleStore keeps secrets in a local pebble database.
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (or creates) the database in dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

// OpenMemPebbleStore returns a store backed by fs, typically vfs.NewMem().
// Reopening on the same fs sees earlier writes.
func OpenMemPebbleStore(fs vfs.FS) (*PebbleStore, error) {
	db, err := pebble.Open("wallet", &pebble.Options{FS: fs})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(key string) ([]byte, error) {
	value, closer, err := s.db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// value is only valid until closer is closed
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *PebbleStore) Put(key string, value []byte) error {
	return s.db.Set([]byte(key), value, pebble.Sync)
}

func (s *PebbleStore) PutAll(entries map[string][]byte) error {
	b := s.db.NewBatch()
	defer b.Close()
	for key, value := range entries {
		if err := b.Set([]byte(key), value, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (s *PebbleStore) Delete(key string) error {
	return s.db.Delete([]byte(key), pebble.Sync)
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
