package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/poolvault-go/revshare"
	"github.com/bitfsorg/poolvault-go/service"
)

var (
	bucketVault    = []byte("vault")
	bucketRequests = []byte("requests")

	keySnapshot = []byte("snapshot")
)

// openTimeout bounds the wait for another process's lock on the database file.
const openTimeout = time.Second

// BoltStore persists the vault ledger in a bbolt database.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	return openBolt(dbPath, false)
}

// OpenBoltStoreReadOnly opens an existing database without write access.
func OpenBoltStoreReadOnly(dbPath string) (*BoltStore, error) {
	return openBolt(dbPath, true)
}

func openBolt(dbPath string, readOnly bool) (*BoltStore, error) {
	if !readOnly {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	} else if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{ReadOnly: readOnly, Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt db: %w", err)
	}
	if readOnly {
		return &BoltStore{db: db}, nil
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVault, bucketRequests} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

// LoadSnapshot implements Store.
func (s *BoltStore) LoadSnapshot() (*Snapshot, error) {
	var snap *Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVault)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get(keySnapshot)
		if data == nil {
			return ErrNotFound
		}
		var err error
		snap, err = decodeSnapshot(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Commit implements Store. The snapshot and all requests are written in one
// transaction.
func (s *BoltStore) Commit(snap *Snapshot, requests ...*revshare.Request) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketVault).Put(keySnapshot, data); err != nil {
			return fmt.Errorf("boltstore: put snapshot: %w", err)
		}
		rb := tx.Bucket(bucketRequests)
		for _, r := range requests {
			rd, err := encodeRequest(r)
			if err != nil {
				return err
			}
			if err := rb.Put([]byte(r.ID), rd); err != nil {
				return fmt.Errorf("boltstore: put request %s: %w", r.ID, err)
			}
		}
		return nil
	})
}

// GetRequest implements Store.
func (s *BoltStore) GetRequest(id service.RequestID) (*revshare.Request, error) {
	var req *revshare.Request
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRequests)
		if b == nil {
			return ErrNotFound
		}
		data := b.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		var err error
		req, err = decodeRequest(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests implements Store.
func (s *BoltStore) ListRequests() ([]*revshare.Request, error) {
	var out []*revshare.Request
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketRequests)
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			r, err := decodeRequest(v)
			if err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortRequests(out)
	return out, nil
}
