// Package bolt provides a bbolt-backed persistent implementation of kv.Store.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/vvbbnn00/onedrive-index/kv"
)

const sweepInterval = 5 * time.Minute

var bucketName = []byte("kv")

// record is the stored representation of one key. ExpiresAt is unix
// nanoseconds; 0 means no expiry.
type record struct {
	Value     string `json:"v"`
	ExpiresAt int64  `json:"exp,omitempty"`
}

func (r record) expired(now time.Time) bool {
	return r.ExpiresAt != 0 && now.UnixNano() > r.ExpiresAt
}

// Store implements kv.Store backed by a bbolt database. Expired entries are
// ignored on read and removed by a background sweep.
type Store struct {
	db       *bbolt.DB
	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ kv.Store = (*Store)(nil)

// NewStore returns a Store backed by the given bbolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating kv bucket: %w", err)
	}
	s := &Store{db: db, stopCh: make(chan struct{})}
	go s.sweepLoop()
	return s, nil
}

// NewStoreFromFile opens a bbolt database at the given path and returns a
// new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := NewStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	var rec record
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketName).Get([]byte(key))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decoding record %q: %w", key, err)
		}
		found = true
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if !found || rec.expired(time.Now()) {
		return "", false, nil
	}
	return rec.Value, true, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	rec := record{Value: value}
	if ttl > 0 {
		rec.ExpiresAt = time.Now().Add(ttl).UnixNano()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), data)
	})
}

func (s *Store) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("decoding record %q: %w", key, err)
		}
		if rec.expired(time.Now()) {
			return b.Delete([]byte(key))
		}
		if ttl > 0 {
			rec.ExpiresAt = time.Now().Add(ttl).UnixNano()
		} else {
			rec.ExpiresAt = 0
		}
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), updated)
	})
}

// Close stops the background sweep and closes the underlying database.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return s.db.Close()
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepExpired()
		}
	}
}

func (s *Store) sweepExpired() {
	now := time.Now()
	_ = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				// Corrupt entry, remove it.
				if err := c.Delete(); err != nil {
					return err
				}
				continue
			}
			if rec.expired(now) {
				if err := c.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
