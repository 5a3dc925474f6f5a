// Package boltstore persists the custom statistic collection in a bbolt file, one key per
// statistic.
package boltstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"topper.blackblock.rocks/internal/persistence/snapshot"
)

var (
	bucketMeta       = []byte("meta")
	bucketStatistics = []byte("statistics")

	keyVersion = []byte("version")
	keyWorldID = []byte("world_id")
	keySavedAt = []byte("saved_at")
)

// Store wraps a bbolt database.
type Store struct {
	bolt    *bbolt.DB
	worldID string
}

// Open opens or creates a bbolt database file and ensures the buckets exist.
func Open(path, worldID string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketStatistics} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}
	return &Store{bolt: db, worldID: worldID}, nil
}

func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

func (s *Store) Location() string { return s.Path() }

// ReadSnapshot returns every stored value as a raw record. Values are not decoded here.
func (s *Store) ReadSnapshot() (snapshot.StatisticsV1, error) {
	doc := snapshot.StatisticsV1{Header: snapshot.Header{Version: snapshot.Version, WorldID: s.worldID}}
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		if m := tx.Bucket(bucketMeta); m != nil {
			if v := m.Get(keyWorldID); v != nil {
				doc.Header.WorldID = string(v)
			}
			if v := m.Get(keySavedAt); v != nil {
				doc.Header.SavedAt = string(v)
			}
		}
		return tx.Bucket(bucketStatistics).ForEach(func(_, v []byte) error {
			doc.Records = append(doc.Records, json.RawMessage(append([]byte(nil), v...)))
			return nil
		})
	})
	if err != nil {
		return doc, fmt.Errorf("boltstore: read: %w", err)
	}
	doc.Header.Records = len(doc.Records)
	return doc, nil
}

// WriteSnapshot replaces the statistics bucket with doc in a single transaction.
func (s *Store) WriteSnapshot(doc snapshot.StatisticsV1) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketStatistics); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("boltstore: reset bucket: %w", err)
		}
		b, err := tx.CreateBucket(bucketStatistics)
		if err != nil {
			return fmt.Errorf("boltstore: reset bucket: %w", err)
		}
		for i, raw := range doc.Records {
			var head struct {
				Key string `json:"key"`
			}
			if err := json.Unmarshal(raw, &head); err != nil || head.Key == "" {
				return fmt.Errorf("boltstore: record %d has no key", i)
			}
			if err := b.Put([]byte(head.Key), raw); err != nil {
				return err
			}
		}

		m := tx.Bucket(bucketMeta)
		worldID := doc.Header.WorldID
		if worldID == "" {
			worldID = s.worldID
		}
		savedAt := doc.Header.SavedAt
		if savedAt == "" {
			savedAt = time.Now().UTC().Format(time.RFC3339Nano)
		}
		if err := m.Put(keyVersion, []byte(fmt.Sprint(snapshot.Version))); err != nil {
			return err
		}
		if err := m.Put(keyWorldID, []byte(worldID)); err != nil {
			return err
		}
		return m.Put(keySavedAt, []byte(savedAt))
	})
}

// CopyTo writes a consistent copy of the database to dst from a read transaction.
func (s *Store) CopyTo(dst string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.CopyFile(dst, 0o600)
	})
}
