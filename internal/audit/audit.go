// SPDX-License-Identifier: LGPL-2.1-only

// Package audit records the commit audit trail: every transaction attempt,
// independent of the per-datastore XML files the persist package owns.
// Losing this trail never affects correctness; it is observability, not source of
// truth.
package audit

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("transactions")

// Store is a bbolt-backed append-only log of commit attempts.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o640, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record is one entry of the commit audit trail.
type Record struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	Target    string        `json:"target"`
	Phase     string        `json:"phase"`
	Outcome   string        `json:"outcome"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Append writes one record, keyed by its transaction ID so later lookups
// by ID are direct.
func (s *Store) Append(r Record) error {
	if s == nil || s.db == nil {
		return nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(r.ID), data)
	})
}

// Get returns the recorded outcome for a transaction ID, used by the CLI's
// "show commit log" equivalent and by tests.
func (s *Store) Get(id string) (*Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("audit store not open")
	}
	var r Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		v := b.Get([]byte(id))
		if v == nil {
			return fmt.Errorf("no audit record for %s", id)
		}
		return json.Unmarshal(v, &r)
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Recent returns up to limit most-recently-appended records. bbolt keeps
// keys sorted lexically, not by insertion time, so we scan the whole
// bucket and sort by StartedAt; commit audit trails are expected to stay
// small enough (thousands of entries) for this to be cheap relative to a
// commit itself.
func (s *Store) Recent(limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var all []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.ForEach(func(k, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			all = append(all, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for i := 1; i < len(all); i++ {
		for j := i; j > 0 && all[j].StartedAt.After(all[j-1].StartedAt); j-- {
			all[j], all[j-1] = all[j-1], all[j]
		}
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
