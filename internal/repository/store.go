// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package repository

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/pvrmirror/pvrmirror/internal/metrics"
)

// ErrNotFound is returned when a keyed lookup misses.
var ErrNotFound = errors.New("repository: not found")

// store is the shared prefix-scoped JSON store. Concrete stores embed it and
// add entity-specific queries.
type store[T any] struct {
	db     *badger.DB
	prefix string
	entity string // metrics label, derived from the prefix
	key    func(*T) string
}

func newStore[T any](db *badger.DB, prefix string, key func(*T) string) store[T] {
	return store[T]{
		db:     db,
		prefix: prefix,
		entity: prefix[:len(prefix)-1],
		key:    key,
	}
}

// Put inserts or replaces one entity.
func (s *store[T]) Put(v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.entity, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(s.prefix+s.key(v)), data)
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", s.entity, err)
	}
	metrics.StoreWrites.WithLabelValues(s.entity, "put").Inc()
	return nil
}

// PutBatch writes many entities in one write batch.
func (s *store[T]) PutBatch(vs []*T) error {
	if len(vs) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, v := range vs {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", s.entity, err)
		}
		if err := wb.Set([]byte(s.prefix+s.key(v)), data); err != nil {
			return fmt.Errorf("batch set %s: %w", s.entity, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("batch flush %s: %w", s.entity, err)
	}
	metrics.StoreWrites.WithLabelValues(s.entity, "batch").Add(float64(len(vs)))
	return nil
}

// get fetches one entity by its key suffix.
func (s *store[T]) get(suffix string) (*T, error) {
	var v T
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(s.prefix + suffix))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", s.entity, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// All returns every entity under the prefix in key order.
func (s *store[T]) All() ([]*T, error) {
	var out []*T
	err := s.db.View(func(txn *badger.Txn) error {
		return s.scan(txn, s.prefix, func(v *T) error {
			out = append(out, v)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// scan iterates a key range, decoding each value.
func (s *store[T]) scan(txn *badger.Txn, prefix string, fn func(*T) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		var v T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			return fmt.Errorf("decode %s: %w", s.entity, err)
		}
		if err := fn(&v); err != nil {
			return err
		}
	}
	return nil
}

// delete removes one entity by its key suffix. Missing keys are not an error.
func (s *store[T]) delete(suffix string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(s.prefix + suffix))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", s.entity, err)
	}
	metrics.StoreWrites.WithLabelValues(s.entity, "delete").Inc()
	return nil
}

// RemoveAll drops every entity under the prefix.
func (s *store[T]) RemoveAll() error {
	if err := s.deletePrefix(s.prefix); err != nil {
		return err
	}
	metrics.StoreWrites.WithLabelValues(s.entity, "delete_all").Inc()
	return nil
}

// deletePrefix collects the keys in a read pass, then deletes in a write
// batch; Badger transactions cap their size, a batch does not.
func (s *store[T]) deletePrefix(prefix string) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan %s keys: %w", s.entity, err)
	}
	if len(keys) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			return fmt.Errorf("batch delete %s: %w", s.entity, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush %s deletes: %w", s.entity, err)
	}
	return nil
}

// Count returns the number of entities under the prefix.
func (s *store[T]) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(s.prefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.entity, err)
	}
	return n, nil
}
