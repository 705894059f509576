// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package repository

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/pvrmirror/pvrmirror/internal/models"
)

// State keys. Single values, not prefixed collections.
const (
	stateKeyLastUpdate       = "state:last_update"
	stateKeyFullSyncRequired = "state:full_sync_required"
	stateKeyServerStatus     = "state:server_status"
	stateKeySyncProgress     = "state:sync_progress"
)

// StateStore persists the sync engine's bookkeeping: the incremental-sync
// watermark, the full-resync flag, and the last known server status.
type StateStore struct {
	db *badger.DB
}

// LastUpdate returns the epg watermark (unix seconds) for incremental
// catch-up, 0 when no sync has completed yet.
func (s *StateStore) LastUpdate() (int64, error) {
	v, err := s.getString(stateKeyLastUpdate)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse last update %q: %w", v, err)
	}
	return n, nil
}

// SetLastUpdate advances the incremental-sync watermark.
func (s *StateStore) SetLastUpdate(ts int64) error {
	return s.setString(stateKeyLastUpdate, strconv.FormatInt(ts, 10))
}

// FullSyncRequired reports whether the next connect must replay everything,
// ignoring the watermark. Defaults to true on a fresh database.
func (s *StateStore) FullSyncRequired() (bool, error) {
	v, err := s.getString(stateKeyFullSyncRequired)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

// SetFullSyncRequired flips the full-resync flag.
func (s *StateStore) SetFullSyncRequired(required bool) error {
	v := "0"
	if required {
		v = "1"
	}
	return s.setString(stateKeyFullSyncRequired, v)
}

// ServerStatus returns the persisted backend snapshot, ErrNotFound before the
// first successful handshake.
func (s *StateStore) ServerStatus() (*models.ServerStatus, error) {
	var status models.ServerStatus
	if err := s.getJSON(stateKeyServerStatus, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetServerStatus persists the backend snapshot.
func (s *StateStore) SetServerStatus(status *models.ServerStatus) error {
	return s.setJSON(stateKeyServerStatus, status)
}

// SyncProgress returns the last recorded sync position, ErrNotFound before
// the first sync.
func (s *StateStore) SyncProgress() (*models.SyncProgress, error) {
	var p models.SyncProgress
	if err := s.getJSON(stateKeySyncProgress, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SetSyncProgress persists the sync position.
func (s *StateStore) SetSyncProgress(p *models.SyncProgress) error {
	return s.setJSON(stateKeySyncProgress, p)
}

func (s *StateStore) getString(key string) (string, error) {
	var out string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			out = string(val)
			return nil
		})
	})
	return out, err
}

func (s *StateStore) setString(key, value string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) getJSON(key string, v any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
	})
}

func (s *StateStore) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.setString(key, string(data))
}
