// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package repository persists the mirrored PVR state in BadgerDB. Each entity
// kind lives under its own key prefix; values are JSON. All stores are safe
// for concurrent use.
package repository

import (
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/pvrmirror/pvrmirror/internal/logging"
	"github.com/pvrmirror/pvrmirror/internal/models"
)

// Repository aggregates the entity stores over one Badger instance.
type Repository struct {
	db *badger.DB

	Channels         *ChannelStore
	Tags             *TagStore
	TagChannels      *TagAndChannelStore
	Recordings       *RecordingStore
	SeriesRecordings *SeriesRecordingStore
	TimerRecordings  *TimerRecordingStore
	Programs         *ProgramStore
	Profiles         *ProfileStore
	State            *StateStore
}

// Open opens (or creates) the database at path and wires the stores.
func Open(path string) (*Repository, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(badgerLogger{}).
		WithCompactL0OnClose(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return NewRepository(db), nil
}

// OpenInMemory opens an ephemeral database, used by tests.
func OpenInMemory() (*Repository, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return NewRepository(db), nil
}

// NewRepository wires the stores over an already open database.
func NewRepository(db *badger.DB) *Repository {
	return &Repository{
		db:               db,
		Channels:         &ChannelStore{newStore[models.Channel](db, "channel:", channelKey)},
		Tags:             &TagStore{newStore[models.ChannelTag](db, "tag:", tagKey)},
		TagChannels:      &TagAndChannelStore{newStore[models.TagAndChannel](db, "tagchannel:", tagChannelKey)},
		Recordings:       &RecordingStore{newStore[models.Recording](db, "recording:", recordingKey)},
		SeriesRecordings: &SeriesRecordingStore{newStore[models.SeriesRecording](db, "autorec:", seriesKey)},
		TimerRecordings:  &TimerRecordingStore{newStore[models.TimerRecording](db, "timerec:", timerKey)},
		Programs:         &ProgramStore{newStore[models.Program](db, "program:", programKey)},
		Profiles:         &ProfileStore{newStore[models.ServerProfile](db, "profile:", profileKey)},
		State:            &StateStore{db: db},
	}
}

// DB exposes the underlying database for maintenance tasks.
func (r *Repository) DB() *badger.DB { return r.db }

// Close flushes and closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// RunGC triggers one round of Badger value log garbage collection. Called
// periodically by the maintenance service; ErrNoRewrite is a clean no-op.
func (r *Repository) RunGC() error {
	err := r.db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("badger gc: %w", err)
	}
	return nil
}

// badgerLogger routes Badger's internal logging through zerolog at debug
// level; Badger is chatty and its messages are rarely actionable.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...any) {
	logging.Error().Msgf("badger: "+strings.TrimSpace(format), args...)
}

func (badgerLogger) Warningf(format string, args ...any) {
	logging.Warn().Msgf("badger: "+strings.TrimSpace(format), args...)
}

func (badgerLogger) Infof(format string, args ...any) {
	logging.Debug().Msgf("badger: "+strings.TrimSpace(format), args...)
}

func (badgerLogger) Debugf(format string, args ...any) {
	logging.Debug().Msgf("badger: "+strings.TrimSpace(format), args...)
}
