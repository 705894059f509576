// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package sync

import (
	"context"

	"github.com/pvrmirror/pvrmirror/internal/htsp"
	"github.com/pvrmirror/pvrmirror/internal/models"
)

// Conn is the connection surface the engine needs. *htsp.Connection
// satisfies it; tests substitute a scripted fake.
type Conn interface {
	Send(msg *htsp.Message) error
	Invoke(ctx context.Context, req *htsp.Message) (*htsp.Message, error)
	FetchFile(ctx context.Context, path string) ([]byte, error)
}

// ChannelStore persists channels.
type ChannelStore interface {
	Put(*models.Channel) error
	PutBatch([]*models.Channel) error
	GetByID(int64) (*models.Channel, error)
	RemoveByID(int64) error
	Count() (int, error)
}

// TagStore persists channel tags.
type TagStore interface {
	Put(*models.ChannelTag) error
	GetByID(int64) (*models.ChannelTag, error)
	RemoveByID(int64) error
	Count() (int, error)
}

// TagChannelStore persists tag membership join rows.
type TagChannelStore interface {
	PutBatch([]*models.TagAndChannel) error
	RemoveByTagID(int64) error
}

// RecordingStore persists DVR entries.
type RecordingStore interface {
	Put(*models.Recording) error
	PutBatch([]*models.Recording) error
	GetByID(int64) (*models.Recording, error)
	RemoveByID(int64) error
	RemoveAll() error
	Count() (int, error)
}

// SeriesRecordingStore persists recurring event rules.
type SeriesRecordingStore interface {
	Put(*models.SeriesRecording) error
	GetByID(string) (*models.SeriesRecording, error)
	RemoveByID(string) error
}

// TimerRecordingStore persists recurring time rules.
type TimerRecordingStore interface {
	Put(*models.TimerRecording) error
	GetByID(string) (*models.TimerRecording, error)
	RemoveByID(string) error
}

// ProgramStore persists guide events.
type ProgramStore interface {
	Put(*models.Program) error
	PutBatch([]*models.Program) error
	GetByID(channelID, eventID int64) (*models.Program, error)
	GetByEventID(eventID int64) (*models.Program, error)
	GetLastByChannel(channelID int64) (*models.Program, error)
	RemoveByID(channelID, eventID int64) error
	RemoveByEventID(eventID int64) error
	RemoveOlderThan(cutoff int64) (int, error)
	Count() (int, error)
}

// ProfileStore persists the backend's profile catalogs.
type ProfileStore interface {
	ReplaceAll(profileType string, profiles []*models.ServerProfile) error
}

// StateStore persists the engine's bookkeeping.
type StateStore interface {
	LastUpdate() (int64, error)
	SetLastUpdate(int64) error
	FullSyncRequired() (bool, error)
	SetFullSyncRequired(bool) error
	ServerStatus() (*models.ServerStatus, error)
	SetServerStatus(*models.ServerStatus) error
	SetSyncProgress(*models.SyncProgress) error
}

// Store bundles the per-entity stores the engine writes to. The repository
// package's concrete stores satisfy these interfaces directly.
type Store struct {
	Channels         ChannelStore
	Tags             TagStore
	TagChannels      TagChannelStore
	Recordings       RecordingStore
	SeriesRecordings SeriesRecordingStore
	TimerRecordings  TimerRecordingStore
	Programs         ProgramStore
	Profiles         ProfileStore
	State            StateStore
}
