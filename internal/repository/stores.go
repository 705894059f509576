// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package repository

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/pvrmirror/pvrmirror/internal/models"
)

// Numeric ids are zero-padded so lexicographic key order matches numeric
// order inside a prefix.
func numKey(id int64) string { return fmt.Sprintf("%020d", id) }

func channelKey(c *models.Channel) string     { return numKey(c.ID) }
func tagKey(t *models.ChannelTag) string      { return numKey(t.ID) }
func recordingKey(r *models.Recording) string { return numKey(r.ID) }

func tagChannelKey(tc *models.TagAndChannel) string {
	return numKey(tc.TagID) + ":" + numKey(tc.ChannelID)
}

func seriesKey(s *models.SeriesRecording) string { return s.ID }
func timerKey(t *models.TimerRecording) string   { return t.ID }

func programKey(p *models.Program) string {
	return numKey(p.ChannelID) + ":" + numKey(p.ID)
}

func profileKey(p *models.ServerProfile) string {
	return p.Type + ":" + p.UUID
}

// ChannelStore persists channels keyed by channel id.
type ChannelStore struct{ store[models.Channel] }

// GetByID fetches one channel, ErrNotFound when absent.
func (s *ChannelStore) GetByID(id int64) (*models.Channel, error) {
	return s.get(numKey(id))
}

// RemoveByID deletes one channel; missing ids are a no-op.
func (s *ChannelStore) RemoveByID(id int64) error {
	return s.delete(numKey(id))
}

// TagStore persists channel tags keyed by tag id.
type TagStore struct{ store[models.ChannelTag] }

func (s *TagStore) GetByID(id int64) (*models.ChannelTag, error) {
	return s.get(numKey(id))
}

func (s *TagStore) RemoveByID(id int64) error {
	return s.delete(numKey(id))
}

// TagAndChannelStore persists tag membership join rows keyed by (tag,
// channel). Membership is rebuilt wholesale per tag, so the only targeted
// delete is by tag id.
type TagAndChannelStore struct{ store[models.TagAndChannel] }

// RemoveByTagID drops every join row of one tag.
func (s *TagAndChannelStore) RemoveByTagID(tagID int64) error {
	return s.deletePrefix(s.prefix + numKey(tagID) + ":")
}

// GetChannelIDs returns the member channel ids of one tag in id order.
func (s *TagAndChannelStore) GetChannelIDs(tagID int64) ([]int64, error) {
	var ids []int64
	err := s.db.View(func(txn *badger.Txn) error {
		return s.scan(txn, s.prefix+numKey(tagID)+":", func(row *models.TagAndChannel) error {
			ids = append(ids, row.ChannelID)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RecordingStore persists DVR entries keyed by entry id.
type RecordingStore struct{ store[models.Recording] }

func (s *RecordingStore) GetByID(id int64) (*models.Recording, error) {
	return s.get(numKey(id))
}

func (s *RecordingStore) RemoveByID(id int64) error {
	return s.delete(numKey(id))
}

// SeriesRecordingStore persists recurring event rules keyed by backend uuid.
type SeriesRecordingStore struct{ store[models.SeriesRecording] }

func (s *SeriesRecordingStore) GetByID(id string) (*models.SeriesRecording, error) {
	return s.get(id)
}

func (s *SeriesRecordingStore) RemoveByID(id string) error {
	return s.delete(id)
}

// TimerRecordingStore persists recurring time rules keyed by backend uuid.
type TimerRecordingStore struct{ store[models.TimerRecording] }

func (s *TimerRecordingStore) GetByID(id string) (*models.TimerRecording, error) {
	return s.get(id)
}

func (s *TimerRecordingStore) RemoveByID(id string) error {
	return s.delete(id)
}

// ProgramStore persists guide events keyed by (channel, event).
type ProgramStore struct{ store[models.Program] }

func (s *ProgramStore) GetByID(channelID, eventID int64) (*models.Program, error) {
	return s.get(numKey(channelID) + ":" + numKey(eventID))
}

func (s *ProgramStore) RemoveByID(channelID, eventID int64) error {
	return s.delete(numKey(channelID) + ":" + numKey(eventID))
}

// GetByChannel returns every stored event of one channel.
func (s *ProgramStore) GetByChannel(channelID int64) ([]*models.Program, error) {
	var out []*models.Program
	err := s.db.View(func(txn *badger.Txn) error {
		return s.scan(txn, s.prefix+numKey(channelID)+":", func(p *models.Program) error {
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetLastByChannel returns the channel's event with the latest start time,
// the continuation point for paged guide fetches. ErrNotFound when the
// channel has no stored events.
func (s *ProgramStore) GetLastByChannel(channelID int64) (*models.Program, error) {
	var last *models.Program
	progs, err := s.GetByChannel(channelID)
	if err != nil {
		return nil, err
	}
	for _, p := range progs {
		if last == nil || p.Start > last.Start {
			last = p
		}
	}
	if last == nil {
		return nil, ErrNotFound
	}
	return last, nil
}

// GetByEventID finds an event without knowing its channel; eventUpdate and
// eventDelete notifications carry only the event id. Full scan, but these
// arrive one at a time outside the initial load.
func (s *ProgramStore) GetByEventID(eventID int64) (*models.Program, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.ID == eventID {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// RemoveByEventID deletes an event by id alone; missing ids are a no-op.
func (s *ProgramStore) RemoveByEventID(eventID int64) error {
	p, err := s.GetByEventID(eventID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.RemoveByID(p.ChannelID, p.ID)
}

// RemoveOlderThan deletes events that ended before cutoff (unix seconds) and
// returns how many were removed.
func (s *ProgramStore) RemoveOlderThan(cutoff int64) (int, error) {
	var doomed []*models.Program
	all, err := s.All()
	if err != nil {
		return 0, err
	}
	for _, p := range all {
		if p.Stop < cutoff {
			doomed = append(doomed, p)
		}
	}
	for _, p := range doomed {
		if err := s.RemoveByID(p.ChannelID, p.ID); err != nil {
			return 0, err
		}
	}
	return len(doomed), nil
}

// ProfileStore persists the backend's streaming and DVR profile catalogs.
type ProfileStore struct{ store[models.ServerProfile] }

// GetByType returns the catalog of one profile kind.
func (s *ProfileStore) GetByType(profileType string) ([]*models.ServerProfile, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	var out []*models.ServerProfile
	for _, p := range all {
		if p.Type == profileType {
			out = append(out, p)
		}
	}
	return out, nil
}

// ReplaceAll swaps one kind's catalog for the given set.
func (s *ProfileStore) ReplaceAll(profileType string, profiles []*models.ServerProfile) error {
	if err := s.deletePrefix(s.prefix + profileType + ":"); err != nil {
		return err
	}
	return s.PutBatch(profiles)
}
