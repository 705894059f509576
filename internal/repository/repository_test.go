// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package repository

import (
	"errors"
	"testing"

	"github.com/pvrmirror/pvrmirror/internal/models"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func TestChannelStoreCRUD(t *testing.T) {
	repo := newTestRepo(t)

	ch := &models.Channel{ID: 4, Number: 101, Name: "BBC One"}
	if err := repo.Channels.Put(ch); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := repo.Channels.GetByID(4)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "BBC One" || got.Number != 101 {
		t.Errorf("got %+v", got)
	}

	got.Name = "BBC One HD"
	if err := repo.Channels.Put(got); err != nil {
		t.Fatalf("Put update: %v", err)
	}
	got, _ = repo.Channels.GetByID(4)
	if got.Name != "BBC One HD" {
		t.Errorf("update lost: %+v", got)
	}

	if err := repo.Channels.RemoveByID(4); err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	if _, err := repo.Channels.GetByID(4); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestChannelStoreBatchAndOrder(t *testing.T) {
	repo := newTestRepo(t)

	batch := []*models.Channel{
		{ID: 30, Name: "c"},
		{ID: 2, Name: "a"},
		{ID: 100, Name: "d"},
		{ID: 9, Name: "b"},
	}
	if err := repo.Channels.PutBatch(batch); err != nil {
		t.Fatalf("PutBatch: %v", err)
	}

	all, err := repo.Channels.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("len(All) = %d, want 4", len(all))
	}
	// Zero-padded keys keep numeric id order under iteration.
	wantOrder := []int64{2, 9, 30, 100}
	for i, ch := range all {
		if ch.ID != wantOrder[i] {
			t.Errorf("All[%d].ID = %d, want %d", i, ch.ID, wantOrder[i])
		}
	}

	n, err := repo.Channels.Count()
	if err != nil || n != 4 {
		t.Errorf("Count = (%d, %v), want 4", n, err)
	}

	if err := repo.Channels.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if n, _ := repo.Channels.Count(); n != 0 {
		t.Errorf("Count after RemoveAll = %d", n)
	}
}

func TestTagAndChannelStore(t *testing.T) {
	repo := newTestRepo(t)

	rows := []*models.TagAndChannel{
		{TagID: 1, ChannelID: 10},
		{TagID: 1, ChannelID: 11},
		{TagID: 2, ChannelID: 10},
	}
	if err := repo.TagChannels.PutBatch(rows); err != nil {
		t.Fatalf("PutBatch: %v", err)
	}

	ids, err := repo.TagChannels.GetChannelIDs(1)
	if err != nil {
		t.Fatalf("GetChannelIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 10 || ids[1] != 11 {
		t.Errorf("tag 1 members = %v, want [10 11]", ids)
	}

	if err := repo.TagChannels.RemoveByTagID(1); err != nil {
		t.Fatalf("RemoveByTagID: %v", err)
	}
	ids, _ = repo.TagChannels.GetChannelIDs(1)
	if len(ids) != 0 {
		t.Errorf("tag 1 members after delete = %v", ids)
	}
	ids, _ = repo.TagChannels.GetChannelIDs(2)
	if len(ids) != 1 || ids[0] != 10 {
		t.Errorf("tag 2 members = %v, want [10]", ids)
	}
}

func TestSeriesAndTimerStores(t *testing.T) {
	repo := newTestRepo(t)

	sr := &models.SeriesRecording{ID: "au-1", Title: "Doctor Who"}
	if err := repo.SeriesRecordings.Put(sr); err != nil {
		t.Fatalf("Put series: %v", err)
	}
	got, err := repo.SeriesRecordings.GetByID("au-1")
	if err != nil || got.Title != "Doctor Who" {
		t.Errorf("series = (%+v, %v)", got, err)
	}

	tr := &models.TimerRecording{ID: "tr-1", Name: "slot"}
	if err := repo.TimerRecordings.Put(tr); err != nil {
		t.Fatalf("Put timer: %v", err)
	}
	if err := repo.TimerRecordings.RemoveByID("tr-1"); err != nil {
		t.Fatalf("Remove timer: %v", err)
	}
	if _, err := repo.TimerRecordings.GetByID("tr-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("timer err = %v, want ErrNotFound", err)
	}
}

func TestProfileStoreReplaceAll(t *testing.T) {
	repo := newTestRepo(t)

	first := []*models.ServerProfile{
		{UUID: "a", Name: "pass", Type: models.ProfileTypePlayback},
		{UUID: "b", Name: "matroska", Type: models.ProfileTypePlayback},
	}
	if err := repo.Profiles.ReplaceAll(models.ProfileTypePlayback, first); err != nil {
		t.Fatalf("ReplaceAll: %v", err)
	}

	dvr := []*models.ServerProfile{{UUID: "c", Name: "default", Type: models.ProfileTypeRecording}}
	if err := repo.Profiles.ReplaceAll(models.ProfileTypeRecording, dvr); err != nil {
		t.Fatalf("ReplaceAll dvr: %v", err)
	}

	second := []*models.ServerProfile{{UUID: "d", Name: "webtv", Type: models.ProfileTypePlayback}}
	if err := repo.Profiles.ReplaceAll(models.ProfileTypePlayback, second); err != nil {
		t.Fatalf("ReplaceAll again: %v", err)
	}

	playback, err := repo.Profiles.GetByType(models.ProfileTypePlayback)
	if err != nil {
		t.Fatalf("GetByType: %v", err)
	}
	if len(playback) != 1 || playback[0].UUID != "d" {
		t.Errorf("playback catalog = %+v, want just d", playback)
	}
	recording, _ := repo.Profiles.GetByType(models.ProfileTypeRecording)
	if len(recording) != 1 || recording[0].UUID != "c" {
		t.Errorf("recording catalog survived wrong replace: %+v", recording)
	}
}

func TestStateStoreDefaults(t *testing.T) {
	repo := newTestRepo(t)

	ts, err := repo.State.LastUpdate()
	if err != nil || ts != 0 {
		t.Errorf("LastUpdate fresh = (%d, %v), want 0", ts, err)
	}
	full, err := repo.State.FullSyncRequired()
	if err != nil || !full {
		t.Errorf("FullSyncRequired fresh = (%v, %v), want true", full, err)
	}

	if err := repo.State.SetLastUpdate(1700000000); err != nil {
		t.Fatalf("SetLastUpdate: %v", err)
	}
	if err := repo.State.SetFullSyncRequired(false); err != nil {
		t.Fatalf("SetFullSyncRequired: %v", err)
	}

	ts, _ = repo.State.LastUpdate()
	if ts != 1700000000 {
		t.Errorf("LastUpdate = %d", ts)
	}
	full, _ = repo.State.FullSyncRequired()
	if full {
		t.Error("FullSyncRequired still true")
	}

	status := &models.ServerStatus{ServerName: "Tvheadend", ProtocolVersion: 34}
	if err := repo.State.SetServerStatus(status); err != nil {
		t.Fatalf("SetServerStatus: %v", err)
	}
	got, err := repo.State.ServerStatus()
	if err != nil || got.ServerName != "Tvheadend" || got.ProtocolVersion != 34 {
		t.Errorf("ServerStatus = (%+v, %v)", got, err)
	}
}
