// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"testing"
	"time"

	"github.com/pvrmirror/pvrmirror/internal/htsp"
	"github.com/pvrmirror/pvrmirror/internal/models"
	"github.com/pvrmirror/pvrmirror/internal/repository"
)

// fakeConn scripts Invoke replies and records every request.
type fakeConn struct {
	mu       stdsync.Mutex
	requests []*htsp.Message
	handler  func(*htsp.Message) (*htsp.Message, error)
	files    map[string][]byte
}

func (f *fakeConn) Send(msg *htsp.Message) error {
	f.record(msg)
	return nil
}

func (f *fakeConn) Invoke(_ context.Context, req *htsp.Message) (*htsp.Message, error) {
	f.record(req)
	if f.handler == nil {
		return htsp.NewMessage(), nil
	}
	return f.handler(req)
}

func (f *fakeConn) FetchFile(_ context.Context, path string) ([]byte, error) {
	if data, ok := f.files[path]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("no such file %s", path)
}

func (f *fakeConn) record(msg *htsp.Message) {
	f.mu.Lock()
	f.requests = append(f.requests, msg)
	f.mu.Unlock()
}

func (f *fakeConn) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Method()
	}
	return out
}

func newTestStore(t *testing.T) (Store, *repository.Repository) {
	t.Helper()
	repo, err := repository.OpenInMemory()
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return Store{
		Channels:         repo.Channels,
		Tags:             repo.Tags,
		TagChannels:      repo.TagChannels,
		Recordings:       repo.Recordings,
		SeriesRecordings: repo.SeriesRecordings,
		TimerRecordings:  repo.TimerRecordings,
		Programs:         repo.Programs,
		Profiles:         repo.Profiles,
		State:            repo.State,
	}, repo
}

// spyChannelStore records batch sizes on top of the real store.
type spyChannelStore struct {
	ChannelStore
	batches []int
}

func (s *spyChannelStore) PutBatch(vs []*models.Channel) error {
	s.batches = append(s.batches, len(vs))
	return s.ChannelStore.PutBatch(vs)
}

// spyRecordingStore counts RemoveAll calls on top of the real store.
type spyRecordingStore struct {
	RecordingStore
	removeAllCalls int
	batches        []int
}

func (s *spyRecordingStore) RemoveAll() error {
	s.removeAllCalls++
	return s.RecordingStore.RemoveAll()
}

func (s *spyRecordingStore) PutBatch(vs []*models.Recording) error {
	s.batches = append(s.batches, len(vs))
	return s.RecordingStore.PutBatch(vs)
}

func startedEngine(t *testing.T, store Store, conn *fakeConn) *Engine {
	t.Helper()
	e := NewEngine(conn, store, nil, nil, Config{EPG: true, GuideWindow: time.Hour})
	info := &htsp.ServerInfo{Name: "Tvheadend", ProtocolVersion: 34}
	if err := e.Start(context.Background(), info); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e
}

func TestEngineStartFullSyncRequestsGuide(t *testing.T) {
	store, _ := newTestStore(t)
	conn := &fakeConn{}
	startedEngine(t, store, conn)

	if len(conn.requests) != 1 {
		t.Fatalf("requests = %v", conn.methods())
	}
	req := conn.requests[0]
	if req.Method() != "enableAsyncMetadata" {
		t.Fatalf("method = %q", req.Method())
	}
	if req.GetInt64("epg", 0) != 1 {
		t.Error("full sync request is missing epg")
	}
	if !req.Contains("epgMaxTime") || !req.Contains("lastUpdate") {
		t.Error("full sync request is missing guide window fields")
	}
}

func TestEngineStartIncrementalOmitsGuideFields(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Unix(1750000000, 0)
	if err := store.State.SetFullSyncRequired(false); err != nil {
		t.Fatal(err)
	}
	// Watermark well inside the retention window.
	if err := store.State.SetLastUpdate(now.Add(-time.Hour).Unix()); err != nil {
		t.Fatal(err)
	}

	conn := &fakeConn{}
	e := NewEngine(conn, store, nil, nil, Config{EPG: true, GuideWindow: time.Hour})
	e.now = func() time.Time { return now }
	if err := e.Start(context.Background(), &htsp.ServerInfo{ProtocolVersion: 34}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	req := conn.requests[0]
	if req.Contains("epg") || req.Contains("epgMaxTime") {
		t.Errorf("incremental request carries guide fields: %s", req)
	}
}

func TestEngineStartStaleWatermarkForcesFullSync(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Unix(1750000000, 0)
	if err := store.State.SetFullSyncRequired(false); err != nil {
		t.Fatal(err)
	}
	// Thirty days of downtime against a seven day retention.
	if err := store.State.SetLastUpdate(now.Add(-30 * 24 * time.Hour).Unix()); err != nil {
		t.Fatal(err)
	}

	conn := &fakeConn{}
	e := NewEngine(conn, store, nil, nil, Config{
		EPG:            true,
		GuideWindow:    time.Hour,
		GuideRetention: 7 * 24 * time.Hour,
	})
	e.now = func() time.Time { return now }
	if err := e.Start(context.Background(), &htsp.ServerInfo{ProtocolVersion: 34}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	req := conn.requests[0]
	if req.GetInt64("epg", 0) != 1 || !req.Contains("epgMaxTime") || !req.Contains("lastUpdate") {
		t.Errorf("stale watermark did not force a full guide fetch: %s", req)
	}
}

func TestEngineChannelBatching(t *testing.T) {
	store, repo := newTestStore(t)
	spy := &spyChannelStore{ChannelStore: repo.Channels}
	store.Channels = spy

	conn := &fakeConn{}
	e := startedEngine(t, store, conn)

	for i := 1; i <= 120; i++ {
		e.handle(htsp.NewRequest("channelAdd").
			Set("channelId", int64(i)).
			Set("channelName", fmt.Sprintf("ch %d", i)))
	}
	e.handle(htsp.NewRequest("initialSyncCompleted"))

	want := []int{25, 25, 25, 25, 20}
	if len(spy.batches) != len(want) {
		t.Fatalf("batches = %v, want %v", spy.batches, want)
	}
	for i := range want {
		if spy.batches[i] != want[i] {
			t.Fatalf("batches = %v, want %v", spy.batches, want)
		}
	}

	n, err := repo.Channels.Count()
	if err != nil || n != 120 {
		t.Errorf("stored channels = (%d, %v), want 120", n, err)
	}
	if e.State() != StateDone {
		t.Errorf("state = %s, want done", e.State())
	}
}

func TestEngineRecordingsClearedExactlyOnce(t *testing.T) {
	store, repo := newTestStore(t)

	// A stale replica from the previous session.
	if err := repo.Recordings.Put(&models.Recording{ID: 999, Title: "stale"}); err != nil {
		t.Fatal(err)
	}

	spy := &spyRecordingStore{RecordingStore: repo.Recordings}
	store.Recordings = spy

	conn := &fakeConn{}
	e := startedEngine(t, store, conn)

	for i := 1; i <= 3; i++ {
		e.handle(htsp.NewRequest("dvrEntryAdd").
			Set("id", int64(i)).
			Set("title", fmt.Sprintf("rec %d", i)))
	}
	e.handle(htsp.NewRequest("initialSyncCompleted"))

	if spy.removeAllCalls != 1 {
		t.Errorf("RemoveAll calls = %d, want 1", spy.removeAllCalls)
	}
	if _, err := repo.Recordings.GetByID(999); err == nil {
		t.Error("stale recording survived the replay")
	}
	n, _ := repo.Recordings.Count()
	if n != 3 {
		t.Errorf("stored recordings = %d, want 3", n)
	}
}

type fakeIcons struct {
	queued  []string
	removed []string
}

func (f *fakeIcons) Enqueue(ref string)      { f.queued = append(f.queued, ref) }
func (f *fakeIcons) Remove(ref string) error { f.removed = append(f.removed, ref); return nil }

func TestEngineIconLifecycle(t *testing.T) {
	store, _ := newTestStore(t)
	conn := &fakeConn{}
	icons := &fakeIcons{}

	e := NewEngine(conn, store, nil, icons, Config{EPG: true, GuideWindow: time.Hour})
	if err := e.Start(context.Background(), &htsp.ServerInfo{ProtocolVersion: 34}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	e.handle(htsp.NewRequest("channelAdd").
		Set("channelId", int64(1)).
		Set("channelName", "one").
		Set("channelIcon", "imagecache/19"))
	e.handle(htsp.NewRequest("initialSyncCompleted"))

	if len(icons.queued) != 1 || icons.queued[0] != "imagecache/19" {
		t.Fatalf("queued = %v", icons.queued)
	}

	e.handle(htsp.NewRequest("channelDelete").Set("channelId", int64(1)))
	if len(icons.removed) != 1 || icons.removed[0] != "imagecache/19" {
		t.Errorf("removed = %v", icons.removed)
	}
}

func TestEngineEmptyReplayClearsRecordings(t *testing.T) {
	store, repo := newTestStore(t)

	if err := repo.Recordings.Put(&models.Recording{ID: 999, Title: "stale"}); err != nil {
		t.Fatal(err)
	}

	spy := &spyRecordingStore{RecordingStore: repo.Recordings}
	store.Recordings = spy

	conn := &fakeConn{}
	e := startedEngine(t, store, conn)
	e.handle(htsp.NewRequest("initialSyncCompleted"))

	if spy.removeAllCalls != 1 {
		t.Errorf("RemoveAll calls = %d, want 1", spy.removeAllCalls)
	}
	n, _ := repo.Recordings.Count()
	if n != 0 {
		t.Errorf("stored recordings = %d, want 0", n)
	}
}

func TestEngineDeleteDuringLoadingDropsBufferedAdd(t *testing.T) {
	store, repo := newTestStore(t)
	conn := &fakeConn{}
	e := startedEngine(t, store, conn)

	e.handle(htsp.NewRequest("channelAdd").Set("channelId", int64(1)).Set("channelName", "one"))
	e.handle(htsp.NewRequest("channelAdd").Set("channelId", int64(2)).Set("channelName", "two"))
	e.handle(htsp.NewRequest("channelDelete").Set("channelId", int64(1)))
	e.handle(htsp.NewRequest("initialSyncCompleted"))

	if _, err := repo.Channels.GetByID(1); err == nil {
		t.Error("deleted channel was flushed anyway")
	}
	if _, err := repo.Channels.GetByID(2); err != nil {
		t.Errorf("surviving channel missing: %v", err)
	}
}

func TestEngineUpdateDuringLoadingMergesIntoBuffer(t *testing.T) {
	store, repo := newTestStore(t)
	conn := &fakeConn{}
	e := startedEngine(t, store, conn)

	e.handle(htsp.NewRequest("channelAdd").
		Set("channelId", int64(1)).
		Set("channelName", "one").
		Set("channelNumber", int64(5)))
	e.handle(htsp.NewRequest("channelUpdate").
		Set("channelId", int64(1)).
		Set("channelName", "one hd"))
	e.handle(htsp.NewRequest("initialSyncCompleted"))

	ch, err := repo.Channels.GetByID(1)
	if err != nil {
		t.Fatalf("channel missing: %v", err)
	}
	if ch.Name != "one hd" || ch.Number != 5 {
		t.Errorf("channel = %+v", ch)
	}
}

func TestEngineLiveUpdatesAfterDone(t *testing.T) {
	store, repo := newTestStore(t)
	conn := &fakeConn{}
	e := startedEngine(t, store, conn)
	e.handle(htsp.NewRequest("initialSyncCompleted"))

	e.handle(htsp.NewRequest("channelAdd").
		Set("channelId", int64(9)).
		Set("channelName", "late").
		Set("channelNumber", int64(42)))
	if ch, err := repo.Channels.GetByID(9); err != nil || ch.Name != "late" {
		t.Fatalf("live add = (%+v, %v)", ch, err)
	}

	e.handle(htsp.NewRequest("channelUpdate").
		Set("channelId", int64(9)).
		Set("eventId", int64(77)))
	ch, _ := repo.Channels.GetByID(9)
	if ch.EventID != 77 || ch.Number != 42 {
		t.Errorf("live update = %+v", ch)
	}

	e.handle(htsp.NewRequest("channelDelete").Set("channelId", int64(9)))
	if _, err := repo.Channels.GetByID(9); err == nil {
		t.Error("live delete did not remove the channel")
	}
}

func TestEngineTagMembershipRebuild(t *testing.T) {
	store, repo := newTestStore(t)
	conn := &fakeConn{}
	e := startedEngine(t, store, conn)

	e.handle(htsp.NewRequest("tagAdd").
		Set("tagId", int64(1)).
		Set("tagName", "HD").
		Set("members", []int64{1, 2}))
	e.handle(htsp.NewRequest("tagUpdate").
		Set("tagId", int64(1)).
		Set("members", []int64{2, 3}))

	ids, err := repo.TagChannels.GetChannelIDs(1)
	if err != nil {
		t.Fatalf("GetChannelIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Errorf("members = %v, want [2 3]", ids)
	}

	e.handle(htsp.NewRequest("tagDelete").Set("tagId", int64(1)))
	if ids, _ := repo.TagChannels.GetChannelIDs(1); len(ids) != 0 {
		t.Errorf("members after delete = %v", ids)
	}
	if _, err := repo.Tags.GetByID(1); err == nil {
		t.Error("tag survived delete")
	}
}

func TestEngineWatermarkAdvancesOnCompletion(t *testing.T) {
	store, repo := newTestStore(t)
	conn := &fakeConn{}
	e := startedEngine(t, store, conn)

	fixed := time.Unix(1750000000, 0)
	e.now = func() time.Time { return fixed }

	e.handle(htsp.NewRequest("initialSyncCompleted"))

	ts, err := repo.State.LastUpdate()
	if err != nil || ts != fixed.Unix() {
		t.Errorf("watermark = (%d, %v), want %d", ts, err, fixed.Unix())
	}
	full, _ := repo.State.FullSyncRequired()
	if full {
		t.Error("full sync flag still set after completion")
	}
	progress, err := repo.State.SyncProgress()
	if err != nil || progress.State != StateSaving.String() {
		t.Errorf("persisted progress = (%+v, %v)", progress, err)
	}
}

func TestEngineRunPreservesOrder(t *testing.T) {
	store, repo := newTestStore(t)
	conn := &fakeConn{}
	e := startedEngine(t, store, conn)

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	e.inbox.push(htsp.NewRequest("channelAdd").Set("channelId", int64(1)).Set("channelName", "a"))
	e.inbox.push(htsp.NewRequest("channelUpdate").Set("channelId", int64(1)).Set("channelName", "b"))
	e.inbox.push(htsp.NewRequest("initialSyncCompleted"))
	e.inbox.push(htsp.NewRequest("channelUpdate").Set("channelId", int64(1)).Set("channelName", "c"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		if ch, err := repo.Channels.GetByID(1); err == nil && ch.Name == "c" {
			break
		}
		if time.Now().After(deadline) {
			ch, err := repo.Channels.GetByID(1)
			t.Fatalf("final state = (%+v, %v), want name c", ch, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestEngineCompletionRefreshesCatalogs(t *testing.T) {
	store, repo := newTestStore(t)
	conn := &fakeConn{}
	e := startedEngine(t, store, conn)

	if err := repo.State.SetServerStatus(&models.ServerStatus{
		ServerName:      "Tvheadend",
		ProtocolVersion: 36,
	}); err != nil {
		t.Fatalf("seed server status: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	e.inbox.push(htsp.NewRequest("initialSyncCompleted"))

	deadline := time.Now().Add(2 * time.Second)
	for e.State() != StateDone {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want done", e.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	seen := map[string]bool{}
	for _, m := range conn.methods() {
		seen[m] = true
	}
	for _, want := range []string{"getProfiles", "getDvrConfigs", "getSysTime", "getDiskSpace"} {
		if !seen[want] {
			t.Errorf("missing %s round trip after completion", want)
		}
	}

	e.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}
}

func TestEngineIgnoresUnknownMethods(t *testing.T) {
	store, _ := newTestStore(t)
	conn := &fakeConn{}
	e := startedEngine(t, store, conn)

	e.handle(htsp.NewRequest("subscriptionStart").Set("subscriptionId", int64(1)))
	e.handle(htsp.NewMessage()) // replies without method are not notifications
	if e.State() != StateLoading {
		t.Errorf("state = %s, want loading", e.State())
	}
}
