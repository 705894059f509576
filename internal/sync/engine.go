// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

/*
engine.go - Sync Engine Lifecycle and Notification Handling

The engine owns the async metadata replay and the live notification stream:

  - Start(): request replay (full or incremental from the stored watermark)
  - Attach(): register as a dispatcher listener; notifications land in the
    ordered inbox
  - Run(): single consumer goroutine, applies notifications in order
  - initialSyncCompleted flushes the pending buffers and flips the state
    machine to done

Thread safety: Run is the only goroutine touching the pending buffers. The
state word and counters are atomic so Status queries never block the loop.
*/

package sync

import (
	"context"
	"fmt"
	"strings"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/pvrmirror/pvrmirror/internal/eventbus"
	"github.com/pvrmirror/pvrmirror/internal/htsp"
	"github.com/pvrmirror/pvrmirror/internal/logging"
	"github.com/pvrmirror/pvrmirror/internal/metrics"
	"github.com/pvrmirror/pvrmirror/internal/models"
)

// State is the engine's replay position.
type State int32

const (
	StateNotStarted State = iota
	StateLoading
	StateSaving
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateLoading:
		return "loading"
	case StateSaving:
		return "saving"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Flush thresholds during the initial load.
const (
	channelBatchSize   = 25
	recordingBatchSize = 25
	programBatchSize   = 50
)

// progressEvery is how many applied adds pass between progress events.
const progressEvery = 50

// Config tunes the replay request.
type Config struct {
	// EPG requests guide data with the replay.
	EPG bool
	// GuideWindow bounds how far ahead guide data is requested.
	GuideWindow time.Duration
	// GuideRetention bounds how stale the watermark may grow before the
	// next replay is forced full again. Defaults to DefaultGuideRetention.
	GuideRetention time.Duration
}

// IconSink receives icon references discovered in channel and tag
// notifications, and drops cached icons when their entity goes away. The
// asset cache implements it; a nil sink disables icon collection.
type IconSink interface {
	Enqueue(ref string)
	Remove(ref string) error
}

// Engine mirrors backend state into the store. One engine serves one
// authenticated connection; a reconnect gets a fresh engine.
type Engine struct {
	conn  Conn
	store Store
	bus   *eventbus.Bus
	cfg   Config
	icons IconSink
	log   zerolog.Logger

	htspVersion int64
	state       atomic.Int32

	inbox *inbox
	done  chan struct{}
	once  stdsync.Once

	// Pending buffers, owned by the Run goroutine.
	pendingChannels   []*models.Channel
	channelIndex      map[int64]*models.Channel
	pendingRecordings []*models.Recording
	recordingIndex    map[int64]*models.Recording
	pendingPrograms   []*models.Program
	programIndex      map[int64]*models.Program
	recordingsCleared bool

	channels   atomic.Int64
	tags       atomic.Int64
	recordings atomic.Int64
	programs   atomic.Int64
	added      atomic.Int64

	startedAt  time.Time
	finishedAt time.Time
	runCtx     context.Context
	now        func() time.Time
}

// NewEngine creates an engine over an authenticated connection. bus and
// icons may be nil.
func NewEngine(conn Conn, store Store, bus *eventbus.Bus, icons IconSink, cfg Config) *Engine {
	if cfg.GuideWindow <= 0 {
		cfg.GuideWindow = 24 * time.Hour
	}
	return &Engine{
		conn:           conn,
		store:          store,
		bus:            bus,
		cfg:            cfg,
		icons:          icons,
		log:            logging.With().Str("component", "sync").Logger(),
		inbox:          newInbox(),
		done:           make(chan struct{}),
		channelIndex:   map[int64]*models.Channel{},
		recordingIndex: map[int64]*models.Recording{},
		programIndex:   map[int64]*models.Program{},
		now:            time.Now,
	}
}

// State returns the engine's replay position.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Progress snapshots the replica counts for the status endpoint.
func (e *Engine) Progress() models.SyncProgress {
	p := models.SyncProgress{
		State:      e.State().String(),
		Channels:   int(e.channels.Load()),
		Tags:       int(e.tags.Load()),
		Recordings: int(e.recordings.Load()),
		Programs:   int(e.programs.Load()),
	}
	if !e.startedAt.IsZero() {
		p.StartedAt = e.startedAt.Unix()
	}
	if !e.finishedAt.IsZero() {
		p.FinishedAt = e.finishedAt.Unix()
	}
	return p
}

// Attach registers the engine on the connection's dispatcher. Call before
// Start so no notification is missed.
func (e *Engine) Attach(d *htsp.Dispatcher) {
	d.AddListener(e.inbox.push)
}

// Start requests the async metadata replay. A fresh store, an invalidated
// one, or a watermark older than the guide retention asks for everything
// plus guide data; otherwise the watermark turns the replay into an
// incremental catch-up.
func (e *Engine) Start(ctx context.Context, info *htsp.ServerInfo) error {
	e.htspVersion = info.ProtocolVersion

	full, err := e.store.State.FullSyncRequired()
	if err != nil {
		return fmt.Errorf("read full sync flag: %w", err)
	}
	last, err := e.store.State.LastUpdate()
	if err != nil {
		return fmt.Errorf("read watermark: %w", err)
	}

	retention := e.cfg.GuideRetention
	if retention <= 0 {
		retention = DefaultGuideRetention
	}
	stale := last == 0 || e.now().After(time.Unix(last, 0).Add(retention))

	req := htsp.NewRequest("enableAsyncMetadata")
	if full || stale {
		if e.cfg.EPG {
			req.Set("epg", int64(1)).
				Set("epgMaxTime", e.now().Add(e.cfg.GuideWindow).Unix()).
				Set("lastUpdate", last)
		}
		e.log.Info().Bool("epg", e.cfg.EPG).Msg("Starting full sync")
	} else {
		e.log.Info().Int64("last_update", last).Msg("Starting incremental sync")
	}

	if _, err := e.conn.Invoke(ctx, req); err != nil {
		return fmt.Errorf("enableAsyncMetadata: %w", err)
	}

	e.startedAt = e.now()
	e.setState(StateLoading)
	return nil
}

// Run consumes the inbox until Stop or ctx cancellation. It is the only
// goroutine that touches the store through the notification path.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx = ctx
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-e.done:
		}
		close(stop)
	}()

	for {
		msg := e.inbox.next(stop)
		if msg == nil {
			return ctx.Err()
		}
		e.handle(msg)
	}
}

// Stop ends Run after the inbox drains.
func (e *Engine) Stop() {
	e.once.Do(func() {
		e.inbox.close()
		close(e.done)
	})
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	metrics.RecordSyncState(int(s))
	progress := e.Progress()
	e.log.Info().
		Str("state", s.String()).
		Int("channels", progress.Channels).
		Int("recordings", progress.Recordings).
		Int("programs", progress.Programs).
		Msg("Sync state change")
	if e.bus != nil {
		if err := e.bus.PublishSync(s.String(), progress); err != nil {
			e.log.Warn().Err(err).Msg("Publish sync event")
		}
	}
}

func (e *Engine) loading() bool { return e.State() == StateLoading }

// handle applies one notification. Errors are logged, never fatal: a single
// bad record must not kill the stream.
func (e *Engine) handle(msg *htsp.Message) {
	method := msg.Method()
	if method == "" {
		return
	}
	metrics.SyncNotifications.WithLabelValues(method).Inc()

	var err error
	switch method {
	case "channelAdd":
		err = e.channelAdd(msg)
	case "channelUpdate":
		err = e.channelUpdate(msg)
	case "channelDelete":
		err = e.channelDelete(msg)
	case "tagAdd", "tagUpdate":
		err = e.tagUpsert(msg, method == "tagAdd")
	case "tagDelete":
		err = e.tagDelete(msg)
	case "dvrEntryAdd":
		err = e.recordingAdd(msg)
	case "dvrEntryUpdate":
		err = e.recordingUpdate(msg)
	case "dvrEntryDelete":
		err = e.recordingDelete(msg)
	case "autorecEntryAdd", "autorecEntryUpdate":
		err = e.seriesUpsert(msg, method == "autorecEntryAdd")
	case "autorecEntryDelete":
		err = e.seriesDelete(msg)
	case "timerecEntryAdd", "timerecEntryUpdate":
		err = e.timerUpsert(msg, method == "timerecEntryAdd")
	case "timerecEntryDelete":
		err = e.timerDelete(msg)
	case "eventAdd":
		err = e.programAdd(msg)
	case "eventUpdate":
		err = e.programUpdate(msg)
	case "eventDelete":
		err = e.programDelete(msg)
	case "initialSyncCompleted":
		err = e.initialSyncCompleted()
	default:
		e.log.Debug().Str("method", method).Msg("Ignoring notification")
	}
	if err != nil {
		e.log.Error().Err(err).Str("method", method).Msg("Notification failed")
		return
	}
	if strings.HasSuffix(method, "Add") {
		if n := e.added.Add(1); n%progressEvery == 0 && e.bus != nil {
			if perr := e.bus.PublishSync(e.State().String(), e.Progress()); perr != nil {
				e.log.Warn().Err(perr).Msg("Publish sync progress")
			}
		}
	}
}

func (e *Engine) channelAdd(msg *htsp.Message) error {
	var ch models.Channel
	ch.ApplyMessage(msg)
	e.collectIcon(ch.Icon)
	e.channels.Add(1)

	if e.loading() {
		e.pendingChannels = append(e.pendingChannels, &ch)
		e.channelIndex[ch.ID] = &ch
		metrics.SyncPendingEntities.WithLabelValues("channel").Set(float64(len(e.pendingChannels)))
		if len(e.pendingChannels) >= channelBatchSize {
			return e.flushChannels()
		}
		return nil
	}
	return e.store.Channels.Put(&ch)
}

func (e *Engine) channelUpdate(msg *htsp.Message) error {
	id := msg.GetInt64("channelId", -1)
	if e.loading() {
		if pending, ok := e.channelIndex[id]; ok {
			pending.ApplyMessage(msg)
			e.collectIcon(pending.Icon)
			return nil
		}
	}
	ch, err := e.store.Channels.GetByID(id)
	if err != nil {
		// Update for a channel we never saw: treat as add so the replica
		// converges anyway.
		e.channels.Add(-1)
		return e.channelAdd(msg)
	}
	ch.ApplyMessage(msg)
	e.collectIcon(ch.Icon)
	return e.store.Channels.Put(ch)
}

func (e *Engine) channelDelete(msg *htsp.Message) error {
	id := msg.GetInt64("channelId", -1)
	if pending, ok := e.channelIndex[id]; ok {
		delete(e.channelIndex, id)
		e.dropIcon(pending.Icon)
		for i, c := range e.pendingChannels {
			if c == pending {
				e.pendingChannels = append(e.pendingChannels[:i], e.pendingChannels[i+1:]...)
				break
			}
		}
	} else if ch, err := e.store.Channels.GetByID(id); err == nil {
		e.dropIcon(ch.Icon)
	}
	e.channels.Add(-1)
	return e.store.Channels.RemoveByID(id)
}

// tagUpsert stores the tag and rebuilds its membership rows wholesale; the
// backend always sends the full member list.
func (e *Engine) tagUpsert(msg *htsp.Message, isAdd bool) error {
	id := msg.GetInt64("tagId", -1)
	tag := &models.ChannelTag{}
	if !isAdd {
		if existing, err := e.store.Tags.GetByID(id); err == nil {
			tag = existing
		}
	}
	tag.ApplyMessage(msg)
	e.collectIcon(tag.Icon)
	if isAdd {
		e.tags.Add(1)
	}
	if err := e.store.Tags.Put(tag); err != nil {
		return err
	}

	if err := e.store.TagChannels.RemoveByTagID(tag.ID); err != nil {
		return err
	}
	if len(tag.Members) == 0 {
		return nil
	}
	rows := make([]*models.TagAndChannel, 0, len(tag.Members))
	for _, chID := range tag.Members {
		rows = append(rows, &models.TagAndChannel{TagID: tag.ID, ChannelID: chID})
	}
	return e.store.TagChannels.PutBatch(rows)
}

func (e *Engine) tagDelete(msg *htsp.Message) error {
	id := msg.GetInt64("tagId", -1)
	if tag, err := e.store.Tags.GetByID(id); err == nil {
		e.dropIcon(tag.Icon)
	}
	e.tags.Add(-1)
	if err := e.store.TagChannels.RemoveByTagID(id); err != nil {
		return err
	}
	return e.store.Tags.RemoveByID(id)
}

func (e *Engine) recordingAdd(msg *htsp.Message) error {
	var rec models.Recording
	rec.ApplyMessage(msg)
	e.recordings.Add(1)

	if e.loading() {
		// The replay carries the complete DVR list; drop the stale replica
		// once, right before the first entry lands.
		if !e.recordingsCleared {
			if err := e.store.Recordings.RemoveAll(); err != nil {
				return err
			}
			e.recordingsCleared = true
		}
		e.pendingRecordings = append(e.pendingRecordings, &rec)
		e.recordingIndex[rec.ID] = &rec
		metrics.SyncPendingEntities.WithLabelValues("recording").Set(float64(len(e.pendingRecordings)))
		if len(e.pendingRecordings) >= recordingBatchSize {
			return e.flushRecordings()
		}
		return nil
	}
	return e.store.Recordings.Put(&rec)
}

func (e *Engine) recordingUpdate(msg *htsp.Message) error {
	id := msg.GetInt64("id", -1)
	if e.loading() {
		if pending, ok := e.recordingIndex[id]; ok {
			pending.ApplyMessage(msg)
			return nil
		}
	}
	rec, err := e.store.Recordings.GetByID(id)
	if err != nil {
		e.recordings.Add(-1)
		return e.recordingAdd(msg)
	}
	rec.ApplyMessage(msg)
	return e.store.Recordings.Put(rec)
}

func (e *Engine) recordingDelete(msg *htsp.Message) error {
	id := msg.GetInt64("id", -1)
	if pending, ok := e.recordingIndex[id]; ok {
		delete(e.recordingIndex, id)
		for i, r := range e.pendingRecordings {
			if r == pending {
				e.pendingRecordings = append(e.pendingRecordings[:i], e.pendingRecordings[i+1:]...)
				break
			}
		}
	}
	e.recordings.Add(-1)
	return e.store.Recordings.RemoveByID(id)
}

func (e *Engine) seriesUpsert(msg *htsp.Message, isAdd bool) error {
	id := msg.GetStr("id", "")
	rule := &models.SeriesRecording{}
	if !isAdd {
		if existing, err := e.store.SeriesRecordings.GetByID(id); err == nil {
			rule = existing
		}
	}
	rule.ApplyMessage(msg)
	return e.store.SeriesRecordings.Put(rule)
}

func (e *Engine) seriesDelete(msg *htsp.Message) error {
	return e.store.SeriesRecordings.RemoveByID(msg.GetStr("id", ""))
}

func (e *Engine) timerUpsert(msg *htsp.Message, isAdd bool) error {
	id := msg.GetStr("id", "")
	rule := &models.TimerRecording{}
	if !isAdd {
		if existing, err := e.store.TimerRecordings.GetByID(id); err == nil {
			rule = existing
		}
	}
	rule.ApplyMessage(msg)
	return e.store.TimerRecordings.Put(rule)
}

func (e *Engine) timerDelete(msg *htsp.Message) error {
	return e.store.TimerRecordings.RemoveByID(msg.GetStr("id", ""))
}

func (e *Engine) programAdd(msg *htsp.Message) error {
	var p models.Program
	p.ApplyMessage(msg)
	e.programs.Add(1)

	if e.loading() {
		e.pendingPrograms = append(e.pendingPrograms, &p)
		e.programIndex[p.ID] = &p
		metrics.SyncPendingEntities.WithLabelValues("program").Set(float64(len(e.pendingPrograms)))
		if len(e.pendingPrograms) >= programBatchSize {
			return e.flushPrograms()
		}
		return nil
	}
	return e.store.Programs.Put(&p)
}

func (e *Engine) programUpdate(msg *htsp.Message) error {
	id := msg.GetInt64("eventId", -1)
	if e.loading() {
		if pending, ok := e.programIndex[id]; ok {
			pending.ApplyMessage(msg)
			return nil
		}
	}
	p, err := e.store.Programs.GetByEventID(id)
	if err != nil {
		e.programs.Add(-1)
		return e.programAdd(msg)
	}
	p.ApplyMessage(msg)
	return e.store.Programs.Put(p)
}

func (e *Engine) programDelete(msg *htsp.Message) error {
	id := msg.GetInt64("eventId", -1)
	if pending, ok := e.programIndex[id]; ok {
		delete(e.programIndex, id)
		for i, p := range e.pendingPrograms {
			if p == pending {
				e.pendingPrograms = append(e.pendingPrograms[:i], e.pendingPrograms[i+1:]...)
				break
			}
		}
	}
	e.programs.Add(-1)
	return e.store.Programs.RemoveByEventID(id)
}

func (e *Engine) initialSyncCompleted() error {
	e.setState(StateSaving)

	// A replay with zero DVR entries still invalidates the old snapshot.
	if !e.recordingsCleared {
		if err := e.store.Recordings.RemoveAll(); err != nil {
			return err
		}
		e.recordingsCleared = true
	}
	if err := e.flushAll(); err != nil {
		return err
	}

	now := e.now()
	if err := e.store.State.SetLastUpdate(now.Unix()); err != nil {
		return err
	}
	if err := e.store.State.SetFullSyncRequired(false); err != nil {
		return err
	}

	e.refreshCatalogs()

	e.finishedAt = now
	progress := e.Progress()
	if err := e.store.State.SetSyncProgress(&progress); err != nil {
		return err
	}
	if !e.startedAt.IsZero() {
		metrics.SyncDuration.Observe(now.Sub(e.startedAt).Seconds())
	}

	e.setState(StateDone)
	return nil
}

// refreshCatalogs rounds out the replay with the server-side catalogs:
// profiles, DVR configs, clock, and disk figures. Failures are logged and
// never block the done transition; the status prober retries later.
func (e *Engine) refreshCatalogs() {
	ctx := e.runCtx
	if ctx == nil {
		return
	}
	if err := e.FetchProfiles(ctx); err != nil {
		e.log.Warn().Err(err).Msg("Profile fetch failed")
	}
	status, err := e.store.State.ServerStatus()
	if err != nil || status == nil {
		return
	}
	if err := e.ProbeStatus(ctx, *status); err != nil {
		e.log.Warn().Err(err).Msg("Status probe failed")
	}
}

func (e *Engine) flushAll() error {
	if err := e.flushChannels(); err != nil {
		return err
	}
	if err := e.flushRecordings(); err != nil {
		return err
	}
	return e.flushPrograms()
}

func (e *Engine) flushChannels() error {
	if len(e.pendingChannels) == 0 {
		return nil
	}
	if err := e.store.Channels.PutBatch(e.pendingChannels); err != nil {
		return fmt.Errorf("flush channels: %w", err)
	}
	metrics.SyncEntitiesFlushed.WithLabelValues("channel").Add(float64(len(e.pendingChannels)))
	e.pendingChannels = e.pendingChannels[:0]
	e.channelIndex = map[int64]*models.Channel{}
	metrics.SyncPendingEntities.WithLabelValues("channel").Set(0)
	return nil
}

func (e *Engine) flushRecordings() error {
	if len(e.pendingRecordings) == 0 {
		return nil
	}
	if err := e.store.Recordings.PutBatch(e.pendingRecordings); err != nil {
		return fmt.Errorf("flush recordings: %w", err)
	}
	metrics.SyncEntitiesFlushed.WithLabelValues("recording").Add(float64(len(e.pendingRecordings)))
	e.pendingRecordings = e.pendingRecordings[:0]
	e.recordingIndex = map[int64]*models.Recording{}
	metrics.SyncPendingEntities.WithLabelValues("recording").Set(0)
	return nil
}

func (e *Engine) flushPrograms() error {
	if len(e.pendingPrograms) == 0 {
		return nil
	}
	if err := e.store.Programs.PutBatch(e.pendingPrograms); err != nil {
		return fmt.Errorf("flush programs: %w", err)
	}
	metrics.SyncEntitiesFlushed.WithLabelValues("program").Add(float64(len(e.pendingPrograms)))
	e.pendingPrograms = e.pendingPrograms[:0]
	e.programIndex = map[int64]*models.Program{}
	metrics.SyncPendingEntities.WithLabelValues("program").Set(0)
	return nil
}

func (e *Engine) collectIcon(ref string) {
	if e.icons == nil || ref == "" {
		return
	}
	// imagecache paths need the file API, which older backends lack.
	if !strings.HasPrefix(ref, "http") && e.htspVersion <= 9 {
		return
	}
	e.icons.Enqueue(ref)
}

func (e *Engine) dropIcon(ref string) {
	if e.icons == nil || ref == "" {
		return
	}
	if err := e.icons.Remove(ref); err != nil {
		e.log.Debug().Err(err).Str("icon", ref).Msg("Icon cache removal failed")
	}
}
