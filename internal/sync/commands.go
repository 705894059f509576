// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

/*
commands.go - Backend Commands

Request/response commands issued over the authenticated connection. These run
in the caller's goroutine; the resulting state change comes back asynchronously
as a dvrEntry/autorec/timerec notification through the normal sync path, so
commands never write entity stores themselves. The exceptions are the guide
pagers, whose events arrive inside the reply and are written directly.

Backends older than protocol version 25 cannot update recurring rules in
place; updates are synthesized as delete-then-add.
*/

package sync

import (
	"context"
	"fmt"

	"github.com/pvrmirror/pvrmirror/internal/htsp"
	"github.com/pvrmirror/pvrmirror/internal/models"
)

// minRuleUpdateVersion is the first protocol version with in-place
// autorec/timerec updates.
const minRuleUpdateVersion = 25

// guidePageSize is how many events one guide page request asks for.
const guidePageSize = 25

// RecordingRequest describes a recording to schedule. Either EventID targets
// a guide event, or ChannelID/Start/Stop/Title describe a manual slot.
type RecordingRequest struct {
	EventID     int64
	ChannelID   int64
	Start       int64
	Stop        int64
	StartExtra  int64
	StopExtra   int64
	Title       string
	Subtitle    string
	Description string
	Priority    int64
	Retention   int64
	ConfigUUID  string // DVR profile, empty for the backend default
}

func (r *RecordingRequest) toMessage(method string) *htsp.Message {
	msg := htsp.NewRequest(method)
	if r.EventID > 0 {
		msg.Set("eventId", r.EventID)
	} else {
		msg.Set("channelId", r.ChannelID).
			Set("start", r.Start).
			Set("stop", r.Stop)
		if r.Title != "" {
			msg.Set("title", r.Title)
		}
		if r.Subtitle != "" {
			msg.Set("subtitle", r.Subtitle)
		}
		if r.Description != "" {
			msg.Set("description", r.Description)
		}
	}
	if r.StartExtra > 0 {
		msg.Set("startExtra", r.StartExtra)
	}
	if r.StopExtra > 0 {
		msg.Set("stopExtra", r.StopExtra)
	}
	if r.Priority > 0 {
		msg.Set("priority", r.Priority)
	}
	if r.Retention > 0 {
		msg.Set("retention", r.Retention)
	}
	if r.ConfigUUID != "" {
		msg.Set("configName", r.ConfigUUID)
	}
	return msg
}

// command runs one round trip and checks the success flag; the outcome is
// published on the bus either way.
func (e *Engine) command(ctx context.Context, req *htsp.Message) (*htsp.Message, error) {
	action := req.Method()
	reply, err := e.conn.Invoke(ctx, req)
	if err != nil {
		e.publishResult(action, false, err.Error())
		return nil, err
	}
	if reply.GetInt64("success", 0) != 1 {
		reason := reply.GetStr("error", "command rejected")
		e.publishResult(action, false, reason)
		return reply, fmt.Errorf("%s: %s", action, reason)
	}
	e.publishResult(action, true, "")
	return reply, nil
}

func (e *Engine) publishResult(action string, success bool, errText string) {
	if e.bus == nil {
		return
	}
	if err := e.bus.PublishDvrResult(action, success, errText); err != nil {
		e.log.Warn().Err(err).Str("action", action).Msg("Publish command result")
	}
}

// AddRecording schedules a recording and returns the new entry id.
func (e *Engine) AddRecording(ctx context.Context, req *RecordingRequest) (int64, error) {
	reply, err := e.command(ctx, req.toMessage("addDvrEntry"))
	if err != nil {
		return 0, err
	}
	return reply.GetInt64("id", 0), nil
}

// UpdateRecording modifies a scheduled entry in place.
func (e *Engine) UpdateRecording(ctx context.Context, id int64, req *RecordingRequest) error {
	msg := req.toMessage("updateDvrEntry")
	msg.Set("id", id)
	_, err := e.command(ctx, msg)
	return err
}

// StopRecording stops an in-progress recording, keeping what was written.
func (e *Engine) StopRecording(ctx context.Context, id int64) error {
	_, err := e.command(ctx, htsp.NewRequest("stopDvrEntry").Set("id", id))
	return err
}

// CancelRecording aborts an entry, discarding any partial file.
func (e *Engine) CancelRecording(ctx context.Context, id int64) error {
	_, err := e.command(ctx, htsp.NewRequest("cancelDvrEntry").Set("id", id))
	return err
}

// RemoveRecording deletes an entry and its file.
func (e *Engine) RemoveRecording(ctx context.Context, id int64) error {
	_, err := e.command(ctx, htsp.NewRequest("deleteDvrEntry").Set("id", id))
	return err
}

func seriesRuleMessage(method string, rule *models.SeriesRecording) *htsp.Message {
	msg := htsp.NewRequest(method).Set("enabled", rule.Enabled)
	if rule.Title != "" {
		msg.Set("title", rule.Title)
	}
	if rule.Name != "" {
		msg.Set("name", rule.Name)
	}
	if rule.ChannelID > 0 {
		msg.Set("channelId", rule.ChannelID)
	}
	if rule.MinDuration > 0 {
		msg.Set("minDuration", rule.MinDuration)
	}
	if rule.MaxDuration > 0 {
		msg.Set("maxDuration", rule.MaxDuration)
	}
	if rule.DaysOfWeek > 0 {
		msg.Set("daysOfWeek", rule.DaysOfWeek)
	}
	if rule.Priority > 0 {
		msg.Set("priority", rule.Priority)
	}
	if rule.Start > 0 {
		msg.Set("start", rule.Start)
	}
	if rule.StartWindow > 0 {
		msg.Set("startWindow", rule.StartWindow)
	}
	if rule.StartExtra > 0 {
		msg.Set("startExtra", rule.StartExtra)
	}
	if rule.StopExtra > 0 {
		msg.Set("stopExtra", rule.StopExtra)
	}
	if rule.DupDetect > 0 {
		msg.Set("dupDetect", rule.DupDetect)
	}
	if rule.Fulltext > 0 {
		msg.Set("fulltext", rule.Fulltext)
	}
	if rule.Directory != "" {
		msg.Set("directory", rule.Directory)
	}
	if rule.Retention > 0 {
		msg.Set("retention", rule.Retention)
	}
	return msg
}

// AddSeriesRecording creates a recurring event rule.
func (e *Engine) AddSeriesRecording(ctx context.Context, rule *models.SeriesRecording) error {
	_, err := e.command(ctx, seriesRuleMessage("addAutorecEntry", rule))
	return err
}

// UpdateSeriesRecording modifies a recurring event rule. Old backends get
// delete-then-add; the backend reissues the rule with a fresh id.
func (e *Engine) UpdateSeriesRecording(ctx context.Context, rule *models.SeriesRecording) error {
	if e.htspVersion >= minRuleUpdateVersion {
		msg := seriesRuleMessage("updateAutorecEntry", rule)
		msg.Set("id", rule.ID)
		_, err := e.command(ctx, msg)
		return err
	}
	if err := e.RemoveSeriesRecording(ctx, rule.ID); err != nil {
		return err
	}
	return e.AddSeriesRecording(ctx, rule)
}

// RemoveSeriesRecording deletes a recurring event rule.
func (e *Engine) RemoveSeriesRecording(ctx context.Context, id string) error {
	_, err := e.command(ctx, htsp.NewRequest("deleteAutorecEntry").Set("id", id))
	return err
}

func timerRuleMessage(method string, rule *models.TimerRecording) *htsp.Message {
	msg := htsp.NewRequest(method).
		Set("enabled", rule.Enabled).
		Set("start", rule.Start).
		Set("stop", rule.Stop)
	if rule.Title != "" {
		msg.Set("title", rule.Title)
	}
	if rule.Name != "" {
		msg.Set("name", rule.Name)
	}
	if rule.Directory != "" {
		msg.Set("directory", rule.Directory)
	}
	if rule.ConfigName != "" {
		msg.Set("configName", rule.ConfigName)
	}
	if rule.ChannelID > 0 {
		msg.Set("channelId", rule.ChannelID)
	}
	if rule.DaysOfWeek > 0 {
		msg.Set("daysOfWeek", rule.DaysOfWeek)
	}
	if rule.Priority > 0 {
		msg.Set("priority", rule.Priority)
	}
	if rule.Retention > 0 {
		msg.Set("retention", rule.Retention)
	}
	return msg
}

// AddTimerRecording creates a recurring time rule.
func (e *Engine) AddTimerRecording(ctx context.Context, rule *models.TimerRecording) error {
	_, err := e.command(ctx, timerRuleMessage("addTimerecEntry", rule))
	return err
}

// UpdateTimerRecording modifies a recurring time rule, with the same
// delete-then-add fallback as series rules.
func (e *Engine) UpdateTimerRecording(ctx context.Context, rule *models.TimerRecording) error {
	if e.htspVersion >= minRuleUpdateVersion {
		msg := timerRuleMessage("updateTimerecEntry", rule)
		msg.Set("id", rule.ID)
		_, err := e.command(ctx, msg)
		return err
	}
	if err := e.RemoveTimerRecording(ctx, rule.ID); err != nil {
		return err
	}
	return e.AddTimerRecording(ctx, rule)
}

// RemoveTimerRecording deletes a recurring time rule.
func (e *Engine) RemoveTimerRecording(ctx context.Context, id string) error {
	_, err := e.command(ctx, htsp.NewRequest("deleteTimerecEntry").Set("id", id))
	return err
}

// Ticket grants access to a live or recorded stream over the backend's HTTP
// interface.
type Ticket struct {
	Path   string `json:"path"`
	Ticket string `json:"ticket"`
}

// GetChannelTicket requests a streaming ticket for a channel.
func (e *Engine) GetChannelTicket(ctx context.Context, channelID int64) (*Ticket, error) {
	return e.getTicket(ctx, htsp.NewRequest("getTicket").Set("channelId", channelID))
}

// GetRecordingTicket requests a streaming ticket for a DVR entry.
func (e *Engine) GetRecordingTicket(ctx context.Context, dvrID int64) (*Ticket, error) {
	return e.getTicket(ctx, htsp.NewRequest("getTicket").Set("dvrId", dvrID))
}

func (e *Engine) getTicket(ctx context.Context, req *htsp.Message) (*Ticket, error) {
	reply, err := e.conn.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	t := &Ticket{
		Path:   reply.GetStr("path", ""),
		Ticket: reply.GetStr("ticket", ""),
	}
	if t.Path == "" {
		return nil, fmt.Errorf("getTicket: reply carries no path")
	}
	return t, nil
}

// GuideQuery filters a guide search.
type GuideQuery struct {
	Query       string
	ChannelID   int64
	TagID       int64
	ContentType int64
	MinDuration int64
	MaxDuration int64
}

// QueryGuide runs a full-text guide search on the backend and returns the
// matching event ids.
func (e *Engine) QueryGuide(ctx context.Context, q GuideQuery) ([]int64, error) {
	req := htsp.NewRequest("epgQuery").Set("query", q.Query)
	if q.ChannelID > 0 {
		req.Set("channelId", q.ChannelID)
	}
	if q.TagID > 0 {
		req.Set("tagId", q.TagID)
	}
	if q.ContentType > 0 {
		req.Set("contentType", q.ContentType)
	}
	if q.MinDuration > 0 {
		req.Set("minduration", q.MinDuration)
	}
	if q.MaxDuration > 0 {
		req.Set("maxduration", q.MaxDuration)
	}
	reply, err := e.conn.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	return reply.GetIntList("eventIds"), nil
}

// FetchEvents pulls a block of guide events starting at eventID and stores
// them. Returns how many events were written.
func (e *Engine) FetchEvents(ctx context.Context, eventID int64, numFollowing int64) (int, error) {
	req := htsp.NewRequest("getEvents").
		Set("eventId", eventID).
		Set("numFollowing", numFollowing)
	reply, err := e.conn.Invoke(ctx, req)
	if err != nil {
		return 0, err
	}
	events := reply.GetMsgList("events")
	if len(events) == 0 {
		return 0, nil
	}
	batch := make([]*models.Program, 0, len(events))
	for _, ev := range events {
		var p models.Program
		p.ApplyMessage(ev)
		batch = append(batch, &p)
	}
	if err := e.store.Programs.PutBatch(batch); err != nil {
		return 0, err
	}
	e.programs.Add(int64(len(batch)))
	return len(batch), nil
}

// LoadMoreGuide extends one channel's stored guide by a page, following the
// last stored event's next pointer. Returns how many events were added; zero
// means the channel's guide is already complete.
func (e *Engine) LoadMoreGuide(ctx context.Context, channelID int64) (int, error) {
	last, err := e.store.Programs.GetLastByChannel(channelID)
	if err != nil {
		return 0, err
	}
	if last.NextEventID == 0 {
		return 0, nil
	}
	return e.FetchEvents(ctx, last.NextEventID, guidePageSize)
}

// FetchProfiles refreshes the backend's streaming and DVR profile catalogs.
func (e *Engine) FetchProfiles(ctx context.Context) error {
	reply, err := e.conn.Invoke(ctx, htsp.NewRequest("getProfiles"))
	if err != nil {
		return err
	}
	playback := profilesFromList(reply.GetMsgList("profiles"), models.ProfileTypePlayback)
	if err := e.store.Profiles.ReplaceAll(models.ProfileTypePlayback, playback); err != nil {
		return err
	}

	reply, err = e.conn.Invoke(ctx, htsp.NewRequest("getDvrConfigs"))
	if err != nil {
		return err
	}
	recording := profilesFromList(reply.GetMsgList("dvrconfigs"), models.ProfileTypeRecording)
	return e.store.Profiles.ReplaceAll(models.ProfileTypeRecording, recording)
}

func profilesFromList(list []*htsp.Message, profileType string) []*models.ServerProfile {
	out := make([]*models.ServerProfile, 0, len(list))
	for _, m := range list {
		out = append(out, &models.ServerProfile{
			UUID:    m.GetStr("uuid", ""),
			Name:    m.GetStr("name", ""),
			Comment: m.GetStr("comment", ""),
			Type:    profileType,
		})
	}
	return out
}

// ProbeStatus refreshes the persisted backend snapshot with the current
// clock and disk capacity, and publishes it.
func (e *Engine) ProbeStatus(ctx context.Context, base models.ServerStatus) error {
	sysTime, err := e.conn.Invoke(ctx, htsp.NewRequest("getSysTime"))
	if err != nil {
		return err
	}
	disk, err := e.conn.Invoke(ctx, htsp.NewRequest("getDiskSpace"))
	if err != nil {
		return err
	}

	base.Time = sysTime.GetInt64("time", 0)
	base.GMTOffset = sysTime.GetInt64("gmtoffset", 0)
	base.FreeDiskSpace = disk.GetInt64("freediskspace", 0)
	base.TotalDiskSpace = disk.GetInt64("totaldiskspace", 0)
	base.ProbedAt = e.now().Unix()

	if err := e.store.State.SetServerStatus(&base); err != nil {
		return err
	}
	if e.bus != nil {
		if err := e.bus.PublishServerStatus(base); err != nil {
			e.log.Warn().Err(err).Msg("Publish server status")
		}
	}
	return nil
}
