// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package models

import (
	"github.com/pvrmirror/pvrmirror/internal/htsp"
)

// Recording states as reported by the backend.
const (
	RecordingStateScheduled = "scheduled"
	RecordingStateRecording = "recording"
	RecordingStateCompleted = "completed"
	RecordingStateMissed    = "missed"
	RecordingStateInvalid   = "invalid"
)

// Recording mirrors one DVR entry: a scheduled, in-progress, completed, or
// failed recording.
type Recording struct {
	ID          int64  `json:"id"`
	ChannelID   int64  `json:"channel"`
	Start       int64  `json:"start"` // unix seconds
	StartExtra  int64  `json:"start_extra,omitempty"`
	Stop        int64  `json:"stop"`
	StopExtra   int64  `json:"stop_extra,omitempty"`
	Retention   int64  `json:"retention,omitempty"`
	Removal     int64  `json:"removal,omitempty"`
	Priority    int64  `json:"priority,omitempty"`
	EventID     int64  `json:"event_id,omitempty"`
	AutorecID   string `json:"autorec_id,omitempty"` // owning recurring event rule
	TimerecID   string `json:"timerec_id,omitempty"` // owning recurring time rule
	ContentType int64  `json:"content_type,omitempty"`
	Title       string `json:"title,omitempty"`
	Subtitle    string `json:"subtitle,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	State       string `json:"state,omitempty"`
	Error       string `json:"error,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Creator     string `json:"creator,omitempty"`

	SubscriptionError string `json:"subscription_error,omitempty"`
	StreamErrors      int64  `json:"stream_errors,omitempty"`
	DataErrors        int64  `json:"data_errors,omitempty"`
	DataSize          int64  `json:"data_size,omitempty"`
	Enabled           int64  `json:"enabled,omitempty"`
	Duplicate         int64  `json:"duplicate,omitempty"`
	Image             string `json:"image,omitempty"`
	FanartImage       string `json:"fanart_image,omitempty"`
}

// IsScheduled reports whether the entry still waits for its start time.
func (r *Recording) IsScheduled() bool { return r.State == RecordingStateScheduled }

// IsRecording reports whether the entry is currently being written.
func (r *Recording) IsRecording() bool { return r.State == RecordingStateRecording }

// IsCompleted reports whether the entry finished successfully.
func (r *Recording) IsCompleted() bool { return r.State == RecordingStateCompleted }

// IsFailed reports whether the entry missed or errored.
func (r *Recording) IsFailed() bool {
	return r.State == RecordingStateMissed || r.State == RecordingStateInvalid
}

// Duration returns the scheduled length in seconds.
func (r *Recording) Duration() int64 { return r.Stop - r.Start }

// ApplyMessage merges the fields present in an HTSP dvrEntryAdd or
// dvrEntryUpdate notification into the recording.
func (r *Recording) ApplyMessage(m *htsp.Message) {
	if m.Contains("id") {
		r.ID = m.GetInt64("id", r.ID)
	}
	if m.Contains("channel") {
		r.ChannelID = m.GetInt64("channel", r.ChannelID)
	}
	if m.Contains("start") {
		r.Start = m.GetInt64("start", r.Start)
	}
	if m.Contains("startExtra") {
		r.StartExtra = m.GetInt64("startExtra", r.StartExtra)
	}
	if m.Contains("stop") {
		r.Stop = m.GetInt64("stop", r.Stop)
	}
	if m.Contains("stopExtra") {
		r.StopExtra = m.GetInt64("stopExtra", r.StopExtra)
	}
	if m.Contains("retention") {
		r.Retention = m.GetInt64("retention", r.Retention)
	}
	if m.Contains("removal") {
		r.Removal = m.GetInt64("removal", r.Removal)
	}
	if m.Contains("priority") {
		r.Priority = m.GetInt64("priority", r.Priority)
	}
	if m.Contains("eventId") {
		r.EventID = m.GetInt64("eventId", r.EventID)
	}
	if m.Contains("autorecId") {
		r.AutorecID = m.GetStr("autorecId", r.AutorecID)
	}
	if m.Contains("timerecId") {
		r.TimerecID = m.GetStr("timerecId", r.TimerecID)
	}
	if m.Contains("contentType") {
		r.ContentType = m.GetInt64("contentType", r.ContentType)
	}
	if m.Contains("title") {
		r.Title = m.GetStr("title", r.Title)
	}
	if m.Contains("subtitle") {
		r.Subtitle = m.GetStr("subtitle", r.Subtitle)
	}
	if m.Contains("summary") {
		r.Summary = m.GetStr("summary", r.Summary)
	}
	if m.Contains("description") {
		r.Description = m.GetStr("description", r.Description)
	}
	if m.Contains("state") {
		r.State = m.GetStr("state", r.State)
	}
	if m.Contains("error") {
		r.Error = m.GetStr("error", r.Error)
	}
	if m.Contains("owner") {
		r.Owner = m.GetStr("owner", r.Owner)
	}
	if m.Contains("creator") {
		r.Creator = m.GetStr("creator", r.Creator)
	}
	if m.Contains("subscriptionError") {
		r.SubscriptionError = m.GetStr("subscriptionError", r.SubscriptionError)
	}
	if m.Contains("streamErrors") {
		r.StreamErrors = m.GetInt64("streamErrors", r.StreamErrors)
	}
	if m.Contains("dataErrors") {
		r.DataErrors = m.GetInt64("dataErrors", r.DataErrors)
	}
	if m.Contains("dataSize") {
		r.DataSize = m.GetInt64("dataSize", r.DataSize)
	}
	if m.Contains("enabled") {
		r.Enabled = m.GetInt64("enabled", r.Enabled)
	}
	if m.Contains("duplicate") {
		r.Duplicate = m.GetInt64("duplicate", r.Duplicate)
	}
	if m.Contains("image") {
		r.Image = m.GetStr("image", r.Image)
	}
	if m.Contains("fanartImage") {
		r.FanartImage = m.GetStr("fanartImage", r.FanartImage)
	}
}
