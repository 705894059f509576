// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package models

import (
	"github.com/pvrmirror/pvrmirror/internal/htsp"
)

// SeriesRecording mirrors one recurring event rule (autorec): record every
// event matching a title within a window.
type SeriesRecording struct {
	ID          string `json:"id"` // backend-assigned uuid
	Enabled     int64  `json:"enabled"`
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Fulltext    int64  `json:"fulltext,omitempty"`
	Directory   string `json:"directory,omitempty"`
	ChannelID   int64  `json:"channel,omitempty"` // 0 means any channel
	MinDuration int64  `json:"min_duration,omitempty"`
	MaxDuration int64  `json:"max_duration,omitempty"`
	Retention   int64  `json:"retention,omitempty"`
	Removal     int64  `json:"removal,omitempty"`
	DaysOfWeek  int64  `json:"days_of_week,omitempty"` // bitmask, Monday = bit 0
	Priority    int64  `json:"priority,omitempty"`
	ApproxTime  int64  `json:"approx_time,omitempty"` // minutes from midnight
	Start       int64  `json:"start,omitempty"`       // window start, minutes from midnight
	StartWindow int64  `json:"start_window,omitempty"`
	StartExtra  int64  `json:"start_extra,omitempty"`
	StopExtra   int64  `json:"stop_extra,omitempty"`
	DupDetect   int64  `json:"dup_detect,omitempty"`
	MaxCount    int64  `json:"max_count,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Creator     string `json:"creator,omitempty"`
}

// ApplyMessage merges the fields present in an HTSP autorecEntryAdd or
// autorecEntryUpdate notification into the rule.
func (s *SeriesRecording) ApplyMessage(m *htsp.Message) {
	if m.Contains("id") {
		s.ID = m.GetStr("id", s.ID)
	}
	if m.Contains("enabled") {
		s.Enabled = m.GetInt64("enabled", s.Enabled)
	}
	if m.Contains("name") {
		s.Name = m.GetStr("name", s.Name)
	}
	if m.Contains("title") {
		s.Title = m.GetStr("title", s.Title)
	}
	if m.Contains("fulltext") {
		s.Fulltext = m.GetInt64("fulltext", s.Fulltext)
	}
	if m.Contains("directory") {
		s.Directory = m.GetStr("directory", s.Directory)
	}
	if m.Contains("channel") {
		s.ChannelID = m.GetInt64("channel", s.ChannelID)
	}
	if m.Contains("minDuration") {
		s.MinDuration = m.GetInt64("minDuration", s.MinDuration)
	}
	if m.Contains("maxDuration") {
		s.MaxDuration = m.GetInt64("maxDuration", s.MaxDuration)
	}
	if m.Contains("retention") {
		s.Retention = m.GetInt64("retention", s.Retention)
	}
	if m.Contains("removal") {
		s.Removal = m.GetInt64("removal", s.Removal)
	}
	if m.Contains("daysOfWeek") {
		s.DaysOfWeek = m.GetInt64("daysOfWeek", s.DaysOfWeek)
	}
	if m.Contains("priority") {
		s.Priority = m.GetInt64("priority", s.Priority)
	}
	if m.Contains("approxTime") {
		s.ApproxTime = m.GetInt64("approxTime", s.ApproxTime)
	}
	if m.Contains("start") {
		s.Start = m.GetInt64("start", s.Start)
	}
	if m.Contains("startWindow") {
		s.StartWindow = m.GetInt64("startWindow", s.StartWindow)
	}
	if m.Contains("startExtra") {
		s.StartExtra = m.GetInt64("startExtra", s.StartExtra)
	}
	if m.Contains("stopExtra") {
		s.StopExtra = m.GetInt64("stopExtra", s.StopExtra)
	}
	if m.Contains("dupDetect") {
		s.DupDetect = m.GetInt64("dupDetect", s.DupDetect)
	}
	if m.Contains("maxCount") {
		s.MaxCount = m.GetInt64("maxCount", s.MaxCount)
	}
	if m.Contains("owner") {
		s.Owner = m.GetStr("owner", s.Owner)
	}
	if m.Contains("creator") {
		s.Creator = m.GetStr("creator", s.Creator)
	}
}

// TimerRecording mirrors one recurring time rule (timerec): record a fixed
// time slot on selected days regardless of guide data.
type TimerRecording struct {
	ID         string `json:"id"` // backend-assigned uuid
	Enabled    int64  `json:"enabled"`
	Name       string `json:"name,omitempty"`
	Title      string `json:"title,omitempty"`
	Directory  string `json:"directory,omitempty"`
	ConfigName string `json:"config_name,omitempty"`
	ChannelID  int64  `json:"channel,omitempty"`
	DaysOfWeek int64  `json:"days_of_week,omitempty"`
	Priority   int64  `json:"priority,omitempty"`
	Start      int64  `json:"start,omitempty"` // minutes from midnight
	Stop       int64  `json:"stop,omitempty"`  // minutes from midnight
	Retention  int64  `json:"retention,omitempty"`
	Removal    int64  `json:"removal,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Creator    string `json:"creator,omitempty"`
}

// ApplyMessage merges the fields present in an HTSP timerecEntryAdd or
// timerecEntryUpdate notification into the rule.
func (t *TimerRecording) ApplyMessage(m *htsp.Message) {
	if m.Contains("id") {
		t.ID = m.GetStr("id", t.ID)
	}
	if m.Contains("enabled") {
		t.Enabled = m.GetInt64("enabled", t.Enabled)
	}
	if m.Contains("name") {
		t.Name = m.GetStr("name", t.Name)
	}
	if m.Contains("title") {
		t.Title = m.GetStr("title", t.Title)
	}
	if m.Contains("directory") {
		t.Directory = m.GetStr("directory", t.Directory)
	}
	if m.Contains("configName") {
		t.ConfigName = m.GetStr("configName", t.ConfigName)
	}
	if m.Contains("channel") {
		t.ChannelID = m.GetInt64("channel", t.ChannelID)
	}
	if m.Contains("daysOfWeek") {
		t.DaysOfWeek = m.GetInt64("daysOfWeek", t.DaysOfWeek)
	}
	if m.Contains("priority") {
		t.Priority = m.GetInt64("priority", t.Priority)
	}
	if m.Contains("start") {
		t.Start = m.GetInt64("start", t.Start)
	}
	if m.Contains("stop") {
		t.Stop = m.GetInt64("stop", t.Stop)
	}
	if m.Contains("retention") {
		t.Retention = m.GetInt64("retention", t.Retention)
	}
	if m.Contains("removal") {
		t.Removal = m.GetInt64("removal", t.Removal)
	}
	if m.Contains("owner") {
		t.Owner = m.GetStr("owner", t.Owner)
	}
	if m.Contains("creator") {
		t.Creator = m.GetStr("creator", t.Creator)
	}
}
