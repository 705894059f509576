// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package models

import (
	"strconv"

	"github.com/pvrmirror/pvrmirror/internal/htsp"
)

// Channel mirrors one backend channel. Fields absent from an update
// notification keep their stored value; ApplyMessage only overwrites what the
// message carries.
type Channel struct {
	ID          int64  `json:"channel_id"`
	Number      int64  `json:"channel_number"`
	NumberMinor int64  `json:"channel_number_minor"`
	Name        string `json:"channel_name"`
	Icon        string `json:"channel_icon,omitempty"` // http(s) URL or imagecache path
	EventID     int64  `json:"event_id,omitempty"`     // current on-air program
	NextEventID int64  `json:"next_event_id,omitempty"`

	// Tags is the channel's tag membership as sent by the backend. The join
	// rows derived from it live in their own store; this copy is what the
	// message carried last.
	Tags []int64 `json:"tags,omitempty"`
}

// DisplayNumber renders major.minor, omitting a zero minor.
func (c *Channel) DisplayNumber() string {
	if c.NumberMinor == 0 {
		return strconv.FormatInt(c.Number, 10)
	}
	return strconv.FormatInt(c.Number, 10) + "." + strconv.FormatInt(c.NumberMinor, 10)
}

// ApplyMessage merges the fields present in an HTSP channelAdd/channelUpdate
// notification into the channel.
func (c *Channel) ApplyMessage(m *htsp.Message) {
	if m.Contains("channelId") {
		c.ID = m.GetInt64("channelId", c.ID)
	}
	if m.Contains("channelNumber") {
		c.Number = m.GetInt64("channelNumber", c.Number)
	}
	if m.Contains("channelNumberMinor") {
		c.NumberMinor = m.GetInt64("channelNumberMinor", c.NumberMinor)
	}
	if m.Contains("channelName") {
		c.Name = m.GetStr("channelName", c.Name)
	}
	if m.Contains("channelIcon") {
		c.Icon = m.GetStr("channelIcon", c.Icon)
	}
	if m.Contains("eventId") {
		c.EventID = m.GetInt64("eventId", c.EventID)
	}
	if m.Contains("nextEventId") {
		c.NextEventID = m.GetInt64("nextEventId", c.NextEventID)
	}
	if m.Contains("tags") {
		c.Tags = m.GetIntList("tags")
	}
}
