// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package models

import (
	"testing"

	"github.com/pvrmirror/pvrmirror/internal/htsp"
)

func TestChannelApplyMessagePartialUpdate(t *testing.T) {
	c := Channel{
		ID:     4,
		Number: 101,
		Name:   "BBC One",
		Icon:   "imagecache/4",
		Tags:   []int64{1, 2},
	}

	// An update carrying only the current-event pointer must leave every
	// other field alone.
	c.ApplyMessage(htsp.NewRequest("channelUpdate").
		Set("channelId", int64(4)).
		Set("eventId", int64(900)))

	if c.Name != "BBC One" || c.Number != 101 || c.Icon != "imagecache/4" {
		t.Errorf("untouched fields changed: %+v", c)
	}
	if c.EventID != 900 {
		t.Errorf("EventID = %d, want 900", c.EventID)
	}
	if len(c.Tags) != 2 {
		t.Errorf("Tags = %v, want unchanged", c.Tags)
	}
}

func TestChannelApplyMessageFull(t *testing.T) {
	var c Channel
	c.ApplyMessage(htsp.NewRequest("channelAdd").
		Set("channelId", int64(7)).
		Set("channelNumber", int64(2)).
		Set("channelNumberMinor", int64(1)).
		Set("channelName", "ITV").
		Set("channelIcon", "http://example/icon.png").
		Set("eventId", int64(10)).
		Set("nextEventId", int64(11)).
		Set("tags", []int64{3}))

	want := Channel{
		ID: 7, Number: 2, NumberMinor: 1, Name: "ITV",
		Icon: "http://example/icon.png", EventID: 10, NextEventID: 11,
		Tags: []int64{3},
	}
	if c.ID != want.ID || c.Name != want.Name || c.NumberMinor != 1 {
		t.Errorf("channel = %+v, want %+v", c, want)
	}
}

func TestChannelDisplayNumber(t *testing.T) {
	tests := []struct {
		major, minor int64
		want         string
	}{
		{101, 0, "101"},
		{2, 1, "2.1"},
		{0, 0, "0"},
	}
	for _, tt := range tests {
		c := Channel{Number: tt.major, NumberMinor: tt.minor}
		if got := c.DisplayNumber(); got != tt.want {
			t.Errorf("DisplayNumber(%d,%d) = %q, want %q", tt.major, tt.minor, got, tt.want)
		}
	}
}

func TestTagApplyMessageRebuildsMembers(t *testing.T) {
	tag := ChannelTag{ID: 1, Name: "HD", Members: []int64{1, 2, 3}}
	tag.ApplyMessage(htsp.NewRequest("tagUpdate").
		Set("tagId", int64(1)).
		Set("members", []int64{2, 4}))

	if tag.Name != "HD" {
		t.Errorf("Name changed: %q", tag.Name)
	}
	if len(tag.Members) != 2 || tag.Members[0] != 2 || tag.Members[1] != 4 {
		t.Errorf("Members = %v, want [2 4]", tag.Members)
	}
}
