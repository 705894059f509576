// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package models

import (
	"github.com/pvrmirror/pvrmirror/internal/htsp"
)

// ChannelTag mirrors one backend channel grouping (HD, Radio, ...).
type ChannelTag struct {
	ID         int64  `json:"tag_id"`
	Name       string `json:"tag_name"`
	Index      int64  `json:"tag_index"` // backend-defined sort order
	Icon       string `json:"tag_icon,omitempty"`
	TitledIcon int64  `json:"tag_titled_icon,omitempty"`

	// Members is the channel id list from the last tagAdd/tagUpdate; the
	// queryable join rows are maintained separately.
	Members []int64 `json:"members,omitempty"`
}

// TagAndChannel is one tag membership join row.
type TagAndChannel struct {
	TagID     int64 `json:"tag_id"`
	ChannelID int64 `json:"channel_id"`
}

// ApplyMessage merges the fields present in an HTSP tagAdd/tagUpdate
// notification into the tag.
func (t *ChannelTag) ApplyMessage(m *htsp.Message) {
	if m.Contains("tagId") {
		t.ID = m.GetInt64("tagId", t.ID)
	}
	if m.Contains("tagName") {
		t.Name = m.GetStr("tagName", t.Name)
	}
	if m.Contains("tagIndex") {
		t.Index = m.GetInt64("tagIndex", t.Index)
	}
	if m.Contains("tagIcon") {
		t.Icon = m.GetStr("tagIcon", t.Icon)
	}
	if m.Contains("tagTitledIcon") {
		t.TitledIcon = m.GetInt64("tagTitledIcon", t.TitledIcon)
	}
	if m.Contains("members") {
		t.Members = m.GetIntList("members")
	}
}
