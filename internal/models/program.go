// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package models

import (
	"github.com/pvrmirror/pvrmirror/internal/htsp"
)

// Program mirrors one guide event.
type Program struct {
	ID          int64  `json:"event_id"`
	ChannelID   int64  `json:"channel_id"`
	Start       int64  `json:"start"` // unix seconds
	Stop        int64  `json:"stop"`
	Title       string `json:"title,omitempty"`
	Subtitle    string `json:"subtitle,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`
	ContentType int64  `json:"content_type,omitempty"`
	AgeRating   int64  `json:"age_rating,omitempty"`
	StarRating  int64  `json:"star_rating,omitempty"`
	FirstAired  int64  `json:"first_aired,omitempty"`

	SeasonNumber    int64  `json:"season_number,omitempty"`
	SeasonCount     int64  `json:"season_count,omitempty"`
	EpisodeNumber   int64  `json:"episode_number,omitempty"`
	EpisodeCount    int64  `json:"episode_count,omitempty"`
	PartNumber      int64  `json:"part_number,omitempty"`
	PartCount       int64  `json:"part_count,omitempty"`
	EpisodeOnscreen string `json:"episode_onscreen,omitempty"`

	SeriesLinkID int64  `json:"series_link_id,omitempty"`
	EpisodeID    int64  `json:"episode_id,omitempty"`
	SeasonID     int64  `json:"season_id,omitempty"`
	BrandID      int64  `json:"brand_id,omitempty"`
	Image        string `json:"image,omitempty"`
	DvrID        int64  `json:"dvr_id,omitempty"` // recording scheduled for this event

	// NextEventID chains events within a channel; paged guide fetches follow
	// it to request the block after the last stored event.
	NextEventID int64 `json:"next_event_id,omitempty"`
}

// IsOnAirAt reports whether the program is running at the given unix time.
func (p *Program) IsOnAirAt(now int64) bool {
	return p.Start <= now && now < p.Stop
}

// ApplyMessage merges the fields present in an HTSP eventAdd/eventUpdate
// notification (or a getEvents list element) into the program.
func (p *Program) ApplyMessage(m *htsp.Message) {
	if m.Contains("eventId") {
		p.ID = m.GetInt64("eventId", p.ID)
	}
	if m.Contains("channelId") {
		p.ChannelID = m.GetInt64("channelId", p.ChannelID)
	}
	if m.Contains("start") {
		p.Start = m.GetInt64("start", p.Start)
	}
	if m.Contains("stop") {
		p.Stop = m.GetInt64("stop", p.Stop)
	}
	if m.Contains("title") {
		p.Title = m.GetStr("title", p.Title)
	}
	if m.Contains("subtitle") {
		p.Subtitle = m.GetStr("subtitle", p.Subtitle)
	}
	if m.Contains("summary") {
		p.Summary = m.GetStr("summary", p.Summary)
	}
	if m.Contains("description") {
		p.Description = m.GetStr("description", p.Description)
	}
	if m.Contains("contentType") {
		p.ContentType = m.GetInt64("contentType", p.ContentType)
	}
	if m.Contains("ageRating") {
		p.AgeRating = m.GetInt64("ageRating", p.AgeRating)
	}
	if m.Contains("starRating") {
		p.StarRating = m.GetInt64("starRating", p.StarRating)
	}
	if m.Contains("firstAired") {
		p.FirstAired = m.GetInt64("firstAired", p.FirstAired)
	}
	if m.Contains("seasonNumber") {
		p.SeasonNumber = m.GetInt64("seasonNumber", p.SeasonNumber)
	}
	if m.Contains("seasonCount") {
		p.SeasonCount = m.GetInt64("seasonCount", p.SeasonCount)
	}
	if m.Contains("episodeNumber") {
		p.EpisodeNumber = m.GetInt64("episodeNumber", p.EpisodeNumber)
	}
	if m.Contains("episodeCount") {
		p.EpisodeCount = m.GetInt64("episodeCount", p.EpisodeCount)
	}
	if m.Contains("partNumber") {
		p.PartNumber = m.GetInt64("partNumber", p.PartNumber)
	}
	if m.Contains("partCount") {
		p.PartCount = m.GetInt64("partCount", p.PartCount)
	}
	if m.Contains("episodeOnscreen") {
		p.EpisodeOnscreen = m.GetStr("episodeOnscreen", p.EpisodeOnscreen)
	}
	if m.Contains("serieslinkId") {
		p.SeriesLinkID = m.GetInt64("serieslinkId", p.SeriesLinkID)
	}
	if m.Contains("episodeId") {
		p.EpisodeID = m.GetInt64("episodeId", p.EpisodeID)
	}
	if m.Contains("seasonId") {
		p.SeasonID = m.GetInt64("seasonId", p.SeasonID)
	}
	if m.Contains("brandId") {
		p.BrandID = m.GetInt64("brandId", p.BrandID)
	}
	if m.Contains("image") {
		p.Image = m.GetStr("image", p.Image)
	}
	if m.Contains("dvrId") {
		p.DvrID = m.GetInt64("dvrId", p.DvrID)
	}
	if m.Contains("nextEventId") {
		p.NextEventID = m.GetInt64("nextEventId", p.NextEventID)
	}
}
