// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package models

// Profile kinds from the backend's catalog endpoints.
const (
	ProfileTypePlayback  = "playback"
	ProfileTypeRecording = "recording"
)

// ServerProfile is one backend streaming or DVR configuration profile.
type ServerProfile struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name"`
	Comment string `json:"comment,omitempty"`
	Type    string `json:"type"` // ProfileTypePlayback or ProfileTypeRecording
}

// ServerStatus is the persisted snapshot of the backend's identity and
// capacity, refreshed on every handshake and by the periodic status probe.
type ServerStatus struct {
	ServerName      string `json:"server_name"`
	ServerVersion   string `json:"server_version"`
	ProtocolVersion int64  `json:"protocol_version"`
	Webroot         string `json:"webroot,omitempty"`

	Time      int64 `json:"time,omitempty"`       // backend clock, unix seconds
	GMTOffset int64 `json:"gmt_offset,omitempty"` // minutes

	FreeDiskSpace  int64 `json:"free_disk_space,omitempty"`
	TotalDiskSpace int64 `json:"total_disk_space,omitempty"`

	ConnectedAt int64 `json:"connected_at,omitempty"`
	ProbedAt    int64 `json:"probed_at,omitempty"`
}

// SyncProgress is the sync engine's externally visible position, exposed over
// the event bus and the status endpoint.
type SyncProgress struct {
	State      string `json:"state"`
	Channels   int    `json:"channels"`
	Tags       int    `json:"tags"`
	Recordings int    `json:"recordings"`
	Programs   int    `json:"programs"`
	StartedAt  int64  `json:"started_at,omitempty"`
	FinishedAt int64  `json:"finished_at,omitempty"`
}
