// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

/*
Package models defines the mirrored PVR entities and API shapes.

Each entity carries JSON tags for the local store and HTTP responses,
plus an ApplyMessage method that reads the backend's wire fields.
ApplyMessage merges in place, so a partial update message only
overwrites the keys it carries.
*/
package models
