// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package api

import (
	"net/http"

	"github.com/pvrmirror/pvrmirror/internal/models"
	"github.com/pvrmirror/pvrmirror/internal/sync"
)

// RecordingCreateRequest schedules a recording, either by guide event or
// as a manual time slot.
type RecordingCreateRequest struct {
	EventID     int64  `json:"event_id" validate:"min=0,required_without=ChannelID"`
	ChannelID   int64  `json:"channel_id" validate:"min=0"`
	Start       int64  `json:"start" validate:"min=0"`
	Stop        int64  `json:"stop" validate:"min=0,gtefield=Start"`
	StartExtra  int64  `json:"start_extra" validate:"min=0"`
	StopExtra   int64  `json:"stop_extra" validate:"min=0"`
	Title       string `json:"title" validate:"max=512"`
	Subtitle    string `json:"subtitle" validate:"max=512"`
	Description string `json:"description" validate:"max=4096"`
	Priority    int64  `json:"priority" validate:"min=0,max=6"`
	Retention   int64  `json:"retention" validate:"min=0"`
	ConfigUUID  string `json:"config_uuid" validate:"max=64"`
}

func (req *RecordingCreateRequest) toEngineRequest() *sync.RecordingRequest {
	return &sync.RecordingRequest{
		EventID:     req.EventID,
		ChannelID:   req.ChannelID,
		Start:       req.Start,
		Stop:        req.Stop,
		StartExtra:  req.StartExtra,
		StopExtra:   req.StopExtra,
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Description: req.Description,
		Priority:    req.Priority,
		Retention:   req.Retention,
		ConfigUUID:  req.ConfigUUID,
	}
}

// Recordings lists mirrored DVR entries, optionally filtered by
// ?state=scheduled|recording|completed.
func (h *Handler) Recordings(w http.ResponseWriter, r *http.Request) {
	recordings, err := h.repo.Recordings.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read recordings", err)
		return
	}

	if state := r.URL.Query().Get("state"); state != "" {
		filtered := recordings[:0]
		for _, rec := range recordings {
			if rec.State == state {
				filtered = append(filtered, rec)
			}
		}
		recordings = filtered
	}

	respondList(w, recordings, len(recordings))
}

// Recording returns one DVR entry by id.
func (h *Handler) Recording(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(w, r, "id")
	if !ok {
		return
	}
	rec, err := h.repo.Recordings.GetByID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No such recording", nil)
		return
	}
	respondOK(w, rec)
}

// RecordingCreate schedules a recording on the backend. The mirrored entry
// arrives asynchronously through the sync stream.
func (h *Handler) RecordingCreate(w http.ResponseWriter, r *http.Request) {
	var req RecordingCreateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}

	id, err := engine.AddRecording(r.Context(), req.toEngineRequest())
	if err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Backend rejected the recording", err)
		return
	}
	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status:   "ok",
		Data:     map[string]int64{"id": id},
		Metadata: okMetadata(),
	})
}

// RecordingUpdate modifies a scheduled entry.
func (h *Handler) RecordingUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(w, r, "id")
	if !ok {
		return
	}
	var req RecordingCreateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	if err := engine.UpdateRecording(r.Context(), id, req.toEngineRequest()); err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Backend rejected the update", err)
		return
	}
	respondAccepted(w)
}

// RecordingStop stops an in-progress recording, keeping the partial file.
func (h *Handler) RecordingStop(w http.ResponseWriter, r *http.Request) {
	h.recordingCommand(w, r, func(engine *sync.Engine, id int64) error {
		return engine.StopRecording(r.Context(), id)
	})
}

// RecordingCancel aborts an entry, discarding any partial file.
func (h *Handler) RecordingCancel(w http.ResponseWriter, r *http.Request) {
	h.recordingCommand(w, r, func(engine *sync.Engine, id int64) error {
		return engine.CancelRecording(r.Context(), id)
	})
}

// RecordingDelete removes an entry and its file.
func (h *Handler) RecordingDelete(w http.ResponseWriter, r *http.Request) {
	h.recordingCommand(w, r, func(engine *sync.Engine, id int64) error {
		return engine.RemoveRecording(r.Context(), id)
	})
}

func (h *Handler) recordingCommand(w http.ResponseWriter, r *http.Request, cmd func(*sync.Engine, int64) error) {
	id, ok := urlParamInt64(w, r, "id")
	if !ok {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	if err := cmd(engine, id); err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Backend rejected the command", err)
		return
	}
	respondAccepted(w)
}

// RecordingTicket requests a streaming ticket for a finished or running
// recording.
func (h *Handler) RecordingTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(w, r, "id")
	if !ok {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	ticket, err := engine.GetRecordingTicket(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Ticket request failed", err)
		return
	}
	respondOK(w, ticket)
}
