// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package api

import (
	"net/http"
	"time"

	"github.com/pvrmirror/pvrmirror/internal/models"
	"github.com/pvrmirror/pvrmirror/internal/repository"
	"github.com/pvrmirror/pvrmirror/internal/sync"
)

// EngineProvider hands out the running sync engine. It returns nil while
// the backend session is down; handlers that need it answer 503 then.
type EngineProvider interface {
	Engine() *sync.Engine
}

// Handler implements the HTTP endpoints over the local replica and the
// backend session.
type Handler struct {
	repo      *repository.Repository
	session   EngineProvider
	startedAt time.Time
}

// NewHandler creates the endpoint handler.
func NewHandler(repo *repository.Repository, session EngineProvider) *Handler {
	return &Handler{
		repo:      repo,
		session:   session,
		startedAt: time.Now(),
	}
}

// engine returns the live engine or answers 503.
func (h *Handler) engine(w http.ResponseWriter) (*sync.Engine, bool) {
	if h.session != nil {
		if e := h.session.Engine(); e != nil {
			return e, true
		}
	}
	respondError(w, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE",
		"No backend session; command endpoints need a connected backend", nil)
	return nil, false
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondOK(w, map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Status reports the backend snapshot, sync progress, and session state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.repo.State.ServerStatus()
	if err != nil {
		// Never connected yet; report an empty snapshot rather than 500.
		status = &models.ServerStatus{}
	}

	var progress models.SyncProgress
	connected := false
	if h.session != nil {
		if e := h.session.Engine(); e != nil {
			progress = e.Progress()
			connected = true
		}
	}
	if !connected {
		if stored, err := h.repo.State.SyncProgress(); err == nil {
			progress = *stored
		}
	}

	respondOK(w, map[string]interface{}{
		"connected": connected,
		"server":    status,
		"sync":      progress,
	})
}

// Channels lists mirrored channels, optionally filtered by ?tag=<id>.
func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.repo.Channels.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read channels", err)
		return
	}

	if tagID := queryInt64(r, "tag", 0); tagID > 0 {
		members, err := h.repo.TagChannels.GetChannelIDs(tagID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read tag members", err)
			return
		}
		inTag := make(map[int64]bool, len(members))
		for _, id := range members {
			inTag[id] = true
		}
		filtered := channels[:0]
		for _, ch := range channels {
			if inTag[ch.ID] {
				filtered = append(filtered, ch)
			}
		}
		channels = filtered
	}

	respondList(w, channels, len(channels))
}

// Channel returns one channel by id.
func (h *Handler) Channel(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(w, r, "id")
	if !ok {
		return
	}
	ch, err := h.repo.Channels.GetByID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No such channel", nil)
		return
	}
	respondOK(w, ch)
}

// Tags lists channel tags.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.repo.Tags.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read tags", err)
		return
	}
	respondList(w, tags, len(tags))
}

// Profiles lists backend streaming/recording profiles, optionally filtered
// by ?type=playback|recording.
func (h *Handler) Profiles(w http.ResponseWriter, r *http.Request) {
	profileType := r.URL.Query().Get("type")
	switch profileType {
	case "":
		playback, err := h.repo.Profiles.GetByType(models.ProfileTypePlayback)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read profiles", err)
			return
		}
		recording, err := h.repo.Profiles.GetByType(models.ProfileTypeRecording)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read profiles", err)
			return
		}
		all := append(playback, recording...)
		respondList(w, all, len(all))
	case models.ProfileTypePlayback, models.ProfileTypeRecording:
		profiles, err := h.repo.Profiles.GetByType(profileType)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read profiles", err)
			return
		}
		respondList(w, profiles, len(profiles))
	default:
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "type must be playback or recording", nil)
	}
}

// ChannelTicket requests a streaming ticket for a channel.
func (h *Handler) ChannelTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(w, r, "id")
	if !ok {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	ticket, err := engine.GetChannelTicket(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Ticket request failed", err)
		return
	}
	respondOK(w, ticket)
}
