// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package api

import (
	"net/http"

	"github.com/pvrmirror/pvrmirror/internal/sync"
)

// ChannelGuide lists the stored guide for one channel in start order.
func (h *Handler) ChannelGuide(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(w, r, "id")
	if !ok {
		return
	}
	programs, err := h.repo.Programs.GetByChannel(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read guide", err)
		return
	}
	respondList(w, programs, len(programs))
}

// ChannelGuideMore extends one channel's stored guide by a page from the
// backend, following the last stored event's next pointer.
func (h *Handler) ChannelGuideMore(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(w, r, "id")
	if !ok {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	added, err := engine.LoadMoreGuide(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Guide page fetch failed", err)
		return
	}
	respondOK(w, map[string]int{"added": added})
}

// GuideSearch runs a full-text guide search on the backend and returns the
// matching events, fetching any that are not yet mirrored.
func (h *Handler) GuideSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "q is required", nil)
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}

	eventIDs, err := engine.QueryGuide(r.Context(), sync.GuideQuery{
		Query:       query,
		ChannelID:   queryInt64(r, "channel", 0),
		TagID:       queryInt64(r, "tag", 0),
		ContentType: queryInt64(r, "content_type", 0),
		MinDuration: queryInt64(r, "min_duration", 0),
		MaxDuration: queryInt64(r, "max_duration", 0),
	})
	if err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Guide search failed", err)
		return
	}

	respondList(w, eventIDs, len(eventIDs))
}

// GuideEvent returns one stored guide event by its backend event id,
// fetching it (plus a page of followers) when not yet mirrored.
func (h *Handler) GuideEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := urlParamInt64(w, r, "id")
	if !ok {
		return
	}

	program, err := h.repo.Programs.GetByEventID(id)
	if err == nil {
		respondOK(w, program)
		return
	}

	engine, ok := h.engine(w)
	if !ok {
		return
	}
	if _, err := engine.FetchEvents(r.Context(), id, 0); err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Event fetch failed", err)
		return
	}
	program, err = h.repo.Programs.GetByEventID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No such guide event", nil)
		return
	}
	respondOK(w, program)
}
