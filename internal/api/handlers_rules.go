// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pvrmirror/pvrmirror/internal/models"
)

// SeriesRuleRequest creates or updates a recurring event rule.
type SeriesRuleRequest struct {
	Enabled     bool   `json:"enabled"`
	Title       string `json:"title" validate:"required,max=512"`
	Name        string `json:"name" validate:"max=512"`
	ChannelID   int64  `json:"channel_id" validate:"min=0"`
	MinDuration int64  `json:"min_duration" validate:"min=0"`
	MaxDuration int64  `json:"max_duration" validate:"min=0"`
	DaysOfWeek  int64  `json:"days_of_week" validate:"min=0,max=127"`
	Priority    int64  `json:"priority" validate:"min=0,max=6"`
	Start       int64  `json:"start" validate:"min=0,max=1439"`
	StartWindow int64  `json:"start_window" validate:"min=0,max=1439"`
	StartExtra  int64  `json:"start_extra" validate:"min=0"`
	StopExtra   int64  `json:"stop_extra" validate:"min=0"`
	DupDetect   int64  `json:"dup_detect" validate:"min=0"`
	Fulltext    bool   `json:"fulltext"`
	Directory   string `json:"directory" validate:"max=512"`
	Retention   int64  `json:"retention" validate:"min=0"`
}

func (req *SeriesRuleRequest) toModel(id string) *models.SeriesRecording {
	rule := &models.SeriesRecording{
		ID:          id,
		Title:       req.Title,
		Name:        req.Name,
		ChannelID:   req.ChannelID,
		MinDuration: req.MinDuration,
		MaxDuration: req.MaxDuration,
		DaysOfWeek:  req.DaysOfWeek,
		Priority:    req.Priority,
		Start:       req.Start,
		StartWindow: req.StartWindow,
		StartExtra:  req.StartExtra,
		StopExtra:   req.StopExtra,
		DupDetect:   req.DupDetect,
		Directory:   req.Directory,
		Retention:   req.Retention,
	}
	if req.Enabled {
		rule.Enabled = 1
	}
	if req.Fulltext {
		rule.Fulltext = 1
	}
	return rule
}

// TimerRuleRequest creates or updates a recurring time rule.
type TimerRuleRequest struct {
	Enabled    bool   `json:"enabled"`
	Title      string `json:"title" validate:"required,max=512"`
	Name       string `json:"name" validate:"max=512"`
	ChannelID  int64  `json:"channel_id" validate:"required,min=1"`
	DaysOfWeek int64  `json:"days_of_week" validate:"min=0,max=127"`
	Priority   int64  `json:"priority" validate:"min=0,max=6"`
	Start      int64  `json:"start" validate:"min=0,max=1439"`
	Stop       int64  `json:"stop" validate:"min=0,max=1439"`
	Directory  string `json:"directory" validate:"max=512"`
	ConfigName string `json:"config_name" validate:"max=64"`
	Retention  int64  `json:"retention" validate:"min=0"`
}

func (req *TimerRuleRequest) toModel(id string) *models.TimerRecording {
	rule := &models.TimerRecording{
		ID:         id,
		Title:      req.Title,
		Name:       req.Name,
		ChannelID:  req.ChannelID,
		DaysOfWeek: req.DaysOfWeek,
		Priority:   req.Priority,
		Start:      req.Start,
		Stop:       req.Stop,
		Directory:  req.Directory,
		ConfigName: req.ConfigName,
		Retention:  req.Retention,
	}
	if req.Enabled {
		rule.Enabled = 1
	}
	return rule
}

// SeriesRules lists recurring event rules.
func (h *Handler) SeriesRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.SeriesRecordings.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read series rules", err)
		return
	}
	respondList(w, rules, len(rules))
}

// SeriesRuleCreate creates a recurring event rule on the backend.
func (h *Handler) SeriesRuleCreate(w http.ResponseWriter, r *http.Request) {
	var req SeriesRuleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	if err := engine.AddSeriesRecording(r.Context(), req.toModel("")); err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Backend rejected the rule", err)
		return
	}
	respondAccepted(w)
}

// SeriesRuleUpdate modifies a recurring event rule.
func (h *Handler) SeriesRuleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "id is required", nil)
		return
	}
	var req SeriesRuleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	if err := engine.UpdateSeriesRecording(r.Context(), req.toModel(id)); err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Backend rejected the update", err)
		return
	}
	respondAccepted(w)
}

// SeriesRuleDelete removes a recurring event rule.
func (h *Handler) SeriesRuleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "id is required", nil)
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	if err := engine.RemoveSeriesRecording(r.Context(), id); err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Backend rejected the delete", err)
		return
	}
	respondAccepted(w)
}

// TimerRules lists recurring time rules.
func (h *Handler) TimerRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.repo.TimerRecordings.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to read timer rules", err)
		return
	}
	respondList(w, rules, len(rules))
}

// TimerRuleCreate creates a recurring time rule on the backend.
func (h *Handler) TimerRuleCreate(w http.ResponseWriter, r *http.Request) {
	var req TimerRuleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	if err := engine.AddTimerRecording(r.Context(), req.toModel("")); err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Backend rejected the rule", err)
		return
	}
	respondAccepted(w)
}

// TimerRuleUpdate modifies a recurring time rule.
func (h *Handler) TimerRuleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "id is required", nil)
		return
	}
	var req TimerRuleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	if err := engine.UpdateTimerRecording(r.Context(), req.toModel(id)); err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Backend rejected the update", err)
		return
	}
	respondAccepted(w)
}

// TimerRuleDelete removes a recurring time rule.
func (h *Handler) TimerRuleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "id is required", nil)
		return
	}
	engine, ok := h.engine(w)
	if !ok {
		return
	}
	if err := engine.RemoveTimerRecording(r.Context(), id); err != nil {
		respondError(w, http.StatusBadGateway, "BACKEND_ERROR", "Backend rejected the delete", err)
		return
	}
	respondAccepted(w)
}
