// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/pvrmirror/pvrmirror/internal/logging"
	"github.com/pvrmirror/pvrmirror/internal/models"
	"github.com/pvrmirror/pvrmirror/internal/validation"
)

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// generateETag creates a simple ETag from data using FNV-1a.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

func respondOK(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

func respondList(w http.ResponseWriter, data interface{}, count int) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "ok",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now(), Count: count},
	})
}

func okMetadata() models.Metadata {
	return models.Metadata{Timestamp: time.Now()}
}

// respondAccepted acknowledges a command whose effect arrives later over
// the sync stream.
func respondAccepted(w http.ResponseWriter) {
	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status:   "ok",
		Data:     map[string]string{"result": "accepted"},
		Metadata: okMetadata(),
	})
}

// respondError sends an error response with a stable code.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Data:     nil,
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// decodeAndValidate unmarshals the request body and validates it. On
// failure it writes the error response and returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON", err)
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		apiErr := verr.ToAPIError()
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error: &models.APIError{
				Code:    apiErr.Code,
				Message: apiErr.Message,
				Details: apiErr.Details,
			},
		})
		return false
	}
	return true
}

// urlParamInt64 parses a chi URL parameter as int64. Writes the error
// response itself on failure.
func urlParamInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		respondError(w, http.StatusBadRequest, "INVALID_ID", name+" must be a non-negative integer", nil)
		return 0, false
	}
	return id, true
}

func queryInt64(r *http.Request, name string, def int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}
