package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/conveyorhq/conveyor/internal/jobfolder"
	"github.com/conveyorhq/conveyor/internal/queue"
	"github.com/conveyorhq/conveyor/internal/registry"
	"github.com/conveyorhq/conveyor/internal/shard"
	pebblestore "github.com/conveyorhq/conveyor/internal/storage/pebble"
)

// Helper functions for common HTTP responses

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError maps component sentinel errors to HTTP status codes and
// writes the error body.
func writeServiceError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownFeature),
		errors.Is(err, registry.ErrUnknownBatch),
		errors.Is(err, jobfolder.ErrUnknownFolder),
		errors.Is(err, jobfolder.ErrUnknownSlot):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrDuplicateFeature),
		errors.Is(err, registry.ErrInvalidTransition),
		errors.Is(err, registry.ErrBatchOpen),
		errors.Is(err, queue.ErrAlreadyQueued),
		errors.Is(err, queue.ErrNotClaimed),
		errors.Is(err, jobfolder.ErrAlreadyOpen),
		errors.Is(err, jobfolder.ErrAlreadyFilled),
		errors.Is(err, jobfolder.ErrIncomplete):
		return http.StatusConflict
	case errors.Is(err, shard.ErrNoDispatchers):
		return http.StatusBadRequest
	case errors.Is(err, pebblestore.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseLimit parses a limit string and returns a valid limit value.
//
// Returns 0 for empty strings or invalid values.
func parseLimit(limitStr string) int {
	if limitStr == "" {
		return 0
	}
	if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
		return limit
	}
	return 0
}

// parseBool parses a boolean string and returns the boolean value.
//
// Returns true for "true" or "1", false otherwise.
func parseBool(s string) bool {
	return s == "true" || s == "1"
}
