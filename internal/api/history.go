package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// History limits for GET /devices/{id}/history.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// handleGetDeviceHistory returns journal entries for a device, newest first.
//
// Query parameters:
//   - limit: number of entries (1..500, default 50)
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "snapshot journal is disabled")
		return
	}

	id, ok := deviceID(w, r)
	if !ok {
		return
	}
	if _, ok := s.snapshot(id); !ok {
		writeNotFound(w, fmt.Sprintf("device %q not found", id))
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.journal.History(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("loading device history", "device_id", id, "error", err)
		writeInternalError(w, "failed to load device history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"history":   entries,
		"count":     len(entries),
	})
}

// parseHistoryLimit parses the limit query parameter with bounds enforcement.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}
