package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/doorkeeper-core/internal/audit"
)

// handleAudit returns the most recent door audit entries.
//
// Query parameters:
//   - limit: max results (default 50, max 500)
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := audit.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, audit.MaxLimit)
	}

	entries := []audit.Entry{}
	if s.audit != nil {
		var err error
		entries, err = s.audit.List(r.Context(), limit)
		if err != nil {
			s.logger.Error("reading audit log failed", "error", err)
			writeInternalError(w, "failed to read audit log")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
