package api

import (
	"net/http"

	"github.com/nerrad567/doorkeeper-core/internal/door"
)

// doorResponse is the body of a successful POST /door.
type doorResponse struct {
	Message  string     `json:"message"`
	Previous door.State `json:"previous"`
	State    door.State `json:"state"`
}

// doorbellRequest is the request body for POST /doorbell.
type doorbellRequest struct {
	Button string `json:"button"`
}

// doorbellButtonHTTP identifies presses arriving through the API.
const doorbellButtonHTTP = "app"

// handleDoor toggles the door for the caller.
func (s *Server) handleDoor(w http.ResponseWriter, r *http.Request) {
	t, err := s.door.Toggle(r.Context(), claimsFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doorResponse{
		Message:  "Action executed",
		Previous: t.Previous,
		State:    t.State,
	})
}

// handlePolling returns the current door state.
func (s *Server) handlePolling(w http.ResponseWriter, r *http.Request) {
	state, err := s.door.State(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]door.State{"door": state})
}

// handleDoorbell accepts a press from the app and notifies every device.
func (s *Server) handleDoorbell(w http.ResponseWriter, r *http.Request) {
	var req doorbellRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if s.doorbell == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternal, "doorbell not configured")
		return
	}

	if err := s.doorbell.Ring(req.Button, doorbellButtonHTTP, door.SourceHTTP); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, messageResponse{Message: "Notification sent"})
}
