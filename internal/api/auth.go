package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/doorkeeper-core/internal/auth"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// loginRequest is the request body for POST /login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"pw"`
}

// loginResponse is the response body for POST /login.
type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// resetRequest is the request body for POST /reset.
type resetRequest struct {
	Email           string `json:"email"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// forgotRequest is the request body for POST /forgot.
type forgotRequest struct {
	Email string `json:"email"`
}

// emailResetRequest is the request body for POST /email.
type emailResetRequest struct {
	Email         string `json:"email"`
	ResetPassword string `json:"reset_password"`
}

// notificationRequest is the request body for POST /notification.
type notificationRequest struct {
	DeviceToken string `json:"device_token"`
}

// messageResponse is the body of responses that only confirm an action.
type messageResponse struct {
	Message string `json:"message"`
}

// handleLogin verifies credentials and returns a session token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	token, user, err := s.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Info("login rejected", "email", req.Email, "error", err)
		writeServiceError(w, err)
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusAccepted, loginResponse{
		Token:     token,
		ExpiresIn: int(s.accounts.SessionTTL().Seconds()),
	})
}

// handleReset changes the caller's password.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFromContext(r.Context())
	if err := s.accounts.ChangePassword(r.Context(), claims, req.Email, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	s.logger.Info("password changed", "email", claims.Email)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

// handleForgot emails a password reset link. A mail failure is logged and
// the request still succeeds.
func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	token, user, err := s.accounts.StartReset(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if err := s.mailer.SendResetLink(r.Context(), user.Email, user.Name, token); err != nil {
		s.logger.Error("sending reset link failed", "email", user.Email, "error", err)
	} else {
		s.logger.Info("reset link sent", "email", user.Email)
	}

	writeJSON(w, http.StatusAccepted, messageResponse{Message: "Reset link sent"})
}

// handleEmail sets a new password using the emailed reset token.
func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	var req emailResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFromContext(r.Context())
	if err := s.accounts.CompleteReset(r.Context(), claims, req.Email, req.ResetPassword); err != nil {
		writeServiceError(w, err)
		return
	}

	s.logger.Info("password reset", "email", claims.Email)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password reset"})
}

// handleNotification registers the caller's push device.
func (s *Server) handleNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	claims := claimsFromContext(r.Context())
	if err := s.accounts.RegisterDevice(r.Context(), claims, req.DeviceToken); err != nil {
		writeServiceError(w, err)
		return
	}

	s.logger.Info("device registered", "email", claims.Email)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Device registered"})
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	expiresAt time.Time
	email     string
	role      auth.Role
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// issue stores a new ticket for the caller.
func (ts *ticketStore) issue(claims *auth.Claims) string {
	ticket := generateTicket()

	ts.mu.Lock()
	ts.tickets[ticket] = ticketEntry{
		expiresAt: time.Now().Add(ticketTTL),
		email:     claims.Email,
		role:      claims.Role,
	}
	ts.mu.Unlock()

	return ticket
}

// consume checks if a ticket is valid and removes it (single-use).
func (ts *ticketStore) consume(ticket string) (ticketEntry, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	entry, ok := ts.tickets[ticket]
	if !ok {
		return ticketEntry{}, false
	}
	delete(ts.tickets, ticket)

	return entry, time.Now().Before(entry.expiresAt)
}

// cleanExpired removes expired tickets from the store.
func (ts *ticketStore) cleanExpired() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := time.Now()
	for ticket, entry := range ts.tickets {
		if now.After(entry.expiresAt) {
			delete(ts.tickets, ticket)
		}
	}
}

// handleWSTicket generates a single-use WebSocket authentication ticket.
// The client uses this ticket to authenticate the WebSocket connection
// without exposing the JWT in the URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	ticket := s.tickets.issue(claimsFromContext(r.Context()))

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop runs cleanExpired periodically until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.cleanExpired()
		}
	}
}
