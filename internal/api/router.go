package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/doorkeeper-core/internal/auth"
)

// healthCheckTimeout bounds each dependency check in GET /health.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// No auth required
	r.Get("/health", s.handleHealth)
	r.Post("/login", s.handleLogin)
	r.Post("/forgot", s.handleForgot)

	// Reset link holders
	r.With(s.requireReset).Post("/email", s.handleEmail)

	// Any signed-in user
	r.Group(func(r chi.Router) {
		r.Use(s.requireRole(auth.RoleUser))

		r.Post("/door", s.handleDoor)
		r.Get("/polling", s.handlePolling)
		r.Post("/doorbell", s.handleDoorbell)
		r.Post("/reset", s.handleReset)
		r.Post("/notification", s.handleNotification)
		r.Post("/ws-ticket", s.handleWSTicket)
	})

	// Admins
	r.Group(func(r chi.Router) {
		r.Use(s.requireRole(auth.RoleAdmin))

		r.Get("/audit", s.handleAudit)
	})

	// WebSocket (auth via ticket, validated in handler)
	r.Get("/ws", s.handleWebSocket)

	return r
}

// handleHealth returns the server health status. Any failing dependency
// turns the response into a 503 naming the failure.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	results := make(map[string]string, len(s.checks))

	for name, check := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			s.logger.Warn("health check failed", "check", name, "error", err)
			results[name] = "unavailable"
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]any{
		"status":     status,
		"version":    s.version,
		"ws_clients": s.hub.ClientCount(),
	}
	if len(results) > 0 {
		body["checks"] = results
	}
	writeJSON(w, code, body)
}
