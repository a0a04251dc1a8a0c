package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/doorkeeper-core/internal/audit"
	"github.com/nerrad567/doorkeeper-core/internal/auth"
	"github.com/nerrad567/doorkeeper-core/internal/door"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/config"
	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/logging"
	"github.com/nerrad567/doorkeeper-core/internal/mail"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Guard    *auth.Guard
	Accounts *auth.Accounts
	Door     *door.Service
	Doorbell *door.Doorbell
	Audit    audit.Repository
	Mailer   mail.Mailer
	Checks   map[string]HealthCheck // reported by GET /health
	Version  string
}

// Server is the HTTP API server for Doorkeeper Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	guard    *auth.Guard
	accounts *auth.Accounts
	door     *door.Service
	doorbell *door.Doorbell
	audit    audit.Repository
	mailer   mail.Mailer
	checks   map[string]HealthCheck
	version  string
	server   *http.Server
	hub      *Hub
	tickets  *ticketStore
	cancel   context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. Door changes are
// relayed to WebSocket clients from the moment New returns.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Guard == nil || deps.Accounts == nil {
		return nil, fmt.Errorf("guard and accounts are required")
	}
	if deps.Door == nil {
		return nil, fmt.Errorf("door service is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		guard:    deps.Guard,
		accounts: deps.Accounts,
		door:     deps.Door,
		doorbell: deps.Doorbell,
		audit:    deps.Audit,
		mailer:   deps.Mailer,
		checks:   deps.Checks,
		version:  deps.Version,
		hub:      NewHub(deps.WS, deps.Logger),
		tickets:  newTicketStore(),
	}
	if s.mailer == nil {
		s.mailer = mail.NewLogMailer(deps.Logger.Logger)
	}

	s.door.OnChange(s.broadcastTransition)
	if s.doorbell != nil {
		s.doorbell.OnPress(s.broadcastPress)
	}
	return s, nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns so address errors surface
// here; serving continues on a background goroutine until Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadDuration(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadDuration(),
		WriteTimeout:      s.cfg.Timeouts.WriteDuration(),
		IdleTimeout:       s.cfg.Timeouts.IdleDuration(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = s.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
