package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/uxav/AVnetCore-sub001/internal/auth"
	"github.com/uxav/AVnetCore-sub001/internal/av"
	"github.com/uxav/AVnetCore-sub001/internal/eventlog"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/config"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/database"
	"github.com/uxav/AVnetCore-sub001/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultWaitTimeout bounds ?wait=true requests when none is configured.
const defaultWaitTimeout = 15 * time.Second

// HealthChecker is implemented by every infrastructure client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ConnectionStatus reports whether a broker client is connected.
type ConnectionStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Env      *av.Environment
	Auth     *auth.Service
	Panels   auth.PanelRepository
	Tickets  *auth.TicketStore
	Events   eventlog.Repository // optional: /rooms/{id}/events returns 503 without it
	DB       *database.DB        // optional: pool stats in /metrics
	MQTT     ConnectionStatus    // optional: broker status in /metrics
	Health   map[string]HealthChecker
	Hub      *Hub // If set, the server uses this hub instead of creating its own
	Version  string

	// WaitTimeout bounds power and source requests made with ?wait=true.
	WaitTimeout time.Duration
}

// Server is the HTTP API server for AVnet Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	env         *av.Environment
	auth        *auth.Service
	panels      auth.PanelRepository
	tickets     *auth.TicketStore
	events      eventlog.Repository
	db          *database.DB
	mqtt        ConnectionStatus
	health      map[string]HealthChecker
	version     string
	waitTimeout time.Duration
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Env == nil {
		return nil, fmt.Errorf("environment is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.Tickets == nil {
		deps.Tickets = auth.NewTicketStore(0)
	}
	if deps.WaitTimeout <= 0 {
		deps.WaitTimeout = defaultWaitTimeout
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		logger:      deps.Logger,
		env:         deps.Env,
		auth:        deps.Auth,
		panels:      deps.Panels,
		tickets:     deps.Tickets,
		events:      deps.Events,
		db:          deps.DB,
		mqtt:        deps.MQTT,
		health:      deps.Health,
		version:     deps.Version,
		waitTimeout: deps.WaitTimeout,
		startTime:   time.Now(),
	}

	// Use the externally-provided hub when the notify service already
	// broadcasts through it.
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(s.wsCfg, s.logger)
	}

	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub (unless injected) and ticket sweeping, then
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}
	go s.tickets.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
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

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
