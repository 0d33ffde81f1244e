package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/complaintdesk/complaintdesk/infrastructure/http/response"
	"github.com/complaintdesk/complaintdesk/infrastructure/service/logger"
)

// RouteGuards wraps route handlers with authentication and write throttling.
// Nil guards pass requests through unchanged.
type RouteGuards struct {
	Auth       func(http.Handler) http.Handler
	StreamAuth func(http.Handler) http.Handler
	Throttle   func(http.Handler) http.Handler
}

func (g RouteGuards) read(h http.HandlerFunc) http.Handler {
	return wrap(h, g.Auth)
}

// write throttles after authentication so limits are keyed per subject
func (g RouteGuards) write(h http.HandlerFunc) http.Handler {
	return wrap(h, g.Throttle, g.Auth)
}

func (g RouteGuards) stream(h http.HandlerFunc) http.Handler {
	return wrap(h, g.StreamAuth)
}

// wrap applies guards innermost first
func wrap(h http.Handler, guards ...func(http.Handler) http.Handler) http.Handler {
	for _, guard := range guards {
		if guard != nil {
			h = guard(h)
		}
	}
	return h
}

// HealthFunc reports extra health details, such as the number of live sessions
type HealthFunc func(ctx context.Context) map[string]interface{}

// NewRouter registers every API route on a fresh router
func NewRouter(complaints *ComplaintHandler, streams *StreamHandler, guards RouteGuards, health HealthFunc) *mux.Router {
	router := mux.NewRouter()

	// stream routes first so "stream" and "ws" are not captured by {id}
	streams.RegisterRoutes(router, guards)
	complaints.RegisterRoutes(router, guards)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]interface{}{"status": "ok"}
		if health != nil {
			for k, v := range health(r.Context()) {
				data[k] = v
			}
		}
		response.Success(w, http.StatusOK, "healthy", data)
	}).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.ErrorWithCode(w, http.StatusMethodNotAllowed, "Method not allowed", "METHOD_NOT_ALLOWED")
	})

	return router
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger logger.Logger
}

// NewServer creates a new HTTP server
func NewServer(config ServerConfig, handler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = 60 * time.Second
	}
	return &Server{
		server: &http.Server{
			Addr:              config.Addr,
			Handler:           handler,
			ReadHeaderTimeout: config.ReadTimeout,
			ReadTimeout:       config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
		logger: log,
	}
}

// OnShutdown registers f to run when Shutdown starts. Long-lived streams use
// it to end their sessions so Shutdown does not wait on them.
func (s *Server) OnShutdown(f func()) {
	s.server.RegisterOnShutdown(f)
}

// Start serves until Shutdown; http.ErrServerClosed is not an error
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{
		"addr": s.server.Addr,
	})
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
