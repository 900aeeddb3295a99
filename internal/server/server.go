package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/adrianaguero/chatgate/internal/appid"
	apperrors "github.com/adrianaguero/chatgate/internal/errors"
	"github.com/adrianaguero/chatgate/internal/observability"
	"github.com/adrianaguero/chatgate/internal/server/handlers"
	servermw "github.com/adrianaguero/chatgate/internal/server/middleware"
)

// DefaultChatPath is where the chat handler is mounted unless overridden.
const DefaultChatPath = "/api/chat"

// Timeouts configures the http.Server. Write must exceed the chat deadline
// so a stream is cut by the handler and not by the server.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
}

// DefaultTimeouts returns the read/write/idle timeouts used when none are configured.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Read:  30 * time.Second,
		Write: 35 * time.Second,
		Idle:  120 * time.Second,
	}
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	host   string
	port   int

	mu     sync.Mutex
	server *http.Server

	chat        http.Handler
	chatPath    string
	health      *handlers.HealthManager
	timeouts    Timeouts
	adminToken  string
	metricsPort int
}

// Option customizes a Server.
type Option func(*Server)

// WithChatHandler mounts h as the POST chat endpoint.
func WithChatHandler(h http.Handler) Option {
	return func(s *Server) { s.chat = h }
}

// WithChatPath overrides DefaultChatPath.
func WithChatPath(path string) Option {
	return func(s *Server) {
		if strings.HasPrefix(path, "/") {
			s.chatPath = path
		}
	}
}

// WithHealthManager serves the health endpoints from hm.
func WithHealthManager(hm *handlers.HealthManager) Option {
	return func(s *Server) { s.health = hm }
}

// WithTimeouts overrides non-zero values of DefaultTimeouts.
func WithTimeouts(t Timeouts) Option {
	return func(s *Server) {
		if t.Read > 0 {
			s.timeouts.Read = t.Read
		}
		if t.Write > 0 {
			s.timeouts.Write = t.Write
		}
		if t.Idle > 0 {
			s.timeouts.Idle = t.Idle
		}
	}
}

// WithAdminToken enables POST /admin/signal behind bearer auth.
func WithAdminToken(token string) Option {
	return func(s *Server) { s.adminToken = strings.TrimSpace(token) }
}

// WithMetricsPort sets the exporter port /metrics falls back to.
func WithMetricsPort(port int) Option {
	return func(s *Server) { s.metricsPort = port }
}

// New creates a new HTTP server instance
func New(host string, port int, opts ...Option) *Server {
	r := chi.NewRouter()

	// RealIP first so RemoteAddr carries the client address for quota bucketing.
	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router:     r,
		host:       host,
		port:       port,
		chatPath:   DefaultChatPath,
		timeouts:   DefaultTimeouts(),
		adminToken: os.Getenv(appid.EnvPrefix + "ADMIN_TOKEN"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = handlers.NewHealthManager(handlers.AppVersion())
	}

	handlers.SetHTTPErrorResponder(HandleError)
	s.registerRoutes()

	return s
}

// HandleError central handler for all errors
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}

// Start listens on host:port and serves until Shutdown.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	httpServer := &http.Server{
		Addr:         ln.Addr().String(),
		Handler:      s.router,
		ReadTimeout:  s.timeouts.Read,
		WriteTimeout: s.timeouts.Write,
		IdleTimeout:  s.timeouts.Idle,
	}
	s.mu.Lock()
	s.server = httpServer
	s.mu.Unlock()

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server",
			zap.String("addr", ln.Addr().String()),
			zap.String("chat_path", s.chatPath),
			zap.Duration("write_timeout", s.timeouts.Write))
	}

	return httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.server
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	return httpServer.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.port
}

// ChatPath returns the mounted chat path.
func (s *Server) ChatPath() string {
	return s.chatPath
}

// Timeouts returns the effective http.Server timeouts.
func (s *Server) Timeouts() Timeouts {
	return s.timeouts
}
