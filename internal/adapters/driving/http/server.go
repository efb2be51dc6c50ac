package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shiurlab/shiur-core/internal/adapters/driven/auth"
	"github.com/shiurlab/shiur-core/internal/core/ports/driven"
	"github.com/shiurlab/shiur-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	guideService driving.GuideService

	// Infrastructure
	taskQueue   driven.TaskQueue // optional; enables async generation
	authAdapter *auth.Adapter
	db          Pinger // store health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	guideService driving.GuideService,
	taskQueue driven.TaskQueue,
	authAdapter *auth.Adapter,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	s := &Server{
		router:       http.NewServeMux(),
		version:      cfg.Version,
		guideService: guideService,
		taskQueue:    taskQueue,
		authAdapter:  authAdapter,
		db:           db,
		redisClient:  redisClient,
	}

	s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      LoggingMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // generation requests are long
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// registerRoutes wires the API surface
func (s *Server) registerRoutes() {
	authMW := NewAuthMiddleware(s.authAdapter)

	s.router.HandleFunc("GET /health", s.handleHealth)

	s.router.Handle("POST /api/v1/guides", authMW.Authenticate(http.HandlerFunc(s.handleGenerateGuide)))
	s.router.Handle("GET /api/v1/guides/{fingerprint}", authMW.Authenticate(http.HandlerFunc(s.handleGetGuide)))
	s.router.Handle("GET /api/v1/guides/{fingerprint}/progress", authMW.Authenticate(http.HandlerFunc(s.handleProgress)))
	s.router.Handle("POST /api/v1/guides/{fingerprint}/cancel", authMW.Authenticate(http.HandlerFunc(s.handleCancel)))
}

// Start begins serving and blocks until shutdown
func (s *Server) Start() error {
	// Handle shutdown signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-stop:
		log.Println("Shutting down HTTP server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
