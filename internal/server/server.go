// Package server runs the honyaku HTTP API: job upload, polling, and result
// retrieval, with optional lifecycle management of a local Ollama container.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kyamashita/honyaku/internal/api"
	"github.com/kyamashita/honyaku/internal/config"
	"github.com/kyamashita/honyaku/internal/home"
	"github.com/kyamashita/honyaku/internal/jobs"
	"github.com/kyamashita/honyaku/internal/ollama"
	"github.com/kyamashita/honyaku/internal/pipeline"
	"github.com/kyamashita/honyaku/internal/server/endpoints"
	"github.com/kyamashita/honyaku/internal/svcctx"
)

// Server is the main honyaku HTTP server.
type Server struct {
	httpServer    *http.Server
	home          *home.Dir
	configMgr     *config.Manager
	providers     *providerSet
	jobManager    *jobs.Manager
	ollamaManager *ollama.DockerManager
	logger        *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8000)
	Port string
	// Home is the honyaku home directory
	Home *home.Dir
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	if cfg.ConfigManager == nil {
		return nil, errors.New("config manager is required")
	}

	appCfg := cfg.ConfigManager.Get()

	providerSet := newProviderSet()
	if err := providerSet.Reload(appCfg); err != nil {
		return nil, fmt.Errorf("failed to configure providers: %w", err)
	}

	// Providers follow the config file without a restart.
	cfg.ConfigManager.OnChange(func(c *config.Config) {
		if err := providerSet.Reload(c); err != nil {
			cfg.Logger.Error("provider reload failed", "error", err)
			return
		}
		cfg.Logger.Info("providers reloaded from config")
	})

	s := &Server{
		home:      cfg.Home,
		configMgr: cfg.ConfigManager,
		providers: providerSet,
		logger:    cfg.Logger,
	}

	// The managed Ollama container is optional; the translator can point at
	// any server the user runs themselves.
	if appCfg.Ollama.Managed {
		modelsPath := appCfg.Ollama.ModelsPath
		if modelsPath == "" {
			modelsPath = filepath.Join(cfg.Home.Path(), "ollama")
		}
		if err := os.MkdirAll(modelsPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create models directory: %w", err)
		}
		mgr, err := ollama.NewDockerManager(ollama.DockerConfig{
			ContainerName: appCfg.Ollama.ContainerName,
			Image:         appCfg.Ollama.Image,
			HostPort:      appCfg.Ollama.Port,
			ModelsPath:    modelsPath,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama manager: %w", err)
		}
		s.ollamaManager = mgr
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{OllamaManager: s.ollamaManager}) {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  10 * time.Minute, // Large PDF uploads
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start starts the server and, when configured, the managed Ollama
// container. It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.ollamaManager != nil {
		if err := s.ollamaManager.ValidateExisting(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("existing Ollama container incompatible: %w", err)
		}
		s.logger.Info("starting Ollama container")
		if err := s.ollamaManager.Start(ctx); err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to start Ollama: %w", err)
		}
		s.logger.Info("Ollama is ready", "url", s.ollamaManager.URL())
	}

	appCfg := s.configMgr.Get()
	translator := translatorView{set: s.providers}
	runner := pipeline.NewRunner(s.home, s.providers, translator, pipeline.RunnerConfig{
		DPI:      appCfg.Render.DPI,
		MaxChars: appCfg.Translate.MaxChars,
		Language: appCfg.Translate.Language,
	}, s.logger)

	s.jobManager = jobs.NewManager(s.home, runner, s.logger)

	// Create services struct for context enrichment
	s.services = &svcctx.Services{
		JobManager:    s.jobManager,
		OCR:           s.providers,
		Translator:    translator,
		Runner:        runner,
		ConfigManager: s.configMgr,
		Logger:        s.logger,
		Home:          s.home,
		OllamaManager: s.ollamaManager,
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			_ = s.shutdown()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server and the managed
// Ollama container. In-flight jobs are given a short grace period.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	if s.jobManager != nil {
		done := make(chan struct{})
		go func() {
			s.jobManager.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			s.logger.Warn("shutdown timeout with jobs still in flight")
		}
	}

	if s.ollamaManager != nil {
		s.logger.Info("stopping Ollama container")
		if err := s.ollamaManager.Stop(shutdownCtx); err != nil {
			s.logger.Error("Ollama stop error", "error", err)
		}
		if err := s.ollamaManager.Close(); err != nil {
			s.logger.Error("Ollama manager close error", "error", err)
		}
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// JobManager returns the job manager.
// Returns nil if the server hasn't started yet.
func (s *Server) JobManager() *jobs.Manager {
	return s.jobManager
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable until the job manager is ready.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.jobManager == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}
