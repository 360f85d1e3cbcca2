package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/zenith/internal/api/auth"
	"github.com/zenith/internal/blogs"
	"github.com/zenith/internal/chat"
	"github.com/zenith/internal/readcount"
)

// ServerConfig carries everything the API server needs
type ServerConfig struct {
	Port      int
	JWTSecret string
	DB        *sql.DB
	Generator chat.Generator

	// Relay rate limiting, requests per second per client IP
	RateLimit float64
	RateBurst int

	// Optional read-count repair queue; nil disables it
	Reconciler *readcount.Reconciler
}

// Server represents the API server
type Server struct {
	echo         *echo.Echo
	config       ServerConfig
	tokenService *auth.TokenService
}

// NewServer creates a new API server
func NewServer(config ServerConfig) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:         e,
		config:       config,
		tokenService: auth.NewTokenService(config.DB, config.JWTSecret),
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	// Auth
	authHandlers := auth.NewAuthHandlers(s.tokenService, s.config.DB)
	authHandlers.RegisterRoutes(s.echo)

	// Blogs
	store := blogs.NewPostgresStore(s.config.DB)
	var repair blogs.ReadRepairQueue
	if s.config.Reconciler != nil {
		repair = s.config.Reconciler
	}
	blogHandlers := blogs.NewHandlers(store, repair)
	blogHandlers.RegisterRoutes(s.echo,
		auth.RequireAuth(s.tokenService),
		auth.OptionalAuth(s.tokenService))

	// Yuri chat relay
	relay := chat.NewRelayHandler(s.config.Generator, s.config.RateLimit, s.config.RateBurst)
	relay.RegisterHandlers(s.echo)
}

// Start begins the API server and blocks until interrupted
func (s *Server) Start() error {
	s.tokenService.StartCleanupScheduler()

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if s.config.Reconciler != nil {
		if err := s.config.Reconciler.Start(workerCtx); err != nil {
			return fmt.Errorf("failed to start read-count workers: %w", err)
		}
	}

	// Start server in a goroutine
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.config.Port)); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Shutting down the server")
		}
	}()

	log.Info().Int("port", s.config.Port).Msg("ZENITH API server started")

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.config.Reconciler != nil {
		if err := s.config.Reconciler.Stop(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to stop read-count workers cleanly")
		}
	}

	return s.echo.Shutdown(ctx)
}
