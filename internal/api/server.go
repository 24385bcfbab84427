package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/stempel-app/stempel/internal/auth"
	"github.com/stempel-app/stempel/internal/tracking"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr      string
	RateLimit       int
	RateLimitWindow time.Duration
	AllowedOrigins  []string
}

// Server represents the API HTTP server.
type Server struct {
	config      Config
	auth        *auth.Service
	tracker     *tracking.Tracker
	rateLimiter *RateLimiter
	tokenCache  *expirable.LRU[string, *auth.Claims]
	server      *http.Server
	router      *mux.Router
	listener    net.Listener
	logger      zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, authService *auth.Service, tracker *tracking.Tracker, logger zerolog.Logger) *Server {
	rateLimit := cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = 100 // default: 100 requests per minute
	}
	rateLimitWindow := cfg.RateLimitWindow
	if rateLimitWindow == 0 {
		rateLimitWindow = time.Minute
	}

	s := &Server{
		config:      cfg,
		auth:        authService,
		tracker:     tracker,
		rateLimiter: NewRateLimiter(rateLimit, rateLimitWindow),
		tokenCache:  newTokenCache(authService.TokenExpiration()),
		router:      mux.NewRouter(),
		logger:      logger.With().Str("component", "api").Logger(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the server's root handler. Used by the tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation.
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RateLimitMiddleware(s.rateLimiter))

	if len(s.config.AllowedOrigins) > 0 {
		s.router.Use(CORSMiddleware(s.config.AllowedOrigins))
	}

	// Public routes (no auth required)
	s.router.HandleFunc("/api/auth/register", s.handleRegister).Methods("POST", "OPTIONS")
	s.router.HandleFunc("/api/auth/login", s.handleLogin).Methods("POST", "OPTIONS")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Authenticated routes
	authRouter := s.router.PathPrefix("/api").Subrouter()
	authRouter.Use(AuthMiddleware(s.auth, s.tokenCache))

	authRouter.HandleFunc("/auth/logout", s.handleLogout).Methods("POST")
	authRouter.HandleFunc("/auth/profile", s.handleGetProfile).Methods("GET")
	authRouter.HandleFunc("/auth/profile", s.handleUpdateProfile).Methods("PUT")
	authRouter.HandleFunc("/auth/change-password", s.handleChangePassword).Methods("PUT")
	authRouter.HandleFunc("/auth/users", s.handleListUsers).Methods("GET")

	authRouter.HandleFunc("/tracking/start-break", s.handleStartBreak).Methods("POST")
	authRouter.HandleFunc("/tracking/end-break", s.handleEndBreak).Methods("POST")
	authRouter.HandleFunc("/tracking/today", s.handleToday).Methods("GET")
	authRouter.HandleFunc("/tracking/stats", s.handleStats).Methods("GET")
	authRouter.HandleFunc("/tracking/work-time", s.handleWorkTime).Methods("PUT")
	authRouter.HandleFunc("/tracking/user/{accountID}/monthly", s.handleUserMonthly).Methods("GET")
	authRouter.HandleFunc("/tracking/monthly", s.handleMonthly).Methods("GET")
	authRouter.HandleFunc("/tracking/users", s.handleListUsers).Methods("GET")
}

// Start starts the API HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API HTTP server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	s.rateLimiter.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
	})
}
