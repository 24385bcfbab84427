package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stempel-app/stempel/internal/api"
	"github.com/stempel-app/stempel/internal/auth"
	"github.com/stempel-app/stempel/internal/config"
	"github.com/stempel-app/stempel/internal/metrics"
	"github.com/stempel-app/stempel/internal/storage"
	"github.com/stempel-app/stempel/internal/storage/bolt"
	"github.com/stempel-app/stempel/internal/storage/redis"
	"github.com/stempel-app/stempel/internal/systemd"
	"github.com/stempel-app/stempel/internal/tracking"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Stempel server",
	Long:  `Start the Stempel server with the API and metrics endpoints.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Stempel")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	// Initialize auth service
	authService := auth.NewService(store.Accounts(), auth.Config{
		JWTSecret:       cfg.Auth.JWTSecret,
		TokenExpiration: parseDuration(cfg.Auth.TokenExpiration, auth.DefaultTokenExpiration),
		BcryptCost:      cfg.Auth.BcryptCost,
	})

	// Initialize ledger tracker
	tracker := tracking.NewTracker(store.Ledger())

	// Initialize API server
	apiConfig := api.Config{
		ListenAddr:      fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort),
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: parseDuration(cfg.Server.RateLimitWindow, time.Minute),
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	}

	apiServer := api.NewServer(apiConfig, authService, tracker, logger)

	if sdListeners.Activated && sdListeners.HTTP != nil {
		apiServer.SetListener(sdListeners.HTTP)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	logger.Info().
		Str("addr", apiConfig.ListenAddr).
		Msg("API server started")

	// Initialize metrics server
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	metricsServer := metrics.NewServer(metricsAddr, logger)

	if sdListeners.Activated && sdListeners.Metrics != nil {
		metricsServer.SetListener(sdListeners.Metrics)
	}

	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	logger.Info().
		Str("addr", metricsAddr).
		Msg("Metrics server started")

	logger.Info().Msg("Stempel startup complete")
	logger.Info().Msgf("API: http://%s/api", apiConfig.ListenAddr)
	logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API server")
	}

	if err := metricsServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping metrics server")
	}

	logger.Info().Msg("Stempel stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	storageType := cfg.Type
	if storageType == "" {
		storageType = "bolt"
	}

	switch storageType {
	case "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be 'bolt' or 'redis')", storageType)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
