package metrics

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Request metrics
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stempel_requests_total",
			Help: "Total number of API requests processed",
		},
		[]string{"method", "path", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stempel_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Account metrics
	RegistrationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stempel_registrations_total",
			Help: "Total accounts registered",
		},
	)

	LoginsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stempel_logins_total",
			Help: "Total successful logins",
		},
	)

	// Tracking metrics
	BreaksStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stempel_breaks_started_total",
			Help: "Total breaks started",
		},
	)

	BreaksEndedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stempel_breaks_ended_total",
			Help: "Total breaks ended",
		},
	)

	WorkTimeUpdatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stempel_work_time_updates_total",
			Help: "Total work time updates",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		RegistrationsTotal,
		LoginsTotal,
		BreaksStartedTotal,
		BreaksEndedTotal,
		WorkTimeUpdatesTotal,
	)
}

// ObserveRequest records one handled API request.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
