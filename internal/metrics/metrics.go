package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Tracking metrics
	SlicesRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_slices_recorded_total",
			Help: "Total time slices recorded",
		},
		[]string{"productive"},
	)

	TrackedSeconds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_tracked_seconds_total",
			Help: "Total seconds attributed to domains",
		},
		[]string{"productive"},
	)

	UsageIncrements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabtime_usage_increments_total",
			Help: "Total usage counter increments",
		},
	)

	// Policy metrics
	LimitEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_limit_evaluations_total",
			Help: "Total limit evaluations by outcome",
		},
		[]string{"result"},
	)

	LimitEvaluationErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabtime_limit_evaluation_errors_total",
			Help: "Limit evaluations that failed open",
		},
	)

	// API metrics
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_api_requests_total",
			Help: "Total API requests processed",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tabtime_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"route"},
	)

	// Retention metrics
	RetentionDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tabtime_retention_deleted_total",
			Help: "Records removed by the retention job",
		},
		[]string{"kind"},
	)

	// Agent metrics
	AgentDeliveryFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabtime_agent_delivery_failures_total",
			Help: "Time slices the agent failed to deliver",
		},
	)

	AgentRedirects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tabtime_agent_redirects_total",
			Help: "Tabs redirected to the interstitial page",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		SlicesRecorded,
		TrackedSeconds,
		UsageIncrements,
		LimitEvaluations,
		LimitEvaluationErrors,
		APIRequests,
		APIRequestDuration,
		RetentionDeleted,
		AgentDeliveryFailures,
		AgentRedirects,
	)
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
			// Use systemd socket-activated listener
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			// Create and bind listener ourselves
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
