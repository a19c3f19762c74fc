// Package metrics exposes Prometheus counters for the tracking daemon.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// TicksTotal counts sampling ticks by outcome (active, idle).
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appusage_ticks_total",
			Help: "Sampling ticks by outcome",
		},
		[]string{"outcome"},
	)

	// TrackedSeconds counts seconds attributed to a foreground process.
	TrackedSeconds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appusage_tracked_seconds_total",
			Help: "Seconds attributed to a foreground process",
		},
	)

	// ResolveErrors counts failed foreground or process lookups.
	ResolveErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "appusage_resolve_errors_total",
			Help: "Foreground or process resolution failures",
		},
	)

	// PersistErrors counts write failures by target (ledger, settings).
	PersistErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appusage_persist_errors_total",
			Help: "Ledger and settings write failures",
		},
		[]string{"target"},
	)

	// EnrichmentsTotal counts metadata enrichments by outcome.
	EnrichmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appusage_enrichments_total",
			Help: "Metadata enrichments by outcome",
		},
		[]string{"outcome"},
	)

	// RemindersTotal counts reminders by kind and delivery result.
	RemindersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appusage_reminders_total",
			Help: "Reminders by kind and delivery result",
		},
		[]string{"kind", "result"},
	)

	// TotalUsedSeconds is today's total used time.
	TotalUsedSeconds = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "appusage_total_used_seconds",
			Help: "Total used time today",
		},
	)
)

func init() {
	prometheus.MustRegister(
		TicksTotal,
		TrackedSeconds,
		ResolveErrors,
		PersistErrors,
		EnrichmentsTotal,
		RemindersTotal,
		TotalUsedSeconds,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer creates a metrics server serving /metrics and /health.
func NewServer(addr string, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger.With(zap.String("component", "metrics")),
	}
}

// Handler returns the HTTP handler (for tests).
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves in the background.
func (s *Server) Start() {
	s.logger.Info("starting metrics server", zap.String("addr", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
