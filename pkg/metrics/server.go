// Package metrics exposes Prometheus metrics and a health endpoint for
// apscoutd.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/logx"
)

// Version is stamped at build time.
var Version = "dev"

// Server provides Prometheus metrics for apscoutd.
type Server struct {
	logger    *logx.Logger
	server    *http.Server
	registry  *prometheus.Registry
	startedAt time.Time

	networkScore     *prometheus.GaugeVec
	networksByRisk   *prometheus.GaugeVec
	trackedNetworks  prometheus.Gauge
	scoreRecomputes  prometheus.Gauge
	throttledUpdates prometheus.Gauge

	scoreCycles    *prometheus.CounterVec
	scoreWrites    prometheus.Counter
	locationCycles *prometheus.CounterVec
	relocations    prometheus.Counter

	locatedNetworks  prometheus.Gauge
	confidenceRadius *prometheus.GaugeVec

	daemonUptime  prometheus.Gauge
	daemonVersion *prometheus.GaugeVec
}

// NewServer creates a metrics server. Each server carries its own registry
// so restarts and tests never collide on metric registration.
func NewServer(logger *logx.Logger) *Server {
	s := &Server{
		logger:    logger,
		registry:  prometheus.NewRegistry(),
		startedAt: time.Now(),
	}

	s.registerMetrics()
	return s
}

func (s *Server) registerMetrics() {
	s.networkScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apscout_network_score",
			Help: "Current attack feasibility score per network",
		},
		[]string{"bssid"},
	)

	s.networksByRisk = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apscout_networks_by_risk",
			Help: "Number of scored networks per risk level",
		},
		[]string{"risk"},
	)

	s.trackedNetworks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apscout_tracked_networks",
			Help: "Networks currently tracked by the score engine",
		},
	)

	s.scoreRecomputes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apscout_score_recomputes",
			Help: "Cumulative score recomputations",
		},
	)

	s.throttledUpdates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apscout_score_throttled_updates",
			Help: "Cumulative updates served from cache by the throttle",
		},
	)

	s.scoreCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apscout_score_cycles_total",
			Help: "Total batch scoring cycles by result",
		},
		[]string{"result"},
	)

	s.scoreWrites = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apscout_score_writes_total",
			Help: "Total score rows committed to the database",
		},
	)

	s.locationCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apscout_location_cycles_total",
			Help: "Total location estimation cycles by result",
		},
		[]string{"result"},
	)

	s.relocations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apscout_relocations_total",
			Help: "Total stored locations overwritten by relocation detection",
		},
	)

	s.locatedNetworks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apscout_located_networks",
			Help: "Networks with a stored location estimate",
		},
	)

	s.confidenceRadius = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apscout_location_confidence_radius_meters",
			Help: "Confidence radius of the latest location estimate per network",
		},
		[]string{"bssid"},
	)

	s.daemonUptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "apscout_daemon_uptime_seconds",
			Help: "Daemon uptime in seconds",
		},
	)

	s.daemonVersion = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apscout_daemon_version_info",
			Help: "Daemon version information",
		},
		[]string{"version", "go_version"},
	)

	s.registry.MustRegister(
		s.networkScore,
		s.networksByRisk,
		s.trackedNetworks,
		s.scoreRecomputes,
		s.throttledUpdates,
		s.scoreCycles,
		s.scoreWrites,
		s.locationCycles,
		s.relocations,
		s.locatedNetworks,
		s.confidenceRadius,
		s.daemonUptime,
		s.daemonVersion,
	)

	s.daemonVersion.With(prometheus.Labels{
		"version":    Version,
		"go_version": runtime.Version(),
	}).Set(1)
}

// Start starts the HTTP listener.
func (s *Server) Start(port int) error {
	s.logger.Info("Starting metrics server", "port", port)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", s.healthHandler)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Metrics server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the listener down.
func (s *Server) Stop() error {
	s.logger.Info("Stopping metrics server")

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","timestamp":"` + time.Now().Format(time.RFC3339) + `"}`))
}

// SetNetworkScore records a committed score update.
func (s *Server) SetNetworkScore(update pkg.ScoreUpdate) {
	s.networkScore.With(prometheus.Labels{"bssid": update.BSSID}).Set(update.Score)
}

// SetRiskCounts replaces the per-risk-level network counts.
func (s *Server) SetRiskCounts(counts map[pkg.RiskLevel]int) {
	for _, risk := range []pkg.RiskLevel{pkg.RiskCritical, pkg.RiskHigh, pkg.RiskMedium, pkg.RiskLow} {
		s.networksByRisk.With(prometheus.Labels{"risk": string(risk)}).Set(float64(counts[risk]))
	}
}

// UpdateEngineStats mirrors score engine counters into gauges.
func (s *Server) UpdateEngineStats(stats map[string]interface{}) {
	if v, ok := stats["tracked_networks"].(int); ok {
		s.trackedNetworks.Set(float64(v))
	}
	if v, ok := stats["total_updates"].(int64); ok {
		s.scoreRecomputes.Set(float64(v))
	}
	if v, ok := stats["throttled_updates"].(int64); ok {
		s.throttledUpdates.Set(float64(v))
	}
	s.daemonUptime.Set(time.Since(s.startedAt).Seconds())
}

// RecordScoreCycle records one batch scoring cycle.
func (s *Server) RecordScoreCycle(result string, written int) {
	s.scoreCycles.With(prometheus.Labels{"result": result}).Inc()
	if written > 0 {
		s.scoreWrites.Add(float64(written))
	}
}

// RecordLocationCycle records one location estimation cycle.
func (s *Server) RecordLocationCycle(result string) {
	s.locationCycles.With(prometheus.Labels{"result": result}).Inc()
}

// RecordRelocation records a relocation event.
func (s *Server) RecordRelocation(event pkg.RelocationEvent) {
	s.relocations.Inc()
	s.logger.Debug("Relocation recorded in metrics",
		"bssid", event.BSSID, "distance_m", event.DistanceMeters)
}

// SetLocatedNetworks records how many networks currently have a location.
func (s *Server) SetLocatedNetworks(count int) {
	s.locatedNetworks.Set(float64(count))
}

// SetConfidenceRadius records a network's latest estimate radius.
func (s *Server) SetConfidenceRadius(bssid string, radiusM float64) {
	s.confidenceRadius.With(prometheus.Labels{"bssid": bssid}).Set(radiusM)
}
