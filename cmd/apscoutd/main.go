package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/config"
	"github.com/apscout/apscout/pkg/locate"
	"github.com/apscout/apscout/pkg/logx"
	"github.com/apscout/apscout/pkg/metrics"
	"github.com/apscout/apscout/pkg/mqtt"
	"github.com/apscout/apscout/pkg/score"
	"github.com/apscout/apscout/pkg/sigproc"
	"github.com/apscout/apscout/pkg/store"
	"github.com/apscout/apscout/pkg/trend"
)

const (
	version = "1.0.0-dev"
	appName = "apscoutd"
)

func main() {
	// Command line flags
	var (
		configFile  = flag.String("config", "/etc/apscout/apscout.json", "Config file path")
		logLevel    = flag.String("log-level", "", "Log level override (debug|info|warn|error)")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", appName, version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	effectiveLogLevel := cfg.LogLevel
	if *logLevel != "" {
		effectiveLogLevel = *logLevel
	}

	logger := logx.New(effectiveLogLevel)
	logger.Info("starting apscout daemon",
		"version", version,
		"config", *configFile,
		"log_level", effectiveLogLevel,
	)

	db, err := store.Open(cfg.StoreConfig(), logger)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.DatabasePath)
		os.Exit(1)
	}
	defer db.Close()

	// Location pipeline
	analyzer := sigproc.NewAnalyzer(cfg.UseQualityWeighting)
	estimator := locate.NewEstimator(db, analyzer, cfg.EstimatorConfig(), logger)
	relocator := locate.NewRelocationManager(db, estimator, cfg.RelocationConfig(), logger)

	// Scoring pipeline
	trendAnalyzer := trend.NewAnalyzer(cfg.TrendConfig(), logger)
	engine := score.NewEngine(db, cfg.EngineConfig(), logger)
	engine.SetTrendRecorder(trendAnalyzer)

	// Telemetry publish
	mqttClient := mqtt.NewClient(cfg.MQTTConfig(), logger)
	if err := mqttClient.Connect(); err != nil {
		// Broker outages must not keep the daemon down; auto-reconnect
		// picks it up later.
		logger.Warn("MQTT connect failed, continuing without broker", "error", err)
	}
	defer mqttClient.Disconnect()

	// Metrics listener
	var metricsServer *metrics.Server
	if cfg.MetricsListener {
		metrics.Version = version
		metricsServer = metrics.NewServer(logger)
		if err := metricsServer.Start(cfg.MetricsPort); err != nil {
			logger.Error("Failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer metricsServer.Stop()

		engine.SetCycleObserver(metricsServer.RecordScoreCycle)
		estimator.SetEstimateHandler(func(bssid string, estimate locate.Estimate) {
			metricsServer.SetConfidenceRadius(bssid, estimate.ConfidenceRadiusM)
		})
	}

	engine.SetPublisher(&scorePublisher{mqtt: mqttClient, metrics: metricsServer})

	relocator.SetRelocationHandler(func(event pkg.RelocationEvent) {
		trendAnalyzer.Forget(event.BSSID)
		if err := mqttClient.PublishRelocation(event); err != nil {
			logger.Warn("Relocation publish failed", "bssid", event.BSSID, "error", err)
		}
		if metricsServer != nil {
			metricsServer.RecordRelocation(event)
		}
	})

	engine.Start()
	defer engine.Stop()

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	locationTicker := time.NewTicker(time.Duration(cfg.LocationIntervalS) * time.Second)
	defer locationTicker.Stop()

	statusTicker := time.NewTicker(60 * time.Second)
	defer statusTicker.Stop()

	logger.Info("apscout daemon started successfully")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Context cancelled, shutting down")
			return
		case sig := <-sigCh:
			logger.Info("Received signal, shutting down", "signal", sig.String())
			cancel()
		case <-locationTicker.C:
			runLocationCycle(estimator, relocator, db, logger, metricsServer)
		case <-statusTicker.C:
			publishStatus(engine, mqttClient, metricsServer, logger)
		}
	}
}

// runLocationCycle refreshes location estimates and then checks every
// located network for relocation.
func runLocationCycle(estimator *locate.Estimator, relocator *locate.RelocationManager,
	db *store.Store, logger *logx.Logger, metricsServer *metrics.Server) {

	updated, err := estimator.BatchUpdateLocations()
	if err != nil {
		logger.Error("Location update cycle failed", "error", err)
		if metricsServer != nil {
			metricsServer.RecordLocationCycle("error")
		}
		return
	}

	relocated, err := relocator.BatchRelocate()
	if err != nil {
		logger.Error("Relocation cycle failed", "error", err)
		if metricsServer != nil {
			metricsServer.RecordLocationCycle("error")
		}
		return
	}

	logger.Debug("Location cycle complete", "updated", updated, "relocated", relocated)
	if metricsServer != nil {
		metricsServer.RecordLocationCycle("ok")
		if located, err := db.GetLocatedNetworks(); err == nil {
			metricsServer.SetLocatedNetworks(len(located))
		}
	}
}

// publishStatus pushes engine counters to MQTT and mirrors them into
// Prometheus gauges.
func publishStatus(engine *score.Engine, mqttClient *mqtt.Client,
	metricsServer *metrics.Server, logger *logx.Logger) {

	stats := engine.Stats()
	if err := mqttClient.PublishStatus(stats); err != nil {
		logger.Warn("Status publish failed", "error", err)
	}
	if metricsServer != nil {
		metricsServer.UpdateEngineStats(stats)
		metricsServer.SetRiskCounts(engine.RiskCounts())
	}
}

// scorePublisher fans committed score updates out to MQTT and, when the
// metrics listener is enabled, mirrors them into the per-network gauge.
type scorePublisher struct {
	mqtt    *mqtt.Client
	metrics *metrics.Server
}

func (p *scorePublisher) PublishScore(update pkg.ScoreUpdate) error {
	if p.metrics != nil {
		p.metrics.SetNetworkScore(update)
	}
	return p.mqtt.PublishScore(update)
}
