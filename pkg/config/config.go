// Package config loads and validates the apscoutd configuration file.
// Missing files yield the defaults so the daemon runs out of the box.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/apscout/apscout/pkg/locate"
	"github.com/apscout/apscout/pkg/mqtt"
	"github.com/apscout/apscout/pkg/score"
	"github.com/apscout/apscout/pkg/store"
	"github.com/apscout/apscout/pkg/trend"
)

// Config represents the apscoutd configuration.
type Config struct {
	// Main configuration
	LogLevel      string `json:"log_level"`
	DatabasePath  string `json:"database_path"`
	BusyTimeoutMs int    `json:"busy_timeout_ms"`

	// Scoring
	ScoreUpdateIntervalS int `json:"score_update_interval_s"`
	ScoreMinIntervalS    int `json:"score_min_interval_s"`
	SignalWindowSize     int `json:"signal_window_size"`

	// Location estimation
	LocationIntervalS   int     `json:"location_interval_s"`
	MinObservations     int     `json:"min_observations"`
	MaxObservationAgeH  int     `json:"max_observation_age_h"`
	UseQualityWeighting bool    `json:"use_quality_weighting"`
	LowPassCutoffRatio  float64 `json:"low_pass_cutoff_ratio"`
	SingleObsRadiusM    float64 `json:"single_obs_radius_m"`

	// Relocation detection
	RelocationThresholdM float64 `json:"relocation_threshold_m"`
	MinNewObservations   int     `json:"min_new_observations"`
	RecentObservationCap int     `json:"recent_observation_cap"`
	ClusterRadiusM       float64 `json:"cluster_radius_m"`
	MinClusterSize       int     `json:"min_cluster_size"`

	// Signal trend analysis
	TrendMaxSamples        int     `json:"trend_max_samples"`
	TrendMinSamples        int     `json:"trend_min_samples"`
	TrendSlopeThresholdDBm float64 `json:"trend_slope_threshold_dbm"`

	// Metrics listener
	MetricsListener bool `json:"metrics_listener"`
	MetricsPort     int  `json:"metrics_port"`

	// Telemetry publish
	MQTT mqtt.Config `json:"mqtt"`
}

// Default configuration values
const (
	DefaultLogLevel             = "info"
	DefaultDatabasePath         = "/var/lib/apscout/apscout.db"
	DefaultScoreUpdateIntervalS = 15
	DefaultLocationIntervalS    = 60
	DefaultMetricsPort          = 9101
)

// Load reads and validates the configuration. A missing file returns the
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for the configuration.
func (c *Config) setDefaults() {
	c.LogLevel = DefaultLogLevel
	c.DatabasePath = DefaultDatabasePath
	c.BusyTimeoutMs = 5000

	c.ScoreUpdateIntervalS = DefaultScoreUpdateIntervalS
	c.ScoreMinIntervalS = DefaultScoreUpdateIntervalS
	c.SignalWindowSize = score.DefaultWindowSize

	estimator := locate.DefaultEstimatorConfig()
	c.LocationIntervalS = DefaultLocationIntervalS
	c.MinObservations = estimator.MinObservations
	c.MaxObservationAgeH = estimator.MaxAgeHours
	c.UseQualityWeighting = estimator.UseQualityWeighting
	c.LowPassCutoffRatio = estimator.LowPassCutoffRatio
	c.SingleObsRadiusM = estimator.SingleObsRadiusM

	relocation := locate.DefaultRelocationConfig()
	c.RelocationThresholdM = relocation.NewLocationThresholdM
	c.MinNewObservations = relocation.MinNewObservations
	c.RecentObservationCap = relocation.RecentObservationCap
	c.ClusterRadiusM = relocation.ClusterRadiusM
	c.MinClusterSize = relocation.MinClusterSize

	tc := trend.DefaultConfig()
	c.TrendMaxSamples = tc.MaxSamples
	c.TrendMinSamples = tc.MinSamples
	c.TrendSlopeThresholdDBm = tc.SlopeThresholdDBm

	c.MetricsListener = false
	c.MetricsPort = DefaultMetricsPort

	c.MQTT = *mqtt.DefaultConfig()
}

// validate validates the configuration.
func (c *Config) validate() error {
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}

	if c.ScoreUpdateIntervalS < 1 || c.ScoreUpdateIntervalS > 3600 {
		return fmt.Errorf("score_update_interval_s must be between 1 and 3600")
	}

	if c.LocationIntervalS < 1 || c.LocationIntervalS > 86400 {
		return fmt.Errorf("location_interval_s must be between 1 and 86400")
	}

	if c.MinObservations < 1 {
		return fmt.Errorf("min_observations must be at least 1")
	}

	if c.LowPassCutoffRatio <= 0 || c.LowPassCutoffRatio > 0.5 {
		return fmt.Errorf("low_pass_cutoff_ratio must be in (0, 0.5]")
	}

	if c.RelocationThresholdM <= 0 {
		return fmt.Errorf("relocation_threshold_m must be positive")
	}

	if c.MinClusterSize < 1 {
		return fmt.Errorf("min_cluster_size must be at least 1")
	}

	if c.MetricsPort < 1 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port must be a valid port")
	}

	return nil
}

// StoreConfig builds the database configuration.
func (c *Config) StoreConfig() *store.Config {
	return &store.Config{
		Path:          c.DatabasePath,
		BusyTimeoutMs: c.BusyTimeoutMs,
	}
}

// EngineConfig builds the score engine configuration.
func (c *Config) EngineConfig() *score.EngineConfig {
	return &score.EngineConfig{
		UpdateInterval:    time.Duration(c.ScoreUpdateIntervalS) * time.Second,
		MinUpdateInterval: time.Duration(c.ScoreMinIntervalS) * time.Second,
		SignalWindowSize:  c.SignalWindowSize,
	}
}

// EstimatorConfig builds the location estimator configuration.
func (c *Config) EstimatorConfig() *locate.EstimatorConfig {
	return &locate.EstimatorConfig{
		MinObservations:     c.MinObservations,
		MaxAgeHours:         c.MaxObservationAgeH,
		UseQualityWeighting: c.UseQualityWeighting,
		LowPassCutoffRatio:  c.LowPassCutoffRatio,
		SingleObsRadiusM:    c.SingleObsRadiusM,
	}
}

// RelocationConfig builds the relocation manager configuration.
func (c *Config) RelocationConfig() *locate.RelocationConfig {
	return &locate.RelocationConfig{
		NewLocationThresholdM: c.RelocationThresholdM,
		MinNewObservations:    c.MinNewObservations,
		RecentObservationCap:  c.RecentObservationCap,
		ClusterRadiusM:        c.ClusterRadiusM,
		MinClusterSize:        c.MinClusterSize,
	}
}

// TrendConfig builds the trend analyzer configuration.
func (c *Config) TrendConfig() *trend.Config {
	return &trend.Config{
		MaxSamples:        c.TrendMaxSamples,
		MinSamples:        c.TrendMinSamples,
		SlopeThresholdDBm: c.TrendSlopeThresholdDBm,
	}
}

// MQTTConfig returns the MQTT configuration.
func (c *Config) MQTTConfig() *mqtt.Config {
	cfg := c.MQTT
	return &cfg
}

func isValidLogLevel(level string) bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return true
		}
	}
	return false
}
