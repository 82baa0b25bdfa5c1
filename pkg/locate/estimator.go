// Package locate estimates the physical position of access points from
// GPS-tagged, signal-weighted wardriving observations, and corrects stored
// positions when spatial evidence shows they have gone stale.
package locate

import (
	"time"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/geo"
	"github.com/apscout/apscout/pkg/logx"
	"github.com/apscout/apscout/pkg/sigproc"
)

// Sample is one positioned signal reading used for centroid calculation.
type Sample struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	SignalDBm int     `json:"signal_dbm"`
}

// Estimate is a computed AP position with its confidence radius.
type Estimate struct {
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	ConfidenceRadiusM float64 `json:"confidence_radius_m"`
	ObservationCount  int     `json:"observation_count"`
}

// EstimatorConfig represents location estimation configuration
type EstimatorConfig struct {
	MinObservations     int     `json:"min_observations"`      // Minimum observations for an estimate
	MaxAgeHours         int     `json:"max_age_hours"`         // Only use observations from the last N hours
	UseQualityWeighting bool    `json:"use_quality_weighting"` // Weight by spectral signal quality
	LowPassCutoffRatio  float64 `json:"low_pass_cutoff_ratio"` // Fraction of frequencies kept when filtering
	SingleObsRadiusM    float64 `json:"single_obs_radius_m"`   // Fixed radius for one-observation estimates
}

// DefaultEstimatorConfig returns default estimation configuration
func DefaultEstimatorConfig() *EstimatorConfig {
	return &EstimatorConfig{
		MinObservations:     3,
		MaxAgeHours:         24,
		UseQualityWeighting: true,
		LowPassCutoffRatio:  sigproc.DefaultCutoffRatio,
		SingleObsRadiusM:    100.0, // explicit low-confidence marker
	}
}

// Estimator computes AP positions from stored observations.
type Estimator struct {
	logger    *logx.Logger
	config    *EstimatorConfig
	analyzer  sigproc.Analyzer
	store     pkg.ObservationStore
	onUpdated func(bssid string, estimate Estimate)
}

// NewEstimator creates a new location estimator
func NewEstimator(store pkg.ObservationStore, analyzer sigproc.Analyzer, config *EstimatorConfig, logger *logx.Logger) *Estimator {
	if config == nil {
		config = DefaultEstimatorConfig()
	}
	if analyzer == nil {
		analyzer = sigproc.NewAnalyzer(false)
	}

	return &Estimator{
		logger:   logger,
		config:   config,
		analyzer: analyzer,
		store:    store,
	}
}

// SetEstimateHandler attaches an optional callback invoked after every
// successfully written position update.
func (e *Estimator) SetEstimateHandler(fn func(bssid string, estimate Estimate)) {
	e.onUpdated = fn
}

// WeightedCentroid computes a signal-strength-weighted centroid of the
// samples plus a confidence radius (mean distance of the samples from the
// centroid). With useQuality set and at least sigproc.MinSamples samples,
// spectral quality scales the weights and the weighting signal series is
// low-pass filtered first; poor quality also widens the reported radius.
func (e *Estimator) WeightedCentroid(samples []Sample, useQuality bool) (float64, float64, float64) {
	if len(samples) == 0 {
		return 0, 0, 0
	}
	if len(samples) == 1 {
		return samples[0].Latitude, samples[0].Longitude, e.config.SingleObsRadiusM
	}

	signals := make([]float64, len(samples))
	for i, s := range samples {
		signals[i] = float64(s.SignalDBm)
	}

	qualityMultiplier := 1.0
	if useQuality && len(signals) >= sigproc.MinSamples {
		quality, noise, _ := e.analyzer.Analyze(signals)
		qualityMultiplier = quality / 100.0
		signals = e.analyzer.FilterLowPass(signals, e.config.LowPassCutoffRatio)

		e.logger.LogVerbose("signal_quality_weighting", map[string]interface{}{
			"samples":     len(samples),
			"quality":     quality,
			"noise_level": noise,
		})
	}

	// Stronger signal = closer observation = higher weight. -30 dBm maps
	// to 70, anything at or below -100 dBm floors at 1.
	weights := make([]float64, len(samples))
	totalWeight := 0.0
	for i := range samples {
		w := 100.0 + signals[i]
		if w < 1 {
			w = 1
		}
		w *= qualityMultiplier
		weights[i] = w
		totalWeight += w
	}

	var lat, lon float64
	for i, s := range samples {
		lat += s.Latitude * weights[i]
		lon += s.Longitude * weights[i]
	}
	lat /= totalWeight
	lon /= totalWeight

	totalDist := 0.0
	for _, s := range samples {
		totalDist += geo.DistanceMeters(lat, lon, s.Latitude, s.Longitude)
	}
	radius := totalDist / float64(len(samples))
	if qualityMultiplier > 0 {
		radius /= qualityMultiplier
	}

	return lat, lon, radius
}

// Trilaterate estimates a position from three or more samples. It currently
// delegates to the weighted centroid: a true multilateration solver needs
// iteration (Levenberg-Marquardt or similar) and for wardriving data the
// centroid is close enough at a fraction of the cost. Fewer than three
// samples fall back to WeightedCentroid's own handling.
func (e *Estimator) Trilaterate(samples []Sample) (float64, float64, float64) {
	return e.WeightedCentroid(samples, e.config.UseQualityWeighting)
}

// EstimateForNetwork computes the position of one AP from its recent
// GPS-tagged observations. Returns nil when fewer than MinObservations
// fresh observations exist.
func (e *Estimator) EstimateForNetwork(bssid string) (*Estimate, error) {
	cutoff := time.Now().Add(-time.Duration(e.config.MaxAgeHours) * time.Hour)
	observations, err := e.store.GetObservations(bssid, cutoff, true)
	if err != nil {
		return nil, err
	}
	if len(observations) < e.config.MinObservations {
		return nil, nil
	}

	samples := toSamples(observations)
	lat, lon, radius := e.Trilaterate(samples)

	return &Estimate{
		Latitude:          lat,
		Longitude:         lon,
		ConfidenceRadiusM: radius,
		ObservationCount:  len(observations),
	}, nil
}

// UpdateNetworkLocation recomputes one AP's position and writes it back to
// the store. Returns false when there is not enough fresh data.
func (e *Estimator) UpdateNetworkLocation(bssid string) (bool, error) {
	estimate, err := e.EstimateForNetwork(bssid)
	if err != nil || estimate == nil {
		return false, err
	}

	if err := e.store.WriteEstimatedLocation(bssid, estimate.Latitude, estimate.Longitude, nil); err != nil {
		return false, err
	}

	e.logger.Info("updated AP location",
		"bssid", bssid,
		"latitude", estimate.Latitude,
		"longitude", estimate.Longitude,
		"confidence_radius_m", estimate.ConfidenceRadiusM,
		"observations", estimate.ObservationCount,
	)
	if e.onUpdated != nil {
		e.onUpdated(bssid, *estimate)
	}
	return true, nil
}

// BatchUpdateLocations recomputes positions for every AP with enough
// observations on record and returns the number updated. Individual
// failures are logged and skipped so one bad network cannot stall the pass.
func (e *Estimator) BatchUpdateLocations() (int, error) {
	bssids, err := e.store.GetNetworksWithObservations(e.config.MinObservations)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, bssid := range bssids {
		ok, err := e.UpdateNetworkLocation(bssid)
		if err != nil {
			e.logger.Warn("location update failed", "bssid", bssid, "error", err)
			continue
		}
		if ok {
			updated++
		}
	}

	e.logger.Debug("batch location update complete",
		"candidates", len(bssids),
		"updated", updated,
	)
	return updated, nil
}

// toSamples converts observations to centroid samples, applying the default
// signal strength to readings that carried none.
func toSamples(observations []pkg.Observation) []Sample {
	samples := make([]Sample, len(observations))
	for i, obs := range observations {
		samples[i] = Sample{
			Latitude:  obs.Latitude,
			Longitude: obs.Longitude,
			SignalDBm: obs.Signal(),
		}
	}
	return samples
}
