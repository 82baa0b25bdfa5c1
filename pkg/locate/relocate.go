package locate

import (
	"fmt"
	"time"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/geo"
	"github.com/apscout/apscout/pkg/logx"
)

// RelocationConfig represents relocation detection configuration
type RelocationConfig struct {
	NewLocationThresholdM float64 `json:"new_location_threshold_m"` // Distance from stored coord to count as "new area"
	MinNewObservations    int     `json:"min_new_observations"`     // Observations at the new area before acting
	RecentObservationCap  int     `json:"recent_observation_cap"`   // How many recent observations to examine
	ClusterRadiusM        float64 `json:"cluster_radius_m"`         // Radius for grouping new-area observations
	MinClusterSize        int     `json:"min_cluster_size"`         // Smallest cluster worth trusting
}

// DefaultRelocationConfig returns default relocation configuration
func DefaultRelocationConfig() *RelocationConfig {
	return &RelocationConfig{
		NewLocationThresholdM: 1000.0, // 1 kilometer
		MinNewObservations:    2,
		RecentObservationCap:  20,
		ClusterRadiusM:        500.0,
		MinClusterSize:        2,
	}
}

// RelocationManager detects that the operator has moved to a new area,
// leaving a stored AP coordinate stale, and overwrites the coordinate from
// the emerging observation cluster. This corrects operator movement
// invalidating an estimate; it is not a detector for APs that physically
// moved.
type RelocationManager struct {
	logger     *logx.Logger
	config     *RelocationConfig
	store      pkg.ObservationStore
	estimator  *Estimator
	onRelocate func(pkg.RelocationEvent)
}

// NewRelocationManager creates a new relocation manager
func NewRelocationManager(store pkg.ObservationStore, estimator *Estimator, config *RelocationConfig, logger *logx.Logger) *RelocationManager {
	if config == nil {
		config = DefaultRelocationConfig()
	}

	return &RelocationManager{
		logger:    logger,
		config:    config,
		store:     store,
		estimator: estimator,
	}
}

// SetRelocationHandler registers a callback invoked after every overwrite,
// e.g. to publish the event to dashboard consumers.
func (rm *RelocationManager) SetRelocationHandler(fn func(pkg.RelocationEvent)) {
	rm.onRelocate = fn
}

// MaybeRelocate checks whether a network's stored coordinate should be
// overwritten and does so when enough recent observations cluster beyond
// the new-location threshold. Returns true when the coordinate changed.
// The read-compute-write sequence is idempotent for a given observation
// snapshot, so concurrent passes race harmlessly to the same value.
func (rm *RelocationManager) MaybeRelocate(bssid string) (bool, error) {
	stored, err := rm.store.GetNetworkLocation(bssid)
	if err != nil {
		return false, fmt.Errorf("load stored location: %w", err)
	}
	if stored == nil {
		return false, nil
	}

	recent, err := rm.store.GetRecentObservations(bssid, rm.config.RecentObservationCap)
	if err != nil {
		return false, fmt.Errorf("load recent observations: %w", err)
	}
	if len(recent) < rm.config.MinNewObservations {
		return false, nil
	}

	// Keep only observations far enough from the stored coordinate to
	// suggest a different area.
	var farObs []pkg.Observation
	for _, obs := range recent {
		dist := geo.DistanceMeters(stored.Latitude, stored.Longitude, obs.Latitude, obs.Longitude)
		if dist > rm.config.NewLocationThresholdM {
			farObs = append(farObs, obs)
		}
	}
	if len(farObs) < rm.config.MinNewObservations {
		return false, nil
	}

	clusters := DetectClusters(farObs, rm.config.MinClusterSize, rm.config.ClusterRadiusM)
	if len(clusters) == 0 {
		return false, nil
	}

	largest := clusters[0]
	for _, c := range clusters[1:] {
		if c.Size() > largest.Size() {
			largest = c
		}
	}

	newLat, newLon, _ := rm.estimator.WeightedCentroid(largest.Samples(), true)
	distMoved := geo.DistanceMeters(stored.Latitude, stored.Longitude, newLat, newLon)

	if err := rm.store.WriteEstimatedLocation(bssid, newLat, newLon, nil); err != nil {
		return false, fmt.Errorf("write relocated coordinate: %w", err)
	}

	rm.logger.LogStateChange("relocation_manager",
		fmt.Sprintf("%.4f,%.4f", stored.Latitude, stored.Longitude),
		fmt.Sprintf("%.4f,%.4f", newLat, newLon),
		"ap_relocated", map[string]interface{}{
			"bssid":           bssid,
			"distance_m":      distMoved,
			"cluster_size":    largest.Size(),
			"far_observation": len(farObs),
		})

	if rm.onRelocate != nil {
		rm.onRelocate(pkg.RelocationEvent{
			BSSID:            bssid,
			OldLatitude:      stored.Latitude,
			OldLongitude:     stored.Longitude,
			NewLatitude:      newLat,
			NewLongitude:     newLon,
			DistanceMeters:   distMoved,
			ObservationCount: largest.Size(),
			Timestamp:        time.Now(),
		})
	}

	return true, nil
}

// BatchRelocate runs the relocation check over every network that currently
// has a stored location and returns the number relocated. Per-network
// failures are logged and skipped.
func (rm *RelocationManager) BatchRelocate() (int, error) {
	bssids, err := rm.store.GetLocatedNetworks()
	if err != nil {
		return 0, err
	}

	relocated := 0
	for _, bssid := range bssids {
		moved, err := rm.MaybeRelocate(bssid)
		if err != nil {
			rm.logger.Warn("relocation check failed", "bssid", bssid, "error", err)
			continue
		}
		if moved {
			relocated++
		}
	}

	if relocated > 0 {
		rm.logger.Info("relocated APs to new areas", "count", relocated)
	}
	return relocated, nil
}
