package pkg

import "time"

// Observation represents a single GPS-tagged sighting of a network during a
// scan. Observations are append-only; they are never mutated after creation.
type Observation struct {
	BSSID     string    `json:"bssid"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  *float64  `json:"altitude,omitempty"`   // meters, optional
	Accuracy  *float64  `json:"accuracy,omitempty"`   // GPS accuracy in meters, optional
	SignalDBm *int      `json:"signal_dbm,omitempty"` // absent -> DefaultSignalDBm
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"` // scan|import|manual
}

// Signal returns the observation's signal strength, falling back to
// DefaultSignalDBm when the scan carried no reading.
func (o Observation) Signal() int {
	if o.SignalDBm == nil {
		return DefaultSignalDBm
	}
	return *o.SignalDBm
}

// Location represents a stored or estimated AP coordinate.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// NetworkRecord is the historical aggregate for one access point, keyed by
// BSSID. Score fields are derived and recomputed every scoring cycle;
// HighestScore/LowestScore only ratchet and are never reset.
type NetworkRecord struct {
	BSSID          string    `json:"bssid"`
	SSID           string    `json:"ssid,omitempty"`
	Channel        int       `json:"channel,omitempty"`
	Encryption     string    `json:"encryption,omitempty"`     // OPN, WEP, WPA, WPA2, WPA3, mixed modes
	Cipher         string    `json:"cipher,omitempty"`         // TKIP, CCMP
	Authentication string    `json:"authentication,omitempty"` // PSK, SAE, MGT
	WPSEnabled     bool      `json:"wps_enabled"`
	WPSLocked      bool      `json:"wps_locked"`
	MinSignal      *int      `json:"min_signal,omitempty"` // dBm
	MaxSignal      *int      `json:"max_signal,omitempty"`
	AvgSignal      *int      `json:"avg_signal,omitempty"`
	CurrentSignal  *int      `json:"current_signal,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Altitude       *float64  `json:"altitude,omitempty"`
	CurrentScore   *float64  `json:"current_score,omitempty"`
	HighestScore   *float64  `json:"highest_score,omitempty"`
	LowestScore    *float64  `json:"lowest_score,omitempty"`
	RiskLevel      RiskLevel `json:"risk_level,omitempty"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
}

// NetworkSnapshot is the live view of a currently-visible network from the
// ephemeral scan table, carrying everything the scorer needs.
type NetworkSnapshot struct {
	BSSID          string `json:"bssid"`
	SSID           string `json:"ssid,omitempty"`
	SignalDBm      *int   `json:"signal_dbm,omitempty"`
	Encryption     string `json:"encryption,omitempty"`
	Authentication string `json:"authentication,omitempty"`
	Cipher         string `json:"cipher,omitempty"`
	WPSEnabled     bool   `json:"wps_enabled"`
	Channel        string `json:"channel,omitempty"`
	BeaconCount    int    `json:"beacon_count"`
}

// Hidden reports whether the network is not broadcasting an SSID.
func (n NetworkSnapshot) Hidden() bool {
	return n.SSID == ""
}

// ScoreUpdate is one network's new score destined for a batch commit.
type ScoreUpdate struct {
	BSSID string    `json:"bssid"`
	Score float64   `json:"score"`
	Risk  RiskLevel `json:"risk"`
}

// RelocationEvent describes a stored coordinate being overwritten because
// new spatial evidence invalidated it.
type RelocationEvent struct {
	BSSID            string    `json:"bssid"`
	OldLatitude      float64   `json:"old_latitude"`
	OldLongitude     float64   `json:"old_longitude"`
	NewLatitude      float64   `json:"new_latitude"`
	NewLongitude     float64   `json:"new_longitude"`
	DistanceMeters   float64   `json:"distance_meters"`
	ObservationCount int       `json:"observation_count"`
	Timestamp        time.Time `json:"timestamp"`
}

// RiskLevel buckets a numeric attack score.
type RiskLevel string

// Risk levels
const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
)

// Observation provenance tags
const (
	SourceScan   = "scan"
	SourceImport = "import"
	SourceManual = "manual"
)

// DefaultSignalDBm is assumed when an observation carries no signal reading.
const DefaultSignalDBm = -70

// ObservationStore is the read/write surface the location estimator and
// relocation manager need from the persistence layer.
type ObservationStore interface {
	// GetObservations returns observations for a network newer than since.
	// With requireLocation set, rows without GPS coordinates are excluded.
	GetObservations(bssid string, since time.Time, requireLocation bool) ([]Observation, error)
	// GetRecentObservations returns up to limit GPS-tagged observations for
	// a network, newest first.
	GetRecentObservations(bssid string, limit int) ([]Observation, error)
	// GetNetworkLocation returns the stored coordinate, or nil if none.
	GetNetworkLocation(bssid string) (*Location, error)
	// GetLocatedNetworks lists BSSIDs that currently have a stored location.
	GetLocatedNetworks() ([]string, error)
	// GetNetworksWithObservations lists BSSIDs with at least min
	// GPS-tagged observations on record.
	GetNetworksWithObservations(min int) ([]string, error)
	// WriteEstimatedLocation overwrites a network's stored coordinate.
	WriteEstimatedLocation(bssid string, lat, lon float64, altitude *float64) error
}

// ScoreStore is the read/write surface the score engine needs from the
// persistence layer. WriteScores must commit its batch atomically.
type ScoreStore interface {
	GetCurrentlyVisibleNetworks() ([]NetworkSnapshot, error)
	GetClientCountsByBSSID() (map[string]int, error)
	WriteScores(updates []ScoreUpdate) error
}
