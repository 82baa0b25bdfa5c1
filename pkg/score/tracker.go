package score

import (
	"time"

	"github.com/apscout/apscout/pkg"
)

const (
	// DefaultWindowSize bounds the signal/client smoothing windows.
	DefaultWindowSize = 5

	// DefaultMinUpdateInterval throttles per-network recomputation.
	DefaultMinUpdateInterval = 15 * time.Second

	// SignificantSignalDeltaDBm forces a recompute ahead of the interval
	// when the averaged signal moves more than this.
	SignificantSignalDeltaDBm = 10
)

// Tracker holds the rolling scan state for a single network: bounded
// smoothing windows for signal and client counts, the cached attributes
// the scorer needs, and the last computed score. Trackers are not safe for
// concurrent use; the engine serializes access.
type Tracker struct {
	BSSID      string
	windowSize int

	signalWindow []int
	clientWindow []int

	lastSignal      *int
	lastClientCount int
	lastScore       *float64
	lastRisk        pkg.RiskLevel
	lastUpdate      time.Time

	// attributes cached from the most recent scan row
	encryption     string
	authentication string
	cipher         string
	channel        string
	wpsEnabled     bool
	hidden         bool
	beaconCount    int
}

// NewTracker creates a tracker with the given smoothing window size.
func NewTracker(bssid string, windowSize int) *Tracker {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Tracker{
		BSSID:      bssid,
		windowSize: windowSize,
	}
}

// AddSignalSample pushes a signal reading into the window and returns the
// smoothed (integer-averaged) value. Sentinel readings of 0 and -1 mean
// "no measurement" in scan output and are skipped so they cannot drag the
// average toward zero.
func (t *Tracker) AddSignalSample(signalDBm int) int {
	if signalDBm != 0 && signalDBm != -1 {
		t.signalWindow = appendBounded(t.signalWindow, signalDBm, t.windowSize)
		v := signalDBm
		t.lastSignal = &v
	}

	if len(t.signalWindow) > 0 {
		return intAverage(t.signalWindow)
	}
	if t.lastSignal != nil {
		return *t.lastSignal
	}
	return pkg.DefaultSignalDBm
}

// AddClientCount pushes a client count into the window and returns the
// smoothed value. Zero is a legitimate count here, unlike signal.
func (t *Tracker) AddClientCount(count int) int {
	t.clientWindow = appendBounded(t.clientWindow, count, t.windowSize)
	t.lastClientCount = count
	return intAverage(t.clientWindow)
}

// TryConsumeInterval reports whether at least minInterval has elapsed since
// the last consumed update, and if so resets the timer. Check and reset are
// a single operation so two callers can never both win the same interval.
func (t *Tracker) TryConsumeInterval(minInterval time.Duration, now time.Time) bool {
	if !t.lastUpdate.IsZero() && now.Sub(t.lastUpdate) < minInterval {
		return false
	}
	t.lastUpdate = now
	return true
}

// HasSignificantChange reports whether new raw readings moved enough to
// justify recomputing ahead of the throttle interval: the signal shifted by
// more than SignificantSignalDeltaDBm against the last accepted reading, or
// the raw client count changed at all. Must be called before the samples
// are added, otherwise it compares the new readings against themselves.
func (t *Tracker) HasSignificantChange(newSignal, newClientCount int) bool {
	if t.lastSignal != nil {
		delta := newSignal - *t.lastSignal
		if delta < 0 {
			delta = -delta
		}
		if delta > SignificantSignalDeltaDBm {
			return true
		}
	}
	return newClientCount != t.lastClientCount
}

// LastScore returns the cached score, or (0, false) before the first
// computation.
func (t *Tracker) LastScore() (float64, bool) {
	if t.lastScore == nil {
		return 0, false
	}
	return *t.lastScore, true
}

func (t *Tracker) setScore(score float64, risk pkg.RiskLevel) {
	t.lastScore = &score
	t.lastRisk = risk
}

// cacheAttributes stores the scan attributes so throttled cycles can still
// serve a coherent snapshot.
func (t *Tracker) cacheAttributes(n pkg.NetworkSnapshot) {
	t.encryption = n.Encryption
	t.authentication = n.Authentication
	t.cipher = n.Cipher
	t.channel = n.Channel
	t.wpsEnabled = n.WPSEnabled
	t.hidden = n.Hidden()
	t.beaconCount = n.BeaconCount
}

func appendBounded(window []int, v, max int) []int {
	window = append(window, v)
	if len(window) > max {
		window = window[len(window)-max:]
	}
	return window
}

func intAverage(values []int) int {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return sum / len(values)
}
