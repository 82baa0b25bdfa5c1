// Package trend fits per-network signal trends over time. A rising trend
// means the receiver is closing on the AP (or vice versa), which the
// dashboard uses to steer wardriving passes toward unlocated networks.
package trend

import (
	"errors"
	"sync"
	"time"

	"github.com/sajari/regression"

	"github.com/apscout/apscout/pkg/logx"
)

// ErrInsufficientData is returned when a network has too few samples for a
// meaningful fit.
var ErrInsufficientData = errors.New("not enough samples for trend analysis")

// Direction classifies a fitted slope.
type Direction string

// Trend directions
const (
	DirectionApproaching Direction = "approaching" // signal strengthening
	DirectionReceding    Direction = "receding"    // signal weakening
	DirectionStable      Direction = "stable"
)

// Config controls sample retention and slope classification.
type Config struct {
	MaxSamples        int     `json:"max_samples"`         // per-network history bound
	MinSamples        int     `json:"min_samples"`         // fit threshold
	SlopeThresholdDBm float64 `json:"slope_threshold_dbm"` // dBm/min for stable band
}

// DefaultConfig returns retention and classification defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxSamples:        60,
		MinSamples:        5,
		SlopeThresholdDBm: 0.5,
	}
}

// Trend is the fitted signal trajectory for one network.
type Trend struct {
	BSSID          string    `json:"bssid"`
	SlopeDBmPerMin float64   `json:"slope_dbm_per_min"`
	InterceptDBm   float64   `json:"intercept_dbm"`
	R2             float64   `json:"r2"`
	SampleCount    int       `json:"sample_count"`
	Direction      Direction `json:"direction"`
}

type sample struct {
	at     time.Time
	signal float64
}

// Analyzer accumulates smoothed signal samples per BSSID and fits a linear
// model on demand. Safe for concurrent use.
type Analyzer struct {
	mu      sync.Mutex
	logger  *logx.Logger
	config  *Config
	samples map[string][]sample
}

// NewAnalyzer creates a trend analyzer.
func NewAnalyzer(config *Config, logger *logx.Logger) *Analyzer {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxSamples <= 0 {
		config.MaxSamples = 60
	}
	if config.MinSamples < 3 {
		config.MinSamples = 3
	}
	return &Analyzer{
		logger:  logger,
		config:  config,
		samples: make(map[string][]sample),
	}
}

// Record appends a signal sample timestamped now. Satisfies the score
// engine's recorder hook.
func (a *Analyzer) Record(bssid string, signalDBm float64) {
	a.RecordAt(bssid, time.Now(), signalDBm)
}

// RecordAt appends a signal sample with an explicit timestamp. History is
// bounded per network; the oldest samples fall off first.
func (a *Analyzer) RecordAt(bssid string, at time.Time, signalDBm float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	history := append(a.samples[bssid], sample{at: at, signal: signalDBm})
	if len(history) > a.config.MaxSamples {
		history = history[len(history)-a.config.MaxSamples:]
	}
	a.samples[bssid] = history
}

// Analyze fits signal-versus-time for one network and classifies the slope.
func (a *Analyzer) Analyze(bssid string) (*Trend, error) {
	a.mu.Lock()
	history := append([]sample(nil), a.samples[bssid]...)
	a.mu.Unlock()

	if len(history) < a.config.MinSamples {
		return nil, ErrInsufficientData
	}

	var r regression.Regression
	r.SetObserved("signal_dbm")
	r.SetVar(0, "elapsed_minutes")

	origin := history[0].at
	for _, s := range history {
		minutes := s.at.Sub(origin).Minutes()
		r.Train(regression.DataPoint(s.signal, []float64{minutes}))
	}

	if err := r.Run(); err != nil {
		return nil, err
	}

	coeffs := r.GetCoeffs()
	if len(coeffs) < 2 {
		return nil, ErrInsufficientData
	}

	t := &Trend{
		BSSID:          bssid,
		SlopeDBmPerMin: coeffs[1],
		InterceptDBm:   coeffs[0],
		R2:             r.R2,
		SampleCount:    len(history),
	}

	switch {
	case t.SlopeDBmPerMin > a.config.SlopeThresholdDBm:
		t.Direction = DirectionApproaching
	case t.SlopeDBmPerMin < -a.config.SlopeThresholdDBm:
		t.Direction = DirectionReceding
	default:
		t.Direction = DirectionStable
	}

	return t, nil
}

// AnalyzeAll fits every tracked network, skipping those without enough
// samples.
func (a *Analyzer) AnalyzeAll() map[string]*Trend {
	a.mu.Lock()
	bssids := make([]string, 0, len(a.samples))
	for bssid := range a.samples {
		bssids = append(bssids, bssid)
	}
	a.mu.Unlock()

	trends := make(map[string]*Trend)
	for _, bssid := range bssids {
		t, err := a.Analyze(bssid)
		if err != nil {
			if !errors.Is(err, ErrInsufficientData) && a.logger != nil {
				a.logger.Warn("Trend fit failed", "bssid", bssid, "error", err)
			}
			continue
		}
		trends[bssid] = t
	}
	return trends
}

// Forget drops a network's sample history, typically after relocation.
func (a *Analyzer) Forget(bssid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.samples, bssid)
}

// TrackedNetworks returns the number of networks with sample history.
func (a *Analyzer) TrackedNetworks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}
