package score

import (
	"fmt"
	"sync"
	"time"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/logx"
)

// Publisher receives committed score updates, typically for MQTT fan-out.
type Publisher interface {
	PublishScore(update pkg.ScoreUpdate) error
}

// TrendRecorder receives smoothed signal samples for trend analysis.
type TrendRecorder interface {
	Record(bssid string, signalDBm float64)
}

// EngineConfig controls the scoring loop.
type EngineConfig struct {
	UpdateInterval    time.Duration `json:"update_interval"`     // batch cycle period
	MinUpdateInterval time.Duration `json:"min_update_interval"` // per-network throttle
	SignalWindowSize  int           `json:"signal_window_size"`
}

// DefaultEngineConfig returns the standard scoring cadence.
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		UpdateInterval:    DefaultMinUpdateInterval,
		MinUpdateInterval: DefaultMinUpdateInterval,
		SignalWindowSize:  DefaultWindowSize,
	}
}

// Engine maintains per-network trackers and runs the periodic batch scoring
// cycle. A single mutex guards the tracker map; persistence happens outside
// the lock so a slow commit never blocks concurrent reads.
type Engine struct {
	mu       sync.Mutex
	logger   *logx.Logger
	config   *EngineConfig
	store    pkg.ScoreStore
	trackers map[string]*Tracker

	publisher     Publisher
	trend         TrendRecorder
	cycleObserver func(result string, written int)

	running bool
	cycling bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	totalUpdates     int64
	throttledUpdates int64
	lastBatch        time.Time
}

// NewEngine creates a scoring engine over the given store.
func NewEngine(store pkg.ScoreStore, config *EngineConfig, logger *logx.Logger) *Engine {
	if config == nil {
		config = DefaultEngineConfig()
	}
	if config.UpdateInterval <= 0 {
		config.UpdateInterval = DefaultMinUpdateInterval
	}
	if config.MinUpdateInterval <= 0 {
		config.MinUpdateInterval = DefaultMinUpdateInterval
	}
	if config.SignalWindowSize <= 0 {
		config.SignalWindowSize = DefaultWindowSize
	}
	return &Engine{
		logger:   logger,
		config:   config,
		store:    store,
		trackers: make(map[string]*Tracker),
	}
}

// SetPublisher attaches an optional publisher for committed updates.
func (e *Engine) SetPublisher(p Publisher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publisher = p
}

// SetTrendRecorder attaches an optional recorder fed with smoothed signals.
func (e *Engine) SetTrendRecorder(t TrendRecorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.trend = t
}

// SetCycleObserver attaches an optional callback invoked after every
// periodic cycle with its outcome ("ok" or "error") and write count.
func (e *Engine) SetCycleObserver(fn func(result string, written int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cycleObserver = fn
}

// Start launches the background scoring loop. Calling Start on a running
// engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	go e.run(e.stopCh, e.doneCh)
	e.logger.Info("Score engine started",
		"update_interval", e.config.UpdateInterval.String(),
		"min_update_interval", e.config.MinUpdateInterval.String())
}

// Stop halts the background loop and waits for the current cycle to finish.
// Calling Stop on a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	close(stopCh)
	<-doneCh
	e.logger.Info("Score engine stopped")
}

func (e *Engine) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(e.config.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			written, err := e.UpdateAllScores(false)

			e.mu.Lock()
			observer := e.cycleObserver
			e.mu.Unlock()

			if err != nil {
				e.logger.Error("Batch score update failed", "error", err)
				if observer != nil {
					observer("error", 0)
				}
			} else if observer != nil {
				observer("ok", written)
			}
		}
	}
}

// UpdateNetworkData feeds one scan row into the engine and returns the
// network's current score. The score is recomputed only when the per-network
// throttle interval has elapsed or the readings changed significantly (or
// force is set); otherwise the cached score is returned and the update
// counted as throttled.
func (e *Engine) UpdateNetworkData(n pkg.NetworkSnapshot, clientCount int, force bool) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	score, _, recomputed := e.updateLocked(n, clientCount, force, time.Now())
	return score, recomputed
}

// updateLocked runs the smoothing and throttle logic for one network.
// Caller holds e.mu.
func (e *Engine) updateLocked(n pkg.NetworkSnapshot, clientCount int, force bool, now time.Time) (float64, pkg.RiskLevel, bool) {
	t, ok := e.trackers[n.BSSID]
	if !ok {
		t = NewTracker(n.BSSID, e.config.SignalWindowSize)
		e.trackers[n.BSSID] = t
	}

	signal := 0
	if n.SignalDBm != nil {
		signal = *n.SignalDBm
	}

	// Significance is judged against the pre-sample state; sentinel signal
	// readings (0, -1) never count as a change on their own.
	sigForCheck := signal
	if signal == 0 || signal == -1 {
		if t.lastSignal != nil {
			sigForCheck = *t.lastSignal
		} else {
			sigForCheck = pkg.DefaultSignalDBm
		}
	}
	significant := t.HasSignificantChange(sigForCheck, clientCount)

	// Windows and cached attributes always advance, even when throttled,
	// so the next recompute sees fresh data.
	smoothedSignal := t.AddSignalSample(signal)
	smoothedClients := t.AddClientCount(clientCount)
	t.cacheAttributes(n)

	recompute := force || significant
	if t.TryConsumeInterval(e.config.MinUpdateInterval, now) {
		recompute = true
	}
	if !recompute {
		if cached, ok := t.LastScore(); ok {
			e.throttledUpdates++
			return cached, t.lastRisk, false
		}
		// No cached score yet; compute once regardless of the throttle.
	}

	s, risk := Calculate(Input{
		Encryption:     n.Encryption,
		Authentication: n.Authentication,
		Cipher:         n.Cipher,
		SignalDBm:      fmt.Sprintf("%d", smoothedSignal),
		WPSEnabled:     n.WPSEnabled,
		HasClients:     smoothedClients > 0,
		Hidden:         n.Hidden(),
		BeaconCount:    n.BeaconCount,
		Channel:        n.Channel,
	})
	t.setScore(s, risk)
	e.totalUpdates++

	if e.trend != nil {
		e.trend.Record(n.BSSID, float64(smoothedSignal))
	}

	return s, risk, true
}

// UpdateAllScores runs one batch cycle: read the visible-network snapshot
// and client counts, feed every row through the tracker logic, and commit
// the changed scores in a single transaction. Overlapping cycles are
// skipped, not queued. Returns the number of scores written.
func (e *Engine) UpdateAllScores(force bool) (int, error) {
	e.mu.Lock()
	if e.cycling {
		e.mu.Unlock()
		e.logger.Debug("Score cycle already in progress, skipping")
		return 0, nil
	}
	e.cycling = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.cycling = false
		e.mu.Unlock()
	}()

	started := time.Now()

	networks, err := e.store.GetCurrentlyVisibleNetworks()
	if err != nil {
		return 0, fmt.Errorf("reading visible networks: %w", err)
	}
	if len(networks) == 0 {
		return 0, nil
	}

	clientCounts, err := e.store.GetClientCountsByBSSID()
	if err != nil {
		return 0, fmt.Errorf("reading client counts: %w", err)
	}

	var updates []pkg.ScoreUpdate
	now := time.Now()

	e.mu.Lock()
	for _, n := range networks {
		prev, hadPrev := float64(0), false
		if t, ok := e.trackers[n.BSSID]; ok {
			prev, hadPrev = t.LastScore()
		}

		s, risk, recomputed := e.updateLocked(n, clientCounts[n.BSSID], force, now)
		if recomputed && (!hadPrev || s != prev) {
			updates = append(updates, pkg.ScoreUpdate{BSSID: n.BSSID, Score: s, Risk: risk})
		}
	}
	publisher := e.publisher
	e.mu.Unlock()

	if len(updates) > 0 {
		if err := e.store.WriteScores(updates); err != nil {
			return 0, fmt.Errorf("committing score batch: %w", err)
		}
		if publisher != nil {
			for _, u := range updates {
				if err := publisher.PublishScore(u); err != nil {
					e.logger.Warn("Score publish failed", "bssid", u.BSSID, "error", err)
				}
			}
		}
	}

	e.mu.Lock()
	e.lastBatch = now
	e.mu.Unlock()

	e.logger.LogDataFlow("score", "scan", "scores", len(updates), map[string]interface{}{
		"networks":    len(networks),
		"duration_ms": time.Since(started).Milliseconds(),
	})

	return len(updates), nil
}

// RiskCounts returns the number of tracked networks per risk level,
// counting only networks that have been scored at least once.
func (e *Engine) RiskCounts() map[pkg.RiskLevel]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[pkg.RiskLevel]int)
	for _, t := range e.trackers {
		if _, ok := t.LastScore(); ok {
			counts[t.lastRisk]++
		}
	}
	return counts
}

// Stats returns engine counters for diagnostics and metrics export.
func (e *Engine) Stats() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	throttleRate := 0.0
	if e.totalUpdates > 0 {
		throttleRate = float64(e.throttledUpdates) / float64(e.totalUpdates)
	}

	return map[string]interface{}{
		"tracked_networks":  len(e.trackers),
		"total_updates":     e.totalUpdates,
		"throttled_updates": e.throttledUpdates,
		"throttle_rate":     throttleRate,
		"last_batch":        e.lastBatch,
		"running":           e.running,
	}
}
