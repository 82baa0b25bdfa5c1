package score

import (
	"testing"
	"time"

	"github.com/apscout/apscout/pkg"
)

func TestTrackerSignalWindowBounded(t *testing.T) {
	tr := NewTracker("AA:BB:CC:DD:EE:01", 5)

	for _, s := range []int{-80, -78, -76, -74, -72, -70, -68} {
		tr.AddSignalSample(s)
	}

	// Only the last 5 samples remain: (-76-74-72-70-68)/5 = -72.
	if got := tr.AddSignalSample(0); got != -72 {
		t.Fatalf("expected smoothed -72 from bounded window, got %d", got)
	}
	if len(tr.signalWindow) != 5 {
		t.Fatalf("window grew past its bound: %d entries", len(tr.signalWindow))
	}
}

func TestTrackerIgnoresSentinelSignals(t *testing.T) {
	tr := NewTracker("AA:BB:CC:DD:EE:02", 5)

	if got := tr.AddSignalSample(0); got != pkg.DefaultSignalDBm {
		t.Fatalf("empty tracker with sentinel should return default, got %d", got)
	}

	tr.AddSignalSample(-60)
	tr.AddSignalSample(0)  // no measurement
	tr.AddSignalSample(-1) // no measurement

	if got := tr.AddSignalSample(-62); got != -61 {
		t.Fatalf("sentinels must not enter the average: got %d, want -61", got)
	}
}

func TestTrackerClientAverage(t *testing.T) {
	tr := NewTracker("AA:BB:CC:DD:EE:03", 5)

	// Zero is a real count for clients, unlike signal.
	if got := tr.AddClientCount(0); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	tr.AddClientCount(3)
	if got := tr.AddClientCount(3); got != 2 {
		t.Fatalf("expected average 2 of [0 3 3], got %d", got)
	}
}

func TestTryConsumeInterval(t *testing.T) {
	tr := NewTracker("AA:BB:CC:DD:EE:04", 5)
	base := time.Now()

	if !tr.TryConsumeInterval(15*time.Second, base) {
		t.Fatalf("first check must consume the interval")
	}
	if tr.TryConsumeInterval(15*time.Second, base.Add(5*time.Second)) {
		t.Fatalf("interval consumed twice within the window")
	}
	if !tr.TryConsumeInterval(15*time.Second, base.Add(16*time.Second)) {
		t.Fatalf("interval not released after it elapsed")
	}
	// The successful consume above reset the timer.
	if tr.TryConsumeInterval(15*time.Second, base.Add(17*time.Second)) {
		t.Fatalf("consume did not reset the timer")
	}
}

func TestHasSignificantChange(t *testing.T) {
	tr := NewTracker("AA:BB:CC:DD:EE:05", 5)

	// No history yet: only a client-count change counts.
	if tr.HasSignificantChange(-50, 0) {
		t.Fatalf("no history should not be significant")
	}
	if !tr.HasSignificantChange(-50, 2) {
		t.Fatalf("client appearance must be significant")
	}

	tr.AddSignalSample(-60)
	tr.AddClientCount(2)

	if tr.HasSignificantChange(-65, 2) {
		t.Fatalf("5 dBm shift is below the significance threshold")
	}
	if tr.HasSignificantChange(-70, 2) {
		t.Fatalf("exactly 10 dBm is at, not over, the threshold")
	}
	if !tr.HasSignificantChange(-71, 2) {
		t.Fatalf("11 dBm shift must be significant")
	}
	if !tr.HasSignificantChange(-60, 3) {
		t.Fatalf("client count change must be significant")
	}
}
