package locate

import (
	"math"
	"testing"
	"time"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/logx"
	"github.com/apscout/apscout/pkg/sigproc"
)

func newTestRelocationManager(store *fakeStore) *RelocationManager {
	logger := logx.New("error")
	estimator := NewEstimator(store, sigproc.NewAnalyzer(true), nil, logger)
	return NewRelocationManager(store, estimator, nil, logger)
}

func TestMaybeRelocateNoStoredLocation(t *testing.T) {
	store := newFakeStore()
	rm := newTestRelocationManager(store)

	moved, err := rm.MaybeRelocate("AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("relocate check failed: %v", err)
	}
	if moved {
		t.Fatal("network without a stored location must not relocate")
	}
}

func TestMaybeRelocateOutlierIgnored(t *testing.T) {
	bssid := "AA:BB:CC:DD:EE:FF"
	store := newFakeStore()
	store.locations[bssid] = &pkg.Location{Latitude: 40.0, Longitude: -90.0}
	store.observations[bssid] = []pkg.Observation{
		obsAt(bssid, 40.0001, -90.0001, -60, 3*time.Minute),
		obsAt(bssid, 40.0002, -90.0000, -62, 2*time.Minute),
		obsAt(bssid, 41.5, -91.5, -70, time.Minute), // single far outlier
	}

	rm := newTestRelocationManager(store)
	moved, err := rm.MaybeRelocate(bssid)
	if err != nil {
		t.Fatalf("relocate check failed: %v", err)
	}
	if moved {
		t.Fatal("a single outlier observation must never move a stored coordinate")
	}
	if store.locations[bssid].Latitude != 40.0 {
		t.Fatalf("stored coordinate changed: %+v", store.locations[bssid])
	}
}

func TestMaybeRelocateNewAreaCluster(t *testing.T) {
	// AP stored at (40,-90), three fresh observations
	// all near (40.01,-90.01) ~1.4 km away overwrite the stored coordinate
	// with the new cluster's centroid.
	bssid := "AA:BB:CC:DD:EE:FF"
	store := newFakeStore()
	store.locations[bssid] = &pkg.Location{Latitude: 40.0, Longitude: -90.0}
	store.observations[bssid] = []pkg.Observation{
		obsAt(bssid, 40.0100, -90.0100, -55, 3*time.Minute),
		obsAt(bssid, 40.0101, -90.0101, -58, 2*time.Minute),
		obsAt(bssid, 40.0102, -90.0100, -52, time.Minute),
	}

	rm := newTestRelocationManager(store)

	var event *pkg.RelocationEvent
	rm.SetRelocationHandler(func(e pkg.RelocationEvent) { event = &e })

	moved, err := rm.MaybeRelocate(bssid)
	if err != nil {
		t.Fatalf("relocate check failed: %v", err)
	}
	if !moved {
		t.Fatal("expected relocation to the new cluster")
	}

	loc := store.locations[bssid]
	if math.Abs(loc.Latitude-40.0101) > 0.001 || math.Abs(loc.Longitude+90.0100) > 0.001 {
		t.Fatalf("relocated coordinate (%v,%v) not at the new cluster", loc.Latitude, loc.Longitude)
	}

	if event == nil {
		t.Fatal("relocation handler was not invoked")
	}
	if event.BSSID != bssid || event.ObservationCount != 3 {
		t.Fatalf("unexpected relocation event: %+v", event)
	}
	if event.DistanceMeters < 1000 {
		t.Fatalf("relocation distance %v should exceed the threshold", event.DistanceMeters)
	}
}

func TestBatchRelocateCounts(t *testing.T) {
	moving := "AA:BB:CC:DD:EE:01"
	steady := "AA:BB:CC:DD:EE:02"

	store := newFakeStore()
	store.locations[moving] = &pkg.Location{Latitude: 40.0, Longitude: -90.0}
	store.locations[steady] = &pkg.Location{Latitude: 40.0, Longitude: -90.0}
	store.observations[moving] = []pkg.Observation{
		obsAt(moving, 40.0100, -90.0100, -55, 2*time.Minute),
		obsAt(moving, 40.0101, -90.0101, -58, time.Minute),
	}
	store.observations[steady] = []pkg.Observation{
		obsAt(steady, 40.0001, -90.0001, -55, 2*time.Minute),
		obsAt(steady, 40.0002, -90.0000, -58, time.Minute),
	}

	rm := newTestRelocationManager(store)
	relocated, err := rm.BatchRelocate()
	if err != nil {
		t.Fatalf("batch relocate failed: %v", err)
	}
	if relocated != 1 {
		t.Fatalf("expected 1 relocation, got %d", relocated)
	}
	if store.locations[steady].Latitude != 40.0 {
		t.Fatal("steady network should not have moved")
	}
}
