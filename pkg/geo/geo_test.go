package geo

import (
	"math"
	"testing"
)

func TestDistanceIdentity(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{40.0, -90.0},
		{-33.8688, 151.2093},
		{89.9, 179.9},
	}

	for _, p := range points {
		if d := DistanceMeters(p[0], p[1], p[0], p[1]); d != 0 {
			t.Fatalf("distance from (%v,%v) to itself = %v, want 0", p[0], p[1], d)
		}
	}
}

func TestDistanceSymmetry(t *testing.T) {
	a := [2]float64{40.0, -90.0}
	b := [2]float64{40.01, -90.01}

	ab := DistanceMeters(a[0], a[1], b[0], b[1])
	ba := DistanceMeters(b[0], b[1], a[0], a[1])
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("distance not symmetric: %v vs %v", ab, ba)
	}
}

func TestDistanceKnownValue(t *testing.T) {
	// One degree of latitude is ~111.19 km on the reference sphere.
	d := DistanceMeters(0, 0, 1, 0)
	if math.Abs(d-111195) > 50 {
		t.Fatalf("1 degree latitude = %v m, want ~111195", d)
	}

	// A typical relocation distance: (40.0,-90.0) to (40.01,-90.01) is
	// roughly 1.4 km.
	d = DistanceMeters(40.0, -90.0, 40.01, -90.01)
	if d < 1300 || d > 1500 {
		t.Fatalf("scenario distance = %v m, want ~1400", d)
	}
}

func TestSignalToDistance(t *testing.T) {
	if d := SignalToDistanceMeters(10, 2412); d != 0 {
		t.Fatalf("non-negative signal should give 0, got %v", d)
	}

	near := SignalToDistanceMeters(-40, 2412)
	far := SignalToDistanceMeters(-80, 2412)
	if near <= 0 || far <= near {
		t.Fatalf("expected monotonic distance estimate: near=%v far=%v", near, far)
	}
}
