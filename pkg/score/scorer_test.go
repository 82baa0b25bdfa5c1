package score

import (
	"math"
	"strconv"
	"testing"

	"github.com/apscout/apscout/pkg"
)

func TestCalculateTypicalHomeRouter(t *testing.T) {
	// WPA2/PSK/CCMP on channel 6 at -55 dBm with steady beaconing.
	score, risk := Calculate(Input{
		Encryption:     "WPA2",
		Authentication: "PSK",
		Cipher:         "CCMP",
		SignalDBm:      "-55",
		Channel:        "6",
		BeaconCount:    100,
	})

	// 40 base + 9.411 signal + 2.0 beacons + 0.3 channel
	if math.Abs(score-51.71) > 0.01 {
		t.Fatalf("expected score ~51.71, got %.2f", score)
	}
	if risk != pkg.RiskMedium {
		t.Fatalf("expected MEDIUM risk, got %s", risk)
	}
}

func TestCalculateWPSEscalates(t *testing.T) {
	base := Input{
		Encryption:     "WPA2",
		Authentication: "PSK",
		Cipher:         "CCMP",
		SignalDBm:      "-55",
		Channel:        "6",
		BeaconCount:    100,
	}

	without, _ := Calculate(base)

	withWPS := base
	withWPS.WPSEnabled = true
	got, risk := Calculate(withWPS)

	if got <= without {
		t.Fatalf("WPS must not lower the score: %.2f -> %.2f", without, got)
	}
	if math.Abs(got-91.71) > 0.01 {
		t.Fatalf("expected score ~91.71 with WPS, got %.2f", got)
	}
	if risk != pkg.RiskCritical {
		t.Fatalf("expected CRITICAL risk with WPS, got %s", risk)
	}
}

func TestCalculateWPSCapBeforeBonuses(t *testing.T) {
	// An open network with WPS hits the 100 cap before signal/activity
	// bonuses, and the final clamp keeps it there.
	score, risk := Calculate(Input{
		Encryption: "OPN",
		WPSEnabled: true,
		SignalDBm:  "-40",
		HasClients: true,
	})

	if score != 100 {
		t.Fatalf("expected clamped score 100, got %.2f", score)
	}
	if risk != pkg.RiskCritical {
		t.Fatalf("expected CRITICAL risk, got %s", risk)
	}
}

func TestCalculateClampsAtZero(t *testing.T) {
	// WPA3/SAE hidden with no parseable signal goes negative pre-clamp.
	score, risk := Calculate(Input{
		Encryption:     "WPA3",
		Authentication: "SAE",
		Hidden:         true,
		SignalDBm:      "n/a",
	})

	if score != 0 {
		t.Fatalf("expected clamped score 0, got %.2f", score)
	}
	if risk != pkg.RiskLow {
		t.Fatalf("expected LOW risk, got %s", risk)
	}
}

func TestCalculateClientsIncreaseScore(t *testing.T) {
	in := Input{Encryption: "WPA2", Authentication: "PSK", SignalDBm: "-60"}
	idle, _ := Calculate(in)

	in.HasClients = true
	active, _ := Calculate(in)

	if active <= idle {
		t.Fatalf("clients must raise the score: %.2f -> %.2f", idle, active)
	}
	if math.Abs((active-idle)-15.0) > 0.001 {
		t.Fatalf("expected +15 client bonus, got %+.3f", active-idle)
	}
}

func TestEncryptionScore(t *testing.T) {
	cases := []struct {
		encryption string
		want       float64
	}{
		{"OPN", 100},
		{"WEP", 95},
		{"WPA", 70},
		{"WPA2", 40},
		{"WPA3", 15},
		{"WPA3 WPA2", 25},
		{"WPA2 WPA", 50},
		{"wpa2", 40},          // case-insensitive
		{" WPA2 ", 40},        // whitespace tolerated
		{"WPA3-SAE", 15},      // substring fallback
		{"WPA2-Personal", 40}, // substring fallback
		{"ESS WPA", 70},
		{"DYNAMIC-WEP", 95},
		{"", 50},
		{"unknown", 50},
	}

	for _, tc := range cases {
		if got := encryptionScore(tc.encryption); got != tc.want {
			t.Fatalf("encryptionScore(%q) = %.0f, want %.0f", tc.encryption, got, tc.want)
		}
	}
}

func TestAuthModifier(t *testing.T) {
	cases := []struct {
		auth string
		want float64
	}{
		{"PSK", 0},
		{"SAE", -15},
		{"MGT", -20},
		{"SAE PSK", -5}, // mixed mode, not shadowed by the pure cases
		{"PSK SAE", -5},
		{"", 0},
	}

	for _, tc := range cases {
		if got := authModifier(tc.auth); got != tc.want {
			t.Fatalf("authModifier(%q) = %.0f, want %.0f", tc.auth, got, tc.want)
		}
	}
}

func TestSignalBonus(t *testing.T) {
	cases := []struct {
		signal string
		want   float64
	}{
		{"-25", 20.05}, // at/above -30: full bonus plus fraction
		{"-30", 20.0},  // boundary
		{"-90", 0.0},   // floor of the decay range
		{"-95", 0.05},  // below -90 clamps, fraction survives
		{"garbage", 0}, // parse failure
		{"", 0},
	}

	for _, tc := range cases {
		if got := SignalBonus(tc.signal); math.Abs(got-tc.want) > 0.0005 {
			t.Fatalf("SignalBonus(%q) = %.3f, want %.3f", tc.signal, got, tc.want)
		}
	}

	// Decay is monotonic between -90 and -30.
	prev := SignalBonus("-90")
	for v := -85; v <= -35; v += 5 {
		got := SignalBonus(strconv.Itoa(v))
		if got < prev-0.1 { // fractional term allows small local dips
			t.Fatalf("signal bonus regressed at %d dBm: %.3f -> %.3f", v, prev, got)
		}
		prev = got
	}
}

func TestRiskForScore(t *testing.T) {
	cases := []struct {
		score float64
		want  pkg.RiskLevel
	}{
		{100, pkg.RiskCritical},
		{80, pkg.RiskCritical},
		{79.99, pkg.RiskHigh},
		{60, pkg.RiskHigh},
		{59.99, pkg.RiskMedium},
		{35, pkg.RiskMedium},
		{34.99, pkg.RiskLow},
		{0, pkg.RiskLow},
	}

	for _, tc := range cases {
		if got := RiskForScore(tc.score); got != tc.want {
			t.Fatalf("RiskForScore(%.2f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestRiskDescription(t *testing.T) {
	desc := RiskDescription(pkg.RiskCritical, true)
	if desc != "Extremely vulnerable - Easy target [WPS ENABLED!]" {
		t.Fatalf("unexpected description: %q", desc)
	}
	if RiskDescription(pkg.RiskLow, false) != "Strong security - Difficult target" {
		t.Fatalf("unexpected LOW description")
	}
}
