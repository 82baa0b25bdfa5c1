// Package score computes and maintains attack-feasibility scores for
// observed networks. The scorer itself is a pure function over network
// attributes; the engine around it smooths noisy scan data and throttles
// recomputation so a sub-second dashboard poll never stalls.
package score

import (
	"math"
	"strconv"
	"strings"

	"github.com/apscout/apscout/pkg"
)

// Input carries the network attributes the scorer evaluates. String fields
// come straight from scan output and may be empty or malformed; every parse
// degrades to a documented default instead of failing.
type Input struct {
	Encryption     string `json:"encryption"`
	Authentication string `json:"authentication"`
	Cipher         string `json:"cipher"`
	SignalDBm      string `json:"signal_dbm"` // numeric string, e.g. "-55"
	WPSEnabled     bool   `json:"wps_enabled"`
	HasClients     bool   `json:"has_clients"`
	Hidden         bool   `json:"hidden"`
	BeaconCount    int    `json:"beacon_count"`
	Channel        string `json:"channel"`
}

// wpsBonus is added when WPS is enabled; an enabled registrar is the single
// biggest practical weakness a consumer AP can have.
const wpsBonus = 40.0

// encryptionScores maps exact encryption labels to base scores. Higher
// score = easier target.
var encryptionScores = []struct {
	label string
	value float64
}{
	{"OPN", 100},
	{"WEP", 95},
	{"WPA", 70},
	{"WPA2", 40},
	{"WPA3", 15},
	{"WPA3 WPA2", 25}, // mixed mode downgrades pure WPA3
	{"WPA2 WPA", 50},  // mixed mode downgrades pure WPA2
}

// Calculate evaluates the attack feasibility of a network. The result is
// always in [0,100], rounded to 2 decimals, with fractional components kept
// deliberately granular so nearly every distinct signal/beacon/channel
// combination sorts uniquely in the UI. Steps compound in a fixed order;
// in particular the WPS bonus is capped at 100 before the signal and
// activity bonuses are added.
func Calculate(in Input) (float64, pkg.RiskLevel) {
	score := encryptionScore(in.Encryption)
	score += authModifier(in.Authentication)
	score += cipherBonus(in.Cipher)

	if in.WPSEnabled {
		score += wpsBonus
		if score > 100 {
			score = 100
		}
	}

	score += SignalBonus(in.SignalDBm)

	// Associated clients mean live handshakes to capture; a much more
	// valuable target.
	if in.HasClients {
		score += 15.0
	}

	if in.Hidden {
		score -= 3.0
	}

	if in.BeaconCount > 0 {
		bonus := math.Min(2.0, float64(in.BeaconCount)/10.0)
		fraction := float64(in.BeaconCount%100) / 1000.0
		score += bonus + fraction
	}

	score += channelBonus(in.Channel)

	score = math.Max(0, math.Min(100, score))
	score = math.Round(score*100) / 100

	return score, RiskForScore(score)
}

// RiskForScore buckets a numeric score into a risk level.
func RiskForScore(score float64) pkg.RiskLevel {
	switch {
	case score >= 80:
		return pkg.RiskCritical
	case score >= 60:
		return pkg.RiskHigh
	case score >= 35:
		return pkg.RiskMedium
	default:
		return pkg.RiskLow
	}
}

// RiskDescription returns a human-readable summary for a risk level.
func RiskDescription(risk pkg.RiskLevel, wpsEnabled bool) string {
	var desc string
	switch risk {
	case pkg.RiskCritical:
		desc = "Extremely vulnerable - Easy target"
	case pkg.RiskHigh:
		desc = "High vulnerability - Attackable"
	case pkg.RiskMedium:
		desc = "Moderate security - Possible target"
	case pkg.RiskLow:
		desc = "Strong security - Difficult target"
	default:
		desc = "Unknown"
	}

	if wpsEnabled {
		desc += " [WPS ENABLED!]"
	}
	return desc
}

// encryptionScore resolves the base score: exact label lookup first, then
// ordered substring fallback for vendor-specific strings, 50 for anything
// unrecognized.
func encryptionScore(encryption string) float64 {
	enc := strings.ToUpper(strings.TrimSpace(encryption))

	for _, e := range encryptionScores {
		if enc == e.label {
			return e.value
		}
	}

	switch {
	case strings.Contains(enc, "WPA3"):
		return 15
	case strings.Contains(enc, "WPA2"):
		return 40
	case strings.Contains(enc, "WPA"):
		return 70
	case strings.Contains(enc, "WEP"):
		return 95
	default:
		return 50
	}
}

// authModifier adjusts for the authentication mode. The mixed SAE/PSK case
// is tested before the pure modes so its substring components cannot
// shadow it.
func authModifier(authentication string) float64 {
	auth := strings.ToUpper(strings.TrimSpace(authentication))

	switch {
	case strings.Contains(auth, "SAE") && strings.Contains(auth, "PSK"):
		return -5 // mixed SAE/PSK, downgrade path still open
	case strings.Contains(auth, "SAE"):
		return -15
	case strings.Contains(auth, "MGT"):
		return -20 // enterprise
	default:
		return 0 // PSK or unknown
	}
}

// cipherBonus adds a fractional component for weak ciphers.
func cipherBonus(cipher string) float64 {
	c := strings.ToUpper(strings.TrimSpace(cipher))
	if strings.Contains(c, "TKIP") {
		return 0.5
	}
	return 0
}

// SignalBonus converts a signal strength string into a 0-20 bonus with a
// fractional term so nearly every distinct dBm value scores uniquely.
// Malformed input contributes 0.
func SignalBonus(signalDBm string) float64 {
	v, err := strconv.Atoi(strings.TrimSpace(signalDBm))
	if err != nil {
		return 0
	}

	var base float64
	if v >= -30 {
		base = 20.0
	} else {
		// Exponential decay from -30 down to -90; below -90 the
		// normalized value is clamped so the fractional power stays
		// defined.
		normalized := (float64(v) + 90) / 60.0
		normalized = math.Max(0, math.Min(1, normalized))
		base = 20.0 * math.Pow(normalized, 1.5)
	}

	fractional := float64(abs(v)%10) / 100.0
	return math.Round((base+fractional)*1000) / 1000
}

// channelBonus adds +0.3 for the congested 2.4 GHz channels (more traffic
// to analyze), a tiny fractional term otherwise. Unparseable channels
// contribute 0.
func channelBonus(channel string) float64 {
	ch, err := strconv.Atoi(strings.TrimSpace(channel))
	if err != nil || ch <= 0 {
		return 0
	}

	if ch == 1 || ch == 6 || ch == 11 {
		return 0.3
	}
	return float64(ch%10) / 100.0
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
