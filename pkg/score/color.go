package score

import "strings"

// Color is a 24-bit RGB triple for dashboard rendering.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// ScoreColor maps a score onto a continuous gradient from dark purple
// (secure) through blue, cyan, green and yellow up to bright gold
// (vulnerable). Segment boundaries line up with the risk thresholds so
// adjacent risk levels blend rather than jump.
func ScoreColor(score float64) Color {
	var r, g, b int

	switch {
	case score >= 90:
		// gold to bright gold
		r = 255
		g = int(215 + (score-90)*0.8)
		b = int(10 - (score - 90))
	case score >= 80:
		// yellow to gold
		r = 255
		g = int(255 - (score-80)*4)
		b = int(score - 80)
	case score >= 65:
		// yellow-green to yellow
		r = int(200 + (score-65)*3.67)
		g = 255
		b = 0
	case score >= 50:
		// green to yellow-green
		r = int(50 + (score-50)*10.71)
		g = 255
		b = int(50 - (score-50)*3.57)
	case score >= 35:
		// cyan to green
		r = int((score - 35) * 3.57)
		g = 255
		b = int(200 - (score-35)*10)
	case score >= 20:
		// blue to cyan
		r = int(50 - (score-20)*3.57)
		g = int(100 + (score-20)*10.36)
		b = int(255 - (score-20)*3.93)
	default:
		// dark purple to blue
		r = int(75 - score*1.25)
		g = int(score * 5)
		b = int(130 + score*6.25)
	}

	return Color{R: clampByte(r), G: clampByte(g), B: clampByte(b)}
}

// StarRating converts a score into a 0-5 star count and a glyph string for
// terminal dashboards. Higher score means more stars: an easier target.
func StarRating(score float64) (int, string) {
	var stars int
	switch {
	case score >= 90:
		stars = 5
	case score >= 75:
		stars = 4
	case score >= 55:
		stars = 3
	case score >= 35:
		stars = 2
	case score >= 15:
		stars = 1
	default:
		stars = 0
	}

	var glyph string
	switch {
	case score >= 90:
		glyph = "🌟"
	case score >= 75:
		glyph = "⭐"
	case score >= 55:
		glyph = "⭐"
	case score >= 35:
		glyph = "✨"
	case score >= 15:
		glyph = "⭐"
	default:
		return 0, "🛡️"
	}

	return stars, strings.Repeat(glyph, stars)
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
