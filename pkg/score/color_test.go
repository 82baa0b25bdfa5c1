package score

import "testing"

func TestScoreColorAnchors(t *testing.T) {
	cases := []struct {
		score float64
		want  Color
	}{
		{0, Color{75, 0, 130}},     // dark purple
		{100, Color{255, 223, 0}},  // bright gold
		{90, Color{255, 215, 10}},  // gold
		{80, Color{255, 255, 0}},   // yellow
		{50, Color{50, 255, 50}},   // green
		{35, Color{0, 255, 200}},   // cyan
		{20, Color{50, 100, 255}},  // blue
	}

	for _, tc := range cases {
		if got := ScoreColor(tc.score); got != tc.want {
			t.Fatalf("ScoreColor(%.0f) = %+v, want %+v", tc.score, got, tc.want)
		}
	}
}

func TestScoreColorSegmentsMeet(t *testing.T) {
	// Adjacent gradient segments share an anchor color, so colors just
	// below and above each boundary stay close. A large jump means a
	// segment's slope constants drifted.
	boundaries := []float64{20, 35, 50, 65, 80, 90}
	for _, b := range boundaries {
		lo := ScoreColor(b - 0.01)
		hi := ScoreColor(b)
		if channelGap(lo.R, hi.R) > 12 || channelGap(lo.G, hi.G) > 12 || channelGap(lo.B, hi.B) > 12 {
			t.Fatalf("gradient discontinuity at %.0f: %+v vs %+v", b, lo, hi)
		}
	}
}

func channelGap(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d
}

func TestStarRating(t *testing.T) {
	cases := []struct {
		score float64
		stars int
		str   string
	}{
		{95, 5, "🌟🌟🌟🌟🌟"},
		{90, 5, "🌟🌟🌟🌟🌟"},
		{75, 4, "⭐⭐⭐⭐"},
		{55, 3, "⭐⭐⭐"},
		{35, 2, "✨✨"},
		{15, 1, "⭐"},
		{10, 0, "🛡️"},
		{0, 0, "🛡️"},
	}

	for _, tc := range cases {
		stars, str := StarRating(tc.score)
		if stars != tc.stars || str != tc.str {
			t.Fatalf("StarRating(%.0f) = (%d, %q), want (%d, %q)",
				tc.score, stars, str, tc.stars, tc.str)
		}
	}
}
