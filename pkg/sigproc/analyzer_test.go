package sigproc

import (
	"math"
	"testing"
)

func TestAnalyzeTooFewSamples(t *testing.T) {
	a := &FFTAnalyzer{}

	for _, signals := range [][]float64{nil, {-60}, {-60, -61}, {-60, -61, -62}} {
		q, noise, freq := a.Analyze(signals)
		if q != NeutralQuality || noise != 0 || freq != 0 {
			t.Fatalf("short series (%d samples) should be neutral, got (%v,%v,%v)",
				len(signals), q, noise, freq)
		}
	}
}

func TestAnalyzeCleanSeries(t *testing.T) {
	a := &FFTAnalyzer{}

	// A slow drift with no high-frequency content should grade well above
	// a series dominated by sample-to-sample jumps.
	clean := make([]float64, 16)
	noisy := make([]float64, 16)
	for i := range clean {
		clean[i] = -60 + 3*math.Sin(2*math.Pi*float64(i)/16)
		noisy[i] = -60 + 8*math.Sin(2*math.Pi*6*float64(i)/16)
	}

	cleanQ, _, _ := a.Analyze(clean)
	noisyQ, _, _ := a.Analyze(noisy)

	if cleanQ <= noisyQ {
		t.Fatalf("clean series quality %v should exceed noisy %v", cleanQ, noisyQ)
	}
	if cleanQ < 0 || cleanQ > 100 || noisyQ < 0 || noisyQ > 100 {
		t.Fatalf("quality out of range: clean=%v noisy=%v", cleanQ, noisyQ)
	}
}

func TestAnalyzeDominantFrequency(t *testing.T) {
	a := &FFTAnalyzer{}

	// Pure tone at 4 cycles over 32 samples = 0.125 cycles/sample.
	signals := make([]float64, 32)
	for i := range signals {
		signals[i] = -65 + 5*math.Sin(2*math.Pi*4*float64(i)/32)
	}

	_, _, freq := a.Analyze(signals)
	if math.Abs(freq-0.125) > 0.02 {
		t.Fatalf("dominant frequency = %v, want ~0.125", freq)
	}
}

func TestFilterLowPassShortSeriesUnchanged(t *testing.T) {
	a := &FFTAnalyzer{}

	in := []float64{-60, -70, -65}
	out := a.FilterLowPass(in, DefaultCutoffRatio)
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("short series should pass through unchanged, got %v", out)
		}
	}
}

func TestFilterLowPassReducesJitter(t *testing.T) {
	a := &FFTAnalyzer{}

	in := make([]float64, 16)
	for i := range in {
		in[i] = -65
		if i%2 == 0 {
			in[i] = -55
		}
	}

	out := a.FilterLowPass(in, DefaultCutoffRatio)
	if len(out) != len(in) {
		t.Fatalf("filtered length %d != input length %d", len(out), len(in))
	}

	// The alternating component sits at the Nyquist frequency and must be
	// attenuated; the mean level survives through the DC bin.
	varIn := variance(in)
	varOut := variance(out)
	if varOut >= varIn {
		t.Fatalf("filter did not attenuate jitter: in=%v out=%v", varIn, varOut)
	}
	if math.Abs(meanOf(out)-meanOf(in)) > 0.5 {
		t.Fatalf("filter shifted mean level: in=%v out=%v", meanOf(in), meanOf(out))
	}
}

func TestNeutralAnalyzer(t *testing.T) {
	a := NewAnalyzer(false)

	signals := []float64{-60, -61, -62, -63, -64, -65}
	q, noise, freq := a.Analyze(signals)
	if q != NeutralQuality || noise != 0 || freq != 0 {
		t.Fatalf("neutral analyzer returned (%v,%v,%v)", q, noise, freq)
	}

	out := a.FilterLowPass(signals, DefaultCutoffRatio)
	for i := range signals {
		if out[i] != signals[i] {
			t.Fatalf("neutral filter modified input: %v", out)
		}
	}
}

func TestNewAnalyzerSelection(t *testing.T) {
	if _, ok := NewAnalyzer(true).(*FFTAnalyzer); !ok {
		t.Fatal("enabled analyzer should be FFT-backed")
	}
	if _, ok := NewAnalyzer(false).(*NeutralAnalyzer); !ok {
		t.Fatal("disabled analyzer should be neutral")
	}
}

func variance(xs []float64) float64 {
	m := meanOf(xs)
	v := 0.0
	for _, x := range xs {
		v += (x - m) * (x - m)
	}
	return v / float64(len(xs))
}
