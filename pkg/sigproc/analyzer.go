// Package sigproc provides frequency-domain analysis of per-AP signal
// strength series. The analyzer grades how clean a series is (noise and
// interference show up as high-frequency power) so the location estimator
// can weight observations accordingly.
package sigproc

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	// MinSamples is the minimum series length for spectral analysis.
	MinSamples = 4

	// NeutralQuality is returned whenever analysis cannot run.
	NeutralQuality = 50.0

	// DefaultCutoffRatio keeps the lowest 30% of frequencies when low-pass
	// filtering a signal series.
	DefaultCutoffRatio = 0.3
)

// Analyzer grades signal-strength series and filters noise out of them.
// Implementations must degrade gracefully: short series always produce the
// neutral result, never an error.
type Analyzer interface {
	// Analyze returns a quality score (0-100, 50 neutral), the mean
	// high-frequency noise power, and the dominant frequency in Hz
	// (assuming 1 Hz sampling).
	Analyze(signals []float64) (quality, noiseLevel, dominantFreqHz float64)

	// FilterLowPass removes high-frequency noise from a series, keeping
	// the lowest cutoffRatio fraction of frequency bins. Series shorter
	// than MinSamples are returned unchanged.
	FilterLowPass(signals []float64, cutoffRatio float64) []float64
}

// NewAnalyzer selects the spectral implementation when enabled, the neutral
// no-op otherwise. Selection happens once at construction so call sites
// never branch on capability.
func NewAnalyzer(enabled bool) Analyzer {
	if enabled {
		return &FFTAnalyzer{}
	}
	return &NeutralAnalyzer{}
}

// FFTAnalyzer implements Analyzer with a discrete Fourier transform.
type FFTAnalyzer struct{}

// Analyze runs spectral analysis over the series. The positive-frequency
// half of the power spectrum is split into a signal band (lowest quarter of
// frequencies) and a noise band (highest half); quality is an SNR mapped
// onto 0-100 with 50 as the break-even point.
func (a *FFTAnalyzer) Analyze(signals []float64) (float64, float64, float64) {
	n := len(signals)
	if n < MinSamples {
		return NeutralQuality, 0, 0
	}

	// Remove the DC component so the spectrum reflects variation only.
	mean := 0.0
	for _, s := range signals {
		mean += s
	}
	mean /= float64(n)

	centered := make([]float64, n)
	for i, s := range signals {
		centered[i] = s - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centered)

	// Positive frequencies, excluding DC and the Nyquist bin.
	positive := make([]float64, 0, n/2)
	for i := 1; i < n/2; i++ {
		positive = append(positive, power(coeff[i]))
	}
	if len(positive) == 0 {
		return NeutralQuality, 0, 0
	}

	// Signal band: lowest quarter of frequencies, at least one bin so the
	// mean stays defined on short series.
	signalBand := len(positive) / 4
	if signalBand < 1 {
		signalBand = 1
	}
	signalPower := meanOf(positive[:signalBand])
	noiseLevel := meanOf(positive[len(positive)/2:])

	dominantIdx := 0
	for i, p := range positive {
		if p > positive[dominantIdx] {
			dominantIdx = i
		}
	}
	dominantFreq := fft.Freq(dominantIdx + 1) // 1 Hz sampling assumed

	quality := 100.0
	if noiseLevel > 0 {
		snr := signalPower / noiseLevel
		quality = clamp(50.0+10.0*math.Log10(snr+0.001), 0, 100)
	}

	return quality, noiseLevel, dominantFreq
}

// FilterLowPass zeroes every frequency bin at or above the cutoff index and
// inverse-transforms back to a real series.
func (a *FFTAnalyzer) FilterLowPass(signals []float64, cutoffRatio float64) []float64 {
	n := len(signals)
	if n < MinSamples {
		return signals
	}

	cutoffIdx := int(float64(n) * cutoffRatio)
	if cutoffIdx < 1 {
		cutoffIdx = 1 // always keep DC
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, signals)
	for i := cutoffIdx; i < len(coeff); i++ {
		coeff[i] = 0
	}

	// gonum's inverse is unnormalized; scale by 1/n.
	filtered := fft.Sequence(nil, coeff)
	for i := range filtered {
		filtered[i] /= float64(n)
	}
	return filtered
}

// NeutralAnalyzer implements Analyzer as a no-op for platforms or
// configurations without spectral analysis. Quality is always neutral and
// filtering returns the input unchanged.
type NeutralAnalyzer struct{}

// Analyze returns the neutral default.
func (a *NeutralAnalyzer) Analyze(signals []float64) (float64, float64, float64) {
	return NeutralQuality, 0, 0
}

// FilterLowPass returns the input unchanged.
func (a *NeutralAnalyzer) FilterLowPass(signals []float64, cutoffRatio float64) []float64 {
	return signals
}

func power(c complex128) float64 {
	m := cmplx.Abs(c)
	return m * m
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
