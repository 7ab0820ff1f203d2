package processor

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectralAnalyzer reduces a block of samples to one mean-power value per
// analysis frame. Frames are left-aligned (no centre padding) so a block of n
// samples yields FrameCount(n) frames and trailing samples past the last full
// window are ignored.
//
// An analyzer owns its FFT plan and scratch buffers and must not be shared
// between goroutines.
type SpectralAnalyzer struct {
	windowLength int
	hopLength    int
	window       []float64
	fft          *fourier.FFT
	frame        []float64
	coeffs       []complex128
}

// NewSpectralAnalyzer creates an analyzer with a periodic Hann window
func NewSpectralAnalyzer(windowLength, hopLength int) *SpectralAnalyzer {
	return &SpectralAnalyzer{
		windowLength: windowLength,
		hopLength:    hopLength,
		window:       hannWindow(windowLength),
		fft:          fourier.NewFFT(windowLength),
		frame:        make([]float64, windowLength),
		coeffs:       make([]complex128, windowLength/2+1),
	}
}

// FrameCount returns how many full analysis windows fit in n samples
func FrameCount(n, windowLength, hopLength int) int {
	if n < windowLength || hopLength <= 0 {
		return 0
	}
	return (n-windowLength)/hopLength + 1
}

// MeanPower returns the squared spectral magnitude averaged over all
// non-negative frequency bins, for every frame of samples
func (a *SpectralAnalyzer) MeanPower(samples []float32) []float64 {
	frames := FrameCount(len(samples), a.windowLength, a.hopLength)
	power := make([]float64, frames)
	bins := float64(len(a.coeffs))

	for f := 0; f < frames; f++ {
		start := f * a.hopLength
		for i, w := range a.window {
			a.frame[i] = float64(samples[start+i]) * w
		}

		a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

		var sum float64
		for _, c := range a.coeffs {
			re, im := real(c), imag(c)
			sum += re*re + im*im
		}
		power[f] = sum / bins
	}

	return power
}

// hannWindow returns the periodic (DFT-even) Hann window of length n
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
