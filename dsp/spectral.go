package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// dbEpsilon guards log10 against zero magnitudes.
const dbEpsilon = 1e-10

// SpectralAnalyzer converts IQ blocks into dB-scaled magnitude spectra.
// The output of Analyze depends only on its arguments; the struct only
// caches the FFT plan and window for the most recent size.
type SpectralAnalyzer struct {
	fftSize  int
	fft      *fourier.CmplxFFT
	window   []float64
	windowed []complex128
	shifted  []complex128
}

// NewSpectralAnalyzer creates an analyzer. The FFT plan is built lazily
// on the first call, so a zero size here is fine.
func NewSpectralAnalyzer() *SpectralAnalyzer {
	return &SpectralAnalyzer{}
}

// Analyze windows and FFTs one IQ block into a centered magnitude
// spectrum in dB. Blocks shorter than fftSize are zero padded, longer
// blocks are truncated.
func (sa *SpectralAnalyzer) Analyze(block IQBlock, fftSize int) SpectralFrame {
	sa.ensureSize(fftSize)

	for i := 0; i < fftSize; i++ {
		if i < len(block.Samples) {
			sa.windowed[i] = block.Samples[i] * complex(sa.window[i], 0)
		} else {
			sa.windowed[i] = 0
		}
	}

	coeffs := sa.fft.Coefficients(nil, sa.windowed)

	// Zero-frequency-centering shift: bin fftSize/2 is the carrier.
	half := fftSize / 2
	for i := 0; i < fftSize; i++ {
		sa.shifted[i] = coeffs[(i+half)%fftSize]
	}

	data := make([]float64, fftSize)
	for i, c := range sa.shifted {
		data[i] = 20 * math.Log10(cmplx.Abs(c)+dbEpsilon)
	}

	return SpectralFrame{
		Data:       data,
		FFTSize:    fftSize,
		SampleRate: block.SampleRate,
		CenterFreq: block.CenterFreq,
	}
}

func (sa *SpectralAnalyzer) ensureSize(fftSize int) {
	if sa.fftSize == fftSize && sa.fft != nil {
		return
	}
	sa.fftSize = fftSize
	sa.fft = fourier.NewCmplxFFT(fftSize)
	sa.window = hammingWindow(fftSize)
	sa.windowed = make([]complex128, fftSize)
	sa.shifted = make([]complex128, fftSize)
}

// hammingWindow returns a periodic Hamming window of length n.
func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}
