package dsp

// IQBlock is one block of complex baseband samples. Blocks are owned by
// the caller and borrowed by the DSP core for the duration of a single
// call; the core never retains a reference to the sample slice.
type IQBlock struct {
	Samples    []complex128
	SampleRate int    // Hz
	CenterFreq uint64 // Hz, carried through to spectral frames
}

// Len returns the number of samples in the block.
func (b IQBlock) Len() int {
	return len(b.Samples)
}

// SpectralFrame is one FFT's worth of magnitude data in dB, centered so
// that bin FFTSize/2 corresponds to the center frequency.
type SpectralFrame struct {
	Data       []float64 // dB magnitudes, length FFTSize
	FFTSize    int
	SampleRate int    // Hz
	CenterFreq uint64 // Hz
}

// AudioBlock is a block of demodulated audio samples.
type AudioBlock struct {
	Samples []float64
	Rate    int // Hz
}
