package dsp

import "math"

// biquadType selects the RBJ cookbook response of a section.
type biquadType int

const (
	biquadLowpass biquadType = iota
	biquadHighpass
	biquadBandpass
)

// biquad is a single second-order IIR section (Direct Form I) with its
// own delay line, so every filter instance carries isolated state.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	x1, x2     float64
	y1, y2     float64
}

// configure computes RBJ cookbook coefficients for the given response.
func (f *biquad) configure(t biquadType, freq, sampleRate, q float64) {
	omega := 2 * math.Pi * freq / sampleRate
	sinOmega := math.Sin(omega)
	cosOmega := math.Cos(omega)
	alpha := sinOmega / (2 * q)

	a0 := 1 + alpha
	switch t {
	case biquadLowpass:
		f.b0 = (1 - cosOmega) / 2
		f.b1 = 1 - cosOmega
		f.b2 = (1 - cosOmega) / 2
	case biquadHighpass:
		f.b0 = (1 + cosOmega) / 2
		f.b1 = -(1 + cosOmega)
		f.b2 = (1 + cosOmega) / 2
	case biquadBandpass:
		f.b0 = alpha
		f.b1 = 0
		f.b2 = -alpha
	}
	f.a1 = -2 * cosOmega
	f.a2 = 1 - alpha

	f.b0 /= a0
	f.b1 /= a0
	f.b2 /= a0
	f.a1 /= a0
	f.a2 /= a0
}

// filter processes one sample through the section.
func (f *biquad) filter(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// reset clears the delay line.
func (f *biquad) reset() {
	f.x1, f.x2 = 0, 0
	f.y1, f.y2 = 0, 0
}

// filterChain is a cascade of biquad sections applied in order.
type filterChain []*biquad

func (c filterChain) filter(x float64) float64 {
	for _, s := range c {
		x = s.filter(x)
	}
	return x
}

func (c filterChain) reset() {
	for _, s := range c {
		s.reset()
	}
}

// butterworthQ returns the quality factor of biquad section index for a
// Butterworth filter of the given order.
func butterworthQ(order, index int) float64 {
	theta := math.Pi * float64(2*index+1) / (2 * float64(order))
	s := math.Sin(theta)
	if s == 0 {
		return 1 / math.Sqrt2
	}
	return 1 / (2 * s)
}

// firstOrderSection designs a first-order low/high pass section via the
// bilinear transform, used as the trailing section of odd-order
// cascades.
func firstOrderSection(t biquadType, freq, sampleRate float64) *biquad {
	k := math.Tan(math.Pi * freq / sampleRate)
	norm := 1 / (1 + k)
	f := &biquad{}
	switch t {
	case biquadLowpass:
		f.b0 = k * norm
		f.b1 = k * norm
	case biquadHighpass:
		f.b0 = norm
		f.b1 = -norm
	}
	f.a1 = (k - 1) * norm
	return f
}

// butterworthCascade designs an order-N Butterworth low or high pass as
// a cascade of biquad sections (plus one first-order section when the
// order is odd).
func butterworthCascade(t biquadType, freq float64, order int, sampleRate float64) filterChain {
	chain := make(filterChain, 0, (order+1)/2)
	for i := order/2 - 1; i >= 0; i-- {
		s := &biquad{}
		s.configure(t, freq, sampleRate, butterworthQ(order, i))
		chain = append(chain, s)
	}
	if order%2 != 0 {
		chain = append(chain, firstOrderSection(t, freq, sampleRate))
	}
	return chain
}

// butterworthBandpass builds an order-N bandpass as a highpass at the
// low edge cascaded with a lowpass at the high edge.
func butterworthBandpass(lowHz, highHz float64, order int, sampleRate float64) filterChain {
	hp := butterworthCascade(biquadHighpass, lowHz, order, sampleRate)
	lp := butterworthCascade(biquadLowpass, highHz, order, sampleRate)
	return append(hp, lp...)
}
