package dsp

import "math/cmplx"

// ssbDemodulator recovers single-sideband audio. USB takes the real
// part of the sample, LSB the real part of its conjugate; both share a
// 300-3000 Hz voice bandpass.
type ssbDemodulator struct {
	*demodCore

	lower bool
	post  filterChain
}

func newSSBDemodulator(core *demodCore, lower bool) *ssbDemodulator {
	return &ssbDemodulator{
		demodCore: core,
		lower:     lower,
		post:      butterworthBandpass(ssbLowHz, ssbHighHz, filterOrder, float64(core.audioRate)),
	}
}

func (d *ssbDemodulator) Demodulate(block IQBlock) AudioBlock {
	decimated := d.decim.process(block.Samples)
	out := make([]float64, len(decimated))

	for i, s := range decimated {
		if d.lower {
			s = cmplx.Conj(s)
		}
		out[i] = d.post.filter(real(s))
	}
	peakNormalize(out)

	return AudioBlock{Samples: out, Rate: d.audioRate}
}
