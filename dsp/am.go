package dsp

import "math/cmplx"

// amDemodulator recovers audio from amplitude modulation via envelope
// detection, DC removal and a Butterworth low-pass.
type amDemodulator struct {
	*demodCore

	post filterChain
}

func newAMDemodulator(core *demodCore) *amDemodulator {
	return &amDemodulator{
		demodCore: core,
		post:      butterworthCascade(biquadLowpass, amCutoffHz, filterOrder, float64(core.audioRate)),
	}
}

func (d *amDemodulator) Demodulate(block IQBlock) AudioBlock {
	decimated := d.decim.process(block.Samples)
	out := make([]float64, len(decimated))
	if len(out) == 0 {
		return AudioBlock{Samples: out, Rate: d.audioRate}
	}

	var mean float64
	for i, s := range decimated {
		out[i] = cmplx.Abs(s)
		mean += out[i]
	}
	mean /= float64(len(out))

	for i := range out {
		out[i] = d.post.filter(out[i] - mean)
	}
	peakNormalize(out)

	return AudioBlock{Samples: out, Rate: d.audioRate}
}
