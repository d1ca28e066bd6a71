package dsp

import "math/cmplx"

// cwDemodulator produces the raw carrier envelope for CW reception.
// Unlike AM, the output keeps its absolute amplitude so the Morse
// decoder's detection threshold stays meaningful, and no DC removal is
// applied (the keyed carrier is the signal).
type cwDemodulator struct {
	*demodCore
}

func newCWDemodulator(core *demodCore) *cwDemodulator {
	return &cwDemodulator{demodCore: core}
}

func (d *cwDemodulator) Demodulate(block IQBlock) AudioBlock {
	decimated := d.decim.process(block.Samples)
	out := make([]float64, len(decimated))
	for i, s := range decimated {
		out[i] = cmplx.Abs(s)
	}
	return AudioBlock{Samples: out, Rate: d.audioRate}
}
