package dsp

import (
	"math"
	"math/cmplx"
)

// fmDemodulator recovers audio from frequency modulation with a polar
// discriminator. The last decimated sample is carried across calls so
// phase differences stay continuous at block boundaries.
type fmDemodulator struct {
	*demodCore

	deviationHz float64
	prev        complex128
	havePrev    bool

	// De-emphasis single-pole IIR state.
	deemphAlpha float64
	deemphPrev  float64
}

func newFMDemodulator(core *demodCore, deviationHz float64) *fmDemodulator {
	return &fmDemodulator{
		demodCore:   core,
		deviationHz: deviationHz,
		deemphAlpha: 1 / (1 + float64(core.audioRate)*deemphasisTC),
	}
}

func (d *fmDemodulator) Demodulate(block IQBlock) AudioBlock {
	decimated := d.decim.process(block.Samples)
	out := make([]float64, 0, len(decimated))

	scale := float64(d.audioRate) / (2 * math.Pi * d.deviationHz)
	for _, s := range decimated {
		if !d.havePrev {
			d.prev = s
			d.havePrev = true
			out = append(out, 0)
			continue
		}
		// The angle of s*conj(prev) is the wrapped phase difference,
		// equivalent to unwrap(diff(phase)) one step at a time.
		diff := cmplx.Phase(s * cmplx.Conj(d.prev))
		d.prev = s

		v := diff * scale

		// 75 us de-emphasis.
		d.deemphPrev = d.deemphAlpha*v + (1-d.deemphAlpha)*d.deemphPrev
		v = d.deemphPrev

		// Hard clip.
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out = append(out, v)
	}

	return AudioBlock{Samples: out, Rate: d.audioRate}
}
