package dsp

import "math"

// squelchAlpha is the fixed smoothing factor for the power estimate.
const squelchAlpha = 0.1

// SquelchGate gates demodulation on smoothed signal power with
// hysteresis so the gate does not chatter around the threshold.
//
// State is strictly sequential: a gate instance must only ever see
// blocks in chronological order from a single caller.
type SquelchGate struct {
	ThresholdDb  float64
	HysteresisDb float64
	Enabled      bool

	smoothed    float64
	initialized bool
	open        bool
}

// NewSquelchGate creates an enabled gate. A hysteresis of 0 is replaced
// with the 3 dB default.
func NewSquelchGate(thresholdDb, hysteresisDb float64) *SquelchGate {
	if hysteresisDb == 0 {
		hysteresisDb = 3
	}
	return &SquelchGate{
		ThresholdDb:  thresholdDb,
		HysteresisDb: hysteresisDb,
		Enabled:      true,
	}
}

// Evaluate updates the smoothed power estimate from one block and
// returns whether the gate is open along with the estimate in dB. An
// empty block leaves all state untouched.
func (g *SquelchGate) Evaluate(block IQBlock) (bool, float64) {
	if block.Len() == 0 {
		return g.isOpen(), g.smoothed
	}

	var power float64
	for _, s := range block.Samples {
		re, im := real(s), imag(s)
		power += re*re + im*im
	}
	power /= float64(block.Len())
	powerDb := 10 * math.Log10(power+dbEpsilon)

	if !g.initialized {
		g.smoothed = powerDb
		g.initialized = true
	} else {
		g.smoothed = squelchAlpha*powerDb + (1-squelchAlpha)*g.smoothed
	}

	if g.open {
		if g.smoothed < g.ThresholdDb-g.HysteresisDb {
			g.open = false
		}
	} else {
		if g.smoothed > g.ThresholdDb {
			g.open = true
		}
	}

	return g.isOpen(), g.smoothed
}

// SmoothedPowerDb returns the current power estimate without advancing
// the gate.
func (g *SquelchGate) SmoothedPowerDb() float64 {
	return g.smoothed
}

func (g *SquelchGate) isOpen() bool {
	if !g.Enabled {
		return true
	}
	return g.open
}
