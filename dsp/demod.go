package dsp

import (
	"fmt"
	"math"
	"strings"
)

// Mode identifies a demodulation mode. The set is closed; new modes are
// added here and in newDemodulator, never via open-ended subclassing.
type Mode int

const (
	ModeAM Mode = iota
	ModeFM
	ModeUSB
	ModeLSB
	ModeCW
)

// String returns the conventional mode name.
func (m Mode) String() string {
	switch m {
	case ModeAM:
		return "AM"
	case ModeFM:
		return "FM"
	case ModeUSB:
		return "USB"
	case ModeLSB:
		return "LSB"
	case ModeCW:
		return "CW"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a mode name (case insensitive) into a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AM":
		return ModeAM, nil
	case "FM":
		return ModeFM, nil
	case "USB":
		return ModeUSB, nil
	case "LSB":
		return ModeLSB, nil
	case "CW":
		return ModeCW, nil
	}
	return 0, fmt.Errorf("unknown mode: %q", s)
}

// SquelchConfig configures the gate embedded in every demodulator.
type SquelchConfig struct {
	Enabled      bool
	ThresholdDb  float64 // [-100, 0]
	HysteresisDb float64 // default 3
}

// DemodConfig configures a demodulator instance. SampleRate must be an
// integer multiple of AudioRate.
type DemodConfig struct {
	Mode        Mode
	SampleRate  int     // IQ input rate, Hz
	AudioRate   int     // audio output rate, Hz
	DeviationHz float64 // FM only, default 75000
	Squelch     SquelchConfig
}

// Demodulator converts IQ blocks into audio blocks. All filter and
// phase memory lives in the instance; a long signal split into
// consecutive blocks demodulates the same as fewer larger blocks.
type Demodulator interface {
	// DetectSignal advances the squelch gate with one block and
	// reports whether audio should be produced.
	DetectSignal(block IQBlock) bool

	// Demodulate converts one IQ block into decimated audio.
	Demodulate(block IQBlock) AudioBlock

	// Squelch exposes the gate for status reporting.
	Squelch() *SquelchGate

	// Mode reports the configured mode.
	Mode() Mode
}

// Filter cutoffs shared by the demodulator variants.
const (
	amCutoffHz   = 15000.0
	ssbLowHz     = 300.0
	ssbHighHz    = 3000.0
	filterOrder  = 5
	deemphasisTC = 75e-6 // FM de-emphasis time constant, seconds
)

// NewDemodulator validates the configuration and builds the variant for
// cfg.Mode. Configuration problems (non-integer decimation, cutoff at
// or above the audio Nyquist, missing rates) are reported here, never
// at call time.
func NewDemodulator(cfg DemodConfig) (Demodulator, error) {
	if cfg.SampleRate <= 0 || cfg.AudioRate <= 0 {
		return nil, fmt.Errorf("demod: sample rate %d and audio rate %d must be positive", cfg.SampleRate, cfg.AudioRate)
	}
	if cfg.SampleRate%cfg.AudioRate != 0 {
		return nil, fmt.Errorf("demod: sample rate %d is not an integer multiple of audio rate %d", cfg.SampleRate, cfg.AudioRate)
	}

	nyquist := float64(cfg.AudioRate) / 2
	switch cfg.Mode {
	case ModeAM:
		if amCutoffHz >= nyquist {
			return nil, fmt.Errorf("demod: AM cutoff %.0f Hz is at or above audio Nyquist %.0f Hz", amCutoffHz, nyquist)
		}
	case ModeUSB, ModeLSB:
		if ssbHighHz >= nyquist {
			return nil, fmt.Errorf("demod: SSB cutoff %.0f Hz is at or above audio Nyquist %.0f Hz", ssbHighHz, nyquist)
		}
	case ModeFM:
		if cfg.DeviationHz <= 0 {
			return nil, fmt.Errorf("demod: FM deviation must be positive, got %.0f Hz", cfg.DeviationHz)
		}
	}

	core, err := newDemodCore(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeFM:
		return newFMDemodulator(core, cfg.DeviationHz), nil
	case ModeAM:
		return newAMDemodulator(core), nil
	case ModeUSB:
		return newSSBDemodulator(core, false), nil
	case ModeLSB:
		return newSSBDemodulator(core, true), nil
	case ModeCW:
		return newCWDemodulator(core), nil
	}
	return nil, fmt.Errorf("demod: unknown mode %v", cfg.Mode)
}

// demodCore is the state shared by every variant: the anti-alias
// decimator and the squelch gate.
type demodCore struct {
	mode      Mode
	audioRate int
	decim     *complexDecimator
	squelch   *SquelchGate
}

func newDemodCore(cfg DemodConfig) (*demodCore, error) {
	factor := cfg.SampleRate / cfg.AudioRate

	gate := NewSquelchGate(cfg.Squelch.ThresholdDb, cfg.Squelch.HysteresisDb)
	gate.Enabled = cfg.Squelch.Enabled

	return &demodCore{
		mode:      cfg.Mode,
		audioRate: cfg.AudioRate,
		decim:     newComplexDecimator(factor, cfg.SampleRate),
		squelch:   gate,
	}, nil
}

func (c *demodCore) DetectSignal(block IQBlock) bool {
	open, _ := c.squelch.Evaluate(block)
	return open
}

func (c *demodCore) Squelch() *SquelchGate {
	return c.squelch
}

func (c *demodCore) Mode() Mode {
	return c.mode
}

// complexDecimator low-pass filters I and Q with identical Butterworth
// cascades and keeps every factor-th sample. The sample phase carries
// across blocks so block boundaries do not shift the output grid.
type complexDecimator struct {
	factor  int
	iChain  filterChain
	qChain  filterChain
	phase   int
	scratch []complex128
}

func newComplexDecimator(factor, sampleRate int) *complexDecimator {
	d := &complexDecimator{factor: factor}
	if factor > 1 {
		// Anti-alias cutoff a little below the output Nyquist.
		cutoff := 0.45 * float64(sampleRate) / float64(factor)
		d.iChain = butterworthCascade(biquadLowpass, cutoff, filterOrder, float64(sampleRate))
		d.qChain = butterworthCascade(biquadLowpass, cutoff, filterOrder, float64(sampleRate))
	}
	return d
}

// process filters and decimates one block of complex samples. The
// returned slice is reused between calls.
func (d *complexDecimator) process(samples []complex128) []complex128 {
	d.scratch = d.scratch[:0]
	for _, s := range samples {
		if d.factor > 1 {
			s = complex(d.iChain.filter(real(s)), d.qChain.filter(imag(s)))
		}
		if d.phase == 0 {
			d.scratch = append(d.scratch, s)
		}
		d.phase++
		if d.phase >= d.factor {
			d.phase = 0
		}
	}
	return d.scratch
}

// peakNormalize scales the block so its largest magnitude is 1. A
// silent block is left untouched.
func peakNormalize(samples []float64) {
	var peak float64
	for _, v := range samples {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}
	for i := range samples {
		samples[i] /= peak
	}
}
