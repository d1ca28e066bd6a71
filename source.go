package main

import (
	"math"
	"math/rand"

	"github.com/waverider/waverider/dsp"
)

// IQSource supplies IQ blocks to the engine. ReadBlock blocks until a
// full block is available or the source is closed.
type IQSource interface {
	ReadBlock(numSamples int) (dsp.IQBlock, error)
	SampleRate() int
	CenterFreq() uint64
	Close() error
}

// SignalGenerator produces a simulated RF scene: a carrier, two offset
// tones, an FM-like signal and gaussian noise. Used when no hardware or
// RTP stream is configured.
type SignalGenerator struct {
	sampleRate int
	centerFreq uint64
	time       float64
	rng        *rand.Rand
}

// NewSignalGenerator creates a generator starting at t=0.
func NewSignalGenerator(sampleRate int, centerFreq uint64) *SignalGenerator {
	return &SignalGenerator{
		sampleRate: sampleRate,
		centerFreq: centerFreq,
		rng:        rand.New(rand.NewSource(1)),
	}
}

// ReadBlock generates numSamples of simulated IQ. Time continues across
// calls so tones stay phase-continuous.
func (sg *SignalGenerator) ReadBlock(numSamples int) (dsp.IQBlock, error) {
	samples := make([]complex128, numSamples)
	sr := float64(sg.sampleRate)

	f1 := sr * 0.15
	f2 := sr * -0.2
	fmCarrier := sr * 0.3

	for i := range samples {
		t := sg.time + float64(i)/sr

		// Carrier at the center frequency.
		s := complex(1, 0)

		// Two offset tones.
		s += cisTone(0.3, f1, t)
		s += cisTone(0.2, f2, t)

		// FM-like signal: carrier with sinusoidal phase modulation.
		phase := 2*math.Pi*fmCarrier*t + 0.05*math.Sin(2*math.Pi*1000*t)
		s += complex(0.4*math.Cos(phase), 0.4*math.Sin(phase))

		// Noise.
		s += complex(sg.rng.NormFloat64()*0.1, sg.rng.NormFloat64()*0.1)

		samples[i] = s
	}
	sg.time += float64(numSamples) / sr

	return dsp.IQBlock{
		Samples:    samples,
		SampleRate: sg.sampleRate,
		CenterFreq: sg.centerFreq,
	}, nil
}

// cisTone returns amp*e^(2*pi*i*freq*t).
func cisTone(amp, freq, t float64) complex128 {
	phase := 2 * math.Pi * freq * t
	return complex(amp*math.Cos(phase), amp*math.Sin(phase))
}

// SampleRate returns the configured sample rate.
func (sg *SignalGenerator) SampleRate() int {
	return sg.sampleRate
}

// CenterFreq returns the simulated center frequency.
func (sg *SignalGenerator) CenterFreq() uint64 {
	return sg.centerFreq
}

// Close is a no-op for the generator.
func (sg *SignalGenerator) Close() error {
	return nil
}
