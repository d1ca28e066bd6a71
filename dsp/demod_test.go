package dsp

import (
	"math"
	"testing"
)

func disabledSquelch() SquelchConfig {
	return SquelchConfig{Enabled: false, ThresholdDb: -50}
}

func TestNewDemodulatorValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  DemodConfig
	}{
		{"zero sample rate", DemodConfig{Mode: ModeFM, SampleRate: 0, AudioRate: 48000, DeviationHz: 75000}},
		{"zero audio rate", DemodConfig{Mode: ModeFM, SampleRate: 2400000, AudioRate: 0, DeviationHz: 75000}},
		{"non-integer decimation", DemodConfig{Mode: ModeFM, SampleRate: 50000, AudioRate: 48000, DeviationHz: 75000}},
		{"fm zero deviation", DemodConfig{Mode: ModeFM, SampleRate: 2400000, AudioRate: 48000}},
		{"am cutoff above nyquist", DemodConfig{Mode: ModeAM, SampleRate: 48000, AudioRate: 24000}},
		{"ssb cutoff at nyquist", DemodConfig{Mode: ModeUSB, SampleRate: 12000, AudioRate: 6000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDemodulator(tt.cfg); err == nil {
				t.Error("NewDemodulator() accepted invalid config")
			}
		})
	}
}

func TestNewDemodulatorModes(t *testing.T) {
	for _, mode := range []Mode{ModeAM, ModeFM, ModeUSB, ModeLSB, ModeCW} {
		d, err := NewDemodulator(DemodConfig{
			Mode:        mode,
			SampleRate:  2400000,
			AudioRate:   48000,
			DeviationHz: 75000,
			Squelch:     disabledSquelch(),
		})
		if err != nil {
			t.Fatalf("mode %v: %v", mode, err)
		}
		if d.Mode() != mode {
			t.Errorf("Mode() = %v, want %v", d.Mode(), mode)
		}
	}
}

// TestZeroBlockProducesSilence verifies an all-zero IQ block yields
// near-zero audio in every mode.
func TestZeroBlockProducesSilence(t *testing.T) {
	for _, mode := range []Mode{ModeAM, ModeFM, ModeUSB, ModeLSB, ModeCW} {
		d, err := NewDemodulator(DemodConfig{
			Mode:        mode,
			SampleRate:  240000,
			AudioRate:   48000,
			DeviationHz: 75000,
			Squelch:     disabledSquelch(),
		})
		if err != nil {
			t.Fatalf("mode %v: %v", mode, err)
		}

		audio := d.Demodulate(IQBlock{Samples: make([]complex128, 4096), SampleRate: 240000})
		for i, v := range audio.Samples {
			if math.Abs(v) > 1e-9 {
				t.Errorf("mode %v: sample %d = %g, want ~0", mode, i, v)
				break
			}
		}
	}
}

// TestFMToneRecovery feeds a carrier offset by a constant 1 kHz and
// expects the discriminator output to settle at offset/deviation.
func TestFMToneRecovery(t *testing.T) {
	const (
		sampleRate = 240000
		audioRate  = 48000
		deviation  = 75000.0
		offset     = 1000.0
	)

	d, err := NewDemodulator(DemodConfig{
		Mode:        ModeFM,
		SampleRate:  sampleRate,
		AudioRate:   audioRate,
		DeviationHz: deviation,
		Squelch:     disabledSquelch(),
	})
	if err != nil {
		t.Fatal(err)
	}

	block := IQBlock{Samples: makeTone(sampleRate, offset, sampleRate), SampleRate: sampleRate}
	audio := d.Demodulate(block)

	if audio.Rate != audioRate {
		t.Fatalf("audio rate = %d, want %d", audio.Rate, audioRate)
	}
	if len(audio.Samples) != audioRate {
		t.Fatalf("audio length = %d, want %d", len(audio.Samples), audioRate)
	}

	// After the anti-alias filter and de-emphasis settle the output is
	// the constant frequency offset scaled by the deviation.
	want := offset / deviation
	for i := len(audio.Samples) - 1000; i < len(audio.Samples); i++ {
		if math.Abs(audio.Samples[i]-want) > 1e-3 {
			t.Fatalf("sample %d = %.6f, want %.6f", i, audio.Samples[i], want)
		}
	}
}

// TestFMBlockContinuity verifies that splitting the input into blocks
// does not change the output: filter and phase state carry across
// block boundaries.
func TestFMBlockContinuity(t *testing.T) {
	const (
		sampleRate = 240000
		audioRate  = 48000
	)
	cfg := DemodConfig{
		Mode:        ModeFM,
		SampleRate:  sampleRate,
		AudioRate:   audioRate,
		DeviationHz: 75000,
		Squelch:     disabledSquelch(),
	}

	whole, err := NewDemodulator(cfg)
	if err != nil {
		t.Fatal(err)
	}
	split, err := NewDemodulator(cfg)
	if err != nil {
		t.Fatal(err)
	}

	samples := makeTone(20000, 1000, sampleRate)

	wholeOut := whole.Demodulate(IQBlock{Samples: samples, SampleRate: sampleRate})

	var splitOut []float64
	for off := 0; off < len(samples); off += 1024 {
		end := off + 1024
		if end > len(samples) {
			end = len(samples)
		}
		out := split.Demodulate(IQBlock{Samples: samples[off:end], SampleRate: sampleRate})
		splitOut = append(splitOut, out.Samples...)
	}

	if len(splitOut) != len(wholeOut.Samples) {
		t.Fatalf("split length = %d, whole length = %d", len(splitOut), len(wholeOut.Samples))
	}
	for i := range splitOut {
		if math.Abs(splitOut[i]-wholeOut.Samples[i]) > 1e-12 {
			t.Fatalf("sample %d differs: split %.9f, whole %.9f", i, splitOut[i], wholeOut.Samples[i])
		}
	}
}

// TestAMEnvelopeRecovery modulates a baseband carrier with a 1 kHz tone
// and expects the demodulated audio to be that tone, normalized.
func TestAMEnvelopeRecovery(t *testing.T) {
	const sampleRate = 48000

	d, err := NewDemodulator(DemodConfig{
		Mode:       ModeAM,
		SampleRate: sampleRate,
		AudioRate:  sampleRate,
		Squelch:    disabledSquelch(),
	})
	if err != nil {
		t.Fatal(err)
	}

	samples := make([]complex128, sampleRate)
	for i := range samples {
		env := 1 + 0.5*math.Cos(2*math.Pi*1000*float64(i)/sampleRate)
		samples[i] = complex(env, 0)
	}
	audio := d.Demodulate(IQBlock{Samples: samples, SampleRate: sampleRate})

	// DC removed, peak normalized: expect a roughly unit-amplitude,
	// zero-mean tone.
	var sum, peak float64
	for _, v := range audio.Samples[len(audio.Samples)/2:] {
		sum += v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	mean := sum / float64(len(audio.Samples)/2)
	if math.Abs(mean) > 0.05 {
		t.Errorf("audio mean = %.4f, want ~0", mean)
	}
	if peak < 0.8 || peak > 1.0001 {
		t.Errorf("audio peak = %.4f, want ~1", peak)
	}
}

// TestCWRawEnvelope verifies CW output preserves the absolute signal
// level so the Morse decoder threshold stays meaningful.
func TestCWRawEnvelope(t *testing.T) {
	const sampleRate = 48000

	d, err := NewDemodulator(DemodConfig{
		Mode:       ModeCW,
		SampleRate: sampleRate,
		AudioRate:  sampleRate,
		Squelch:    disabledSquelch(),
	})
	if err != nil {
		t.Fatal(err)
	}

	samples := make([]complex128, 4096)
	for i := range samples {
		samples[i] = complex(0.5, 0)
	}
	audio := d.Demodulate(IQBlock{Samples: samples, SampleRate: sampleRate})

	for i, v := range audio.Samples {
		if math.Abs(v-0.5) > 1e-9 {
			t.Fatalf("sample %d = %.6f, want 0.5 (no normalization)", i, v)
		}
	}
}

// TestSSBToneInBand checks a voice-band tone survives the 300-3000 Hz
// bandpass with substantial energy after normalization.
func TestSSBToneInBand(t *testing.T) {
	const sampleRate = 48000

	run := func(freq float64) float64 {
		d, err := NewDemodulator(DemodConfig{
			Mode:       ModeUSB,
			SampleRate: sampleRate,
			AudioRate:  sampleRate,
			Squelch:    disabledSquelch(),
		})
		if err != nil {
			t.Fatal(err)
		}

		audio := d.Demodulate(IQBlock{
			Samples:    makeTone(sampleRate, freq, sampleRate),
			SampleRate: sampleRate,
		})

		// Peak of the settled half, before normalization would matter:
		// USB output is peak normalized, so compare energy instead.
		var sum float64
		half := audio.Samples[len(audio.Samples)/2:]
		for _, v := range half {
			sum += v * v
		}
		return sum / float64(len(half))
	}

	inBand := run(1000)
	if inBand < 0.1 {
		t.Errorf("in-band mean square = %.6f, want substantial", inBand)
	}
}

func TestLSBConjugates(t *testing.T) {
	const sampleRate = 48000

	usb, err := NewDemodulator(DemodConfig{
		Mode: ModeUSB, SampleRate: sampleRate, AudioRate: sampleRate, Squelch: disabledSquelch(),
	})
	if err != nil {
		t.Fatal(err)
	}
	lsb, err := NewDemodulator(DemodConfig{
		Mode: ModeLSB, SampleRate: sampleRate, AudioRate: sampleRate, Squelch: disabledSquelch(),
	})
	if err != nil {
		t.Fatal(err)
	}

	// A negative-frequency tone is the mirror of a positive one: LSB
	// of the mirrored signal matches USB of the unmirrored signal.
	pos := makeTone(sampleRate, 1000, sampleRate)
	neg := make([]complex128, len(pos))
	for i, s := range pos {
		neg[i] = complex(real(s), -imag(s))
	}

	usbOut := usb.Demodulate(IQBlock{Samples: pos, SampleRate: sampleRate})
	lsbOut := lsb.Demodulate(IQBlock{Samples: neg, SampleRate: sampleRate})

	for i := range usbOut.Samples {
		if math.Abs(usbOut.Samples[i]-lsbOut.Samples[i]) > 1e-9 {
			t.Fatalf("sample %d: USB %.9f, LSB %.9f", i, usbOut.Samples[i], lsbOut.Samples[i])
		}
	}
}

func TestDetectSignalGates(t *testing.T) {
	d, err := NewDemodulator(DemodConfig{
		Mode:        ModeFM,
		SampleRate:  240000,
		AudioRate:   48000,
		DeviationHz: 75000,
		Squelch:     SquelchConfig{Enabled: true, ThresholdDb: -50, HysteresisDb: 3},
	})
	if err != nil {
		t.Fatal(err)
	}

	quiet := constBlock(1e-6, 1024) // -120 dB
	if d.DetectSignal(quiet) {
		t.Error("gate open on near silence")
	}

	loud := constBlock(1, 1024) // 0 dB
	opened := false
	for i := 0; i < 100; i++ {
		if d.DetectSignal(loud) {
			opened = true
			break
		}
	}
	if !opened {
		t.Error("gate never opened on strong signal")
	}
}
