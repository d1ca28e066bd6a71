package dsp

import (
	"math"
	"testing"
)

// steadyAmplitude runs a sine of the given frequency through the chain
// and measures the peak output amplitude after the transient settles.
func steadyAmplitude(c filterChain, freq, sampleRate float64) float64 {
	n := int(sampleRate)
	settle := n - n/10

	var peak float64
	for i := 0; i < n; i++ {
		x := math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
		y := c.filter(x)
		if i >= settle {
			if a := math.Abs(y); a > peak {
				peak = a
			}
		}
	}
	return peak
}

func TestButterworthQ(t *testing.T) {
	// A second-order Butterworth is a single section with Q = 1/sqrt(2).
	got := butterworthQ(2, 0)
	want := 1 / math.Sqrt2
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("butterworthQ(2, 0) = %.12f, want %.12f", got, want)
	}
}

func TestLowpassPassbandAndStopband(t *testing.T) {
	c := butterworthCascade(biquadLowpass, 1000, 5, 48000)

	if a := steadyAmplitude(c, 100, 48000); math.Abs(a-1) > 0.05 {
		t.Errorf("passband amplitude = %.4f, want ~1", a)
	}

	c.reset()
	// One decade above cutoff: an order-5 Butterworth is ~100 dB down.
	if a := steadyAmplitude(c, 10000, 48000); a > 1e-3 {
		t.Errorf("stopband amplitude = %.6f, want < 1e-3", a)
	}
}

func TestHighpassRejectsDC(t *testing.T) {
	c := butterworthCascade(biquadHighpass, 300, 5, 48000)

	var y float64
	for i := 0; i < 48000; i++ {
		y = c.filter(1)
	}
	if math.Abs(y) > 1e-6 {
		t.Errorf("DC output = %.8f, want ~0", y)
	}

	c.reset()
	if a := steadyAmplitude(c, 3000, 48000); math.Abs(a-1) > 0.05 {
		t.Errorf("passband amplitude = %.4f, want ~1", a)
	}
}

func TestBandpassVoiceBand(t *testing.T) {
	c := butterworthBandpass(300, 3000, 5, 48000)

	if a := steadyAmplitude(c, 1000, 48000); math.Abs(a-1) > 0.1 {
		t.Errorf("mid-band amplitude = %.4f, want ~1", a)
	}

	c.reset()
	if a := steadyAmplitude(c, 50, 48000); a > 0.05 {
		t.Errorf("below-band amplitude = %.4f, want < 0.05", a)
	}

	c.reset()
	if a := steadyAmplitude(c, 12000, 48000); a > 0.05 {
		t.Errorf("above-band amplitude = %.4f, want < 0.05", a)
	}
}

func TestFilterStateIsolation(t *testing.T) {
	a := butterworthCascade(biquadLowpass, 1000, 5, 48000)
	b := butterworthCascade(biquadLowpass, 1000, 5, 48000)

	// Drive only one chain; the other must stay silent.
	for i := 0; i < 100; i++ {
		a.filter(1)
	}
	if y := b.filter(0); y != 0 {
		t.Errorf("fresh chain output = %g, want 0", y)
	}
}

func TestFilterReset(t *testing.T) {
	c := butterworthCascade(biquadLowpass, 1000, 5, 48000)

	for i := 0; i < 100; i++ {
		c.filter(1)
	}
	c.reset()
	if y := c.filter(0); y != 0 {
		t.Errorf("output after reset = %g, want 0", y)
	}
}
