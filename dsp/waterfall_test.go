package dsp

import (
	"math"
	"testing"
)

func frameWith(values ...float64) SpectralFrame {
	return SpectralFrame{Data: values, FFTSize: len(values), SampleRate: 48000}
}

func TestWaterfallClamp(t *testing.T) {
	wp := NewWaterfallProcessor()
	settings := WaterfallSettings{MinDb: -80, MaxDb: 0, Contrast: 1}

	out := wp.Process(frameWith(-120, -40, 20), settings)

	want := []float64{-80, -40, 0}
	for i, v := range out.Data {
		if v != want[i] {
			t.Errorf("bin %d = %g, want %g", i, v, want[i])
		}
	}
}

func TestWaterfallBrightnessContrast(t *testing.T) {
	wp := NewWaterfallProcessor()
	settings := WaterfallSettings{MinDb: -200, MaxDb: 200, Contrast: 2, Brightness: 10}

	out := wp.Process(frameWith(-40), settings)

	// (-40 + 10) * 2 = -60
	if out.Data[0] != -60 {
		t.Errorf("bin = %g, want -60", out.Data[0])
	}
}

func TestWaterfallInputNotModified(t *testing.T) {
	wp := NewWaterfallProcessor()
	frame := frameWith(-40, -50)

	wp.Process(frame, WaterfallSettings{MinDb: -30, MaxDb: 0, Contrast: 1})

	if frame.Data[0] != -40 || frame.Data[1] != -50 {
		t.Errorf("input frame modified: %v", frame.Data)
	}
}

func TestWaterfallPeakHoldDecay(t *testing.T) {
	wp := NewWaterfallProcessor()
	settings := WaterfallSettings{
		MinDb:     0,
		MaxDb:     50,
		Contrast:  1,
		PeakHold:  true,
		PeakDecay: 0.9,
	}

	// First frame seeds the peak buffer.
	out := wp.Process(frameWith(40), settings)
	if out.Data[0] != 40 {
		t.Fatalf("seed frame = %g, want 40", out.Data[0])
	}

	// Quiet frames: the held peak decays by the factor each frame.
	out = wp.Process(frameWith(10), settings)
	if math.Abs(out.Data[0]-36) > 1e-9 {
		t.Errorf("after one decay = %g, want 36", out.Data[0])
	}
	out = wp.Process(frameWith(10), settings)
	if math.Abs(out.Data[0]-32.4) > 1e-9 {
		t.Errorf("after two decays = %g, want 32.4", out.Data[0])
	}

	// A louder frame replaces the decayed peak immediately.
	out = wp.Process(frameWith(45), settings)
	if out.Data[0] != 45 {
		t.Errorf("new peak = %g, want 45", out.Data[0])
	}
}

func TestWaterfallPeakDroppedWhenDisabled(t *testing.T) {
	wp := NewWaterfallProcessor()
	hold := WaterfallSettings{MinDb: 0, MaxDb: 50, Contrast: 1, PeakHold: true, PeakDecay: 0.9}
	flat := WaterfallSettings{MinDb: 0, MaxDb: 50, Contrast: 1}

	wp.Process(frameWith(40), hold)
	out := wp.Process(frameWith(10), flat)
	if out.Data[0] != 10 {
		t.Fatalf("disabled peak hold = %g, want 10", out.Data[0])
	}

	// Re-enabling starts from scratch, not the stale peak.
	out = wp.Process(frameWith(20), hold)
	if out.Data[0] != 20 {
		t.Errorf("re-enabled peak hold = %g, want 20", out.Data[0])
	}
}

func TestWaterfallResetPeak(t *testing.T) {
	wp := NewWaterfallProcessor()
	settings := WaterfallSettings{MinDb: 0, MaxDb: 50, Contrast: 1, PeakHold: true, PeakDecay: 0.9}

	wp.Process(frameWith(40), settings)
	wp.ResetPeak()

	out := wp.Process(frameWith(10), settings)
	if out.Data[0] != 10 {
		t.Errorf("after reset = %g, want 10", out.Data[0])
	}
}

func TestWaterfallSettingsSanitized(t *testing.T) {
	s := WaterfallSettings{
		MinDb:      -2, // closer than 5 dB to MaxDb
		MaxDb:      0,
		Contrast:   10,   // above max
		Brightness: -200, // below min
	}.sanitized()

	if s.MinDb != -5 {
		t.Errorf("MinDb = %g, want -5", s.MinDb)
	}
	if s.Contrast != 3 {
		t.Errorf("Contrast = %g, want 3", s.Contrast)
	}
	if s.Brightness != -50 {
		t.Errorf("Brightness = %g, want -50", s.Brightness)
	}
	if s.PeakDecay != 0.95 {
		t.Errorf("PeakDecay = %g, want 0.95", s.PeakDecay)
	}
}
