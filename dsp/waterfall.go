package dsp

// WaterfallSettings controls the display transform applied to spectral
// frames before they reach the waterfall.
type WaterfallSettings struct {
	MinDb      float64 // lower clip, forced to at least 5 dB below MaxDb
	MaxDb      float64 // upper clip
	Contrast   float64 // clamped to [0.1, 3.0]
	Brightness float64 // dB offset, clamped to [-50, 50]
	PeakHold   bool
	PeakDecay  float64 // per-frame decay factor, default 0.95
}

// DefaultWaterfallSettings returns the display defaults (-80..0 dB,
// neutral transform).
func DefaultWaterfallSettings() WaterfallSettings {
	return WaterfallSettings{
		MinDb:     -80,
		MaxDb:     0,
		Contrast:  1.0,
		PeakDecay: 0.95,
	}
}

// sanitized returns a copy with all values forced into their legal
// ranges. Setting MinDb too close to MaxDb silently clamps to keep a
// 5 dB floor.
func (s WaterfallSettings) sanitized() WaterfallSettings {
	if s.PeakDecay == 0 {
		s.PeakDecay = 0.95
	}
	s.Contrast = clamp(s.Contrast, 0.1, 3.0)
	s.Brightness = clamp(s.Brightness, -50, 50)
	if s.MinDb > s.MaxDb-5 {
		s.MinDb = s.MaxDb - 5
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// WaterfallProcessor applies contrast, brightness, optional peak hold
// and clipping to spectral frames. It is stateless except for the peak
// hold buffer, which persists across calls while peak hold is enabled.
type WaterfallProcessor struct {
	peak []float64
}

// NewWaterfallProcessor creates a processor with no peak history.
func NewWaterfallProcessor() *WaterfallProcessor {
	return &WaterfallProcessor{}
}

// ResetPeak drops the peak hold buffer. Called when the FFT size
// changes so the next frame re-seeds it.
func (wp *WaterfallProcessor) ResetPeak() {
	wp.peak = nil
}

// Process returns a display-ready copy of frame. The input frame is not
// modified.
func (wp *WaterfallProcessor) Process(frame SpectralFrame, settings WaterfallSettings) SpectralFrame {
	s := settings.sanitized()
	n := len(frame.Data)

	displayed := make([]float64, n)
	for i, v := range frame.Data {
		displayed[i] = (v + s.Brightness) * s.Contrast
	}

	if s.PeakHold {
		if len(wp.peak) != n {
			wp.peak = make([]float64, n)
			copy(wp.peak, displayed)
		} else {
			for i := range wp.peak {
				decayed := wp.peak[i] * s.PeakDecay
				if displayed[i] > decayed {
					wp.peak[i] = displayed[i]
				} else {
					wp.peak[i] = decayed
				}
			}
		}
		copy(displayed, wp.peak)
	} else {
		wp.peak = nil
	}

	for i := range displayed {
		displayed[i] = clamp(displayed[i], s.MinDb, s.MaxDb)
	}

	out := frame
	out.Data = displayed
	return out
}
