// Package morse decodes on/off keyed CW envelopes into text with a
// timing-based state machine.
//
// Detection works at block granularity: each envelope block is reduced
// to its mean amplitude, so a single block spanning several true on/off
// transitions collapses them into one observed transition. Sub-block
// timing would need per-sample edge detection; callers wanting that
// accuracy must feed shorter blocks.
package morse

import (
	"fmt"
	"strings"
)

// Config parameterizes a Decoder.
type Config struct {
	WPM                float64 // words per minute, must be > 0
	DetectionThreshold float64 // mean-envelope on/off threshold, default 0.3
	SampleRate         int     // envelope sample rate, Hz
}

// Decoder is the CW timing state machine. It is strictly sequential:
// envelope blocks must arrive in chronological, non-overlapping order.
type Decoder struct {
	sampleRate int
	threshold  float64

	// PARIS timing: one dot is 1.2/WPM seconds.
	dotDuration  float64
	dashDuration float64
	charGap      float64
	wordGap      float64

	lastState     int // 0 = silence, 1 = tone
	stateDuration float64
	pendingCode   strings.Builder
	decoded       strings.Builder
}

// NewDecoder validates the configuration and returns a decoder in its
// initial (idle) state.
func NewDecoder(cfg Config) (*Decoder, error) {
	if cfg.WPM <= 0 {
		return nil, fmt.Errorf("morse: WPM must be positive, got %g", cfg.WPM)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("morse: sample rate must be positive, got %d", cfg.SampleRate)
	}
	threshold := cfg.DetectionThreshold
	if threshold == 0 {
		threshold = 0.3
	}

	dot := 1.2 / cfg.WPM
	return &Decoder{
		sampleRate:   cfg.SampleRate,
		threshold:    threshold,
		dotDuration:  dot,
		dashDuration: 3 * dot,
		charGap:      3 * dot,
		wordGap:      7 * dot,
	}, nil
}

// Feed advances the state machine with one envelope block and returns
// the text decoded by this call (possibly empty). An empty block is a
// no-op.
func (d *Decoder) Feed(envelope []float64) string {
	if len(envelope) == 0 {
		return ""
	}

	var sum float64
	for _, v := range envelope {
		sum += v
	}
	avg := sum / float64(len(envelope))

	current := 0
	if avg > d.threshold {
		current = 1
	}
	duration := float64(len(envelope)) / float64(d.sampleRate)

	var increment string
	if current != d.lastState {
		if d.lastState == 1 {
			d.endTone()
		} else {
			increment = d.endGap()
		}
		d.stateDuration = 0
	}

	d.stateDuration += duration
	d.lastState = current

	d.decoded.WriteString(increment)
	return increment
}

// endTone classifies the tone that just finished. Tones shorter than
// half a dot are dropped as noise.
func (d *Decoder) endTone() {
	switch {
	case d.stateDuration >= 0.7*d.dashDuration:
		d.pendingCode.WriteByte('-')
	case d.stateDuration >= 0.5*d.dotDuration:
		d.pendingCode.WriteByte('.')
	}
}

// endGap finalizes the pending symbol when the silence was long enough
// to separate characters or words. Shorter gaps are intra-character
// spacing.
func (d *Decoder) endGap() string {
	switch {
	case d.stateDuration >= 0.7*d.wordGap:
		if char := d.takePending(); char != "" {
			return char + " "
		}
	case d.stateDuration >= 0.7*d.charGap:
		return d.takePending()
	}
	return ""
}

// takePending decodes and clears the accumulated dot/dash pattern.
func (d *Decoder) takePending() string {
	code := d.pendingCode.String()
	if code == "" {
		return ""
	}
	d.pendingCode.Reset()
	return decodeSymbol(code)
}

// DecodedText returns all text decoded since creation or the last
// Reset.
func (d *Decoder) DecodedText() string {
	return d.decoded.String()
}

// Reset clears the partial symbol, the decoded text and the timing
// accumulators.
func (d *Decoder) Reset() {
	d.pendingCode.Reset()
	d.decoded.Reset()
	d.lastState = 0
	d.stateDuration = 0
}
