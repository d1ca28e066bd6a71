//go:build opus
// +build opus

package main

import (
	"fmt"
	"log"

	opus "gopkg.in/hraban/opus.v2"

	"github.com/waverider/waverider/dsp"
)

// OpusEncoderWrapper wraps the Opus encoder
type OpusEncoderWrapper struct {
	encoder *opus.Encoder
	enabled bool
	pcm     []int16
	buf     []byte
}

// NewOpusEncoder creates a new Opus encoder if enabled in config
func NewOpusEncoder(config *Config, sampleRate int) *OpusEncoderWrapper {
	wrapper := &OpusEncoderWrapper{enabled: false}

	if !config.Audio.Opus.Enabled {
		return wrapper
	}

	encoder, err := opus.NewEncoder(sampleRate, 1, opus.Application(2049)) // OPUS_APPLICATION_VOIP
	if err != nil {
		log.Printf("WARNING: Opus encoding requested but failed to initialize: %v", err)
		log.Printf("To enable Opus support: sudo apt install libopus-dev libopusfile-dev pkg-config")
		log.Printf("Then rebuild with: go build -tags opus")
		log.Printf("Falling back to PCM.")
		return wrapper
	}

	if err := encoder.SetBitrate(config.Audio.Opus.Bitrate); err != nil {
		log.Printf("Warning: Failed to set Opus bitrate: %v", err)
	}
	if err := encoder.SetComplexity(config.Audio.Opus.Complexity); err != nil {
		log.Printf("Warning: Failed to set Opus complexity: %v", err)
	}

	wrapper.encoder = encoder
	wrapper.enabled = true
	wrapper.buf = make([]byte, 4000) // Max Opus frame size
	log.Printf("Opus encoder initialized: %d Hz, %d bps, complexity %d",
		sampleRate, config.Audio.Opus.Bitrate, config.Audio.Opus.Complexity)

	return wrapper
}

// Encode converts one audio block to an Opus frame.
func (w *OpusEncoderWrapper) Encode(block dsp.AudioBlock) ([]byte, error) {
	if !w.enabled || w.encoder == nil {
		return nil, fmt.Errorf("opus encoder not available")
	}

	if cap(w.pcm) < len(block.Samples) {
		w.pcm = make([]int16, len(block.Samples))
	}
	w.pcm = w.pcm[:len(block.Samples)]
	for i, v := range block.Samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		w.pcm[i] = int16(v * 32767)
	}

	n, err := w.encoder.Encode(w.pcm, w.buf)
	if err != nil {
		return nil, fmt.Errorf("opus encoding failed: %w", err)
	}

	out := make([]byte, n)
	copy(out, w.buf[:n])
	return out, nil
}

// IsEnabled returns whether Opus encoding is enabled
func (w *OpusEncoderWrapper) IsEnabled() bool {
	return w.enabled
}
