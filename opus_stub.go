//go:build !opus
// +build !opus

package main

import (
	"fmt"
	"log"

	"github.com/waverider/waverider/dsp"
)

// OpusEncoderWrapper wraps the Opus encoder (stub version without Opus support)
type OpusEncoderWrapper struct {
	enabled bool
}

// NewOpusEncoder creates a stub encoder when Opus is not available
func NewOpusEncoder(config *Config, sampleRate int) *OpusEncoderWrapper {
	if config.Audio.Opus.Enabled {
		log.Printf("WARNING: Opus encoding requested but not compiled in")
		log.Printf("To enable Opus support: sudo apt install libopus-dev libopusfile-dev pkg-config")
		log.Printf("Then rebuild with: go build -tags opus")
		log.Printf("Falling back to PCM audio")
	}
	return &OpusEncoderWrapper{enabled: false}
}

// Encode always fails in stub version; callers fall back to PCM
func (w *OpusEncoderWrapper) Encode(block dsp.AudioBlock) ([]byte, error) {
	return nil, fmt.Errorf("opus support not compiled in")
}

// IsEnabled always returns false in stub version
func (w *OpusEncoderWrapper) IsEnabled() bool {
	return false
}
