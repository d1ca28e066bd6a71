package main

import (
	"fmt"
	"log"
	"sync"

	"github.com/waverider/waverider/dsp"
	"github.com/waverider/waverider/dsp/morse"
)

// Engine drives the DSP pipeline: it pulls IQ blocks from the source
// and fans spectral frames, audio and decoded text out to sessions.
// All DSP state is advanced from the single run loop goroutine;
// control changes from WebSocket handlers are applied between blocks.
type Engine struct {
	config   *Config
	source   IQSource
	sessions *SessionManager
	metrics  *PrometheusMetrics
	mqtt     *MQTTPublisher
	encoder  *PacketEncoder
	opus     *OpusEncoderWrapper

	analyzer  *dsp.SpectralAnalyzer
	waterfall *dsp.WaterfallProcessor

	mu           sync.Mutex // guards the mutable pipeline configuration below
	demod        dsp.Demodulator
	morseDecoder *morse.Decoder
	mode         dsp.Mode
	fftSize      int
	wfSettings   dsp.WaterfallSettings
	squelchCfg   SquelchConfig
	morseEnabled bool
	lastOpen     bool

	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewEngine builds the pipeline from the configuration.
func NewEngine(config *Config, source IQSource, sessions *SessionManager, metrics *PrometheusMetrics, mqtt *MQTTPublisher) (*Engine, error) {
	mode, err := dsp.ParseMode(config.Demod.Mode)
	if err != nil {
		return nil, err
	}

	encoder, err := NewPacketEncoder(config.Audio.Compression)
	if err != nil {
		return nil, fmt.Errorf("failed to create packet encoder: %w", err)
	}

	e := &Engine{
		config:    config,
		source:    source,
		sessions:  sessions,
		metrics:   metrics,
		mqtt:      mqtt,
		encoder:   encoder,
		opus:      NewOpusEncoder(config, config.Demod.AudioRate),
		analyzer:  dsp.NewSpectralAnalyzer(),
		waterfall: dsp.NewWaterfallProcessor(),
		mode:      mode,
		fftSize:   config.Radio.FFTSize,
		wfSettings: dsp.WaterfallSettings{
			MinDb:      config.Waterfall.MinDb,
			MaxDb:      config.Waterfall.MaxDb,
			Contrast:   config.Waterfall.Contrast,
			Brightness: config.Waterfall.Brightness,
			PeakHold:   config.Waterfall.PeakHold,
			PeakDecay:  config.Waterfall.PeakDecay,
		},
		squelchCfg:   config.Squelch,
		morseEnabled: config.Morse.Enabled,
		stopChan:     make(chan struct{}),
	}

	if err := e.rebuildDemodulator(mode); err != nil {
		return nil, err
	}
	if err := e.rebuildMorseDecoder(); err != nil {
		return nil, err
	}

	return e, nil
}

// rebuildDemodulator replaces the demodulator (and its filter, phase
// and squelch state) for the given mode. Callers hold e.mu or run
// before Start.
func (e *Engine) rebuildDemodulator(mode dsp.Mode) error {
	demod, err := dsp.NewDemodulator(dsp.DemodConfig{
		Mode:        mode,
		SampleRate:  e.config.Radio.SampleRate,
		AudioRate:   e.config.Demod.AudioRate,
		DeviationHz: e.config.Demod.DeviationHz,
		Squelch: dsp.SquelchConfig{
			Enabled:      e.squelchCfg.Enabled,
			ThresholdDb:  e.squelchCfg.ThresholdDb,
			HysteresisDb: e.squelchCfg.HysteresisDb,
		},
	})
	if err != nil {
		return err
	}
	e.demod = demod
	e.mode = mode
	if e.metrics != nil {
		e.metrics.SetMode(mode.String())
	}
	return nil
}

func (e *Engine) rebuildMorseDecoder() error {
	decoder, err := morse.NewDecoder(morse.Config{
		WPM:                e.config.Morse.WPM,
		DetectionThreshold: e.config.Morse.DetectionThreshold,
		SampleRate:         e.config.Demod.AudioRate,
	})
	if err != nil {
		return err
	}
	e.morseDecoder = decoder
	return nil
}

// Start launches the run loop.
func (e *Engine) Start() {
	if e.running {
		return
	}
	e.running = true
	e.wg.Add(1)
	go e.runLoop()
	log.Printf("[Engine] Started: mode=%s, sample_rate=%d, audio_rate=%d, fft_size=%d",
		e.mode, e.config.Radio.SampleRate, e.config.Demod.AudioRate, e.fftSize)
}

// Stop terminates the run loop and waits for it to exit.
func (e *Engine) Stop() {
	if !e.running {
		return
	}
	close(e.stopChan)
	e.wg.Wait()
	e.running = false
	log.Printf("[Engine] Stopped")
}

func (e *Engine) runLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.stopChan:
			return
		default:
		}

		e.mu.Lock()
		fftSize := e.fftSize
		e.mu.Unlock()

		block, err := e.source.ReadBlock(fftSize)
		if err != nil {
			log.Printf("[Engine] Source error: %v", err)
			return
		}

		e.processBlock(block)
	}
}

// processBlock runs one block through the full pipeline.
func (e *Engine) processBlock(block dsp.IQBlock) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.iqBlocksTotal.Inc()
	}

	// Display path.
	frame := e.analyzer.Analyze(block, e.fftSize)
	display := e.waterfall.Process(frame, e.wfSettings)
	packet := e.encoder.EncodeSpectrum(display)
	e.sessions.BroadcastFrame(packet)
	if e.metrics != nil {
		e.metrics.spectrumFramesTotal.Inc()
	}

	// Demodulation path.
	open := e.demod.DetectSignal(block)
	if e.metrics != nil {
		e.metrics.smoothedPowerDb.Set(e.demod.Squelch().SmoothedPowerDb())
		if open {
			e.metrics.squelchOpen.Set(1)
		} else {
			e.metrics.squelchOpen.Set(0)
		}
		if open != e.lastOpen {
			e.metrics.squelchTransitions.Inc()
		}
	}
	if open != e.lastOpen {
		if e.mqtt != nil {
			e.mqtt.PublishSquelch(open, e.demod.Squelch().SmoothedPowerDb())
		}
		e.lastOpen = open
	}
	if !open {
		return
	}

	audio := e.demod.Demodulate(block)
	if len(audio.Samples) == 0 {
		return
	}
	if e.metrics != nil {
		e.metrics.audioBlocksTotal.Inc()
	}

	e.broadcastAudio(audio)

	// CW text path.
	if e.mode == dsp.ModeCW && e.morseEnabled {
		increment := e.morseDecoder.Feed(audio.Samples)
		if increment != "" {
			e.sessions.BroadcastText(increment)
			if e.metrics != nil {
				e.metrics.morseCharsTotal.Add(float64(len(increment)))
			}
			if e.mqtt != nil {
				e.mqtt.PublishMorse(increment)
			}
		}
	}
}

func (e *Engine) broadcastAudio(audio dsp.AudioBlock) {
	var packet []byte
	if e.opus.IsEnabled() {
		encoded, err := e.opus.Encode(audio)
		if err == nil {
			packet = e.encoder.EncodeOpusAudio(encoded, audio.Rate)
		} else {
			if DebugMode {
				log.Printf("[Engine] Opus encode failed, sending PCM: %v", err)
			}
			packet = e.encoder.EncodeAudio(audio)
		}
	} else {
		packet = e.encoder.EncodeAudio(audio)
	}
	e.sessions.BroadcastAudio(packet)
}

// SetMode switches the demodulation mode, discarding all demodulator
// state. The Morse decoder is reset when entering or leaving CW.
func (e *Engine) SetMode(modeName string) error {
	mode, err := dsp.ParseMode(modeName)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if mode == e.mode {
		return nil
	}
	if err := e.rebuildDemodulator(mode); err != nil {
		return err
	}
	e.morseDecoder.Reset()
	e.lastOpen = false
	log.Printf("[Engine] Mode set to %s", mode)
	return nil
}

// SetFFTSize changes the spectral resolution. Only display-side state
// (the peak-hold buffer) is reset; squelch and demodulator state are
// untouched.
func (e *Engine) SetFFTSize(size int) error {
	if size < 2 || size&(size-1) != 0 {
		return fmt.Errorf("fft size must be a power of two >= 2, got %d", size)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if size == e.fftSize {
		return nil
	}
	e.fftSize = size
	e.waterfall.ResetPeak()
	log.Printf("[Engine] FFT size set to %d", size)
	return nil
}

// SetSquelch updates the gate parameters. The demodulator is rebuilt
// so the new gate starts from a clean power estimate.
func (e *Engine) SetSquelch(enabled bool, thresholdDb, hysteresisDb float64) error {
	if thresholdDb < -100 || thresholdDb > 0 {
		return fmt.Errorf("squelch threshold must be in [-100, 0], got %g", thresholdDb)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.squelchCfg = SquelchConfig{
		Enabled:      enabled,
		ThresholdDb:  thresholdDb,
		HysteresisDb: hysteresisDb,
	}
	if err := e.rebuildDemodulator(e.mode); err != nil {
		return err
	}
	log.Printf("[Engine] Squelch: enabled=%v threshold=%.1f dB hysteresis=%.1f dB", enabled, thresholdDb, hysteresisDb)
	return nil
}

// SquelchConfig returns the current gate parameters.
func (e *Engine) SquelchConfig() SquelchConfig {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.squelchCfg
}

// WaterfallSettings returns the current display transform settings.
func (e *Engine) WaterfallSettings() dsp.WaterfallSettings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wfSettings
}

// SetWaterfall updates the display transform settings.
func (e *Engine) SetWaterfall(settings dsp.WaterfallSettings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wfSettings = settings
}

// SetMorseEnabled toggles CW decoding. Enabling switches the mode to
// CW if needed, since the decoder consumes the CW envelope.
func (e *Engine) SetMorseEnabled(enabled bool) error {
	e.mu.Lock()
	morseEnabled := e.morseEnabled
	mode := e.mode
	e.mu.Unlock()

	if enabled && !morseEnabled && mode != dsp.ModeCW {
		if err := e.SetMode("CW"); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if enabled && !e.morseEnabled {
		e.morseDecoder.Reset()
	}
	e.morseEnabled = enabled
	log.Printf("[Engine] Morse decoder enabled=%v", enabled)
	return nil
}

// Status reports the current pipeline state for the status endpoint.
func (e *Engine) Status() map[string]interface{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	return map[string]interface{}{
		"mode":              e.mode.String(),
		"fft_size":          e.fftSize,
		"sample_rate":       e.config.Radio.SampleRate,
		"audio_rate":        e.config.Demod.AudioRate,
		"center_freq":       e.source.CenterFreq(),
		"squelch_enabled":   e.squelchCfg.Enabled,
		"squelch_open":      e.lastOpen,
		"signal_power_db":   e.demod.Squelch().SmoothedPowerDb(),
		"morse_enabled":     e.morseEnabled,
		"morse_decoded":     e.morseDecoder.DecodedText(),
		"running":           e.running,
		"waterfall_peak":    e.wfSettings.PeakHold,
		"squelch_threshold": e.squelchCfg.ThresholdDb,
	}
}
