package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Radio      RadioConfig      `yaml:"radio"`
	Demod      DemodConfig      `yaml:"demod"`
	Squelch    SquelchConfig    `yaml:"squelch"`
	Waterfall  WaterfallConfig  `yaml:"waterfall"`
	Morse      MorseConfig      `yaml:"morse"`
	Source     SourceConfig     `yaml:"source"`
	Audio      AudioConfig      `yaml:"audio"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Listen      string `yaml:"listen"`       // e.g. ":8080"
	MaxSessions int    `yaml:"max_sessions"` // 0 = unlimited
	EnableCORS  bool   `yaml:"enable_cors"`
}

// RadioConfig contains the IQ stream parameters
type RadioConfig struct {
	SampleRate int    `yaml:"sample_rate"` // Hz (e.g. 2400000)
	CenterFreq uint64 `yaml:"center_freq"` // Hz (e.g. 100000000)
	FFTSize    int    `yaml:"fft_size"`    // 512..4096, power of two
}

// DemodConfig contains demodulation settings
type DemodConfig struct {
	Mode        string  `yaml:"mode"`         // AM, FM, USB, LSB, CW
	AudioRate   int     `yaml:"audio_rate"`   // Hz (e.g. 48000)
	DeviationHz float64 `yaml:"deviation_hz"` // FM deviation (default 75000)
}

// SquelchConfig contains squelch gate settings
type SquelchConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ThresholdDb  float64 `yaml:"threshold_db"`  // [-100, 0], default -50
	HysteresisDb float64 `yaml:"hysteresis_db"` // default 3
}

// WaterfallConfig contains display transform settings
type WaterfallConfig struct {
	MinDb      float64 `yaml:"min_db"`
	MaxDb      float64 `yaml:"max_db"`
	Contrast   float64 `yaml:"contrast"`
	Brightness float64 `yaml:"brightness"`
	PeakHold   bool    `yaml:"peak_hold"`
	PeakDecay  float64 `yaml:"peak_decay"`
}

// MorseConfig contains CW decoder settings
type MorseConfig struct {
	Enabled            bool    `yaml:"enabled"`
	WPM                float64 `yaml:"wpm"`                 // default 20
	DetectionThreshold float64 `yaml:"detection_threshold"` // default 0.3
}

// SourceConfig selects where IQ blocks come from
type SourceConfig struct {
	Type string          `yaml:"type"` // "simulated" or "rtp"
	RTP  RTPSourceConfig `yaml:"rtp"`
}

// RTPSourceConfig contains RTP multicast input settings
type RTPSourceConfig struct {
	Group     string `yaml:"group"`     // multicast group, e.g. "239.1.2.3:5004"
	Interface string `yaml:"interface"` // network interface name, empty = default
	SSRC      uint32 `yaml:"ssrc"`      // 0 = accept any SSRC
}

// AudioConfig contains audio output settings
type AudioConfig struct {
	Compression bool       `yaml:"compression"` // zstd-compress PCM packets
	Opus        OpusConfig `yaml:"opus"`
}

// OpusConfig contains Opus encoder settings (requires -tags opus)
type OpusConfig struct {
	Enabled    bool `yaml:"enabled"`
	Bitrate    int  `yaml:"bitrate"`    // bps, default 32000
	Complexity int  `yaml:"complexity"` // 0-10, default 5
}

// PrometheusConfig contains metrics settings
type PrometheusConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MQTTConfig contains MQTT publishing settings
type MQTTConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Broker          string        `yaml:"broker"` // e.g. "tcp://localhost:1883"
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	TopicPrefix     string        `yaml:"topic_prefix"`     // default "waverider"
	QoS             byte          `yaml:"qos"`              // 0, 1 or 2
	Retain          bool          `yaml:"retain"`           // retain squelch/metrics messages
	PublishInterval int           `yaml:"publish_interval"` // metrics interval in seconds, default 60
	TLS             MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains TLS settings for the MQTT connection
type MQTTTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// LoadConfig reads and validates the configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyDefaults fills in zero values with sensible defaults
func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Radio.SampleRate == 0 {
		c.Radio.SampleRate = 2400000
	}
	if c.Radio.CenterFreq == 0 {
		c.Radio.CenterFreq = 100000000
	}
	if c.Radio.FFTSize == 0 {
		c.Radio.FFTSize = 1024
	}
	if c.Demod.Mode == "" {
		c.Demod.Mode = "FM"
	}
	if c.Demod.AudioRate == 0 {
		c.Demod.AudioRate = 48000
	}
	if c.Demod.DeviationHz == 0 {
		c.Demod.DeviationHz = 75000
	}
	if c.Squelch.ThresholdDb == 0 {
		c.Squelch.ThresholdDb = -50
	}
	if c.Squelch.HysteresisDb == 0 {
		c.Squelch.HysteresisDb = 3
	}
	if c.Waterfall.MinDb == 0 && c.Waterfall.MaxDb == 0 {
		c.Waterfall.MinDb = -80
		c.Waterfall.MaxDb = 0
	}
	if c.Waterfall.Contrast == 0 {
		c.Waterfall.Contrast = 1.0
	}
	if c.Waterfall.PeakDecay == 0 {
		c.Waterfall.PeakDecay = 0.95
	}
	if c.Morse.WPM == 0 {
		c.Morse.WPM = 20
	}
	if c.Morse.DetectionThreshold == 0 {
		c.Morse.DetectionThreshold = 0.3
	}
	if c.Source.Type == "" {
		c.Source.Type = "simulated"
	}
	if c.Audio.Opus.Bitrate == 0 {
		c.Audio.Opus.Bitrate = 32000
	}
	if c.Audio.Opus.Complexity == 0 {
		c.Audio.Opus.Complexity = 5
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "waverider"
	}
	if c.MQTT.PublishInterval == 0 {
		c.MQTT.PublishInterval = 60
	}
}

// validate rejects configurations the DSP core would refuse anyway,
// so startup fails with one clear message instead of later
func (c *Config) validate() error {
	if c.Radio.SampleRate <= 0 {
		return fmt.Errorf("radio.sample_rate must be positive, got %d", c.Radio.SampleRate)
	}
	if c.Radio.FFTSize < 2 || c.Radio.FFTSize&(c.Radio.FFTSize-1) != 0 {
		return fmt.Errorf("radio.fft_size must be a power of two >= 2, got %d", c.Radio.FFTSize)
	}
	if c.Demod.AudioRate <= 0 {
		return fmt.Errorf("demod.audio_rate must be positive, got %d", c.Demod.AudioRate)
	}
	if c.Radio.SampleRate%c.Demod.AudioRate != 0 {
		return fmt.Errorf("radio.sample_rate %d is not an integer multiple of demod.audio_rate %d",
			c.Radio.SampleRate, c.Demod.AudioRate)
	}
	if c.Squelch.ThresholdDb < -100 || c.Squelch.ThresholdDb > 0 {
		return fmt.Errorf("squelch.threshold_db must be in [-100, 0], got %g", c.Squelch.ThresholdDb)
	}
	if c.Morse.WPM <= 0 {
		return fmt.Errorf("morse.wpm must be positive, got %g", c.Morse.WPM)
	}
	switch c.Source.Type {
	case "simulated":
	case "rtp":
		if c.Source.RTP.Group == "" {
			return fmt.Errorf("source.rtp.group is required when source.type is rtp")
		}
	default:
		return fmt.Errorf("source.type must be \"simulated\" or \"rtp\", got %q", c.Source.Type)
	}
	return nil
}
