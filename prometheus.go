package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics holds all metric collectors for the DSP pipeline
// and the streaming feeds.
type PrometheusMetrics struct {
	// Pipeline metrics
	iqBlocksTotal       prometheus.Counter   // IQ blocks pulled from the source
	spectrumFramesTotal prometheus.Counter   // spectral frames produced
	audioBlocksTotal    prometheus.Counter   // audio blocks produced (squelch open)
	morseCharsTotal     prometheus.Counter   // decoded Morse characters
	squelchOpen         prometheus.Gauge     // 1 when the gate is open
	squelchTransitions  prometheus.Counter   // open/close transitions
	smoothedPowerDb     prometheus.Gauge     // smoothed signal power estimate
	demodMode           *prometheus.GaugeVec // 1 for the active mode

	// Session / feed metrics
	activeSessions      prometheus.Gauge
	wsConnectionsTotal  *prometheus.CounterVec // by feed type
	wsDisconnectsTotal  *prometheus.CounterVec // by feed type
	wsMessagesSentTotal *prometheus.CounterVec // by feed type
	audioBytesTotal     prometheus.Counter
	spectrumBytesTotal  prometheus.Counter
}

// NewPrometheusMetrics registers all collectors with the default
// registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		iqBlocksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waverider_iq_blocks_total",
			Help: "Total IQ blocks read from the source",
		}),
		spectrumFramesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waverider_spectrum_frames_total",
			Help: "Total spectral frames produced",
		}),
		audioBlocksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waverider_audio_blocks_total",
			Help: "Total demodulated audio blocks produced",
		}),
		morseCharsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waverider_morse_chars_total",
			Help: "Total Morse characters decoded",
		}),
		squelchOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "waverider_squelch_open",
			Help: "Squelch gate state (1 = open)",
		}),
		squelchTransitions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waverider_squelch_transitions_total",
			Help: "Total squelch open/close transitions",
		}),
		smoothedPowerDb: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "waverider_signal_power_db",
			Help: "Smoothed signal power estimate in dB",
		}),
		demodMode: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "waverider_demod_mode",
			Help: "Active demodulation mode (1 for the selected mode)",
		}, []string{"mode"}),
		activeSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "waverider_active_sessions",
			Help: "Currently active streaming sessions",
		}),
		wsConnectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "waverider_ws_connections_total",
			Help: "Total WebSocket connections established",
		}, []string{"type"}),
		wsDisconnectsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "waverider_ws_disconnects_total",
			Help: "Total WebSocket disconnections",
		}, []string{"type"}),
		wsMessagesSentTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "waverider_ws_messages_sent_total",
			Help: "Total WebSocket messages sent",
		}, []string{"type"}),
		audioBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waverider_audio_bytes_total",
			Help: "Total audio payload bytes sent",
		}),
		spectrumBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "waverider_spectrum_bytes_total",
			Help: "Total spectrum payload bytes sent",
		}),
	}
}

// SetMode marks the active demodulation mode.
func (pm *PrometheusMetrics) SetMode(mode string) {
	for _, m := range []string{"AM", "FM", "USB", "LSB", "CW"} {
		v := 0.0
		if m == mode {
			v = 1.0
		}
		pm.demodMode.WithLabelValues(m).Set(v)
	}
}
