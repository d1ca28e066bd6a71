package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// controlMessage is the JSON command clients send over either feed.
type controlMessage struct {
	Type string `json:"type"`

	// set_mode
	Mode string `json:"mode,omitempty"`

	// set_squelch
	Enabled      *bool    `json:"enabled,omitempty"`
	ThresholdDb  *float64 `json:"threshold_db,omitempty"`
	HysteresisDb *float64 `json:"hysteresis_db,omitempty"`

	// set_fft_size
	FFTSize int `json:"fft_size,omitempty"`

	// set_waterfall
	MinDb      *float64 `json:"min_db,omitempty"`
	MaxDb      *float64 `json:"max_db,omitempty"`
	Contrast   *float64 `json:"contrast,omitempty"`
	Brightness *float64 `json:"brightness,omitempty"`
	PeakHold   *bool    `json:"peak_hold,omitempty"`
	PeakDecay  *float64 `json:"peak_decay,omitempty"`
}

type controlResponse struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Command string `json:"command,omitempty"`
	Error   string `json:"error,omitempty"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// WebSocketHandler serves the spectrum and audio streaming feeds.
type WebSocketHandler struct {
	engine   *Engine
	sessions *SessionManager
	metrics  *PrometheusMetrics
}

func NewWebSocketHandler(engine *Engine, sessions *SessionManager, metrics *PrometheusMetrics) *WebSocketHandler {
	return &WebSocketHandler{
		engine:   engine,
		sessions: sessions,
		metrics:  metrics,
	}
}

// HandleSpectrum upgrades the connection and streams spectrum packets.
func (h *WebSocketHandler) HandleSpectrum(w http.ResponseWriter, r *http.Request) {
	h.handleFeed(w, r, SessionSpectrum)
}

// HandleAudio upgrades the connection and streams audio packets plus
// decoded text messages.
func (h *WebSocketHandler) HandleAudio(w http.ResponseWriter, r *http.Request) {
	h.handleFeed(w, r, SessionAudio)
}

func (h *WebSocketHandler) handleFeed(w http.ResponseWriter, r *http.Request, sessionType SessionType) {
	session, err := h.sessions.CreateSession(sessionType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.sessions.RemoveSession(session.ID)
		log.Printf("[WebSocket] Upgrade failed: %v", err)
		return
	}

	if h.metrics != nil {
		h.metrics.wsConnectionsTotal.WithLabelValues(string(sessionType)).Inc()
	}
	log.Printf("[WebSocket] %s client connected: %s (remote: %s)", sessionType, session.ID, r.RemoteAddr)

	go h.writeLoop(conn, session)
	h.readLoop(conn, session)

	h.sessions.RemoveSession(session.ID)
	conn.Close()
	if h.metrics != nil {
		h.metrics.wsDisconnectsTotal.WithLabelValues(string(sessionType)).Inc()
	}
	log.Printf("[WebSocket] %s client disconnected: %s", sessionType, session.ID)
}

// writeLoop pushes feed data from the session channels to the client.
func (h *WebSocketHandler) writeLoop(conn *websocket.Conn, session *Session) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-session.Done:
			return

		case packet := <-session.FrameChan:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, packet); err != nil {
				return
			}
			if h.metrics != nil {
				h.metrics.wsMessagesSentTotal.WithLabelValues(string(session.Type)).Inc()
				h.metrics.spectrumBytesTotal.Add(float64(len(packet)))
			}

		case packet := <-session.AudioChan:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.BinaryMessage, packet); err != nil {
				return
			}
			if h.metrics != nil {
				h.metrics.wsMessagesSentTotal.WithLabelValues(string(session.Type)).Inc()
				h.metrics.audioBytesTotal.Add(float64(len(packet)))
			}

		case text := <-session.TextChan:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			msg, _ := json.Marshal(textMessage{Type: "morse", Text: text})
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
			if h.metrics != nil {
				h.metrics.wsMessagesSentTotal.WithLabelValues(string(session.Type)).Inc()
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop handles incoming control messages until the client
// disconnects.
func (h *WebSocketHandler) readLoop(conn *websocket.Conn, session *Session) {
	conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		session.Touch()
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				if DebugMode {
					log.Printf("[WebSocket] Read error on %s: %v", session.ID, err)
				}
			}
			return
		}
		session.Touch()

		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendResponse(conn, controlResponse{Type: "response", Status: "error", Error: "invalid JSON"})
			continue
		}

		if err := h.applyControl(msg); err != nil {
			h.sendResponse(conn, controlResponse{Type: "response", Status: "error", Command: msg.Type, Error: err.Error()})
		} else {
			h.sendResponse(conn, controlResponse{Type: "response", Status: "ok", Command: msg.Type})
		}
	}
}

func (h *WebSocketHandler) applyControl(msg controlMessage) error {
	switch msg.Type {
	case "set_mode":
		return h.engine.SetMode(msg.Mode)

	case "set_fft_size":
		return h.engine.SetFFTSize(msg.FFTSize)

	case "set_squelch":
		cfg := h.engine.SquelchConfig()
		enabled := cfg.Enabled
		threshold := cfg.ThresholdDb
		hysteresis := cfg.HysteresisDb
		if msg.Enabled != nil {
			enabled = *msg.Enabled
		}
		if msg.ThresholdDb != nil {
			threshold = *msg.ThresholdDb
		}
		if msg.HysteresisDb != nil {
			hysteresis = *msg.HysteresisDb
		}
		return h.engine.SetSquelch(enabled, threshold, hysteresis)

	case "set_waterfall":
		settings := h.engine.WaterfallSettings()
		if msg.MinDb != nil {
			settings.MinDb = *msg.MinDb
		}
		if msg.MaxDb != nil {
			settings.MaxDb = *msg.MaxDb
		}
		if msg.Contrast != nil {
			settings.Contrast = *msg.Contrast
		}
		if msg.Brightness != nil {
			settings.Brightness = *msg.Brightness
		}
		if msg.PeakHold != nil {
			settings.PeakHold = *msg.PeakHold
		}
		if msg.PeakDecay != nil {
			settings.PeakDecay = *msg.PeakDecay
		}
		h.engine.SetWaterfall(settings)
		return nil

	case "toggle_morse":
		enabled := true
		if msg.Enabled != nil {
			enabled = *msg.Enabled
		}
		return h.engine.SetMorseEnabled(enabled)

	default:
		return fmt.Errorf("unknown command: %q", msg.Type)
	}
}

func (h *WebSocketHandler) sendResponse(conn *websocket.Conn, resp controlResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	conn.WriteMessage(websocket.TextMessage, data)
}
