package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionType distinguishes the two streaming feeds.
type SessionType string

const (
	SessionSpectrum SessionType = "spectrum"
	SessionAudio    SessionType = "audio"
)

// Session represents one connected WebSocket client. Feed channels are
// buffered; when a client falls behind, new data is dropped rather than
// stalling the engine.
type Session struct {
	ID         string
	Type       SessionType
	CreatedAt  time.Time
	LastActive time.Time

	FrameChan chan []byte // encoded spectrum packets
	AudioChan chan []byte // encoded PCM/Opus packets
	TextChan  chan string // decoded Morse increments
	Done      chan struct{}

	mu sync.Mutex
}

// Touch updates the activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastActive = time.Now()
	s.mu.Unlock()
}

// SessionManager tracks all active streaming sessions.
type SessionManager struct {
	sessions    map[string]*Session
	maxSessions int
	metrics     *PrometheusMetrics
	mu          sync.RWMutex
}

// NewSessionManager creates an empty manager.
func NewSessionManager(maxSessions int, metrics *PrometheusMetrics) *SessionManager {
	return &SessionManager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		metrics:     metrics,
	}
}

// CreateSession registers a new session of the given type.
func (sm *SessionManager) CreateSession(sessionType SessionType) (*Session, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.maxSessions > 0 && len(sm.sessions) >= sm.maxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", sm.maxSessions)
	}

	session := &Session{
		ID:         uuid.New().String(),
		Type:       sessionType,
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
		FrameChan:  make(chan []byte, 8),
		AudioChan:  make(chan []byte, 32),
		TextChan:   make(chan string, 32),
		Done:       make(chan struct{}),
	}
	sm.sessions[session.ID] = session

	if sm.metrics != nil {
		sm.metrics.activeSessions.Set(float64(len(sm.sessions)))
	}
	return session, nil
}

// RemoveSession unregisters and closes a session.
func (sm *SessionManager) RemoveSession(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, ok := sm.sessions[id]
	if !ok {
		return
	}
	delete(sm.sessions, id)
	close(session.Done)

	if sm.metrics != nil {
		sm.metrics.activeSessions.Set(float64(len(sm.sessions)))
	}
}

// Count returns the number of active sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// BroadcastFrame fans an encoded spectrum packet out to all spectrum
// sessions, dropping it for clients that are behind.
func (sm *SessionManager) BroadcastFrame(packet []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, session := range sm.sessions {
		if session.Type != SessionSpectrum {
			continue
		}
		select {
		case session.FrameChan <- packet:
		default:
		}
	}
}

// BroadcastAudio fans an encoded audio packet out to all audio
// sessions.
func (sm *SessionManager) BroadcastAudio(packet []byte) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, session := range sm.sessions {
		if session.Type != SessionAudio {
			continue
		}
		select {
		case session.AudioChan <- packet:
		default:
		}
	}
}

// BroadcastText fans a decoded text increment out to all audio
// sessions.
func (sm *SessionManager) BroadcastText(text string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for _, session := range sm.sessions {
		if session.Type != SessionAudio {
			continue
		}
		select {
		case session.TextChan <- text:
		default:
		}
	}
}
