package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"fsm-intake/internal/logger"
	"fsm-intake/internal/metrics"
)

// Event is the envelope written to every connected client.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
	Time int64       `json:"time"`
}

// SSEManager manages Server-Sent Event connections
type SSEManager struct {
	clients    map[string]map[chan []byte]bool // sessionID -> connection channels
	clientsMux sync.RWMutex

	broadcast chan Event
	logger    *logger.Logger
	now       func() time.Time

	// Context for managing the SSE service lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSSEManager creates a new SSE manager
func NewSSEManager(logger *logger.Logger) *SSEManager {
	ctx, cancel := context.WithCancel(context.Background())

	manager := &SSEManager{
		clients:   make(map[string]map[chan []byte]bool),
		broadcast: make(chan Event, 100),
		logger:    logger,
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	go manager.broadcastEvents()

	return manager
}

// AddClient registers a new connection for the operator session.
func (s *SSEManager) AddClient(sessionID string) chan []byte {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	if s.clients[sessionID] == nil {
		s.clients[sessionID] = make(map[chan []byte]bool)
	}

	channel := make(chan []byte, 16)
	s.clients[sessionID][channel] = true
	metrics.LiveClients.Inc()

	s.logger.Debugf("Added SSE client for session %s (%d connections)", sessionID, len(s.clients[sessionID]))
	return channel
}

// RemoveClient removes a client connection
func (s *SSEManager) RemoveClient(sessionID string, channel chan []byte) {
	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	sessionClients, exists := s.clients[sessionID]
	if !exists || !sessionClients[channel] {
		return
	}
	delete(sessionClients, channel)
	close(channel)
	metrics.LiveClients.Dec()

	s.logger.Debugf("Removed SSE client for session %s (%d remaining)", sessionID, len(sessionClients))
	if len(sessionClients) == 0 {
		delete(s.clients, sessionID)
	}
}

// Broadcast queues an event for every connected client. It never blocks the
// caller; when the queue is full the event is dropped.
func (s *SSEManager) Broadcast(eventType string, data interface{}) {
	event := Event{Type: eventType, Data: data, Time: s.now().Unix()}
	select {
	case s.broadcast <- event:
	case <-s.ctx.Done():
	default:
		s.logger.Warnf("SSE queue full, dropping %s event", eventType)
	}
}

// SendToSession delivers an event to one session's connections only.
func (s *SSEManager) SendToSession(sessionID, eventType string, data interface{}) {
	payload, ok := s.encode(Event{Type: eventType, Data: data, Time: s.now().Unix()})
	if !ok {
		return
	}

	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	s.deliver(sessionID, s.clients[sessionID], payload)
}

func (s *SSEManager) broadcastEvents() {
	defer close(s.done)
	for {
		select {
		case event := <-s.broadcast:
			payload, ok := s.encode(event)
			if !ok {
				continue
			}
			s.clientsMux.RLock()
			for sessionID, sessionClients := range s.clients {
				s.deliver(sessionID, sessionClients, payload)
			}
			s.clientsMux.RUnlock()
		case <-s.ctx.Done():
			return
		}
	}
}

// deliver must be called with clientsMux held.
func (s *SSEManager) deliver(sessionID string, channels map[chan []byte]bool, payload []byte) {
	for channel := range channels {
		select {
		case channel <- payload:
		default:
			// Slow reader; it will resync on its next list fetch
			s.logger.Warnf("SSE client for session %s is not keeping up, event dropped", sessionID)
		}
	}
}

func (s *SSEManager) encode(event Event) ([]byte, bool) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Errorf("Failed to marshal %s event: %v", event.Type, err)
		return nil, false
	}
	return payload, true
}

// Close shuts down the SSE manager
func (s *SSEManager) Close() {
	s.cancel()
	<-s.done

	s.clientsMux.Lock()
	defer s.clientsMux.Unlock()

	for sessionID, sessionClients := range s.clients {
		for channel := range sessionClients {
			close(channel)
			metrics.LiveClients.Dec()
		}
		delete(s.clients, sessionID)
	}
}

// ConnectionCount returns the number of open connections across all sessions.
func (s *SSEManager) ConnectionCount() int {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()

	n := 0
	for _, sessionClients := range s.clients {
		n += len(sessionClients)
	}
	return n
}

func (s *SSEManager) HasSessionConnection(sessionID string) bool {
	s.clientsMux.RLock()
	defer s.clientsMux.RUnlock()
	return len(s.clients[sessionID]) > 0
}
