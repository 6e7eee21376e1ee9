package interpreter

import (
	"sync"
	"time"
)

// Sessions hands out one Ledger per viewing session.
type Sessions struct {
	mu      sync.Mutex
	ledgers map[string]*Ledger
	opts    []Option
}

// NewSessions creates a registry; opts are applied to every new Ledger.
func NewSessions(opts ...Option) *Sessions {
	return &Sessions{
		ledgers: make(map[string]*Ledger),
		opts:    opts,
	}
}

// Ledger returns the session's ledger, creating it on first use.
func (s *Sessions) Ledger(sessionID string) *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.ledgers[sessionID]
	if !ok {
		l = NewLedger(s.opts...)
		s.ledgers[sessionID] = l
	}
	return l
}

// Forget removes an email from every session, e.g. after it was deleted.
func (s *Sessions) Forget(emailID string) {
	for _, l := range s.snapshot() {
		l.Forget(emailID)
	}
}

// Reset empties every session after a clear-all.
func (s *Sessions) Reset() {
	for _, l := range s.snapshot() {
		l.Reset()
	}
}

// Prune drops sessions idle since before cutoff and returns how many went.
func (s *Sessions) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, l := range s.ledgers {
		if l.LastSeen().Before(cutoff) {
			delete(s.ledgers, id)
			pruned++
		}
	}
	return pruned
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledgers)
}

func (s *Sessions) snapshot() []*Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Ledger, 0, len(s.ledgers))
	for _, l := range s.ledgers {
		out = append(out, l)
	}
	return out
}
