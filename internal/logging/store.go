package logging

import (
	"sync"
	"time"
)

// Entry is a single collected log event.
type Entry struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"`
	SessionID string    `json:"session_id,omitempty"`
	Message   string    `json:"message"`
}

// Store collects log events into bounded rings: one ring per session plus a
// separate global ring for events with no session context. Oldest entries are
// dropped past the cap.
type Store struct {
	mu         sync.RWMutex
	perSession map[string]*ring
	global     *ring
	sessionCap int
	globalCap  int
}

// NewStore creates a log store with the given per-session and global caps.
func NewStore(sessionCap, globalCap int) *Store {
	if sessionCap <= 0 {
		sessionCap = 500
	}
	if globalCap <= 0 {
		globalCap = 1000
	}
	return &Store{
		perSession: make(map[string]*ring),
		global:     newRing(globalCap),
		sessionCap: sessionCap,
		globalCap:  globalCap,
	}
}

// Append records an event. An empty sessionID routes to the global ring.
func (s *Store) Append(sessionID, level, message string) {
	entry := Entry{
		Time:      time.Now(),
		Level:     level,
		SessionID: sessionID,
		Message:   message,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID == "" {
		s.global.push(entry)
		return
	}

	r, ok := s.perSession[sessionID]
	if !ok {
		r = newRing(s.sessionCap)
		s.perSession[sessionID] = r
	}
	r.push(entry)
}

// Session returns up to limit most recent entries for a session, oldest first.
func (s *Store) Session(sessionID string, limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.perSession[sessionID]
	if !ok {
		return []Entry{}
	}
	return r.tail(limit)
}

// Global returns up to limit most recent session-less entries, oldest first.
func (s *Store) Global(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.global.tail(limit)
}

// Drop discards the ring for a destroyed session.
func (s *Store) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.perSession, sessionID)
}

// ring is a fixed-capacity FIFO of entries.
type ring struct {
	entries []Entry
	cap     int
}

func newRing(cap int) *ring {
	return &ring{cap: cap}
}

func (r *ring) push(e Entry) {
	r.entries = append(r.entries, e)
	if len(r.entries) > r.cap {
		r.entries = r.entries[len(r.entries)-r.cap:]
	}
}

func (r *ring) tail(limit int) []Entry {
	n := len(r.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, limit)
	copy(out, r.entries[n-limit:])
	return out
}
