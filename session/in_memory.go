package session

import (
	"sync"
	"time"

	"github.com/hupe1980/agentforge/core"
)

// InMemoryStore is a volatile Store implementation keeping sessions in a
// process local map. Each session carries its own mutex so appends against
// the same session id are serialized while different sessions proceed
// independently. Returned sessions are cloned to prevent external mutation of
// internal state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*sessionEntry)}
}

// Get returns a snapshot of an existing session or an empty session if the id
// is unknown. Unknown ids are not materialized; only Append creates state.
func (s *InMemoryStore) Get(sessionID string) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if !ok {
		return &Session{ID: sessionID}, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

// Append adds messages to the session's history, creating the session lazily.
// The per-session mutex guarantees at most one concurrent append per id, so
// interleaved runs can never produce lost or shuffled history writes.
func (s *InMemoryStore) Append(sessionID string, msgs ...core.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	s.mu.Lock()
	entry, ok := s.sessions[sessionID]
	if !ok {
		entry = &sessionEntry{session: &Session{ID: sessionID}}
		s.sessions[sessionID] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	for _, m := range msgs {
		entry.session.Messages = append(entry.session.Messages, m.Clone())
	}
	entry.session.LastUpdated = time.Now()
	return nil
}

// Len returns the number of stored sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
