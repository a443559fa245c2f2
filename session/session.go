// Package session provides keyed, append-only conversation history shared
// across execution runs. The store never rewrites or truncates history;
// truncation is an engine policy applied when assembling a run's initial
// message list.
package session

import (
	"time"

	"github.com/hupe1980/agentforge/core"
)

// Session is a persisted conversational context keyed by an opaque
// identifier, reused across multiple execution calls.
type Session struct {
	ID          string         `json:"session_id"`
	Messages    []core.Message `json:"message_history"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Clone returns a deep copy so callers can never mutate stored state.
func (s *Session) Clone() *Session {
	clone := &Session{ID: s.ID, LastUpdated: s.LastUpdated}
	if len(s.Messages) > 0 {
		clone.Messages = make([]core.Message, len(s.Messages))
		for i, m := range s.Messages {
			clone.Messages[i] = m.Clone()
		}
	}
	return clone
}

// Store is the session state contract consumed by the execution engine.
//
// Implementations must serialize appends per session id (at most one
// concurrent append per session) while letting distinct sessions proceed
// independently, and must return snapshots from Get so a running engine never
// observes mid-append state.
type Store interface {
	// Get returns a snapshot of the session, empty if the id is new.
	Get(sessionID string) (*Session, error)

	// Append atomically adds messages to the end of the session's history,
	// creating the session if needed.
	Append(sessionID string, msgs ...core.Message) error
}
