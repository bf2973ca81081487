package stream

import (
	"time"

	"github.com/google/uuid"
)

// Mode is the active generation mode of a session.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeFallback   Mode = "fallback"
)

// State is the lifecycle state of a session. Ended and Aborted are terminal.
type State string

const (
	StateOpen    State = "open"
	StateEnded   State = "ended"
	StateAborted State = "aborted"
)

// Session is one streaming exchange. Only the orchestrator mutates it; other
// components observe it through the read accessors. The single closed flag
// guards every exit path so at most one terminal event is emitted.
type Session struct {
	ID             uuid.UUID
	Mode           Mode
	State          State
	TokensConsumed int
	StartedAt      time.Time

	closed bool
}

func NewSession() *Session {
	return &Session{
		ID:        uuid.New(),
		Mode:      ModeStructured,
		State:     StateOpen,
		StartedAt: time.Now(),
	}
}

// ConsumeToken increments the monotonic token counter.
func (s *Session) ConsumeToken() {
	s.TokensConsumed++
}

// EnterFallback performs the one-way structured -> fallback transition.
// Calling it when already in fallback is a no-op.
func (s *Session) EnterFallback() {
	s.Mode = ModeFallback
}

// close transitions to a terminal state. Returns true only for the first
// caller; later calls see false and must not emit terminal events.
func (s *Session) close(terminal State) bool {
	if s.closed {
		return false
	}
	s.closed = true
	s.State = terminal
	return true
}

// Accepting reports whether the session still accepts writes. This is the
// read-only view exposed to components other than the orchestrator.
func (s *Session) Accepting() bool {
	return !s.closed
}
