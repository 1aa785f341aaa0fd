// ABOUTME: Session state machine for one messaging-account connection.
// ABOUTME: Tracks lifecycle state, cached QR challenge, and connected identity.

package session

import (
	"sync"
)

// State is the lifecycle state of a Session.
type State int

const (
	// StateUninitialized means the client is starting up and has not yet
	// produced a pairing challenge or connected.
	StateUninitialized State = iota

	// StateAwaitingAuth means a pairing challenge has been issued and the
	// session is waiting for it to be scanned.
	StateAwaitingAuth

	// StateReady means authentication completed and messages can be sent.
	StateReady

	// StateTerminated is terminal. A terminated session is never retained
	// in the registry; a new Start for the same ID builds a fresh session.
	StateTerminated
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateReady:
		return "ready"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session is the aggregate root for one connection. The challenge cache and
// the connected identity are mutually exclusive: entering Ready clears the
// challenge, and a reissued challenge clears the identity.
type Session struct {
	// ID is the caller-supplied session identifier. Immutable.
	ID string

	client Client
	cancel func() // stops the event loop goroutine

	mu        sync.Mutex
	state     State
	qrRaw     string // most recent raw challenge string
	qrDataURI string // same challenge as an inline PNG data URI
	account   string // connected phone number, set while Ready
}

// newSession builds a session in StateUninitialized owning the given client.
func newSession(id string, client Client) *Session {
	return &Session{
		ID:     id,
		client: client,
		state:  StateUninitialized,
	}
}

// setChallenge caches a fresh challenge and moves the session to
// StateAwaitingAuth. Reissued challenges replace the cached value.
// No-op once terminated.
func (s *Session) setChallenge(raw, dataURI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.state = StateAwaitingAuth
	s.qrRaw = raw
	s.qrDataURI = dataURI
	s.account = ""
}

// setReady records the authenticated identity and clears the challenge.
// No-op once terminated.
func (s *Session) setReady(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.state = StateReady
	s.qrRaw = ""
	s.qrDataURI = ""
	s.account = account
}

// setTerminated clears both the challenge and the identity. The session is
// already gone from the registry by the time this runs.
func (s *Session) setTerminated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateTerminated
	s.qrRaw = ""
	s.qrDataURI = ""
	s.account = ""
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Account returns the connected phone number, or "" when not Ready.
func (s *Session) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// ChallengeDataURI returns the cached challenge as an inline image data URI,
// or "" when no challenge is pending.
func (s *Session) ChallengeDataURI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qrDataURI
}

// Ready reports whether the session is connected and authenticated.
func (s *Session) Ready() bool {
	return s.State() == StateReady
}
