// ABOUTME: Manages the registry of active sessions and their lifecycle events.
// ABOUTME: Wires inbound messages through dedupe, classification, and webhook relay.

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/wagateway/internal/classify"
	"github.com/2389/wagateway/internal/dedupe"
	"github.com/2389/wagateway/internal/qr"
	"github.com/2389/wagateway/internal/relay"
)

// ErrSessionNotFound indicates the specified session does not exist.
var ErrSessionNotFound = errors.New("session not found")

// ErrNotConnected indicates the operation requires a Ready session.
var ErrNotConnected = errors.New("session not connected")

// defaultDestroyTimeout bounds how long teardown waits on the client handle.
// Eviction from the registry never waits on it.
const defaultDestroyTimeout = 10 * time.Second

// Relayer forwards a classified message to the external webhook and returns
// an optional reply. Implemented by relay.Client.
type Relayer interface {
	Configured() bool
	Relay(ctx context.Context, sessionID string, ev *relay.Event) (string, error)
}

// Manager owns the mapping from session ID to Session. Creation is
// idempotent, and termination (explicit destroy, disconnect event, or
// initialization failure) always runs the same teardown-and-evict path.
type Manager struct {
	factory        ClientFactory
	relay          Relayer
	seen           *dedupe.Cache
	logger         *slog.Logger
	destroyTimeout time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// ManagerParams holds the dependencies for NewManager.
type ManagerParams struct {
	Factory ClientFactory
	Relay   Relayer
	Dedupe  *dedupe.Cache // optional; nil disables inbound deduplication
	Logger  *slog.Logger

	// DestroyTimeout bounds client shutdown during teardown. Zero means the
	// default of 10s.
	DestroyTimeout time.Duration
}

// NewManager creates a Manager with no sessions.
func NewManager(p ManagerParams) *Manager {
	timeout := p.DestroyTimeout
	if timeout == 0 {
		timeout = defaultDestroyTimeout
	}
	return &Manager{
		factory:        p.Factory,
		relay:          p.Relay,
		seen:           p.Dedupe,
		logger:         p.Logger,
		destroyTimeout: timeout,
		sessions:       make(map[string]*Session),
	}
}

// Start returns the existing session for id, or constructs a new one and
// begins client initialization asynchronously. It never re-initializes a
// live session. Initialization failures are observed via later Status
// calls returning ErrSessionNotFound, not via Start.
func (m *Manager) Start(id string) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		m.logger.Debug("session already exists", "session_id", id)
		return s
	}
	m.mu.Unlock()

	// Construction can open credential stores and run migrations; the lock
	// is held only for map mutation so one slow startup cannot stall the
	// registry.
	client, err := m.factory(id, m.logger.With("session_id", id))
	if err != nil {
		m.logger.Error("client construction failed", "session_id", id, "error", err)
		return nil
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		m.logger.Debug("session registered concurrently", "session_id", id)
		m.disposeSpareClient(id, client)
		return existing
	}

	s := newSession(id, client)
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	m.sessions[id] = s
	total := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session starting", "session_id", id, "total_sessions", total)
	go m.run(ctx, s)
	return s
}

// disposeSpareClient shuts down a client that lost the registration race
// and was never wired to a session.
func (m *Manager) disposeSpareClient(id string, client Client) {
	ctx, cancel := context.WithTimeout(context.Background(), m.destroyTimeout)
	defer cancel()
	if err := client.Destroy(ctx); err != nil {
		m.logger.Error("spare client teardown failed", "session_id", id, "error", err)
	}
}

// run consumes the session's lifecycle event stream until disconnection.
func (m *Manager) run(ctx context.Context, s *Session) {
	logger := m.logger.With("session_id", s.ID)

	events, err := s.client.Initialize(ctx)
	if err != nil {
		logger.Error("session initialization failed", "error", err)
		m.teardown(s.ID, "initialization failure")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				m.teardown(s.ID, "event stream closed")
				return
			}

			switch ev.Kind {
			case EventQR:
				dataURI, err := qr.EncodeDataURI(ev.Code)
				if err != nil {
					logger.Error("challenge encoding failed", "error", err)
					continue
				}
				s.setChallenge(ev.Code, dataURI)
				logger.Info("pairing challenge issued")

			case EventReady:
				s.setReady(ev.AccountHandle)
				logger.Info("session connected", "number", ev.AccountHandle)

			case EventMessage:
				m.dispatchMessage(ctx, s, ev.Message)

			case EventDisconnected:
				logger.Warn("session disconnected", "reason", ev.Reason)
				m.teardown(s.ID, ev.Reason)
				return
			}
		}
	}
}

// dispatchMessage hands one inbound envelope to the processing pipeline.
// Processing is fire-and-forget: a slow webhook stalls only this message.
func (m *Manager) dispatchMessage(ctx context.Context, s *Session, msg *InboundMessage) {
	if msg == nil {
		return
	}
	if m.seen != nil && msg.ID != "" && m.seen.CheckAndMark(dedupe.MessageKey(s.ID, msg.ID)) {
		m.logger.Debug("duplicate message dropped", "session_id", s.ID, "message_id", msg.ID)
		return
	}
	go m.processMessage(ctx, s, msg)
}

// processMessage classifies one envelope, relays it, and forwards an
// optional reply. Every failure past classification is logged and swallowed;
// nothing here may stall or crash the session's event loop.
func (m *Manager) processMessage(ctx context.Context, s *Session, msg *InboundMessage) {
	logger := m.logger.With("session_id", s.ID, "message_id", msg.ID)

	in := classify.Input{
		SenderID:  msg.SenderID,
		ChatID:    msg.ChatID,
		RawType:   msg.RawType,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
		FetchMedia: func(ctx context.Context) ([]byte, string, error) {
			return s.client.DownloadMedia(ctx, msg)
		},
	}

	ev, ok := classify.Classify(ctx, in, logger)
	if !ok {
		return
	}

	if m.relay == nil || !m.relay.Configured() {
		logger.Debug("no webhook configured, skipping relay", "from", ev.From)
		return
	}

	reply, err := m.relay.Relay(ctx, s.ID, ev)
	if err != nil {
		logger.Error("webhook relay failed", "error", err)
		return
	}
	if reply == "" {
		return
	}

	if err := s.client.SendText(ctx, msg.ChatID, reply); err != nil {
		logger.Error("reply delivery failed", "chat", msg.ChatID, "error", err)
	}
}

// StatusInfo is a point-in-time view of one session.
type StatusInfo struct {
	State         State
	Ready         bool
	HasChallenge  bool
	AccountHandle string
}

// Status returns the current state of the session, or ErrSessionNotFound.
func (m *Manager) Status(id string) (*StatusInfo, error) {
	s := m.get(id)
	if s == nil {
		return nil, ErrSessionNotFound
	}
	return &StatusInfo{
		State:         s.State(),
		Ready:         s.Ready(),
		HasChallenge:  s.ChallengeDataURI() != "",
		AccountHandle: s.Account(),
	}, nil
}

// ChallengeStatus describes the pairing progress of a session.
type ChallengeStatus int

const (
	// ChallengeWaiting means no challenge has been issued yet.
	ChallengeWaiting ChallengeStatus = iota

	// ChallengePending means a challenge is cached and awaiting a scan.
	ChallengePending

	// ChallengeConnected means the session is already authenticated.
	ChallengeConnected
)

// Challenge returns the session's pairing status and, when pending, the
// cached challenge as an inline image data URI.
func (m *Manager) Challenge(id string) (ChallengeStatus, string, error) {
	s := m.get(id)
	if s == nil {
		return ChallengeWaiting, "", ErrSessionNotFound
	}
	if s.Ready() {
		return ChallengeConnected, "", nil
	}
	if uri := s.ChallengeDataURI(); uri != "" {
		return ChallengePending, uri, nil
	}
	return ChallengeWaiting, "", nil
}

// Send delivers a text message through a Ready session. The recipient is
// normalized to the underlying addressing scheme before delegation. Returns
// ErrSessionNotFound, ErrNotConnected, or a wrapped delivery error.
func (m *Manager) Send(ctx context.Context, id, to, text string) error {
	s := m.get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	if !s.Ready() {
		return ErrNotConnected
	}

	recipient := NormalizeRecipient(to)
	if err := s.client.SendText(ctx, recipient, text); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	m.logger.Info("message sent", "session_id", id, "to", recipient)
	return nil
}

// SessionInfo is one entry of the List snapshot.
type SessionInfo struct {
	ID            string
	Ready         bool
	AccountHandle string
}

// List returns a point-in-time snapshot of all sessions. Iteration order
// is unspecified.
func (m *Manager) List() []SessionInfo {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, SessionInfo{
			ID:            s.ID,
			Ready:         s.Ready(),
			AccountHandle: s.Account(),
		})
	}
	return infos
}

// Destroy tears down the session's client and evicts the entry. No-op if
// the session is absent; safe to call concurrently with an in-flight
// disconnect event for the same ID.
func (m *Manager) Destroy(id string) {
	m.teardown(id, "explicit destroy")
}

// Shutdown destroys all sessions. Used on process exit.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, info := range m.List() {
		select {
		case <-ctx.Done():
			m.logger.Warn("shutdown deadline reached with sessions remaining")
			return
		default:
		}
		m.teardown(info.ID, "gateway shutdown")
	}
}

// get returns the session for id, or nil.
func (m *Manager) get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[id]
}

// teardown is the single cleanup path for every way a session can end.
// Eviction happens first and unconditionally; only one caller wins the
// registry delete, so concurrent destroy and disconnect cannot double-free
// the client. Client shutdown failures are logged, never propagated.
func (m *Manager) teardown(id, reason string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, id)
	total := len(m.sessions)
	m.mu.Unlock()

	s.setTerminated()
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.destroyTimeout)
	defer cancel()
	if err := s.client.Destroy(ctx); err != nil {
		m.logger.Error("client teardown failed", "session_id", id, "error", err)
	}

	m.logger.Info("session terminated",
		"session_id", id,
		"reason", reason,
		"total_sessions", total,
	)
}
