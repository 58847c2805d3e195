package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"barcaixa/internal/domain"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoEvent          = errors.New("no event selected")
)

// State is the session position in the scope state machine:
// Unauthenticated -> Authenticated (no event) -> EventSelected.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateEventSelected
)

// Authenticator verifies credentials against the freshest user list the
// system can get (implemented by the ledger, which re-reads users from the
// remote store before checking).
type Authenticator interface {
	Authenticate(ctx context.Context, username string, password string) (domain.UserAccount, error)
}

// Session carries the current user and the current bookkeeping event for
// one operator. Scoped ledger operations require StateEventSelected.
type Session struct {
	mu    sync.RWMutex
	user  *domain.UserAccount
	event *domain.Event
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.user == nil:
		return StateUnauthenticated
	case s.event == nil:
		return StateAuthenticated
	default:
		return StateEventSelected
	}
}

func (s *Session) User() (domain.UserAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.UserAccount{}, false
	}
	return *s.user, true
}

func (s *Session) CurrentEvent() (domain.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.event == nil {
		return domain.Event{}, false
	}
	return *s.event, true
}

func (s *Session) CurrentEventID() (string, bool) {
	ev, ok := s.CurrentEvent()
	return ev.ID, ok
}

func (s *Session) bind(user domain.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := user
	s.user = &u
	s.event = nil
}

// SelectEvent moves the session into the event-selected state. The caller
// (the ledger) has already verified the event exists and is live.
func (s *Session) SelectEvent(event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return ErrNotAuthenticated
	}
	ev := event
	s.event = &ev
	return nil
}

func (s *Session) ExitEvent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.event = nil
}

// logout clears user and event in one step.
func (s *Session) logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.event = nil
}

// Manager keys sessions by username. Each operator gets one session; a
// fresh login replaces any previous one.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *zap.SugaredLogger
}

func NewManager(log *zap.SugaredLogger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

func (m *Manager) Login(ctx context.Context, auth Authenticator, username string, password string) (*Session, error) {
	user, err := auth.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[user.Username]
	if !ok {
		sess = &Session{}
		m.sessions[user.Username] = sess
	}
	sess.bind(user)
	m.log.Infow("login", "username", user.Username, "role", user.Role)
	return sess, nil
}

func (m *Manager) Get(username string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[username]
	if !ok || sess.State() == StateUnauthenticated {
		return nil, false
	}
	return sess, ok
}

func (m *Manager) Logout(username string) {
	m.mu.Lock()
	sess, ok := m.sessions[username]
	m.mu.Unlock()
	if !ok {
		return
	}
	sess.logout()
	m.log.Infow("logout", "username", username)
}

// DetachEvent clears the current-event pointer of every session scoped to
// the given event. Called by the ledger when an event is deleted.
func (m *Manager) DetachEvent(eventID string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for username, sess := range m.sessions {
		if id, ok := sess.CurrentEventID(); ok && id == eventID {
			sess.ExitEvent()
			m.log.Infow("session detached from deleted event", "username", username, "event", eventID)
		}
	}
}
