package auth

import (
	"sync"

	"github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/logging"
)

// Sessions issues one admitted Gate per successful login, keyed by the
// gate's session ID.
type Sessions struct {
	mu     sync.RWMutex
	token  string
	gates  map[string]*Gate
	logger *logging.Logger
}

// NewSessions returns an empty registry that admits token.
func NewSessions(token string, logger *logging.Logger) (*Sessions, error) {
	if token == "" {
		return nil, errors.NewValidationError("admission token cannot be empty").WithField("auth.token")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Sessions{
		token:  token,
		gates:  make(map[string]*Gate),
		logger: logger,
	}, nil
}

// Login authenticates credential on a fresh gate and registers it on
// success.
func (s *Sessions) Login(credential string) (*Gate, error) {
	g, err := NewGate(s.token, s.logger)
	if err != nil {
		return nil, err
	}
	if ok, err := g.Authenticate(credential); !ok {
		return nil, err
	}

	s.mu.Lock()
	s.gates[g.SessionID()] = g
	s.mu.Unlock()
	return g, nil
}

// Lookup returns the admitted gate for id.
func (s *Sessions) Lookup(id string) (*Gate, error) {
	s.mu.RLock()
	g, ok := s.gates[id]
	s.mu.RUnlock()

	if !ok {
		return nil, errors.NewAuthError("unknown session", errors.ErrNotAdmitted).WithSessionID(id)
	}
	if err := g.Require(); err != nil {
		return nil, err
	}
	return g, nil
}

// Logout closes and forgets the session. It reports whether id was known.
func (s *Sessions) Logout(id string) bool {
	s.mu.Lock()
	g, ok := s.gates[id]
	delete(s.gates, id)
	s.mu.Unlock()

	if ok {
		g.Close()
	}
	return ok
}

// CloseAll ends every session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	gates := s.gates
	s.gates = make(map[string]*Gate)
	s.mu.Unlock()

	for _, g := range gates {
		g.Close()
	}
}

// Count returns the number of live sessions.
func (s *Sessions) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.gates)
}
