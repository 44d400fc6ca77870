package auth

import (
	"crypto/subtle"
	"sync"

	"github.com/google/uuid"

	"github.com/Iron-Ham/pagebook/internal/errors"
	"github.com/Iron-Ham/pagebook/internal/logging"
)

// State is the lifecycle state of a Gate.
type State int

const (
	StateUninitialized State = iota
	StateAdmitted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAdmitted:
		return "admitted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Gate admits one session after it presents the shared token.
type Gate struct {
	mu        sync.Mutex
	token     []byte
	state     State
	sessionID string
	attempts  int
	logger    *logging.Logger
}

// NewGate returns an uninitialized gate that accepts token. An empty token
// is rejected so a misconfiguration cannot admit everyone.
func NewGate(token string, logger *logging.Logger) (*Gate, error) {
	if token == "" {
		return nil, errors.NewValidationError("admission token cannot be empty").WithField("auth.token")
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	id := uuid.NewString()
	return &Gate{
		token:     []byte(token),
		sessionID: id,
		logger:    logger.WithComponent("auth").WithSession(id),
	}, nil
}

// Authenticate checks credential against the token. A matching credential
// admits the session; an admitted session stays admitted regardless of
// later attempts. A mismatch returns false with an *errors.AuthError.
func (g *Gate) Authenticate(credential string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateClosed:
		return false, errors.NewAuthError("session is closed", errors.ErrSessionClosed).WithSessionID(g.sessionID)
	case StateAdmitted:
		return true, nil
	}

	g.attempts++
	if subtle.ConstantTimeCompare([]byte(credential), g.token) != 1 {
		g.logger.Warn("authentication failed", "attempt", g.attempts)
		return false, errors.NewAuthError("invalid token", errors.ErrAuthFailed).
			WithSessionID(g.sessionID).
			WithAttempt(g.attempts)
	}

	g.state = StateAdmitted
	g.logger.Info("session admitted", "attempts", g.attempts)
	return true, nil
}

// Admitted reports whether the gate currently admits calls.
func (g *Gate) Admitted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state == StateAdmitted
}

// Require returns nil if the gate is admitted, and an *errors.AuthError
// matching ErrNotAdmitted or ErrSessionClosed otherwise.
func (g *Gate) Require() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case StateAdmitted:
		return nil
	case StateClosed:
		return errors.NewAuthError("session is closed", errors.ErrSessionClosed).WithSessionID(g.sessionID)
	default:
		return errors.NewAuthError("authenticate first", errors.ErrNotAdmitted).WithSessionID(g.sessionID)
	}
}

// Close ends the session. Closing twice is a no-op.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != StateClosed {
		g.state = StateClosed
		g.logger.Info("session closed")
	}
}

// State returns the current lifecycle state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// SessionID identifies this gate's session in logs and HTTP tokens.
func (g *Gate) SessionID() string {
	return g.sessionID
}

// Attempts returns the number of credentials checked so far.
func (g *Gate) Attempts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attempts
}
