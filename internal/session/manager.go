package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"courtbook/internal/bookingapi"
	"courtbook/internal/metrics"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Authenticator is the identity side of the booking service.
type Authenticator interface {
	Login(ctx context.Context, creds bookingapi.Credentials) (string, error)
	VerifyToken(ctx context.Context, token string) (bool, error)
}

// Manager owns the single session of the process.
type Manager struct {
	api    Authenticator
	creds  bookingapi.Credentials
	store  TokenStore
	logger zerolog.Logger
	now    func() time.Time

	// flight serializes operations that may hit the network so a burst of
	// callers produces one login, not many.
	flight sync.Mutex

	mu    sync.RWMutex
	token string
	state State
}

// NewManager builds a manager in the Absent state. store may be nil, in which
// case the token lives only in memory.
func NewManager(api Authenticator, creds bookingapi.Credentials, store TokenStore, logger *zerolog.Logger) *Manager {
	if store == nil {
		store = NewMemoryTokenStore("")
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "session").Logger()
	}
	return &Manager{
		api:    api,
		creds:  creds,
		store:  store,
		logger: l,
		now:    time.Now,
		state:  StateAbsent,
	}
}

// Token returns the current token, "" unless the session is Valid.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Login posts the configured credentials and adopts the returned token.
func (m *Manager) Login(ctx context.Context) (string, error) {
	m.flight.Lock()
	defer m.flight.Unlock()
	return m.login(ctx)
}

func (m *Manager) login(ctx context.Context) (string, error) {
	if m.creds.Email == "" {
		metrics.IncLogin("failed")
		m.drop(ctx, StateAbsent)
		return "", &AuthError{Reason: "no credentials configured"}
	}

	token, err := m.api.Login(ctx, m.creds)
	if err != nil {
		metrics.IncLogin("failed")
		m.drop(ctx, StateAbsent)
		return "", &AuthError{Reason: loginFailureReason(err), Err: err}
	}

	metrics.IncLogin("ok")
	m.adopt(ctx, token)
	m.logger.Info().Msg("logged in")
	return token, nil
}

func loginFailureReason(err error) string {
	var re *bookingapi.RemoteError
	if errors.As(err, &re) && (re.Status == http.StatusBadRequest || bookingapi.IsUnauthorized(err) || bookingapi.IsForbidden(err)) {
		return "credentials rejected"
	}
	return "identity provider unreachable"
}

// ValidateStoredToken reports whether token is usable. It never fails: any
// doubt counts as invalid.
func (m *Manager) ValidateStoredToken(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	if m.expiredLocally(token) {
		m.logger.Debug().Msg("stored token expired")
		return false
	}
	valid, err := m.api.VerifyToken(ctx, token)
	if err != nil {
		m.logger.Debug().Err(err).Msg("token verification failed")
		return false
	}
	return valid
}

// expiredLocally reads the exp claim without verifying the signature.
// Opaque tokens are left to the remote check.
func (m *Manager) expiredLocally(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(m.now())
}

// EnsureSession returns a valid token: the in-memory one, else the stored one
// if the provider still accepts it, else a fresh login (attempted once).
func (m *Manager) EnsureSession(ctx context.Context) (string, error) {
	m.flight.Lock()
	defer m.flight.Unlock()

	if m.State() == StateValid {
		if token := m.Token(); token != "" {
			return token, nil
		}
	}

	stored, err := m.store.LoadToken(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("read stored token")
		stored = ""
	}
	if m.ValidateStoredToken(ctx, stored) {
		m.adopt(ctx, stored)
		m.logger.Info().Msg("reusing stored token")
		return stored, nil
	}
	if stored != "" {
		m.drop(ctx, StateAbsent)
	}
	return m.login(ctx)
}

// Refresh re-validates the current token and logs in again when it is rejected.
func (m *Manager) Refresh(ctx context.Context) error {
	m.flight.Lock()
	defer m.flight.Unlock()

	if token := m.Token(); m.ValidateStoredToken(ctx, token) {
		m.adopt(ctx, token)
		return nil
	}
	m.drop(ctx, StateAbsent)
	_, err := m.login(ctx)
	return err
}

// Invalidate marks the token rejected, typically after a 401 from the service.
func (m *Manager) Invalidate(ctx context.Context) {
	m.flight.Lock()
	defer m.flight.Unlock()
	if m.State() != StateValid {
		return
	}
	m.drop(ctx, StateInvalid)
	m.logger.Warn().Msg("session invalidated")
}

// Teardown clears the session and its stored token.
func (m *Manager) Teardown(ctx context.Context) error {
	m.flight.Lock()
	defer m.flight.Unlock()

	m.setState("", StateAbsent)
	if err := m.store.DeleteToken(ctx); err != nil {
		return &AuthError{Reason: "delete stored token", Err: err}
	}
	return nil
}

func (m *Manager) adopt(ctx context.Context, token string) {
	if !m.setState(token, StateValid) {
		return
	}
	if err := m.store.SaveToken(ctx, token); err != nil {
		m.logger.Warn().Err(err).Msg("persist token")
	}
}

func (m *Manager) drop(ctx context.Context, to State) {
	if !m.setState("", to) {
		return
	}
	if err := m.store.DeleteToken(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("delete stored token")
	}
}

func (m *Manager) setState(token string, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !CanTransition(m.state, to) {
		m.logger.Error().Str("from", string(m.state)).Str("to", string(to)).Msg("illegal session transition")
		return false
	}
	m.token = token
	m.state = to
	return true
}
