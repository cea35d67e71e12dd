// ABOUTME: Session state holding the authenticated user and its lifecycle.
// ABOUTME: Probe/login/register/logout; state changes drive the live channel.

// Package session owns the current user identity. Its transitions are the
// only thing allowed to connect or disconnect the realtime channel, which
// the cmd wiring does through OnChange listeners.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/2389/ripple/internal/api"
)

// AuthAPI is the slice of the REST client the session needs.
type AuthAPI interface {
	Me(ctx context.Context) (*api.User, error)
	Login(ctx context.Context, username, password string) (*api.User, error)
	Register(ctx context.Context, username, email, password string) (*api.User, error)
	Logout(ctx context.Context) error
}

// Credentials is validated locally before a login reaches the network.
type Credentials struct {
	Username string `validate:"required,min=3,max=32"`
	Password string `validate:"required,min=6"`
}

// Registration is validated locally before a register reaches the network.
type Registration struct {
	Username string `validate:"required,min=3,max=32"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6"`
}

// ErrInvalidInput wraps local validation failures so callers can separate
// them from backend and transport errors.
var ErrInvalidInput = errors.New("session: invalid input")

// Manager tracks the current user. Loading is true only during the startup
// probe; login and logout do not re-enter the loading state.
type Manager struct {
	api      AuthAPI
	validate *validator.Validate
	logger   *slog.Logger

	mu        sync.RWMutex
	current   *api.User
	loading   bool
	listeners []func(*api.User)
}

// NewManager creates a session manager in the pre-probe loading state.
func NewManager(authAPI AuthAPI, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		api:      authAPI,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("component", "session"),
		loading:  true,
	}
}

// CurrentUser returns the authenticated user, or nil when anonymous.
func (m *Manager) CurrentUser() *api.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	user := *m.current
	return &user
}

// Loading reports whether the startup session probe is still in flight.
func (m *Manager) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// OnChange registers a listener invoked after every identity transition with
// the new user (nil when logged out). Listeners run outside the lock.
func (m *Manager) OnChange(fn func(*api.User)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Probe resolves the startup session state. An unauthenticated response is
// the anonymous state, not an error; only transport failures propagate, and
// even those leave the session cleanly anonymous.
func (m *Manager) Probe(ctx context.Context) error {
	user, err := m.api.Me(ctx)

	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()

	if err != nil {
		if errors.Is(err, api.ErrUnauthenticated) {
			m.logger.Debug("probe resolved anonymous")
			return nil
		}
		m.logger.Debug("probe failed", "error", err)
		return fmt.Errorf("session probe: %w", err)
	}

	m.setUser(user)
	return nil
}

// Login validates the credentials locally, then delegates to the REST
// collaborator and installs the confirmed user.
func (m *Manager) Login(ctx context.Context, creds Credentials) (*api.User, error) {
	if err := m.validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}

	user, err := m.api.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		return nil, err
	}
	m.setUser(user)
	return user, nil
}

// Register validates the details locally, then creates the account and
// installs the confirmed user.
func (m *Manager) Register(ctx context.Context, reg Registration) (*api.User, error) {
	if err := m.validate.Struct(reg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, describeValidation(err))
	}

	user, err := m.api.Register(ctx, reg.Username, reg.Email, reg.Password)
	if err != nil {
		return nil, err
	}
	m.setUser(user)
	return user, nil
}

// Logout invalidates the session and transitions to anonymous. State is left
// unchanged when the backend call fails, so the operation stays retryable.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.api.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	m.setUser(nil)
	return nil
}

// setUser installs the new identity and notifies listeners outside the lock.
func (m *Manager) setUser(user *api.User) {
	m.mu.Lock()
	m.current = user
	listeners := make([]func(*api.User), len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	if user != nil {
		m.logger.Info("session user changed", "user_id", user.ID)
	} else {
		m.logger.Info("session cleared")
	}

	for _, fn := range listeners {
		fn(user)
	}
}

// describeValidation turns the first field failure into a short user-facing
// reason.
func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return fe.Field() + " is required"
		case "email":
			return "email address is not valid"
		case "min":
			return fe.Field() + " is too short"
		case "max":
			return fe.Field() + " is too long"
		}
		return fe.Field() + " is invalid"
	}
	return err.Error()
}
