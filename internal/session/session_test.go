// ABOUTME: Tests for session state transitions with a fake auth API.
// ABOUTME: Covers the startup probe, local validation, and listener notification.

package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ripple/internal/api"
)

type fakeAuthAPI struct {
	meUser    *api.User
	meErr     error
	loginUser *api.User
	loginErr  error
	logoutErr error

	loginCalls  int
	logoutCalls int
}

func (f *fakeAuthAPI) Me(context.Context) (*api.User, error) {
	return f.meUser, f.meErr
}

func (f *fakeAuthAPI) Login(_ context.Context, username, password string) (*api.User, error) {
	f.loginCalls++
	return f.loginUser, f.loginErr
}

func (f *fakeAuthAPI) Register(_ context.Context, username, email, password string) (*api.User, error) {
	return f.loginUser, f.loginErr
}

func (f *fakeAuthAPI) Logout(context.Context) error {
	f.logoutCalls++
	return f.logoutErr
}

func TestProbe_AuthenticatedUserInstalled(t *testing.T) {
	fake := &fakeAuthAPI{meUser: &api.User{ID: "u1", Username: "ada"}}
	m := NewManager(fake, nil)

	assert.True(t, m.Loading(), "loading before probe resolves")
	require.NoError(t, m.Probe(t.Context()))

	assert.False(t, m.Loading())
	user := m.CurrentUser()
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
}

func TestProbe_UnauthenticatedResolvesAnonymous(t *testing.T) {
	fake := &fakeAuthAPI{meErr: api.ErrUnauthenticated}
	m := NewManager(fake, nil)

	require.NoError(t, m.Probe(t.Context()), "401 is the anonymous state, not a failure")
	assert.False(t, m.Loading())
	assert.Nil(t, m.CurrentUser())
}

func TestProbe_TransportFailureStillClearsLoading(t *testing.T) {
	fake := &fakeAuthAPI{meErr: errors.New("connection refused")}
	m := NewManager(fake, nil)

	require.Error(t, m.Probe(t.Context()))
	assert.False(t, m.Loading())
	assert.Nil(t, m.CurrentUser())
}

func TestLogin_ValidationRejectsBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		creds Credentials
	}{
		{name: "empty username", creds: Credentials{Password: "secret123"}},
		{name: "short username", creds: Credentials{Username: "ab", Password: "secret123"}},
		{name: "empty password", creds: Credentials{Username: "ada"}},
		{name: "short password", creds: Credentials{Username: "ada", Password: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAuthAPI{loginUser: &api.User{ID: "u1"}}
			m := NewManager(fake, nil)

			_, err := m.Login(t.Context(), tt.creds)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Zero(t, fake.loginCalls, "invalid input must never reach the network")
		})
	}
}

func TestLogin_SuccessNotifiesListeners(t *testing.T) {
	fake := &fakeAuthAPI{loginUser: &api.User{ID: "u1", Username: "ada"}}
	m := NewManager(fake, nil)

	var notified []*api.User
	m.OnChange(func(u *api.User) { notified = append(notified, u) })

	user, err := m.Login(t.Context(), Credentials{Username: "ada", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.False(t, m.Loading(), "login must not re-enter loading")

	require.Len(t, notified, 1)
	assert.Equal(t, "u1", notified[0].ID)
}

func TestLogin_BackendFailureLeavesStateUnchanged(t *testing.T) {
	fake := &fakeAuthAPI{loginErr: &api.Error{StatusCode: 401, Message: "Invalid credentials"}}
	m := NewManager(fake, nil)

	_, err := m.Login(t.Context(), Credentials{Username: "ada", Password: "secret123"})
	require.Error(t, err)
	assert.Nil(t, m.CurrentUser())
}

func TestRegister_ValidatesEmail(t *testing.T) {
	fake := &fakeAuthAPI{loginUser: &api.User{ID: "u1"}}
	m := NewManager(fake, nil)

	_, err := m.Register(t.Context(), Registration{
		Username: "ada",
		Email:    "not-an-email",
		Password: "secret123",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLogout_ClearsUserAndNotifies(t *testing.T) {
	fake := &fakeAuthAPI{loginUser: &api.User{ID: "u1", Username: "ada"}}
	m := NewManager(fake, nil)

	_, err := m.Login(t.Context(), Credentials{Username: "ada", Password: "secret123"})
	require.NoError(t, err)

	var last *api.User
	m.OnChange(func(u *api.User) { last = u })

	require.NoError(t, m.Logout(t.Context()))
	assert.Nil(t, m.CurrentUser())
	assert.Nil(t, last)
	assert.Equal(t, 1, fake.logoutCalls)
}

func TestLogout_BackendFailureKeepsSession(t *testing.T) {
	fake := &fakeAuthAPI{
		loginUser: &api.User{ID: "u1"},
		logoutErr: errors.New("gateway timeout"),
	}
	m := NewManager(fake, nil)

	_, err := m.Login(t.Context(), Credentials{Username: "ada", Password: "secret123"})
	require.NoError(t, err)

	require.Error(t, m.Logout(t.Context()))
	assert.NotNil(t, m.CurrentUser(), "failed logout leaves state unchanged and retryable")
}

func TestCurrentUser_ReturnsCopy(t *testing.T) {
	fake := &fakeAuthAPI{loginUser: &api.User{ID: "u1", Username: "ada"}}
	m := NewManager(fake, nil)

	_, err := m.Login(t.Context(), Credentials{Username: "ada", Password: "secret123"})
	require.NoError(t, err)

	first := m.CurrentUser()
	first.Username = "mutated"

	assert.Equal(t, "ada", m.CurrentUser().Username)
}
