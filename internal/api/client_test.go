// ABOUTME: Tests for the REST client against an httptest backend.
// ABOUTME: Covers session cookies, error payload mapping, and the auth endpoints.

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, nil)
	require.NoError(t, err)
	return srv, client
}

func TestMe_UnauthenticatedMapsToSentinel(t *testing.T) {
	_, client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "no session"})
	})

	user, err := client.Me(t.Context())
	assert.Nil(t, user)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestMe_ReturnsUser(t *testing.T) {
	_, client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/me", r.URL.Path)
		json.NewEncoder(w).Encode(User{ID: "u1", Username: "ada"})
	})

	user, err := client.Me(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "ada", user.Username)
}

func TestLogin_SessionCookiePersistsAcrossCalls(t *testing.T) {
	var sawCookie bool
	_, client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123", Path: "/"})
			json.NewEncoder(w).Encode(map[string]User{"user": {ID: "u1", Username: "ada"}})
		case "/api/conversations":
			cookie, err := r.Cookie("session")
			if err == nil && cookie.Value == "abc123" {
				sawCookie = true
			}
			json.NewEncoder(w).Encode([]Conversation{})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	user, err := client.Login(t.Context(), "ada", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	_, err = client.Conversations(t.Context())
	require.NoError(t, err)
	assert.True(t, sawCookie, "session cookie should be carried implicitly")
}

func TestLogin_BackendErrorSurfacesMessage(t *testing.T) {
	_, client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
	})

	_, err := client.Login(t.Context(), "ada", "wrong")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.True(t, apiErr.AuthFailure())
	assert.Equal(t, "Invalid credentials", UserMessage(err))
}

func TestSendMessage_PostsBodyAndDecodesMessage(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_, client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/messages", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "c1", body["conversationId"])
		assert.Equal(t, "hello", body["text"])

		json.NewEncoder(w).Encode(Message{
			ID:             "m1",
			ConversationID: "c1",
			Sender:         User{ID: "u1"},
			Text:           "hello",
			CreatedAt:      created,
		})
	})

	msg, err := client.SendMessage(t.Context(), "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m1", msg.ID)
	assert.True(t, msg.CreatedAt.Equal(created))
}

func TestCreateConversation_SendsReceiverID(t *testing.T) {
	_, client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u2", body["receiverId"])
		json.NewEncoder(w).Encode(Conversation{ID: "c9", OtherUser: User{ID: "u2", Username: "bob"}})
	})

	conv, err := client.CreateConversation(t.Context(), "u2")
	require.NoError(t, err)
	assert.Equal(t, "c9", conv.ID)
	assert.Equal(t, "bob", conv.OtherUser.Username)
}

func TestMessageOrdering(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Message
		want bool
	}{
		{
			name: "earlier timestamp sorts first",
			a:    Message{ID: "m2", CreatedAt: base},
			b:    Message{ID: "m1", CreatedAt: base.Add(time.Second)},
			want: true,
		},
		{
			name: "equal timestamps fall back to ID",
			a:    Message{ID: "m1", CreatedAt: base},
			b:    Message{ID: "m2", CreatedAt: base},
			want: true,
		},
		{
			name: "later timestamp sorts last",
			a:    Message{ID: "m1", CreatedAt: base.Add(time.Minute)},
			b:    Message{ID: "m2", CreatedAt: base},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Before(tt.b))
		})
	}
}

func TestUserMessage_FallsBackForTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	client, err := New(srv.URL, nil)
	require.NoError(t, err)
	srv.Close() // force a connection failure

	_, err = client.Conversations(t.Context())
	require.Error(t, err)
	assert.Equal(t, "Something went wrong, please try again", UserMessage(err))
}
