// ABOUTME: REST client implementation for auth, conversations, messages and users.
// ABOUTME: Cookie-jar sessions, JSON round-trips, error payload mapping.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

const requestTimeout = 15 * time.Second

// Client talks to the ripple REST backend. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New creates a Client for the given base URL. The session cookie issued at
// login is held in the jar and sent on every subsequent request.
func New(baseURL string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: requestTimeout,
		},
		logger: logger.With("component", "api"),
	}, nil
}

// Jar exposes the session cookie jar so the realtime dialer can present the
// same credentials during the websocket handshake.
func (c *Client) Jar() http.CookieJar {
	return c.http.Jar
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// authResponse wraps the user object returned by login and register.
type authResponse struct {
	User User `json:"user"`
}

// Me returns the currently authenticated user, or ErrUnauthenticated when the
// session cookie is missing or expired.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &user); err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	return &user, nil
}

// Login authenticates with username and password and establishes a session.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	body := map[string]string{"username": username, "password": password}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("logged in", "user_id", resp.User.ID)
	return &resp.User, nil
}

// Register creates an account and establishes a session.
func (c *Client) Register(ctx context.Context, username, email, password string) (*User, error) {
	body := map[string]string{"username": username, "email": email, "password": password}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("registered", "user_id", resp.User.ID)
	return &resp.User, nil
}

// Logout invalidates the server-side session. The local cookie becomes
// useless regardless of the response, so callers may clear state even on error.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Conversations returns the caller's conversations in fetch order, each with
// the other participant embedded and an optional last-message summary.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var convs []Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// CreateConversation starts (or returns the existing) conversation with the
// given receiver.
func (c *Client) CreateConversation(ctx context.Context, receiverID string) (*Conversation, error) {
	body := map[string]string{"receiverId": receiverID}
	var conv Conversation
	if err := c.do(ctx, http.MethodPost, "/api/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Messages returns the ordered message history of a conversation.
func (c *Client) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	var msgs []Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+conversationID, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage performs the durable write for an outgoing message and returns
// the confirmed message, which is the source of truth for local append.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (*Message, error) {
	body := map[string]string{"conversationId": conversationID, "text": text}
	var msg Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Users returns the directory of all users, for starting new conversations.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// do performs one JSON round-trip. Non-2xx responses are decoded into *Error;
// transport failures are wrapped and left retryable by user action.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{StatusCode: resp.StatusCode, Message: "request failed"}
		var payload struct {
			Message string `json:"message"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil && payload.Message != "" {
			apiErr.Message = payload.Message
		}
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
