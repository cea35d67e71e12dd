// ABOUTME: Tracks the set of currently-online user identifiers.
// ABOUTME: Snapshot replace on online_users, idempotent add/remove on user_status.

// Package presence maintains online/offline status for users, driven purely
// by live channel events. There is no polling; last applied wins.
package presence

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/2389/ripple/internal/realtime"
)

// Tracker holds the online set. Membership test is the only query.
type Tracker struct {
	mu     sync.RWMutex
	online map[string]struct{}
	logger *slog.Logger
}

// NewTracker creates an empty tracker. Pass nil logger for default.
func NewTracker(logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		online: make(map[string]struct{}),
		logger: logger.With("component", "presence"),
	}
}

// Bind subscribes the tracker to the channel's presence events and returns
// an unbind function. Call unbind before re-binding after a login cycle.
func (t *Tracker) Bind(ch *realtime.Channel) func() {
	snapSub := ch.On(realtime.EventOnlineUsers, t.handleSnapshot)
	statusSub := ch.On(realtime.EventUserStatus, t.handleStatus)

	return func() {
		ch.Off(realtime.EventOnlineUsers, snapSub)
		ch.Off(realtime.EventUserStatus, statusSub)
	}
}

// IsOnline reports whether the user is currently in the online set.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.online[userID]
	return ok
}

// Count returns the size of the online set.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.online)
}

// handleSnapshot replaces the entire tracked set. Any state accumulated from
// incremental events before the snapshot is discarded.
func (t *Tracker) handleSnapshot(data json.RawMessage) {
	var users []string
	if err := json.Unmarshal(data, &users); err != nil {
		t.logger.Debug("malformed online_users payload", "error", err)
		return
	}

	next := make(map[string]struct{}, len(users))
	for _, id := range users {
		next[id] = struct{}{}
	}

	t.mu.Lock()
	t.online = next
	t.mu.Unlock()

	t.logger.Debug("presence snapshot applied", "count", len(next))
}

// handleStatus applies one incremental update. Adding a present identifier
// or removing an absent one is a no-op, not an error.
func (t *Tracker) handleStatus(data json.RawMessage) {
	var status realtime.UserStatus
	if err := json.Unmarshal(data, &status); err != nil {
		t.logger.Debug("malformed user_status payload", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch status.Status {
	case realtime.StatusOnline:
		t.online[status.UserID] = struct{}{}
	case realtime.StatusOffline:
		delete(t.online, status.UserID)
	}
}
