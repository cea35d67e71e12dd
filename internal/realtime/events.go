// ABOUTME: Named events and payload shapes carried over the live channel.
// ABOUTME: One frame type on the wire: {"event": name, "data": payload}.

package realtime

import (
	"encoding/json"

	"github.com/2389/ripple/internal/api"
)

// Event names recognized on the live channel.
const (
	// EventAuthenticate is the one-time handshake emitted after transport
	// connect, carrying the user identifier.
	EventAuthenticate = "authenticate"

	EventNewMessage  = "new_message"
	EventTyping      = "typing"
	EventStopTyping  = "stop_typing"
	EventOnlineUsers = "online_users"
	EventUserStatus  = "user_status"
)

// User status values carried by EventUserStatus.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Frame is the wire envelope for every event in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// NewMessage is the payload of EventNewMessage.
type NewMessage struct {
	ConversationID string      `json:"conversationId"`
	Message        api.Message `json:"message"`
}

// Typing is the payload of EventTyping and EventStopTyping.
type Typing struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// UserStatus is the payload of EventUserStatus, the incremental presence
// update. EventOnlineUsers carries the full snapshot as a plain []string.
type UserStatus struct {
	UserID string `json:"userId"`
	Status string `json:"status"`
}
