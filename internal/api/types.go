// ABOUTME: Wire types for the ripple REST backend.
// ABOUTME: Users, conversations, messages and last-message summaries as served by the API.

package api

import "time"

// User is a chat participant. Immutable once fetched; everything outside the
// session holds read-only copies keyed by ID.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// LastMessage is the summary embedded in a conversation listing.
type LastMessage struct {
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	CreatedAt time.Time `json:"createdAt"`
}

// Conversation is a one-to-one thread between the current user and OtherUser.
// Mutated only by replacing LastMessage; never deleted.
type Conversation struct {
	ID          string       `json:"_id"`
	OtherUser   User         `json:"otherUser"`
	LastMessage *LastMessage `json:"lastMessage,omitempty"`
}

// Message is a single chat message. Immutable once created.
type Message struct {
	ID             string    `json:"_id"`
	ConversationID string    `json:"conversationId"`
	Sender         User      `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Before reports whether m sorts ahead of other for display. The ordering
// key is creation timestamp with message ID as tie-break; arrival order from
// the live channel is informational only.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// Summary converts a full message into the last-message form used by
// conversation listings.
func (m Message) Summary() *LastMessage {
	return &LastMessage{
		Text:      m.Text,
		Sender:    m.Sender.ID,
		CreatedAt: m.CreatedAt,
	}
}
