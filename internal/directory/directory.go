// ABOUTME: Ordered collection of the current user's conversations.
// ABOUTME: Insert is move-to-front; last-message updates never reorder the list.

// Package directory holds the conversation list visible to the current user.
//
// List order reflects fetch/creation order, not recency: updating a
// conversation's last-message summary changes the summary in place and
// nothing else. Insert of an already-known conversation moves it to the
// front rather than duplicating it, matching where a freshly created
// conversation would land.
package directory

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/2389/ripple/internal/api"
)

// Directory is the ordered conversation collection. Safe for concurrent use.
type Directory struct {
	mu     sync.RWMutex
	convs  []api.Conversation
	logger *slog.Logger
}

// New creates an empty directory.
func New(logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		logger: logger.With("component", "directory"),
	}
}

// Replace loads a fresh REST snapshot, discarding the current list.
func (d *Directory) Replace(convs []api.Conversation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.convs = make([]api.Conversation, len(convs))
	copy(d.convs, convs)
	d.logger.Debug("directory replaced", "count", len(convs))
}

// List returns a copy of the conversations in their current order.
func (d *Directory) List() []api.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]api.Conversation, len(d.convs))
	copy(out, d.convs)
	return out
}

// Get looks up a conversation by ID.
func (d *Directory) Get(id string) (api.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, conv := range d.convs {
		if conv.ID == id {
			return conv, true
		}
	}
	return api.Conversation{}, false
}

// Len returns the number of conversations.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.convs)
}

// Insert prepends a conversation. If a conversation with the same ID already
// exists it is moved to the front, keeping whichever last-message summary is
// newer-looking (the incoming one wins when set).
func (d *Directory) Insert(conv api.Conversation) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, existing := range d.convs {
		if existing.ID != conv.ID {
			continue
		}
		if conv.LastMessage == nil {
			conv.LastMessage = existing.LastMessage
		}
		d.convs = append(d.convs[:i], d.convs[i+1:]...)
		d.convs = append([]api.Conversation{conv}, d.convs...)
		d.logger.Debug("conversation moved to front", "conversation_id", conv.ID)
		return
	}

	d.convs = append([]api.Conversation{conv}, d.convs...)
	d.logger.Debug("conversation inserted", "conversation_id", conv.ID)
}

// UpdateLastMessage replaces the conversation's summary in place. Unknown
// conversation IDs are ignored; list order is never changed here.
func (d *Directory) UpdateLastMessage(conversationID string, msg api.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.convs {
		if d.convs[i].ID == conversationID {
			d.convs[i].LastMessage = msg.Summary()
			return
		}
	}
}

// Search filters conversations by the other participant's name,
// case-insensitively. An empty term returns the full list.
func (d *Directory) Search(term string) []api.Conversation {
	all := d.List()
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return all
	}
	return lo.Filter(all, func(conv api.Conversation, _ int) bool {
		return strings.Contains(strings.ToLower(conv.OtherUser.Username), term)
	})
}
