// ABOUTME: Active thread synchronizer merging REST history with live events.
// ABOUTME: Owns selection lifecycle, typing debounce timers, and message de-duplication.

package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/2389/ripple/internal/api"
	"github.com/2389/ripple/internal/dedupe"
	"github.com/2389/ripple/internal/realtime"
)

const (
	// defaultTypingDebounce is how long after the last keystroke the
	// outbound stop_typing fires.
	defaultTypingDebounce = 2000 * time.Millisecond

	// defaultTypingExpiry is how long the inbound indicator stays lit
	// without a fresh typing event.
	defaultTypingExpiry = 2000 * time.Millisecond

	// seenTTL and seenMax bound the per-selection dedupe cache.
	seenTTL = 10 * time.Minute
	seenMax = 4096
)

// Validation failures, rejected locally before the network layer.
var (
	ErrEmptyMessage = errors.New("thread: message text is empty")
	ErrNoSelection  = errors.New("thread: no conversation selected")
)

// State is the selection lifecycle phase.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
)

// RestAPI is the slice of the REST client the synchronizer needs.
type RestAPI interface {
	Messages(ctx context.Context, conversationID string) ([]api.Message, error)
	SendMessage(ctx context.Context, conversationID, text string) (*api.Message, error)
}

// AcceptedFunc is invoked, outside any lock, whenever a message affecting a
// conversation is accepted: both for the open conversation and for
// background ones, where only the directory summary changes.
type AcceptedFunc func(conversationID string, msg api.Message)

// Options tune the typing timers. Zero values use the 2s defaults.
type Options struct {
	TypingDebounce time.Duration
	TypingExpiry   time.Duration
}

type eventSub struct {
	event string
	id    string
}

// Synchronizer reconciles REST history, live events, and local actions into
// one consistent view of the active conversation.
type Synchronizer struct {
	rest       RestAPI
	channel    *realtime.Channel
	onAccepted AcceptedFunc
	opts       Options
	logger     *slog.Logger

	mu            sync.Mutex
	selfID        string
	conv          *api.Conversation
	state         State
	gen           int
	msgs          []api.Message
	seen          *dedupe.Cache
	draft         string
	typing        bool
	subs          []eventSub
	outboundTimer *time.Timer
	expiryTimer   *time.Timer
}

// NewSynchronizer creates a synchronizer with no selection.
func NewSynchronizer(rest RestAPI, channel *realtime.Channel, onAccepted AcceptedFunc, opts Options, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TypingDebounce <= 0 {
		opts.TypingDebounce = defaultTypingDebounce
	}
	if opts.TypingExpiry <= 0 {
		opts.TypingExpiry = defaultTypingExpiry
	}
	if onAccepted == nil {
		onAccepted = func(string, api.Message) {}
	}
	return &Synchronizer{
		rest:       rest,
		channel:    channel,
		onAccepted: onAccepted,
		opts:       opts,
		logger:     logger.With("component", "thread"),
		seen:       dedupe.New(seenTTL, seenMax),
	}
}

// SetSelf records the current user's identifier, used to suppress the
// self-typing indicator. Set on every session transition.
func (s *Synchronizer) SetSelf(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = userID
}

// Select makes conv the active conversation: the previous selection is
// unloaded (subscriptions removed, timers cleared, draft reset), live
// subscriptions for the new conversation are registered, and the history
// fetch is issued. A late-resolving fetch from a previous selection can
// never overwrite the new state.
func (s *Synchronizer) Select(ctx context.Context, conv api.Conversation) {
	s.mu.Lock()
	s.unloadLocked()

	s.conv = &conv
	s.state = StateLoading
	s.gen++
	gen := s.gen

	// Subscription setup happens-before any event for this conversation is
	// processed; events racing the fetch are reconciled by ID.
	s.subs = []eventSub{
		{realtime.EventNewMessage, s.channel.On(realtime.EventNewMessage, s.handleNewMessage)},
		{realtime.EventTyping, s.channel.On(realtime.EventTyping, s.handleTyping)},
		{realtime.EventStopTyping, s.channel.On(realtime.EventStopTyping, s.handleStopTyping)},
	}
	s.mu.Unlock()

	s.logger.Debug("conversation selected", "conversation_id", conv.ID)

	go s.fetchHistory(ctx, conv.ID, gen)
}

// Deselect unloads the current selection, if any.
func (s *Synchronizer) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unloadLocked()
}

// unloadLocked runs the unloading step: subscriptions off, timers dead,
// ephemeral state gone. Must be called with mu held.
func (s *Synchronizer) unloadLocked() {
	for _, sub := range s.subs {
		s.channel.Off(sub.event, sub.id)
	}
	s.subs = nil

	if s.outboundTimer != nil {
		s.outboundTimer.Stop()
		s.outboundTimer = nil
	}
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}

	s.conv = nil
	s.state = StateIdle
	s.msgs = nil
	s.draft = ""
	s.typing = false
	s.seen.Reset()
	s.gen++
}

// fetchHistory loads the message history and applies it if the selection is
// still current.
func (s *Synchronizer) fetchHistory(ctx context.Context, conversationID string, gen int) {
	history, err := s.rest.Messages(ctx, conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		// Stale response: the user has moved on.
		s.logger.Debug("discarding stale history fetch", "conversation_id", conversationID)
		return
	}

	if err != nil {
		// Degrade to an empty-but-live thread; the user can retry by
		// re-selecting. Live messages still accumulate.
		s.logger.Warn("history fetch failed", "conversation_id", conversationID, "error", err)
		s.state = StateReady
		return
	}

	// Live messages accepted while the fetch was in flight stay in the
	// list; history and live merge by ID, never by arrival order.
	merged := make([]api.Message, 0, len(history)+len(s.msgs))
	inHistory := make(map[string]struct{}, len(history))
	for _, msg := range history {
		inHistory[msg.ID] = struct{}{}
		s.seen.Mark(msg.ID)
		merged = append(merged, msg)
	}
	for _, msg := range s.msgs {
		if _, dup := inHistory[msg.ID]; !dup {
			merged = append(merged, msg)
		}
	}

	s.msgs = merged
	s.state = StateReady
	s.logger.Debug("history loaded",
		"conversation_id", conversationID,
		"count", len(merged))
}

// Conversation returns the active conversation, or nil.
func (s *Synchronizer) Conversation() *api.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		return nil
	}
	conv := *s.conv
	return &conv
}

// State returns the selection lifecycle phase.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns the active thread's messages ordered for display:
// creation timestamp with ID tie-break, regardless of arrival order.
func (s *Synchronizer) Messages() []api.Message {
	s.mu.Lock()
	out := make([]api.Message, len(s.msgs))
	copy(out, s.msgs)
	s.mu.Unlock()

	slices.SortStableFunc(out, func(a, b api.Message) int {
		if a.Before(b) {
			return -1
		}
		if b.Before(a) {
			return 1
		}
		return 0
	})
	return out
}

// Typing reports whether the other participant is currently typing.
func (s *Synchronizer) Typing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing
}

// Draft returns the compose text for the active conversation.
func (s *Synchronizer) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetDraft stores the compose text. Cleared automatically on re-selection.
func (s *Synchronizer) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Send performs the durable write for the trimmed text and appends the
// confirmed message locally. Empty or whitespace-only text is rejected
// before it reaches the network. The live echo of this message cannot
// create a duplicate: acceptance is keyed by message ID.
func (s *Synchronizer) Send(ctx context.Context, text string) (*api.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	if s.conv == nil {
		s.mu.Unlock()
		return nil, ErrNoSelection
	}
	conversationID := s.conv.ID
	s.mu.Unlock()

	msg, err := s.rest.SendMessage(ctx, conversationID, text)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	s.accept(conversationID, *msg)

	s.mu.Lock()
	s.draft = ""
	s.mu.Unlock()

	return msg, nil
}

// NotifyTyping emits a typing signal immediately and (re)arms the
// trailing-edge debounce that emits stop_typing once idle. Each call cancels
// and restarts the prior timer, so a burst of keystrokes yields exactly one
// stop_typing, fired one debounce interval after the last call.
func (s *Synchronizer) NotifyTyping() {
	s.mu.Lock()
	if s.conv == nil || s.selfID == "" {
		s.mu.Unlock()
		return
	}
	conversationID := s.conv.ID
	selfID := s.selfID
	gen := s.gen

	if s.outboundTimer != nil {
		s.outboundTimer.Stop()
	}
	s.outboundTimer = time.AfterFunc(s.opts.TypingDebounce, func() {
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.outboundTimer = nil
		s.mu.Unlock()
		s.channel.Emit(realtime.EventStopTyping, realtime.Typing{
			ConversationID: conversationID,
			UserID:         selfID,
		})
	})
	s.mu.Unlock()

	s.channel.Emit(realtime.EventTyping, realtime.Typing{
		ConversationID: conversationID,
		UserID:         selfID,
	})
}

// handleNewMessage accepts a live message. For the active conversation it
// lands in the message list (deduplicated by ID); for any other
// conversation it is forwarded to the directory callback only.
func (s *Synchronizer) handleNewMessage(data json.RawMessage) {
	var payload realtime.NewMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		s.logger.Debug("malformed new_message payload", "error", err)
		return
	}
	if payload.ConversationID == "" {
		payload.ConversationID = payload.Message.ConversationID
	}

	s.accept(payload.ConversationID, payload.Message)
}

// accept routes one confirmed message: append to the active thread when it
// belongs there and is unseen, then notify the directory callback.
func (s *Synchronizer) accept(conversationID string, msg api.Message) {
	s.mu.Lock()
	if s.conv != nil && s.conv.ID == conversationID {
		if s.seen.CheckAndMark(msg.ID) {
			s.mu.Unlock()
			return
		}
		s.msgs = append(s.msgs, msg)
	}
	s.mu.Unlock()

	s.onAccepted(conversationID, msg)
}

// handleTyping lights the indicator for the active conversation and (re)arms
// the expiry timer. Events for other conversations or from self are ignored
// at this layer.
func (s *Synchronizer) handleTyping(data json.RawMessage) {
	var payload realtime.Typing
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv == nil || s.conv.ID != payload.ConversationID || payload.UserID == s.selfID {
		return
	}

	s.typing = true
	gen := s.gen

	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
	}
	s.expiryTimer = time.AfterFunc(s.opts.TypingExpiry, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			return
		}
		s.typing = false
		s.expiryTimer = nil
	})
}

// handleStopTyping clears the indicator for the active conversation.
func (s *Synchronizer) handleStopTyping(data json.RawMessage) {
	var payload realtime.Typing
	if err := json.Unmarshal(data, &payload); err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conv == nil || s.conv.ID != payload.ConversationID || payload.UserID == s.selfID {
		return
	}

	s.typing = false
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
}
