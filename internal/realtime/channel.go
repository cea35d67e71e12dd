// ABOUTME: Channel adapter owning the live connection and event fan-out.
// ABOUTME: Idempotent connect keyed by user, ordered handler dispatch, drop-when-down emits.

package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// outboundBuffer is the write queue depth per connection. Emits beyond it
// are dropped rather than blocking an event handler.
const outboundBuffer = 64

// Handler receives the raw payload of one inbound event.
type Handler func(data json.RawMessage)

type subscription struct {
	id      string
	handler Handler
}

// Channel is the single live connection shared by the presence tracker and
// the active thread synchronizer. Connection lifecycle is owned by session
// state transitions; everything else only subscribes and emits.
type Channel struct {
	url       string
	transport Transport
	logger    *slog.Logger

	mu        sync.Mutex
	conn      Conn
	connected bool
	userID    string
	gen       int
	handlers  map[string][]subscription
	outbound  chan Frame
}

// NewChannel creates a channel adapter for the given websocket URL.
func NewChannel(url string, transport Transport, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		url:       url,
		transport: transport,
		logger:    logger.With("component", "realtime"),
		handlers:  make(map[string][]subscription),
	}
}

// Connect establishes the live connection for the given user and performs
// the one-time authenticate handshake. Calling it while connected for the
// same user is a no-op; a different user tears down the prior connection
// first. A connection lost at the transport level may be re-established by
// calling Connect again for the same user; handlers survive that, since only
// Disconnect tears the registry down.
func (c *Channel) Connect(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.connected && c.userID == userID {
		c.mu.Unlock()
		return nil
	}
	if c.conn != nil && c.userID != userID {
		c.teardownLocked()
	}
	c.mu.Unlock()

	conn, err := c.transport.Dial(ctx, c.url)
	if err != nil {
		return fmt.Errorf("connecting channel: %w", err)
	}

	// Handshake: associate this connection with the user before any event
	// flows. Once per connection, never per message.
	data, err := json.Marshal(userID)
	if err != nil {
		conn.Close()
		return fmt.Errorf("encoding authenticate payload: %w", err)
	}
	if err := conn.WriteJSON(Frame{Event: EventAuthenticate, Data: data}); err != nil {
		conn.Close()
		return fmt.Errorf("authenticate handshake: %w", err)
	}

	c.mu.Lock()
	if c.connected {
		// A concurrent Connect won the race; keep the established connection.
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.connected = true
	c.userID = userID
	c.gen++
	gen := c.gen
	out := make(chan Frame, outboundBuffer)
	c.outbound = out
	c.mu.Unlock()

	c.logger.Debug("channel connected", "user_id", userID)

	go c.writePump(conn, out, gen)
	go c.readPump(conn, gen)
	return nil
}

// Disconnect closes the connection and tears down every handler registered
// since the matching Connect. Safe to call when already disconnected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
}

// teardownLocked closes the connection and clears all subscription state.
// Must be called with mu held.
func (c *Channel) teardownLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.outbound != nil {
		close(c.outbound)
		c.outbound = nil
	}
	c.connected = false
	c.userID = ""
	c.handlers = make(map[string][]subscription)
	c.gen++
	c.logger.Debug("channel torn down")
}

// Connected reports whether the transport connection is currently up.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// On registers a handler for a named event and returns a subscription ID for
// Off. Registration is valid while disconnected; dispatch begins once events
// arrive.
func (c *Channel) On(event string, handler Handler) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New().String()
	c.handlers[event] = append(c.handlers[event], subscription{id: id, handler: handler})
	return id
}

// Off removes one subscription. Removing an unknown ID is a no-op.
func (c *Channel) Off(event, subID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := c.handlers[event]
	c.handlers[event] = slices.DeleteFunc(subs, func(s subscription) bool {
		return s.id == subID
	})
	if len(c.handlers[event]) == 0 {
		delete(c.handlers, event)
	}
}

// Emit queues an outbound event. While disconnected the event is dropped;
// at-most-once delivery is all this channel promises, the REST layer is the
// durability mechanism.
func (c *Channel) Emit(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("encoding outbound event", "event", event, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.outbound == nil {
		c.logger.Debug("dropping emit while disconnected", "event", event)
		return
	}

	select {
	case c.outbound <- Frame{Event: event, Data: data}:
	default:
		c.logger.Debug("dropping emit, outbound queue full", "event", event)
	}
}

// readPump delivers inbound frames until the connection dies.
func (c *Channel) readPump(conn Conn, gen int) {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			c.handleDrop(gen, err)
			return
		}
		c.dispatch(f)
	}
}

// writePump drains the outbound queue onto the connection.
func (c *Channel) writePump(conn Conn, out <-chan Frame, gen int) {
	for f := range out {
		if err := conn.WriteJSON(f); err != nil {
			c.handleDrop(gen, err)
			return
		}
	}
}

// handleDrop flips connected on transport loss. If the generation has moved
// on, an intentional teardown already happened and this is stale.
func (c *Channel) handleDrop(gen int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.outbound != nil {
		close(c.outbound)
		c.outbound = nil
	}
	c.connected = false
	c.logger.Debug("channel disconnected", "error", err)
}

// dispatch calls the event's handlers synchronously, in subscription order.
// Handlers run to completion before the next frame is read.
func (c *Channel) dispatch(f Frame) {
	c.mu.Lock()
	subs := slices.Clone(c.handlers[f.Event])
	c.mu.Unlock()

	for _, sub := range subs {
		sub.handler(f.Data)
	}
}
