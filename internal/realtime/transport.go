// ABOUTME: Websocket transport behind the channel adapter.
// ABOUTME: Gorilla dialer with cookie-jar credentials, ping keepalive, pong deadlines.

package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxFrameSize = 64 * 1024

	handshakeTimeout = 10 * time.Second
)

// Conn is the minimal connection surface the channel needs. Satisfied by the
// gorilla-backed connection and by fakes in tests.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// Transport establishes connections for the channel adapter.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketTransport dials the backend over websocket, presenting the REST
// session cookies so the server can tie the connection to the same session.
type WebsocketTransport struct {
	jar http.CookieJar
}

// NewWebsocketTransport creates a Transport that shares the given cookie jar
// with the REST client.
func NewWebsocketTransport(jar http.CookieJar) *WebsocketTransport {
	return &WebsocketTransport{jar: jar}
}

// Dial opens a websocket connection and starts its keepalive loop.
func (t *WebsocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: handshakeTimeout,
		Jar:              t.jar,
	}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	return newWSConn(ws), nil
}

// wsConn wraps a gorilla connection with deadlines and a ping loop.
type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

func newWSConn(ws *websocket.Conn) *wsConn {
	c := &wsConn{
		ws:   ws,
		done: make(chan struct{}),
	}

	ws.SetReadLimit(maxFrameSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.ping()
	return c
}

func (c *wsConn) ReadJSON(v any) error {
	return c.ws.ReadJSON(v)
}

func (c *wsConn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

// Close is idempotent; it stops the ping loop and closes the socket.
func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// ping keeps the connection alive until the peer or Close ends it.
func (c *wsConn) ping() {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
