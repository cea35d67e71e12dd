// Package api is the HTTP client for the ripple REST backend.
//
// # Overview
//
// The api package owns the wire types (User, Conversation, Message) and
// performs every durable operation in the client: session probe, login,
// registration, logout, conversation listing/creation, message history,
// and message sending. The realtime channel never persists anything; if
// an event is lost, this package is the durability mechanism.
//
// # Sessions
//
// All calls carry the session credential implicitly through a cookie jar
// attached to the underlying http.Client. No token is threaded through
// call sites. The same jar is shared with the realtime dialer so the
// websocket handshake presents the same session.
//
// # Errors
//
// Backend error payloads ({"message": "..."}) are decoded into *Error with
// the HTTP status attached. A 401 from Me is mapped to ErrUnauthenticated
// so the startup probe can resolve to the anonymous state without treating
// it as a failure.
package api
