// Package realtime is the live event channel shared by the presence tracker
// and the active thread synchronizer.
//
// # Overview
//
// A Channel owns one persistent websocket connection keyed to the
// authenticated user. On connect it performs the one-time "authenticate"
// handshake, then fans inbound named events out to registered handlers in
// subscription order. Outbound emits made while disconnected are dropped;
// the REST layer is the durability mechanism, not this channel.
//
// # Lifecycle
//
// Connection ownership belongs to session transitions: nothing but the
// session wiring may call Connect or Disconnect. Handlers registered with On
// live until Off or until the matching Disconnect tears the registry down,
// so nothing leaks across login cycles. A transport-level drop only flips
// the connected flag; reconnection policy belongs to the caller.
package realtime
