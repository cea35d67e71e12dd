// Package cache persists the last-known conversation directory and message
// histories to SQLite so the UI can render immediately on startup while the
// fresh fetch is in flight. The server is always authoritative; every save
// replaces the previous snapshot wholesale.
package cache
