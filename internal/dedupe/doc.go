// Package dedupe provides message-ID deduplication using a time-based cache,
// so a message confirmed over REST and echoed over the live channel is
// applied to the view exactly once.
package dedupe
