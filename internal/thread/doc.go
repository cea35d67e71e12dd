// Package thread synchronizes the active conversation's message view.
//
// # Overview
//
// For exactly one selected conversation at a time, the Synchronizer merges
// the REST-fetched history with live-appended messages, owns the typing
// indicator timers in both directions, and forwards accepted messages to the
// conversation directory.
//
// # Selection lifecycle
//
// Select moves through Loading -> Ready; re-selection and Deselect run the
// unloading step first: live subscriptions are removed and both typing
// timers are cancelled, so nothing leaks into the next conversation. A
// generation counter guards against a slow history fetch resolving after
// the selection has already moved on.
//
// # Correctness under races
//
// There is no ordering guarantee between the history fetch resolving and
// the first live event arriving. Correctness comes from identifier-based
// de-duplication, not sequencing: every accepted message ID is marked in a
// dedupe cache, and history application keeps live messages that arrived
// while the fetch was in flight.
package thread
