// Package engine hosts the tallying core behind an actor.
//
// A single goroutine owns all live tally state; operations arrive as
// commands on a channel and reply on per-command channels. This serializes
// access to the TallyStore without locks and keeps the first-seen ordering
// of observations deterministic under concurrent ingestion.
package engine
