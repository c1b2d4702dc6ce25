// Package redis implements the Redis-backed TallyStore.
//
// Counts live in a hash (HINCRBY) and the first-seen order of distinct
// values in a zset scored by an atomic sequence counter, so the tie-break
// stays deterministic across instances. Observation writes use a Lua script
// for atomicity; the client carries a circuit breaker hook.
package redis
