// Package state persists the durable outcome of research sessions.
// Each session has at most one terminal record, written atomically as a
// whole, which is what makes redundant queue deliveries safe to skip.
// Records live in Redis either as a single JSON blob or split across
// shard-local keys for large results; the layout is chosen once at
// construction time and is invisible to callers.
package state
