package models

import "time"

// MemoryKey addresses one hot-memory (C6) bucket: a bounded FIFO ring of
// messages for a given user, optionally scoped further to one agent.
type MemoryKey struct {
	User  string `json:"user"`
	Agent string `json:"agent,omitempty"`
}

// String renders the key as the short-term store's in-memory map key;
// each persisted bucket file is named by this string hex-encoded. No
// single snapshot file keyed by this string is written.
func (k MemoryKey) String() string {
	if k.Agent == "" {
		return k.User
	}
	return k.User + "\x1f" + k.Agent
}

// MemoryBucket is one composite-key entry in the hot memory snapshot:
// the ring of messages plus the last-access instant used for cross-key
// LRU eviction.
type MemoryBucket struct {
	Key        MemoryKey  `json:"key"`
	Messages   []*Message `json:"messages"`
	LastAccess time.Time  `json:"last_access"`
}
