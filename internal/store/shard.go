package store

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// shard owns one partition of a database's keyspace: its own exclusive
// lock, its own TTL index, and (when maxmemory-policy needs it) its own
// recency tracker. spec.md §4.3 "Locking discipline" forbids holding a
// shard lock across blocking I/O or fan-out — callers must respect that;
// the shard itself only ever does in-memory work under the lock.
type shard struct {
	mu      sync.Mutex
	entries map[string]*KeyEntry
	ttl     *ttlIndex
	recency *lru.Cache // nil unless an LRU maxmemory-policy is active

	// floor records the last version a key is known to have had, whether
	// currently present or not. It is the mechanism behind spec.md §3
	// invariant 3's "version non-decreasing... or on delete-then-recreate":
	// without it, a deleted key's WATCH baseline would collapse back to a
	// fixed "absent" sentinel and a delete-then-recreate-then-delete cycle
	// would be invisible to a watcher that only ever observes "absent".
	floor map[string]uint64
}

func newShard() *shard {
	return &shard{
		entries: make(map[string]*KeyEntry),
		ttl:     newTTLIndex(),
		floor:   make(map[string]uint64),
	}
}

// versionOf returns the version a watcher would observe right now: the
// live entry's version if present, otherwise the last version it had (0
// if the key has never existed).
func (s *shard) versionOf(key string) uint64 {
	if e, ok := s.entries[key]; ok {
		return e.Version
	}
	return s.floor[key]
}

// bumpVersion advances an existing entry's version after an in-place
// mutation.
func (s *shard) bumpVersion(key string) uint64 {
	e := s.entries[key]
	e.Version++
	s.floor[key] = e.Version
	return e.Version
}

// createEntry installs a brand-new entry for key, assigning a version
// strictly greater than any it has ever held.
func (s *shard) createEntry(key string, v *Value, expiresAt int64) *KeyEntry {
	ver := s.floor[key] + 1
	e := &KeyEntry{Value: v, ExpiresAt: expiresAt, Version: ver}
	s.entries[key] = e
	s.floor[key] = ver
	return e
}

// deleteEntry removes key (if present) and records its terminal version
// in floor so a later recreation is detectable by WATCH.
func (s *shard) deleteEntry(key string) bool {
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	s.floor[key] = e.Version
	delete(s.entries, key)
	s.ttl.clear(key)
	s.forget(key)
	return true
}

func (s *shard) enableRecencyTracking(capacity int) {
	if capacity <= 0 {
		capacity = 1024
	}
	c, _ := lru.New(capacity)
	s.recency = c
}

func (s *shard) touch(key string) {
	if s.recency != nil {
		s.recency.Add(key, struct{}{})
	}
}

func (s *shard) forget(key string) {
	if s.recency != nil {
		s.recency.Remove(key)
	}
}

// lruCandidate returns the least-recently-touched key still present, for
// maxmemory-policy eviction (§6 Configuration options).
func (s *shard) lruCandidate() (string, bool) {
	if s.recency == nil {
		return "", false
	}
	for {
		k, _, ok := s.recency.RemoveOldest()
		if !ok {
			return "", false
		}
		key := k.(string)
		if _, exists := s.entries[key]; exists {
			return key, true
		}
	}
}
