package store

// KeyEntry is the per-key record held inside a shard's map (spec.md §3).
type KeyEntry struct {
	Value     *Value
	ExpiresAt int64 // unix nanoseconds; 0 means no TTL
	Version   uint64
}

func (e *KeyEntry) HasTTL() bool { return e.ExpiresAt != 0 }
