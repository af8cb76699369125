package store

import "errors"

var ErrNoSuchKey = errors.New("no such key")

func (e *Engine) lock(db int, key string) *shard {
	sh := e.shardFor(db, key)
	sh.mu.Lock()
	return sh
}

// expireLocked lazily expires key if due. Must be called with sh locked.
// Returns true if the key is (or is now) absent. A newly-expired key's
// deletion fires a notify after the caller releases the lock, so this
// method only records that a notify is owed by returning expired=true;
// callers fire the notify after unlocking, as Get does.
func (e *Engine) expireLocked(sh *shard, key string) (absent bool, expired bool) {
	e2, ok := sh.entries[key]
	if !ok {
		return true, false
	}
	if e2.HasTTL() && e2.ExpiresAt <= e.now() {
		sh.deleteEntry(key)
		return true, true
	}
	return false, false
}

func (e *Engine) notify(db int, key string) {
	if e.notifier != nil {
		e.notifier.Notify(db, key)
	}
}

// checkType validates the stored kind against an allow-list; nil/empty
// means "any". Absent keys never WRONGTYPE.
func checkType(v *Value, expected []Kind) error {
	if v == nil || len(expected) == 0 {
		return nil
	}
	for _, k := range expected {
		if v.Kind == k {
			return nil
		}
	}
	return &WrongTypeError{Have: v.Kind, Want: expected[0]}
}

// Get returns the current value for key, lazily expiring it first
// (spec.md §4.3).
func (e *Engine) Get(db int, key string) (*Value, bool) {
	sh := e.lock(db, key)
	_, expired := e.expireLocked(sh, key)
	ent, ok := sh.entries[key]
	var v *Value
	if ok {
		sh.touch(key)
		v = ent.Value
	}
	sh.mu.Unlock()
	if expired {
		e.notify(db, key)
	}
	return v, ok
}

// Exists returns the count of keys (duplicates counted per occurrence,
// matching real Redis EXISTS semantics) that are present and unexpired.
func (e *Engine) Exists(db int, keys ...string) int {
	n := 0
	for _, k := range keys {
		if _, ok := e.Get(db, k); ok {
			n++
		}
	}
	return n
}

// Delete removes keys, returning the count actually removed.
func (e *Engine) Delete(db int, keys ...string) int {
	n := 0
	for _, k := range keys {
		sh := e.lock(db, k)
		e.expireLocked(sh, k)
		removed := sh.deleteEntry(k)
		sh.mu.Unlock()
		if removed {
			n++
			e.notify(db, k)
		}
	}
	return n
}

// TypeOf reports the stored kind, or ok=false if absent.
func (e *Engine) TypeOf(db int, key string) (Kind, bool) {
	v, ok := e.Get(db, key)
	if !ok {
		return 0, false
	}
	return v.Kind, true
}

// TTLNanos returns remaining nanoseconds (>0), -1 (no TTL), or -2 (absent).
func (e *Engine) TTLNanos(db int, key string) int64 {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()
	if absent, _ := e.expireLocked(sh, key); absent {
		return -2
	}
	ent := sh.entries[key]
	sh.touch(key)
	if !ent.HasTTL() {
		return -1
	}
	remain := ent.ExpiresAt - e.now()
	if remain < 0 {
		remain = 0
	}
	return remain
}

// PExpireAt sets an absolute expiry (unix nanoseconds). Per the Open
// Question in spec.md §9, an expiry at-or-before now deletes the key
// immediately and consistently across EXPIRE/PEXPIRE/EXPIREAT/PEXPIREAT/
// SET..EX/SETEX.
func (e *Engine) PExpireAt(db int, key string, atNanos int64) bool {
	sh := e.lock(db, key)
	if absent, _ := e.expireLocked(sh, key); absent {
		sh.mu.Unlock()
		return false
	}
	if atNanos <= e.now() {
		sh.deleteEntry(key)
		sh.mu.Unlock()
		e.notify(db, key)
		return true
	}
	ent := sh.entries[key]
	ent.ExpiresAt = atNanos
	sh.ttl.set(key, atNanos)
	sh.bumpVersion(key)
	sh.mu.Unlock()
	return true
}

// Persist clears a key's TTL, returning true if one was removed.
func (e *Engine) Persist(db int, key string) bool {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()
	if absent, _ := e.expireLocked(sh, key); absent {
		return false
	}
	ent := sh.entries[key]
	if !ent.HasTTL() {
		return false
	}
	ent.ExpiresAt = 0
	sh.ttl.clear(key)
	sh.bumpVersion(key)
	return true
}

// WatchSnapshot returns the current version (0 if the key has never
// existed), used by the transaction manager to record a WATCH baseline
// (spec.md §4.6).
func (e *Engine) WatchSnapshot(db int, key string) uint64 {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()
	e.expireLocked(sh, key)
	return sh.versionOf(key)
}

// CheckUnchanged reports whether key's version still matches baseline
// (spec.md §4.6 step 2 and §8 "WATCH-EXEC").
func (e *Engine) CheckUnchanged(db int, key string, baseline uint64) bool {
	return e.WatchSnapshot(db, key) == baseline
}

// MultiKeyRead reads several keys from db in one pass, each under its own
// shard lock (spec.md §4.3).
func (e *Engine) MultiKeyRead(db int, keys []string) []*Value {
	out := make([]*Value, len(keys))
	for i, k := range keys {
		if v, ok := e.Get(db, k); ok {
			out[i] = v
		}
	}
	return out
}

// Rename moves src's entry to dst, acquiring both shard locks in stable
// (shard index, key) order to avoid deadlock (spec.md §4.3). The
// destination gets a fresh version; TTL is preserved from the source.
func (e *Engine) Rename(db int, src, dst string) error {
	srcIdx, dstIdx := e.shardIndex(src), e.shardIndex(dst)
	srcSh := e.dbs[db].shards[srcIdx]
	dstSh := e.dbs[db].shards[dstIdx]

	if srcSh == dstSh {
		srcSh.mu.Lock()
		defer srcSh.mu.Unlock()
	} else if srcIdx < dstIdx {
		srcSh.mu.Lock()
		dstSh.mu.Lock()
		defer dstSh.mu.Unlock()
		defer srcSh.mu.Unlock()
	} else {
		dstSh.mu.Lock()
		srcSh.mu.Lock()
		defer srcSh.mu.Unlock()
		defer dstSh.mu.Unlock()
	}

	if absent, _ := e.expireLocked(srcSh, src); absent {
		return ErrNoSuchKey
	}
	e.expireLocked(dstSh, dst)

	ent := srcSh.entries[src]
	srcSh.deleteEntry(src)
	dstSh.deleteEntry(dst)
	newEnt := dstSh.createEntry(dst, ent.Value, ent.ExpiresAt)
	if newEnt.HasTTL() {
		dstSh.ttl.set(dst, newEnt.ExpiresAt)
	}
	return nil
}

// Scan performs one step of a cursor-based traversal (spec.md §4.3): the
// cursor packs (shard index, intra-shard position). It tolerates
// concurrent mutation and does not guarantee seeing keys added mid-scan.
func (e *Engine) Scan(db int, cursor uint64, match func(string) bool, count int) (uint64, []string) {
	if count <= 0 {
		count = 10
	}
	shardIdx, pos := decodeCursor(cursor)
	var out []string
	now := e.now()
	for shardIdx < e.NumShards {
		sh := e.dbs[db].shards[shardIdx]
		sh.mu.Lock()
		keys := make([]string, 0, len(sh.entries))
		for k := range sh.entries {
			keys = append(keys, k)
		}
		for pos < len(keys) && len(out) < count {
			k := keys[pos]
			pos++
			if ent, ok := sh.entries[k]; ok {
				if ent.HasTTL() && ent.ExpiresAt <= now {
					continue
				}
				if match == nil || match(k) {
					out = append(out, k)
				}
			}
		}
		done := pos >= len(keys)
		sh.mu.Unlock()
		if !done {
			return encodeCursor(shardIdx, pos), out
		}
		shardIdx++
		pos = 0
		if len(out) >= count {
			if shardIdx >= e.NumShards {
				return 0, out
			}
			return encodeCursor(shardIdx, 0), out
		}
	}
	return 0, out
}

// FlushDB removes every key in db.
func (e *Engine) FlushDB(db int) {
	for _, sh := range e.dbs[db].shards {
		sh.mu.Lock()
		for k := range sh.entries {
			sh.deleteEntry(k)
		}
		sh.mu.Unlock()
	}
}

// FlushAll removes every key in every db.
func (e *Engine) FlushAll() {
	for i := range e.dbs {
		e.FlushDB(i)
	}
}

// DBSize returns the (approximate, includes not-yet-lazily-expired keys)
// key count for db.
func (e *Engine) DBSize(db int) int64 {
	var n int64
	for _, sh := range e.dbs[db].shards {
		sh.mu.Lock()
		n += int64(len(sh.entries))
		sh.mu.Unlock()
	}
	return n
}

// ForEach walks every live (non-expired) key in db, snapshotting each
// entry under its shard lock before invoking fn unlocked. Used by RDB
// SAVE/BGSAVE (spec.md §4.11 component K); mutation during the walk is
// safe but may or may not be reflected in fn, matching SCAN's contract.
func (e *Engine) ForEach(db int, fn func(key string, v *Value, expiresAt int64)) {
	now := e.now()
	for _, sh := range e.dbs[db].shards {
		sh.mu.Lock()
		type snap struct {
			key string
			v   *Value
			exp int64
		}
		var batch []snap
		for k, ent := range sh.entries {
			if ent.HasTTL() && ent.ExpiresAt <= now {
				continue
			}
			batch = append(batch, snap{k, ent.Value, ent.ExpiresAt})
		}
		sh.mu.Unlock()
		for _, s := range batch {
			fn(s.key, s.v, s.exp)
		}
	}
}

// LoadEntry installs a key directly, bypassing normal write validation;
// used only during RDB load and AOF replay (spec.md §4.11, caller type
// Replay) when rebuilding a keyspace from disk.
func (e *Engine) LoadEntry(db int, key string, v *Value, expiresAt int64) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()
	ent := sh.createEntry(key, v, expiresAt)
	if ent.HasTTL() {
		sh.ttl.set(key, expiresAt)
	}
}
