package store

// WithStream locks key's shard, ensures a Stream value exists (creating one
// if key is absent unless createIfAbsent is false), and runs fn with
// exclusive access. fn's bool return reports whether it mutated the
// stream; a mutation bumps the key's version (or, for a freshly created
// key, the version is already 1 from createEntry). This is the single
// choke point the Stream Engine component (I) uses so XADD/XTRIM/XDEL/
// XGROUP/XACK/XCLAIM all share the same locking discipline as every other
// typed operation.
func (e *Engine) WithStream(db int, key string, createIfAbsent bool, fn func(s *Stream) bool) error {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var st *Stream
	created := false
	if absent {
		if !createIfAbsent {
			return ErrNoSuchKey
		}
		ent := sh.createEntry(key, NewStreamValue(), 0)
		st = ent.Value.Stream
		created = true
	} else {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindStream}); err != nil {
			return err
		}
		st = ent.Value.Stream
	}

	mutated := fn(st)
	if mutated && !created {
		sh.bumpVersion(key)
	}
	return nil
}

// ReadStream locks key's shard just long enough to run fn with read-only
// access, returning ok=false if absent.
func (e *Engine) ReadStream(db int, key string, fn func(s *Stream)) (bool, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return false, nil
	}
	if err := checkType(v, []Kind{KindStream}); err != nil {
		return false, err
	}
	fn(v.Stream)
	return true, nil
}
