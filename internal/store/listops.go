package store

// getOrCreateList fetches key's list, creating an empty one if absent, or
// returns an error if key holds a different kind. Must be called locked.
func (e *Engine) getOrCreateList(sh *shard, key string) (*List, bool, error) {
	absent, _ := e.expireLocked(sh, key)
	if absent {
		ent := sh.createEntry(key, NewList(), 0)
		return ent.Value.List, true, nil
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindList}); err != nil {
		return nil, false, err
	}
	return ent.Value.List, false, nil
}

// Push implements LPUSH/RPUSH (and the NX-suffixed variants via
// requireExisting). left selects LPUSH vs RPUSH. A successful push
// notifies the blocking coordinator so any BLPOP/BRPOP waiter on key
// gets a chance to consume it (spec.md §4.7).
func (e *Engine) Push(db int, key string, left bool, requireExisting bool, values ...[]byte) (int, error) {
	sh := e.lock(db, key)

	absent, _ := e.expireLocked(sh, key)
	if absent && requireExisting {
		sh.mu.Unlock()
		return 0, nil
	}
	lst, created, err := e.getOrCreateList(sh, key)
	if err != nil {
		sh.mu.Unlock()
		return 0, err
	}
	for _, v := range values {
		if left {
			lst.PushLeft(v)
		} else {
			lst.PushRight(v)
		}
	}
	if !created {
		sh.bumpVersion(key)
	}
	n := lst.Len()
	sh.mu.Unlock()
	e.notify(db, key)
	return n, nil
}

// Pop implements LPOP/RPOP with an optional count, deleting the key when
// the list becomes empty.
func (e *Engine) Pop(db int, key string, left bool, count int) ([][]byte, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if absent {
		return nil, nil
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindList}); err != nil {
		return nil, err
	}
	lst := ent.Value.List
	var out [][]byte
	if left {
		out = lst.PopLeft(count)
	} else {
		out = lst.PopRight(count)
	}
	if lst.Len() == 0 {
		sh.deleteEntry(key)
	} else if len(out) > 0 {
		sh.bumpVersion(key)
	}
	return out, nil
}

// LLen returns the list length, or 0 if absent.
func (e *Engine) LLen(db int, key string) (int, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return 0, nil
	}
	if err := checkType(v, []Kind{KindList}); err != nil {
		return 0, err
	}
	return v.List.Len(), nil
}

// LIndex returns the element at index, or nil if out of range/absent.
func (e *Engine) LIndex(db int, key string, index int) ([]byte, bool, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return nil, false, nil
	}
	if err := checkType(v, []Kind{KindList}); err != nil {
		return nil, false, err
	}
	return v.List.Index(index)
}

// LSet overwrites the element at index.
func (e *Engine) LSet(db int, key string, index int, value []byte) error {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if absent {
		return ErrNoSuchKey
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindList}); err != nil {
		return err
	}
	if !ent.Value.List.Set(index, value) {
		return errIndexOutOfRange{}
	}
	sh.bumpVersion(key)
	return nil
}

type errIndexOutOfRange struct{}

func (errIndexOutOfRange) Error() string { return "ERR index out of range" }

// LRange returns a snapshot of [start, stop] inclusive (negative indices
// count from the end).
func (e *Engine) LRange(db int, key string, start, stop int) ([][]byte, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return nil, nil
	}
	if err := checkType(v, []Kind{KindList}); err != nil {
		return nil, err
	}
	return v.List.Range(start, stop), nil
}

// LTrim keeps only [start, stop], deleting the key if the result is empty.
func (e *Engine) LTrim(db int, key string, start, stop int) error {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if absent {
		return nil
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindList}); err != nil {
		return err
	}
	ent.Value.List.Trim(start, stop)
	if ent.Value.List.Len() == 0 {
		sh.deleteEntry(key)
	} else {
		sh.bumpVersion(key)
	}
	return nil
}

// LRem implements LREM, returning the number of elements removed.
func (e *Engine) LRem(db int, key string, count int, value []byte) (int, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if absent {
		return 0, nil
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindList}); err != nil {
		return 0, err
	}
	n := ent.Value.List.Remove(count, value)
	if ent.Value.List.Len() == 0 {
		sh.deleteEntry(key)
	} else if n > 0 {
		sh.bumpVersion(key)
	}
	return n, nil
}

// LInsert implements LINSERT BEFORE/AFTER, returning the new length, 0 if
// pivot not found, or -1 if the key is absent.
func (e *Engine) LInsert(db int, key string, before bool, pivot, value []byte) (int, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if absent {
		return -1, nil
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindList}); err != nil {
		return 0, err
	}
	var ok bool
	if before {
		ok = ent.Value.List.InsertBefore(pivot, value)
	} else {
		ok = ent.Value.List.InsertAfter(pivot, value)
	}
	if !ok {
		return 0, nil
	}
	sh.bumpVersion(key)
	return ent.Value.List.Len(), nil
}
