package store

import "strconv"

// HSet implements HSET/HMSET, returning the number of fields newly
// created (existing fields that are merely overwritten don't count).
func (e *Engine) HSet(db int, key string, fields, values [][]byte) (int, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var h *Hash
	if absent {
		ent := sh.createEntry(key, NewHash(), 0)
		h = ent.Value.Hash
	} else {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindHash}); err != nil {
			return 0, err
		}
		h = ent.Value.Hash
	}
	created := 0
	for i := range fields {
		if h.Set(fields[i], values[i]) {
			created++
		}
	}
	if !absent {
		sh.bumpVersion(key)
	}
	return created, nil
}

// HSetNX sets field only if it doesn't already exist.
func (e *Engine) HSetNX(db int, key string, field, value []byte) (bool, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var h *Hash
	if absent {
		ent := sh.createEntry(key, NewHash(), 0)
		h = ent.Value.Hash
	} else {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindHash}); err != nil {
			return false, err
		}
		h = ent.Value.Hash
	}
	if _, ok := h.Get(field); ok {
		return false, nil
	}
	h.Set(field, value)
	if !absent {
		sh.bumpVersion(key)
	}
	return true, nil
}

// HGet returns a field's value, ok=false if key or field is absent.
func (e *Engine) HGet(db int, key string, field []byte) ([]byte, bool, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return nil, false, nil
	}
	if err := checkType(v, []Kind{KindHash}); err != nil {
		return nil, false, err
	}
	val, ok := v.Hash.Get(field)
	return val, ok, nil
}

// HDel removes fields, deleting key if it becomes empty.
func (e *Engine) HDel(db int, key string, fields ...[]byte) (int, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if absent {
		return 0, nil
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindHash}); err != nil {
		return 0, err
	}
	removed := ent.Value.Hash.Del(fields...)
	if ent.Value.Hash.Len() == 0 {
		sh.deleteEntry(key)
	} else if removed > 0 {
		sh.bumpVersion(key)
	}
	return removed, nil
}

// HGetAll returns every field/value pair, nil if absent.
func (e *Engine) HGetAll(db int, key string) (map[string][]byte, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return nil, nil
	}
	if err := checkType(v, []Kind{KindHash}); err != nil {
		return nil, err
	}
	return v.Hash.All(), nil
}

// HLen returns the field count, 0 if absent.
func (e *Engine) HLen(db int, key string) (int, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return 0, nil
	}
	if err := checkType(v, []Kind{KindHash}); err != nil {
		return 0, err
	}
	return v.Hash.Len(), nil
}

// HExists reports whether field is present in key.
func (e *Engine) HExists(db int, key string, field []byte) (bool, error) {
	_, ok, err := e.HGet(db, key, field)
	return ok, err
}

// HIncrBy implements HINCRBY.
func (e *Engine) HIncrBy(db int, key string, field []byte, delta int64) (int64, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var h *Hash
	if absent {
		ent := sh.createEntry(key, NewHash(), 0)
		h = ent.Value.Hash
	} else {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindHash}); err != nil {
			return 0, err
		}
		h = ent.Value.Hash
	}
	var cur int64
	if raw, ok := h.Get(field); ok {
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return 0, notAnIntegerError{}
		}
		cur = n
	}
	next := cur + delta
	h.Set(field, []byte(strconv.FormatInt(next, 10)))
	if !absent {
		sh.bumpVersion(key)
	}
	return next, nil
}

// HIncrByFloat implements HINCRBYFLOAT.
func (e *Engine) HIncrByFloat(db int, key string, field []byte, delta float64) (float64, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var h *Hash
	if absent {
		ent := sh.createEntry(key, NewHash(), 0)
		h = ent.Value.Hash
	} else {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindHash}); err != nil {
			return 0, err
		}
		h = ent.Value.Hash
	}
	var cur float64
	if raw, ok := h.Get(field); ok {
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return 0, notAFloatError{}
		}
		cur = f
	}
	next := cur + delta
	if !ValidScore(next) {
		return 0, notAFloatError{}
	}
	h.Set(field, []byte(strconv.FormatFloat(next, 'f', -1, 64)))
	if !absent {
		sh.bumpVersion(key)
	}
	return next, nil
}
