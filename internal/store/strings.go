package store

import "strconv"

// SetKey implements the generic SET with NX/XX/EX/PX/KEEPTTL semantics
// (spec.md §4.3, the SET family in §4.1). It is kind-agnostic: the caller
// supplies the fully-built Value, so SET and the Lua path share this one
// code path (GETSET goes through Engine.GetSet instead).
func (e *Engine) SetKey(db int, key string, v *Value, opts SetOptions) (stored bool, old *Value) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if opts.Existence == OnlyIfAbsent && !absent {
		return false, sh.entries[key].Value
	}
	if opts.Existence == OnlyIfPresent && absent {
		return false, nil
	}

	var expiresAt int64
	if !absent {
		old = sh.entries[key].Value
		switch opts.TTLPolicy {
		case KeepExisting:
			expiresAt = sh.entries[key].ExpiresAt
		case SetAbsolute:
			expiresAt = opts.ExpiresAt
		case ClearTTL:
			expiresAt = 0
		}
		sh.deleteEntry(key)
	} else if opts.TTLPolicy == SetAbsolute {
		expiresAt = opts.ExpiresAt
	}

	ent := sh.createEntry(key, v, expiresAt)
	if ent.HasTTL() {
		sh.ttl.set(key, ent.ExpiresAt)
	}
	sh.touch(key)
	return true, old
}

// GetSet implements GETSET/GETDEL-style swap: read the old string value
// (or absent) and install a new one, clearing any TTL.
func (e *Engine) GetSet(db int, key string, newVal []byte) (old []byte, existed bool, err error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if !absent {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindString}); err != nil {
			return nil, false, err
		}
		old = ent.Value.Str
		existed = true
		sh.deleteEntry(key)
	}
	sh.createEntry(key, NewString(newVal), 0)
	sh.touch(key)
	return old, existed, nil
}

// Append implements APPEND: create-if-absent, otherwise concatenate,
// returning the resulting length.
func (e *Engine) Append(db int, key string, suffix []byte) (int, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if absent {
		sh.createEntry(key, NewString(append([]byte(nil), suffix...)), 0)
		sh.touch(key)
		return len(suffix), nil
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindString}); err != nil {
		return 0, err
	}
	ent.Value.Str = append(ent.Value.Str, suffix...)
	sh.bumpVersion(key)
	sh.touch(key)
	return len(ent.Value.Str), nil
}

// StrLen returns len(value) for a string key, or 0 if absent.
func (e *Engine) StrLen(db int, key string) (int, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return 0, nil
	}
	if err := checkType(v, []Kind{KindString}); err != nil {
		return 0, err
	}
	return len(v.Str), nil
}

// GetRange implements GETRANGE, clamping out-of-bounds indices like
// Redis's list-index semantics (negative counts from the end).
func (e *Engine) GetRange(db int, key string, start, end int) ([]byte, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return nil, nil
	}
	if err := checkType(v, []Kind{KindString}); err != nil {
		return nil, err
	}
	n := len(v.Str)
	if n == 0 {
		return nil, nil
	}
	start = clampStrIndex(start, n)
	end = clampStrIndex(end, n)
	if start > end || start >= n {
		return nil, nil
	}
	if end >= n {
		end = n - 1
	}
	out := make([]byte, end-start+1)
	copy(out, v.Str[start:end+1])
	return out, nil
}

func clampStrIndex(i, n int) int {
	if i < 0 {
		i += n
		if i < 0 {
			i = 0
		}
	}
	return i
}

// SetRange implements SETRANGE: writes value at offset, zero-padding any
// gap, creating the key if absent.
func (e *Engine) SetRange(db int, key string, offset int, value []byte) (int, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var cur []byte
	var ttl int64
	if !absent {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindString}); err != nil {
			return 0, err
		}
		cur = ent.Value.Str
		ttl = ent.ExpiresAt
	}
	if len(value) == 0 {
		if absent {
			return 0, nil
		}
		return len(cur), nil
	}
	needed := offset + len(value)
	if needed > len(cur) {
		grown := make([]byte, needed)
		copy(grown, cur)
		cur = grown
	}
	copy(cur[offset:], value)

	if !absent {
		sh.deleteEntry(key)
	}
	ent := sh.createEntry(key, NewString(cur), ttl)
	if ent.HasTTL() {
		sh.ttl.set(key, ttl)
	}
	sh.touch(key)
	return len(cur), nil
}

// IncrBy implements INCR/INCRBY/DECR/DECRBY: the stored value must parse
// as a base-10 int64, or the key must be absent (treated as 0).
func (e *Engine) IncrBy(db int, key string, delta int64) (int64, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var cur int64
	var ttl int64
	if !absent {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindString}); err != nil {
			return 0, err
		}
		n, err := strconv.ParseInt(string(ent.Value.Str), 10, 64)
		if err != nil {
			return 0, notAnIntegerError{}
		}
		cur = n
		ttl = ent.ExpiresAt
	}

	next := cur + delta
	if (delta > 0 && next < cur) || (delta < 0 && next > cur) {
		return 0, incrOverflowError{}
	}

	if !absent {
		sh.deleteEntry(key)
	}
	ent := sh.createEntry(key, NewString([]byte(strconv.FormatInt(next, 10))), ttl)
	if ent.HasTTL() {
		sh.ttl.set(key, ttl)
	}
	sh.touch(key)
	return next, nil
}

// IncrByFloat implements INCRBYFLOAT.
func (e *Engine) IncrByFloat(db int, key string, delta float64) (float64, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var cur float64
	var ttl int64
	if !absent {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindString}); err != nil {
			return 0, err
		}
		f, err := strconv.ParseFloat(string(ent.Value.Str), 64)
		if err != nil {
			return 0, notAFloatError{}
		}
		cur = f
		ttl = ent.ExpiresAt
	}

	next := cur + delta
	if !ValidScore(next) {
		return 0, notAFloatError{}
	}

	if !absent {
		sh.deleteEntry(key)
	}
	formatted := strconv.FormatFloat(next, 'f', -1, 64)
	ent := sh.createEntry(key, NewString([]byte(formatted)), ttl)
	if ent.HasTTL() {
		sh.ttl.set(key, ttl)
	}
	sh.touch(key)
	return next, nil
}

type notAnIntegerError struct{}

func (notAnIntegerError) Error() string {
	return "ERR value is not an integer or out of range"
}

type incrOverflowError struct{}

func (incrOverflowError) Error() string {
	return "ERR increment or decrement would overflow"
}

type notAFloatError struct{}

func (notAFloatError) Error() string {
	return "ERR value is not a valid float"
}
