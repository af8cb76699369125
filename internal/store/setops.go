package store

// SAdd implements SADD, returning the number of newly added members.
func (e *Engine) SAdd(db int, key string, members ...[]byte) (int, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var set *Set
	if absent {
		ent := sh.createEntry(key, NewSet(), 0)
		set = ent.Value.Set
	} else {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindSet}); err != nil {
			return 0, err
		}
		set = ent.Value.Set
	}
	added := set.Add(members...)
	if !absent && added > 0 {
		sh.bumpVersion(key)
	}
	return added, nil
}

// SRem implements SREM, deleting the key when it becomes empty.
func (e *Engine) SRem(db int, key string, members ...[]byte) (int, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if absent {
		return 0, nil
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindSet}); err != nil {
		return 0, err
	}
	removed := ent.Value.Set.Remove(members...)
	if ent.Value.Set.Len() == 0 {
		sh.deleteEntry(key)
	} else if removed > 0 {
		sh.bumpVersion(key)
	}
	return removed, nil
}

// SMembers returns every member of key, or nil if absent.
func (e *Engine) SMembers(db int, key string) ([][]byte, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return nil, nil
	}
	if err := checkType(v, []Kind{KindSet}); err != nil {
		return nil, err
	}
	return v.Set.Members(), nil
}

// SIsMember reports whether member is in key's set.
func (e *Engine) SIsMember(db int, key string, member []byte) (bool, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return false, nil
	}
	if err := checkType(v, []Kind{KindSet}); err != nil {
		return false, err
	}
	return v.Set.Has(member), nil
}

// SCard returns the set's cardinality, 0 if absent.
func (e *Engine) SCard(db int, key string) (int, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return 0, nil
	}
	if err := checkType(v, []Kind{KindSet}); err != nil {
		return 0, err
	}
	return v.Set.Len(), nil
}

// setsFor loads multiple keys as sets for SUNION/SINTER/SDIFF, treating
// absent keys as the empty set.
func (e *Engine) setsFor(db int, keys []string) ([]*Set, error) {
	sets := make([]*Set, 0, len(keys))
	for _, k := range keys {
		v, ok := e.Get(db, k)
		if !ok {
			sets = append(sets, NewSetData())
			continue
		}
		if err := checkType(v, []Kind{KindSet}); err != nil {
			return nil, err
		}
		sets = append(sets, v.Set)
	}
	return sets, nil
}

func (e *Engine) SUnion(db int, keys []string) ([][]byte, error) {
	sets, err := e.setsFor(db, keys)
	if err != nil {
		return nil, err
	}
	return Union(sets...).Members(), nil
}

func (e *Engine) SInter(db int, keys []string) ([][]byte, error) {
	sets, err := e.setsFor(db, keys)
	if err != nil {
		return nil, err
	}
	return Inter(sets...).Members(), nil
}

func (e *Engine) SDiff(db int, keys []string) ([][]byte, error) {
	sets, err := e.setsFor(db, keys)
	if err != nil {
		return nil, err
	}
	return Diff(sets...).Members(), nil
}

// storeSetResult writes the result of a SUNIONSTORE/SINTERSTORE/SDIFFSTORE
// into dest, deleting dest if the result is empty (matches real Redis).
func (e *Engine) storeSetResult(db int, dest string, members [][]byte) int {
	sh := e.lock(db, dest)
	defer sh.mu.Unlock()

	e.expireLocked(sh, dest)
	if _, ok := sh.entries[dest]; ok {
		sh.deleteEntry(dest)
	}
	if len(members) == 0 {
		return 0
	}
	set := NewSetData()
	set.Add(members...)
	sh.createEntry(dest, &Value{Kind: KindSet, Set: set}, 0)
	return set.Len()
}

func (e *Engine) SUnionStore(db int, dest string, keys []string) (int, error) {
	members, err := e.SUnion(db, keys)
	if err != nil {
		return 0, err
	}
	return e.storeSetResult(db, dest, members), nil
}

func (e *Engine) SInterStore(db int, dest string, keys []string) (int, error) {
	members, err := e.SInter(db, keys)
	if err != nil {
		return 0, err
	}
	return e.storeSetResult(db, dest, members), nil
}

func (e *Engine) SDiffStore(db int, dest string, keys []string) (int, error) {
	members, err := e.SDiff(db, keys)
	if err != nil {
		return 0, err
	}
	return e.storeSetResult(db, dest, members), nil
}
