package store

// ZAddFlags controls NX/XX/GT/LT/CH/INCR modifiers (spec.md §4.1 ZADD).
type ZAddFlags struct {
	NX, XX bool
	GT, LT bool
	Ch     bool // report changed count instead of added count
	Incr   bool // ZADD INCR: single member/score, returns the new score
}

// ZAdd implements ZADD, returning (reported count, error). reported
// follows CH: added count normally, added+updated count when Ch is set.
// Scores are validated up front so a NaN in any member leaves the store
// untouched (spec.md §3/§8 "NaN disallowed").
func (e *Engine) ZAdd(db int, key string, flags ZAddFlags, members [][]byte, scores []float64) (int, error) {
	for _, s := range scores {
		if !ValidScore(s) {
			return 0, notAFloatError{}
		}
	}

	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var z *SortedSet
	if absent {
		ent := sh.createEntry(key, NewZSet(), 0)
		z = ent.Value.ZSet
	} else {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindSortedSet}); err != nil {
			return 0, err
		}
		z = ent.Value.ZSet
	}

	added, changed := 0, 0
	for i, m := range members {
		score := scores[i]
		cur, exists := z.Score(m)
		if flags.NX && exists {
			continue
		}
		if flags.XX && !exists {
			continue
		}
		if exists && flags.GT && score <= cur {
			continue
		}
		if exists && flags.LT && score >= cur {
			continue
		}
		isNew, didChange := z.Add(m, score)
		if isNew {
			added++
		}
		if didChange {
			changed++
		}
	}
	if absent {
		if z.Len() == 0 {
			sh.deleteEntry(key)
		}
	} else if changed > 0 {
		sh.bumpVersion(key)
	}
	if flags.Ch {
		return changed, nil
	}
	return added, nil
}

// ZAddIncr implements ZADD's INCR form: it adds delta to member's current
// score (or delta itself if member is absent), honoring NX/XX/GT/LT the
// same way ZAdd does. ok is false when a flag suppresses the update, in
// which case the reply is the nil bulk string rather than a score.
func (e *Engine) ZAddIncr(db int, key string, flags ZAddFlags, member []byte, delta float64) (score float64, ok bool, err error) {
	if !ValidScore(delta) {
		return 0, false, notAFloatError{}
	}

	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var z *SortedSet
	if absent {
		ent := sh.createEntry(key, NewZSet(), 0)
		z = ent.Value.ZSet
	} else {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindSortedSet}); err != nil {
			return 0, false, err
		}
		z = ent.Value.ZSet
	}

	cur, exists := z.Score(member)
	if flags.NX && exists {
		ok = false
	} else if flags.XX && !exists {
		ok = false
	} else {
		next := cur + delta
		if exists && flags.GT && next <= cur {
			ok = false
		} else if exists && flags.LT && next >= cur {
			ok = false
		} else if !ValidScore(next) {
			if absent && z.Len() == 0 {
				sh.deleteEntry(key)
			}
			return 0, false, notAFloatError{}
		} else {
			z.Add(member, next)
			if !absent {
				sh.bumpVersion(key)
			}
			score, ok = next, true
		}
	}

	if absent && z.Len() == 0 {
		sh.deleteEntry(key)
	}
	return score, ok, nil
}

// ZRem removes members, deleting key if it becomes empty.
func (e *Engine) ZRem(db int, key string, members ...[]byte) (int, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	if absent {
		return 0, nil
	}
	ent := sh.entries[key]
	if err := checkType(ent.Value, []Kind{KindSortedSet}); err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range members {
		if ent.Value.ZSet.Remove(m) {
			removed++
		}
	}
	if ent.Value.ZSet.Len() == 0 {
		sh.deleteEntry(key)
	} else if removed > 0 {
		sh.bumpVersion(key)
	}
	return removed, nil
}

// ZScore returns member's score, ok=false if absent.
func (e *Engine) ZScore(db int, key string, member []byte) (float64, bool, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return 0, false, nil
	}
	if err := checkType(v, []Kind{KindSortedSet}); err != nil {
		return 0, false, err
	}
	score, ok := v.ZSet.Score(member)
	return score, ok, nil
}

// ZCard returns the set's cardinality, 0 if absent.
func (e *Engine) ZCard(db int, key string) (int, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return 0, nil
	}
	if err := checkType(v, []Kind{KindSortedSet}); err != nil {
		return 0, err
	}
	return v.ZSet.Len(), nil
}

// ZRank returns member's 0-based rank, ok=false if absent. rev requests
// descending rank (ZREVRANK).
func (e *Engine) ZRank(db int, key string, member []byte, rev bool) (int, bool, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return 0, false, nil
	}
	if err := checkType(v, []Kind{KindSortedSet}); err != nil {
		return 0, false, err
	}
	r := v.ZSet.Rank(member)
	if r < 0 {
		return 0, false, nil
	}
	if rev {
		r = v.ZSet.Len() - 1 - r
	}
	return r, true, nil
}

// ZRangeByRank implements ZRANGE/ZREVRANGE.
func (e *Engine) ZRangeByRank(db int, key string, start, stop int, rev bool) ([]ZMember, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return nil, nil
	}
	if err := checkType(v, []Kind{KindSortedSet}); err != nil {
		return nil, err
	}
	return v.ZSet.RangeByRank(start, stop, rev), nil
}

// ZRangeByScore implements ZRANGEBYSCORE/ZREVRANGEBYSCORE.
func (e *Engine) ZRangeByScore(db int, key string, r ScoreRange, rev bool, offset, count int) ([]ZMember, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return nil, nil
	}
	if err := checkType(v, []Kind{KindSortedSet}); err != nil {
		return nil, err
	}
	return v.ZSet.RangeByScore(r, rev, offset, count), nil
}

// ZRangeByLex implements ZRANGEBYLEX/ZREVRANGEBYLEX.
func (e *Engine) ZRangeByLex(db int, key string, r LexRange, rev bool, offset, count int) ([]ZMember, error) {
	v, ok := e.Get(db, key)
	if !ok {
		return nil, nil
	}
	if err := checkType(v, []Kind{KindSortedSet}); err != nil {
		return nil, err
	}
	return v.ZSet.RangeByLex(r, rev, offset, count), nil
}

// ZCount counts members within a score range.
func (e *Engine) ZCount(db int, key string, r ScoreRange) (int, error) {
	members, err := e.ZRangeByScore(db, key, r, false, 0, -1)
	if err != nil {
		return 0, err
	}
	return len(members), nil
}

// ZIncrBy implements ZINCRBY, creating the key/member if absent.
func (e *Engine) ZIncrBy(db int, key string, member []byte, delta float64) (float64, error) {
	sh := e.lock(db, key)
	defer sh.mu.Unlock()

	absent, _ := e.expireLocked(sh, key)
	var z *SortedSet
	if absent {
		ent := sh.createEntry(key, NewZSet(), 0)
		z = ent.Value.ZSet
	} else {
		ent := sh.entries[key]
		if err := checkType(ent.Value, []Kind{KindSortedSet}); err != nil {
			return 0, err
		}
		z = ent.Value.ZSet
	}
	cur, _ := z.Score(member)
	next := cur + delta
	if !ValidScore(next) {
		return 0, notAFloatError{}
	}
	z.Add(member, next)
	if !absent {
		sh.bumpVersion(key)
	}
	return next, nil
}
