package store

import (
	"math"
	"sort"
)

// ZMember pairs a member with its score for range/rank query results.
type ZMember struct {
	Member []byte
	Score  float64
}

// SortedSet maintains a member->score map plus a score-ordered slice kept
// consistent with it at all times (spec.md §3 invariant 4). Ordering is
// (score ascending, member lexicographic ascending). A sorted slice with
// binary-search insertion is O(log n) to locate and O(n) to insert/delete;
// acceptable at the scale this server targets and far simpler than a
// skiplist while preserving identical externally observable ordering.
type SortedSet struct {
	scores map[string]float64
	order  []ZMember
}

func NewSortedSetData() *SortedSet {
	return &SortedSet{scores: make(map[string]float64)}
}

func (z *SortedSet) Len() int { return len(z.order) }

func (z *SortedSet) Score(member []byte) (float64, bool) {
	s, ok := z.scores[string(member)]
	return s, ok
}

func less(a ZMember, b ZMember) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return string(a.Member) < string(b.Member)
}

func (z *SortedSet) find(m ZMember) int {
	return sort.Search(len(z.order), func(i int) bool {
		return !less(z.order[i], m)
	})
}

// Add sets member's score, returns (isNew, changed).
func (z *SortedSet) Add(member []byte, score float64) (bool, bool) {
	key := string(member)
	old, existed := z.scores[key]
	if existed && old == score {
		return false, false
	}
	if existed {
		z.removeFromOrder(ZMember{Member: member, Score: old})
	}
	z.scores[key] = score
	z.insertOrder(ZMember{Member: append([]byte(nil), member...), Score: score})
	return !existed, true
}

func (z *SortedSet) insertOrder(m ZMember) {
	i := z.find(m)
	z.order = append(z.order, ZMember{})
	copy(z.order[i+1:], z.order[i:])
	z.order[i] = m
}

func (z *SortedSet) removeFromOrder(m ZMember) {
	i := z.find(m)
	for i < len(z.order) && (z.order[i].Score != m.Score || string(z.order[i].Member) != string(m.Member)) {
		i++
	}
	if i < len(z.order) {
		z.order = append(z.order[:i], z.order[i+1:]...)
	}
}

func (z *SortedSet) Remove(member []byte) bool {
	score, ok := z.scores[string(member)]
	if !ok {
		return false
	}
	delete(z.scores, string(member))
	z.removeFromOrder(ZMember{Member: member, Score: score})
	return true
}

// Rank returns the 0-based ascending rank of member, or -1 if absent.
func (z *SortedSet) Rank(member []byte) int {
	score, ok := z.scores[string(member)]
	if !ok {
		return -1
	}
	i := z.find(ZMember{Member: member, Score: score})
	for i < len(z.order) && string(z.order[i].Member) != string(member) {
		i++
	}
	return i
}

// RangeByRank returns members with rank in [start, stop] inclusive,
// Redis-style negative indices.
func (z *SortedSet) RangeByRank(start, stop int, rev bool) []ZMember {
	n := len(z.order)
	start = clampIndex(start, n)
	stop = clampIndex(stop, n)
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 || start >= n {
		return nil
	}
	out := make([]ZMember, stop-start+1)
	if rev {
		for i := range out {
			out[i] = z.order[n-1-(start+i)]
		}
	} else {
		copy(out, z.order[start:stop+1])
	}
	return out
}

// ScoreRange bounds a ZRANGEBYSCORE query; exclusive bounds use Go's math
// semantics (strict > / <).
type ScoreRange struct {
	Min, Max           float64
	MinExcl, MaxExcl   bool
}

func (z *SortedSet) RangeByScore(r ScoreRange, rev bool, offset, count int) []ZMember {
	var out []ZMember
	for _, m := range z.order {
		if !scoreInRange(m.Score, r) {
			continue
		}
		out = append(out, m)
	}
	if rev {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return paginate(out, offset, count)
}

func scoreInRange(score float64, r ScoreRange) bool {
	if r.MinExcl {
		if score <= r.Min {
			return false
		}
	} else if score < r.Min {
		return false
	}
	if r.MaxExcl {
		if score >= r.Max {
			return false
		}
	} else if score > r.Max {
		return false
	}
	return true
}

// LexRange bounds a ZRANGEBYLEX query. Open is "-"/"+"; Unbounded marks
// the open ends.
type LexRange struct {
	Min, Max                   []byte
	MinExcl, MaxExcl           bool
	MinUnbounded, MaxUnbounded bool
}

func (z *SortedSet) RangeByLex(r LexRange, rev bool, offset, count int) []ZMember {
	var out []ZMember
	for _, m := range z.order {
		if !lexInRange(m.Member, r) {
			continue
		}
		out = append(out, m)
	}
	if rev {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return paginate(out, offset, count)
}

func lexInRange(member []byte, r LexRange) bool {
	if !r.MinUnbounded {
		cmp := string(member) >= string(r.Min)
		if r.MinExcl {
			cmp = string(member) > string(r.Min)
		}
		if !cmp {
			return false
		}
	}
	if !r.MaxUnbounded {
		cmp := string(member) <= string(r.Max)
		if r.MaxExcl {
			cmp = string(member) < string(r.Max)
		}
		if !cmp {
			return false
		}
	}
	return true
}

func paginate(items []ZMember, offset, count int) []ZMember {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if count >= 0 && count < len(items) {
		items = items[:count]
	}
	return items
}

// ValidScore rejects NaN, per spec.md §3 and §8 boundary behaviors; +/-Inf
// are accepted.
func ValidScore(f float64) bool { return !math.IsNaN(f) }

func (z *SortedSet) estimateMemory() int64 {
	var n int64
	for k := range z.scores {
		n += int64(len(k)) + 40
	}
	return n
}
