package store

// List is an ordered sequence of byte buffers backed by a slice deque.
// Real Redis uses a quicklist of ziplists; a plain slice is sufficient
// here and the push/pop/range semantics are what spec.md actually tests.
type List struct {
	items [][]byte
}

func NewListData() *List { return &List{} }

func (l *List) Len() int { return len(l.items) }

func (l *List) PushLeft(vals ...[]byte) {
	buf := make([][]byte, 0, len(l.items)+len(vals))
	for i := len(vals) - 1; i >= 0; i-- {
		buf = append(buf, vals[i])
	}
	l.items = append(buf, l.items...)
}

func (l *List) PushRight(vals ...[]byte) {
	l.items = append(l.items, vals...)
}

func (l *List) PopLeft(count int) [][]byte {
	if count > len(l.items) {
		count = len(l.items)
	}
	out := l.items[:count:count]
	l.items = l.items[count:]
	return out
}

func (l *List) PopRight(count int) [][]byte {
	if count > len(l.items) {
		count = len(l.items)
	}
	n := len(l.items)
	out := make([][]byte, count)
	for i := 0; i < count; i++ {
		out[i] = l.items[n-1-i]
	}
	l.items = l.items[:n-count]
	return out
}

// Index returns the element at a possibly-negative index, or nil, false
// if out of range.
func (l *List) Index(i int) ([]byte, bool) {
	idx := l.resolve(i)
	if idx < 0 || idx >= len(l.items) {
		return nil, false
	}
	return l.items[idx], true
}

func (l *List) Set(i int, val []byte) bool {
	idx := l.resolve(i)
	if idx < 0 || idx >= len(l.items) {
		return false
	}
	l.items[idx] = val
	return true
}

func (l *List) resolve(i int) int {
	if i < 0 {
		return len(l.items) + i
	}
	return i
}

// Range returns items in [start, stop] inclusive, Redis-style negative
// indices and clamping.
func (l *List) Range(start, stop int) [][]byte {
	n := len(l.items)
	start = clampIndex(start, n)
	stop = clampIndex(stop, n)
	if start > stop || start >= n || n == 0 {
		return [][]byte{}
	}
	if stop >= n {
		stop = n - 1
	}
	out := make([][]byte, stop-start+1)
	copy(out, l.items[start:stop+1])
	return out
}

func clampIndex(i, n int) int {
	if i < 0 {
		i = n + i
		if i < 0 {
			i = 0
		}
	}
	return i
}

// Trim keeps only [start, stop] inclusive.
func (l *List) Trim(start, stop int) {
	n := len(l.items)
	start = clampIndex(start, n)
	stop = clampIndex(stop, n)
	if stop >= n {
		stop = n - 1
	}
	if start > stop || n == 0 {
		l.items = l.items[:0]
		return
	}
	l.items = append([][]byte{}, l.items[start:stop+1]...)
}

// Remove deletes up to count occurrences equal to val. count > 0 scans
// head to tail, count < 0 scans tail to head, count == 0 removes all.
func (l *List) Remove(count int, val []byte) int {
	removed := 0
	eq := func(b []byte) bool { return string(b) == string(val) }
	if count >= 0 {
		out := l.items[:0:0]
		limit := count
		for _, item := range l.items {
			if (limit > 0 || count == 0) && eq(item) {
				removed++
				if limit > 0 {
					limit--
				}
				continue
			}
			out = append(out, item)
		}
		l.items = out
		return removed
	}
	limit := -count
	out := make([][]byte, 0, len(l.items))
	for i := len(l.items) - 1; i >= 0; i-- {
		item := l.items[i]
		if limit > 0 && eq(item) {
			removed++
			limit--
			continue
		}
		out = append(out, item)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	l.items = out
	return removed
}

// InsertBefore/InsertAfter support LINSERT; ok is false if pivot not found.
func (l *List) InsertBefore(pivot, val []byte) bool { return l.insert(pivot, val, 0) }
func (l *List) InsertAfter(pivot, val []byte) bool  { return l.insert(pivot, val, 1) }

func (l *List) insert(pivot, val []byte, offset int) bool {
	for i, item := range l.items {
		if string(item) == string(pivot) {
			pos := i + offset
			l.items = append(l.items[:pos], append([][]byte{val}, l.items[pos:]...)...)
			return true
		}
	}
	return false
}

func (l *List) estimateMemory() int64 {
	var n int64
	for _, it := range l.items {
		n += int64(len(it)) + 16
	}
	return n
}
