package store

import "container/heap"

// ttlItem is one entry in a shard's TTL min-heap, ordered by ExpiresAt.
type ttlItem struct {
	key       string
	expiresAt int64
}

type ttlHeap []*ttlItem

func (h ttlHeap) Len() int            { return len(h) }
func (h ttlHeap) Less(i, j int) bool  { return h[i].expiresAt < h[j].expiresAt }
func (h ttlHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *ttlHeap) Push(x interface{}) { *h = append(*h, x.(*ttlItem)) }
func (h *ttlHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ttlIndex wraps the heap with key lookup so entries can be invalidated
// (TTL cleared or key overwritten) without a full rescan.
type ttlIndex struct {
	h     ttlHeap
	byKey map[string]*ttlItem
}

func newTTLIndex() *ttlIndex {
	return &ttlIndex{byKey: make(map[string]*ttlItem)}
}

func (t *ttlIndex) set(key string, expiresAt int64) {
	t.clear(key)
	item := &ttlItem{key: key, expiresAt: expiresAt}
	t.byKey[key] = item
	heap.Push(&t.h, item)
}

func (t *ttlIndex) clear(key string) {
	old, ok := t.byKey[key]
	if !ok {
		return
	}
	delete(t.byKey, key)
	old.expiresAt = -1 // lazily skipped when popped; avoids O(n) heap removal
}

// peek returns the earliest-expiring still-valid item, or nil.
func (t *ttlIndex) peek(now int64) (string, bool) {
	for len(t.h) > 0 {
		top := t.h[0]
		if cur, ok := t.byKey[top.key]; !ok || cur != top {
			heap.Pop(&t.h)
			continue
		}
		if top.expiresAt > now {
			return "", false
		}
		return top.key, true
	}
	return "", false
}

func (t *ttlIndex) popExpired(now int64) (string, bool) {
	key, ok := t.peek(now)
	if !ok {
		return "", false
	}
	heap.Pop(&t.h)
	delete(t.byKey, key)
	return key, true
}
