package store

// Hash maps field names to values; insertion order is not significant
// per spec.md §3.
type Hash struct {
	m map[string][]byte
}

func NewHashData() *Hash { return &Hash{m: make(map[string][]byte)} }

// Set returns true if the field was newly created.
func (h *Hash) Set(field, val []byte) bool {
	_, existed := h.m[string(field)]
	h.m[string(field)] = val
	return !existed
}

func (h *Hash) Get(field []byte) ([]byte, bool) {
	v, ok := h.m[string(field)]
	return v, ok
}

func (h *Hash) Del(fields ...[]byte) int {
	removed := 0
	for _, f := range fields {
		if _, ok := h.m[string(f)]; ok {
			delete(h.m, string(f))
			removed++
		}
	}
	return removed
}

func (h *Hash) Len() int { return len(h.m) }

func (h *Hash) Fields() [][]byte {
	out := make([][]byte, 0, len(h.m))
	for k := range h.m {
		out = append(out, []byte(k))
	}
	return out
}

func (h *Hash) All() map[string][]byte { return h.m }

func (h *Hash) estimateMemory() int64 {
	var n int64
	for k, v := range h.m {
		n += int64(len(k)+len(v)) + 32
	}
	return n
}
