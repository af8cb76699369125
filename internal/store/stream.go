package store

import (
	"sort"
)

// ID is a stream entry identifier: (ms, seq) ordered lexicographically,
// per spec.md §4.9.
type ID struct {
	MS  uint64
	Seq uint64
}

func (a ID) Less(b ID) bool {
	if a.MS != b.MS {
		return a.MS < b.MS
	}
	return a.Seq < b.Seq
}

func (a ID) Equal(b ID) bool { return a.MS == b.MS && a.Seq == b.Seq }

var (
	MinID = ID{0, 0}
	MaxID = ID{^uint64(0), ^uint64(0)}
)

// Field is an ordered field/value pair, preserving insertion order as
// spec.md §4.9 "Storage" requires.
type Field struct {
	Key, Value []byte
}

// Entry is one appended record.
type Entry struct {
	ID     ID
	Fields []Field
}

// PelEntry records one pending (delivered, unacknowledged) entry for a
// consumer group.
type PelEntry struct {
	Consumer      string
	DeliveryTime  int64 // unix ms
	Deliveries    int64
}

// Consumer tracks a named reader within a group.
type Consumer struct {
	Name      string
	SeenTime  int64
	ActiveTime int64
	Pending   map[ID]struct{}
}

// Group is a named cursor over a stream shared by many consumers with
// at-least-once delivery via the PEL (spec.md §4.9, Glossary).
type Group struct {
	Name             string
	LastDelivered    ID
	Consumers        map[string]*Consumer
	Pel              map[ID]*PelEntry
	EntriesRead      int64
}

func NewGroup(name string, start ID) *Group {
	return &Group{
		Name:          name,
		LastDelivered: start,
		Consumers:     make(map[string]*Consumer),
		Pel:           make(map[ID]*PelEntry),
	}
}

func (g *Group) consumer(name string) *Consumer {
	c, ok := g.Consumers[name]
	if !ok {
		c = &Consumer{Name: name, Pending: make(map[ID]struct{})}
		g.Consumers[name] = c
	}
	return c
}

// Stream is an append-only per-key log with monotonic IDs and consumer
// groups (spec.md §3, §4.9). Entries are kept in a sorted slice; a
// production implementation would partition into a b-tree once large, but
// this is the simplest structure that preserves the exact ordering and
// range-query contract the spec tests.
type Stream struct {
	Entries []Entry
	LastID  ID
	MaxDeletedID ID
	EntriesAdded int64
	Groups  map[string]*Group
}

func NewStream() *Stream {
	return &Stream{Groups: make(map[string]*Group)}
}

func (s *Stream) Len() int { return len(s.Entries) }

// Append inserts an entry, which must already have been validated as
// strictly greater than LastID by the caller (internal/stream owns ID
// allocation policy).
func (s *Stream) Append(e Entry) {
	s.Entries = append(s.Entries, e)
	s.LastID = e.ID
	s.EntriesAdded++
}

// indexOf returns the position of id within Entries, or the insertion
// point (sort.Search semantics) plus false.
func (s *Stream) indexOf(id ID) (int, bool) {
	i := sort.Search(len(s.Entries), func(i int) bool {
		return !s.Entries[i].ID.Less(id)
	})
	if i < len(s.Entries) && s.Entries[i].ID.Equal(id) {
		return i, true
	}
	return i, false
}

func (s *Stream) Get(id ID) (Entry, bool) {
	i, ok := s.indexOf(id)
	if !ok {
		return Entry{}, false
	}
	return s.Entries[i], true
}

// Delete removes entries by id (XDEL); the PEL is intentionally left
// untouched (spec.md §3 invariant 6 — "PEL survives XDEL").
func (s *Stream) Delete(ids ...ID) int {
	removed := 0
	for _, id := range ids {
		i, ok := s.indexOf(id)
		if !ok {
			continue
		}
		s.Entries = append(s.Entries[:i], s.Entries[i+1:]...)
		if id.MS > s.MaxDeletedID.MS || (id.MS == s.MaxDeletedID.MS && id.Seq > s.MaxDeletedID.Seq) {
			s.MaxDeletedID = id
		}
		removed++
	}
	return removed
}

// Range returns entries with id in [from, to] inclusive, in ascending
// order, limited to count (0 = unlimited).
func (s *Stream) Range(from, to ID, count int) []Entry {
	start, _ := s.indexOf(from)
	var out []Entry
	for i := start; i < len(s.Entries); i++ {
		if to.Less(s.Entries[i].ID) {
			break
		}
		out = append(out, s.Entries[i])
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}

// RevRange returns entries with id in [from, to] inclusive in descending
// order (to >= from expected, as with XREVRANGE's end/start arguments).
func (s *Stream) RevRange(to, from ID, count int) []Entry {
	var out []Entry
	for i := len(s.Entries) - 1; i >= 0; i-- {
		id := s.Entries[i].ID
		if id.Less(from) {
			break
		}
		if to.Less(id) {
			continue
		}
		out = append(out, s.Entries[i])
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}

// TrimMaxLen keeps at most maxLen most recent entries, returns removed
// count. Approximate trimming (the "~" form) is handled by the caller
// choosing a looser maxLen; both forms funnel through this exact trim.
func (s *Stream) TrimMaxLen(maxLen int) int {
	if len(s.Entries) <= maxLen {
		return 0
	}
	removed := len(s.Entries) - maxLen
	for i := 0; i < removed; i++ {
		id := s.Entries[i].ID
		if id.MS > s.MaxDeletedID.MS || (id.MS == s.MaxDeletedID.MS && id.Seq > s.MaxDeletedID.Seq) {
			s.MaxDeletedID = id
		}
	}
	s.Entries = append([]Entry{}, s.Entries[removed:]...)
	return removed
}

// TrimMinID removes entries with id < minID.
func (s *Stream) TrimMinID(minID ID) int {
	i, _ := s.indexOf(minID)
	if i == 0 {
		return 0
	}
	for j := 0; j < i; j++ {
		id := s.Entries[j].ID
		if id.MS > s.MaxDeletedID.MS || (id.MS == s.MaxDeletedID.MS && id.Seq > s.MaxDeletedID.Seq) {
			s.MaxDeletedID = id
		}
	}
	s.Entries = append([]Entry{}, s.Entries[i:]...)
	return i
}

func (s *Stream) estimateMemory() int64 {
	var n int64
	for _, e := range s.Entries {
		n += 24
		for _, f := range e.Fields {
			n += int64(len(f.Key) + len(f.Value))
		}
	}
	return n
}
