// Package store implements the sharded, typed keyspace described in
// spec.md §3-§4.3: per-shard locks, TTL tracking, and WATCH-key
// versioning, shared identically by the wire command path and the Lua
// sandbox.
package store

// Kind tags which variant a Value holds. A key has exactly one Kind for
// its lifetime until overwritten or deleted (spec.md §3 invariant 1).
type Kind int

const (
	KindString Kind = iota
	KindList
	KindSet
	KindHash
	KindSortedSet
	KindStream
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindHash:
		return "hash"
	case KindSortedSet:
		return "zset"
	case KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Value is the tagged union stored per key. Only the field matching Kind
// is meaningful.
type Value struct {
	Kind   Kind
	Str    []byte
	List   *List
	Set    *Set
	Hash   *Hash
	ZSet   *SortedSet
	Stream *Stream
}

// NewString, NewList, ... construct zero-valued Values of each kind.
func NewString(b []byte) *Value { return &Value{Kind: KindString, Str: b} }
func NewList() *Value           { return &Value{Kind: KindList, List: NewListData()} }
func NewSet() *Value            { return &Value{Kind: KindSet, Set: NewSetData()} }
func NewHash() *Value           { return &Value{Kind: KindHash, Hash: NewHashData()} }
func NewZSet() *Value           { return &Value{Kind: KindSortedSet, ZSet: NewSortedSetData()} }
func NewStreamValue() *Value    { return &Value{Kind: KindStream, Stream: NewStream()} }

// WrongTypeError is a first-class, non-fatal error (spec.md §4.3): it
// never closes the connection, it is returned as a RESP error.
type WrongTypeError struct {
	Have, Want Kind
}

func (e *WrongTypeError) Error() string {
	return "WRONGTYPE Operation against a key holding the wrong kind of value"
}

// EstimateMemory gives a rough byte estimate for MEMORY USAGE (§4.11 L).
// It is intentionally approximate: a real accounting allocator is out of
// scope (the spec names MEMORY USAGE as an "estimator").
func (v *Value) EstimateMemory() int64 {
	const overhead = 48
	switch v.Kind {
	case KindString:
		return overhead + int64(len(v.Str))
	case KindList:
		return overhead + v.List.estimateMemory()
	case KindSet:
		return overhead + v.Set.estimateMemory()
	case KindHash:
		return overhead + v.Hash.estimateMemory()
	case KindSortedSet:
		return overhead + v.ZSet.estimateMemory()
	case KindStream:
		return overhead + v.Stream.estimateMemory()
	default:
		return overhead
	}
}
