package store

import (
	"github.com/benbjohnson/clock"
)

// ExistencePolicy controls SET's NX/XX behavior.
type ExistencePolicy int

const (
	Always ExistencePolicy = iota
	OnlyIfAbsent
	OnlyIfPresent
)

// TTLPolicy controls what SET does to an existing TTL.
type TTLPolicy int

const (
	KeepExisting TTLPolicy = iota
	ClearTTL
	SetAbsolute
)

// SetOptions bundles set() parameters (spec.md §4.3 "Public operations").
type SetOptions struct {
	Existence ExistencePolicy
	TTLPolicy TTLPolicy
	ExpiresAt int64 // used when TTLPolicy == SetAbsolute, unix nanoseconds
}

// Notifier is implemented by the blocking coordinator; the engine calls it
// after releasing the shard lock whenever a key is mutated in a way that
// could satisfy a blocked waiter (spec.md §4.4, §4.7).
type Notifier interface {
	Notify(db int, key string)
}

// Engine is the sharded storage engine (component C). NumShards must be a
// power of two.
type Engine struct {
	NumShards   int
	dbs         []*database
	hashSeed    uint64
	notifier    Notifier
	clock       clock.Clock
	evictPolicy string
	maxMemory   int64
}

type database struct {
	shards []*shard
}

// New constructs an Engine with numDBs logical databases, each sharded
// numShards ways. hashSeed stabilizes key->shard routing for the process
// lifetime (spec.md §4.3).
func New(numDBs, numShards int, hashSeed uint64, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	dbs := make([]*database, numDBs)
	for i := range dbs {
		shards := make([]*shard, numShards)
		for j := range shards {
			shards[j] = newShard()
		}
		dbs[i] = &database{shards: shards}
	}
	return &Engine{NumShards: numShards, dbs: dbs, hashSeed: hashSeed, clock: clk}
}

func (e *Engine) SetNotifier(n Notifier) { e.notifier = n }

func (e *Engine) NumDBs() int { return len(e.dbs) }

// SetEvictionPolicy configures maxmemory / maxmemory-policy (§6); "lru"
// variants enable per-shard recency tracking.
func (e *Engine) SetEvictionPolicy(policy string, maxMemory int64) {
	e.evictPolicy = policy
	e.maxMemory = maxMemory
	if policy == "allkeys-lru" || policy == "volatile-lru" {
		for _, db := range e.dbs {
			for _, sh := range db.shards {
				sh.enableRecencyTracking(4096)
			}
		}
	}
}

func (e *Engine) now() int64 { return e.clock.Now().UnixNano() }

// Now exposes the engine's injected clock (unix nanoseconds) so callers
// computing relative deadlines (EXPIRE, BLPOP timeouts) stay consistent
// with the clock the engine itself uses for expiry comparisons.
func (e *Engine) Now() int64 { return e.now() }

func fnv1a(seed uint64, s string) uint64 {
	h := seed
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

func (e *Engine) shardIndex(key string) int {
	return int(fnv1a(e.hashSeed, key) % uint64(e.NumShards))
}

func (e *Engine) shardFor(db int, key string) *shard {
	return e.dbs[db].shards[e.shardIndex(key)]
}

// encodeCursor/decodeCursor pack (shard index, intra-shard position) for
// SCAN, as spec.md §4.3 describes.
func encodeCursor(shardIdx int, pos int) uint64 {
	return uint64(shardIdx)<<32 | uint64(uint32(pos))
}

func decodeCursor(c uint64) (shardIdx, pos int) {
	return int(c >> 32), int(uint32(c))
}
