// Package pubsub implements the channel and glob-pattern subscription
// registry (spec.md §4.8, component H). Pattern matching uses
// github.com/gobwas/glob, which already supports the `*`, `?`, and
// `[...]` character-class syntax spec.md requires.
package pubsub

import (
	"sync"

	"github.com/gobwas/glob"

	"github.com/shanas-swi/goredis/internal/resp"
)

// Subscriber is a handle to a connection's push-queue (spec.md §3
// "Global state"). The queue has bounded capacity; when it is full,
// Publish drops that delivery and the connection is left open.
type Subscriber struct {
	ID    uint64
	Queue chan resp.Value
}

// Bus owns the two indices described in spec.md §4.8.
type Bus struct {
	mu       sync.Mutex
	channels map[string]map[uint64]*Subscriber
	patterns map[string]*patternEntry
}

type patternEntry struct {
	glob glob.Glob
	subs map[uint64]*Subscriber
}

func New() *Bus {
	return &Bus{
		channels: make(map[string]map[uint64]*Subscriber),
		patterns: make(map[string]*patternEntry),
	}
}

// Subscribe adds sub to channel, collapsing duplicate subscriptions
// (spec.md §4.8 "Duplicate subscriptions... collapse"). Returns the
// subscriber's total channel+pattern subscription count.
func (b *Bus) Subscribe(channel string, sub *Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.channels[channel]
	if !ok {
		set = make(map[uint64]*Subscriber)
		b.channels[channel] = set
	}
	set[sub.ID] = sub
	return b.totalCountLocked(sub.ID)
}

func (b *Bus) Unsubscribe(channel string, sub *Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.channels[channel]; ok {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(b.channels, channel)
		}
	}
	return b.totalCountLocked(sub.ID)
}

func (b *Bus) PSubscribe(pattern string, sub *Subscriber) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	pe, ok := b.patterns[pattern]
	if !ok {
		g, err := glob.Compile(pattern)
		if err != nil {
			return 0, err
		}
		pe = &patternEntry{glob: g, subs: make(map[uint64]*Subscriber)}
		b.patterns[pattern] = pe
	}
	pe.subs[sub.ID] = sub
	return b.totalCountLocked(sub.ID), nil
}

func (b *Bus) PUnsubscribe(pattern string, sub *Subscriber) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pe, ok := b.patterns[pattern]; ok {
		delete(pe.subs, sub.ID)
		if len(pe.subs) == 0 {
			delete(b.patterns, pattern)
		}
	}
	return b.totalCountLocked(sub.ID)
}

// UnsubscribeAll removes sub from every channel and pattern, used on
// client disconnect and by RESET.
func (b *Bus) UnsubscribeAll(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch, set := range b.channels {
		delete(set, sub.ID)
		if len(set) == 0 {
			delete(b.channels, ch)
		}
	}
	for p, pe := range b.patterns {
		delete(pe.subs, sub.ID)
		if len(pe.subs) == 0 {
			delete(b.patterns, p)
		}
	}
}

func (b *Bus) totalCountLocked(id uint64) int {
	n := 0
	for _, set := range b.channels {
		if _, ok := set[id]; ok {
			n++
		}
	}
	for _, pe := range b.patterns {
		if _, ok := pe.subs[id]; ok {
			n++
		}
	}
	return n
}

// Publish delivers payload to every direct subscriber of channel and
// every pattern subscriber whose pattern matches it (spec.md §4.8); a
// subscriber matching both receives both frames (§9 Open Questions:
// "the source behavior is to deliver twice"). Returns total deliveries.
// A full queue drops that subscriber's delivery rather than blocking the
// publisher (spec.md §4.8 "does not block publishers"); nothing closes
// a connection whose queue stays full.
func (b *Bus) Publish(channel string, payload []byte) int {
	b.mu.Lock()
	var targets []*Subscriber
	var msgs [][]resp.Value
	if set, ok := b.channels[channel]; ok {
		for _, s := range set {
			targets = append(targets, s)
			msgs = append(msgs, []resp.Value{resp.BulkStr("message"), resp.BulkStr(channel), resp.Bulk(payload)})
		}
	}
	for pattern, pe := range b.patterns {
		if pe.glob.Match(channel) {
			for _, s := range pe.subs {
				targets = append(targets, s)
				msgs = append(msgs, []resp.Value{resp.BulkStr("pmessage"), resp.BulkStr(pattern), resp.BulkStr(channel), resp.Bulk(payload)})
			}
		}
	}
	b.mu.Unlock()

	delivered := 0
	for i, s := range targets {
		select {
		case s.Queue <- resp.ArrSlice(msgs[i]):
			delivered++
		default:
		}
	}
	return delivered
}

func (b *Bus) ChannelSubscriberCount(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.channels[channel])
}

func (b *Bus) NumPatterns() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.patterns)
}

// ActiveChannels lists channels with at least one subscriber, optionally
// filtered by a glob pattern (PUBSUB CHANNELS).
func (b *Bus) ActiveChannels(filter glob.Glob) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for ch := range b.channels {
		if filter == nil || filter.Match(ch) {
			out = append(out, ch)
		}
	}
	return out
}
