// Package stream implements XADD/XTRIM/XRANGE/consumer-group operations
// (spec.md §4.9, component I) on top of the keyspace engine's typed
// store.Stream values. ID allocation, trimming policy, and PEL handling
// live here; store.Stream itself only provides the ordered container.
package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/shanas-swi/goredis/internal/store"
)

var (
	ErrNoGroup    = fmt.Errorf("NOGROUP No such key or consumer group")
	ErrBusyGroup  = fmt.Errorf("BUSYGROUP Consumer Group name already exists")
	ErrIDTooSmall = fmt.Errorf("ERR The ID specified in XSETID is smaller than the target stream top item")
)

// Engine wraps the storage engine with stream-specific ID allocation and
// consumer-group bookkeeping.
type Engine struct {
	store *store.Engine
	clock clock.Clock
	log   *logrus.Entry
}

func New(s *store.Engine, clk clock.Clock, log *logrus.Entry) *Engine {
	if clk == nil {
		clk = clock.New()
	}
	return &Engine{store: s, clock: clk, log: log}
}

func (e *Engine) nowMS() int64 { return e.clock.Now().UnixNano() / int64(1e6) }

// ParseID parses a wire-format stream id ("ms-seq", "ms", or a special
// token resolved by the caller) into a store.ID.
func ParseID(s string, defaultSeq uint64) (store.ID, error) {
	parts := strings.SplitN(s, "-", 2)
	ms, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return store.ID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	if len(parts) == 1 {
		return store.ID{MS: ms, Seq: defaultSeq}, nil
	}
	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return store.ID{}, fmt.Errorf("ERR Invalid stream ID specified as stream command argument")
	}
	return store.ID{MS: ms, Seq: seq}, nil
}

func FormatID(id store.ID) string {
	return strconv.FormatUint(id.MS, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// Add implements XADD. idSpec is "*" for auto-allocation or an explicit
// "ms-seq"/"ms" id; maxLen/minID trimming is applied after the append
// when requested (trim<0 means "no trim"). mkstream controls whether a
// missing key is created (false implements NOMKSTREAM).
func (e *Engine) Add(db int, key string, idSpec string, fields []store.Field, maxLen int, minID *store.ID, mkstream bool) (store.ID, error) {
	var assigned store.ID
	var parseErr, rangeErr error
	err := e.store.WithStream(db, key, mkstream, func(s *store.Stream) bool {
		if idSpec == "*" {
			now := uint64(e.nowMS())
			if now > s.LastID.MS {
				assigned = store.ID{MS: now, Seq: 0}
			} else {
				assigned = store.ID{MS: s.LastID.MS, Seq: s.LastID.Seq + 1}
			}
		} else {
			id, perr := ParseID(idSpec, 0)
			if perr != nil {
				parseErr = perr
				return false
			}
			assigned = id
		}
		empty := s.LastID == store.ID{}
		if !empty && !s.LastID.Less(assigned) {
			rangeErr = fmt.Errorf("ERR The ID specified in XADD is equal or smaller than the target stream top item")
			return false
		}
		s.Append(store.Entry{ID: assigned, Fields: fields})
		if maxLen >= 0 {
			s.TrimMaxLen(maxLen)
		}
		if minID != nil {
			s.TrimMinID(*minID)
		}
		return true
	})
	if err != nil {
		return store.ID{}, err
	}
	if parseErr != nil {
		return store.ID{}, parseErr
	}
	if rangeErr != nil {
		return store.ID{}, rangeErr
	}
	return assigned, nil
}

// Range implements XRANGE/XREVRANGE.
func (e *Engine) Range(db int, key string, from, to store.ID, count int, rev bool) ([]store.Entry, error) {
	var out []store.Entry
	_, err := e.store.ReadStream(db, key, func(s *store.Stream) {
		if rev {
			out = s.RevRange(to, from, count)
		} else {
			out = s.Range(from, to, count)
		}
	})
	return out, err
}

// Len returns XLEN.
func (e *Engine) Len(db int, key string) (int, error) {
	n := 0
	_, err := e.store.ReadStream(db, key, func(s *store.Stream) { n = s.Len() })
	return n, err
}

// SetID implements XSETID, forcing the stream's last id, LastID (and
// optionally its entries-added/max-deleted-id counters) the way real
// Redis lets an operator repair a stream after a restore. The target id
// must not be smaller than any entry already stored, mirroring the
// "ERR The ID specified in XSETID is smaller than the target stream top item"
// guard.
func (e *Engine) SetID(db int, key string, id store.ID, entriesAdded *int64, maxDeletedID *store.ID, mkstream bool) error {
	var outOfRange error
	err := e.store.WithStream(db, key, mkstream, func(s *store.Stream) bool {
		if s.Len() > 0 {
			top := s.Entries[s.Len()-1].ID
			if id.Less(top) {
				outOfRange = ErrIDTooSmall
				return false
			}
		}
		s.LastID = id
		if entriesAdded != nil {
			s.EntriesAdded = *entriesAdded
		}
		if maxDeletedID != nil {
			s.MaxDeletedID = *maxDeletedID
		}
		return true
	})
	if err != nil {
		return err
	}
	return outOfRange
}

// Del implements XDEL.
func (e *Engine) Del(db int, key string, ids []store.ID) (int, error) {
	var n int
	err := e.store.WithStream(db, key, false, func(s *store.Stream) bool {
		n = s.Delete(ids...)
		return n > 0
	})
	return n, err
}

// Trim implements XTRIM.
func (e *Engine) Trim(db int, key string, maxLen int, minID *store.ID) (int, error) {
	var n int
	err := e.store.WithStream(db, key, false, func(s *store.Stream) bool {
		if maxLen >= 0 {
			n = s.TrimMaxLen(maxLen)
		}
		if minID != nil {
			n += s.TrimMinID(*minID)
		}
		return n > 0
	})
	return n, err
}

// GroupCreate implements XGROUP CREATE. Pass store.MaxID as start to mean
// "$" (the stream's current last id at creation time).
func (e *Engine) GroupCreate(db int, key string, group string, start store.ID, mkstream bool) error {
	var busy bool
	err := e.store.WithStream(db, key, mkstream, func(s *store.Stream) bool {
		if _, exists := s.Groups[group]; exists {
			busy = true
			return false
		}
		if start == store.MaxID {
			start = s.LastID
		}
		s.Groups[group] = store.NewGroup(group, start)
		return true
	})
	if err != nil {
		return err
	}
	if busy {
		return ErrBusyGroup
	}
	return nil
}

// GroupDestroy implements XGROUP DESTROY.
func (e *Engine) GroupDestroy(db int, key string, group string) (bool, error) {
	var removed bool
	err := e.store.WithStream(db, key, false, func(s *store.Stream) bool {
		if _, ok := s.Groups[group]; !ok {
			return false
		}
		delete(s.Groups, group)
		removed = true
		return true
	})
	return removed, err
}

// ReadGroup implements XREADGROUP ... STREAMS key > (and the explicit-id
// re-read form). count<=0 means unlimited.
func (e *Engine) ReadGroup(db int, key, group, consumer string, startID *store.ID, count int) ([]store.Entry, error) {
	var out []store.Entry
	now := e.nowMS()
	err := e.store.WithStream(db, key, false, func(s *store.Stream) bool {
		g, ok := s.Groups[group]
		if !ok {
			return false
		}
		c := g.consumer(consumer)
		c.SeenTime = now
		c.ActiveTime = now

		if startID != nil {
			var ids []store.ID
			for id := range c.Pending {
				if !id.Less(*startID) {
					ids = append(ids, id)
				}
			}
			sortIDs(ids)
			for _, id := range ids {
				if en, found := s.Get(id); found {
					out = append(out, en)
				}
				if count > 0 && len(out) >= count {
					break
				}
			}
			return false
		}

		entries := s.Range(store.ID{MS: g.LastDelivered.MS, Seq: g.LastDelivered.Seq + 1}, store.MaxID, count)
		for _, en := range entries {
			g.Pel[en.ID] = &store.PelEntry{Consumer: consumer, DeliveryTime: now, Deliveries: 1}
			c.Pending[en.ID] = struct{}{}
			if g.LastDelivered.Less(en.ID) {
				g.LastDelivered = en.ID
			}
			g.EntriesRead++
		}
		out = entries
		return len(entries) > 0
	})
	return out, err
}

// Ack implements XACK.
func (e *Engine) Ack(db int, key, group string, ids []store.ID) (int, error) {
	var n int
	err := e.store.WithStream(db, key, false, func(s *store.Stream) bool {
		g, ok := s.Groups[group]
		if !ok {
			return false
		}
		for _, id := range ids {
			pel, ok := g.Pel[id]
			if !ok {
				continue
			}
			if c, ok := g.Consumers[pel.Consumer]; ok {
				delete(c.Pending, id)
			}
			delete(g.Pel, id)
			n++
		}
		return n > 0
	})
	return n, err
}

// PendingEntry is one row of an XPENDING range reply.
type PendingEntry struct {
	ID         store.ID
	Consumer   string
	IdleMS     int64
	Deliveries int64
}

// PendingSummary implements the summary form of XPENDING.
func (e *Engine) PendingSummary(db int, key, group string) (count int, min, max store.ID, perConsumer map[string]int, err error) {
	perConsumer = make(map[string]int)
	_, err = e.store.ReadStream(db, key, func(s *store.Stream) {
		g, ok := s.Groups[group]
		if !ok {
			return
		}
		first := true
		for id, pel := range g.Pel {
			count++
			perConsumer[pel.Consumer]++
			if first || id.Less(min) {
				min = id
			}
			if first || max.Less(id) {
				max = id
			}
			first = false
		}
	})
	return
}

// PendingRange implements the range form of XPENDING.
func (e *Engine) PendingRange(db int, key, group string, from, to store.ID, count int, consumerFilter string, minIdleMS int64) ([]PendingEntry, error) {
	var out []PendingEntry
	now := e.nowMS()
	_, err := e.store.ReadStream(db, key, func(s *store.Stream) {
		g, ok := s.Groups[group]
		if !ok {
			return
		}
		var ids []store.ID
		for id := range g.Pel {
			ids = append(ids, id)
		}
		sortIDs(ids)
		for _, id := range ids {
			if id.Less(from) || to.Less(id) {
				continue
			}
			pel := g.Pel[id]
			if consumerFilter != "" && pel.Consumer != consumerFilter {
				continue
			}
			idle := now - pel.DeliveryTime
			if idle < minIdleMS {
				continue
			}
			out = append(out, PendingEntry{ID: id, Consumer: pel.Consumer, IdleMS: idle, Deliveries: pel.Deliveries})
			if count > 0 && len(out) >= count {
				break
			}
		}
	})
	return out, err
}

func sortIDs(ids []store.ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j].Less(ids[j-1]); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}

// Claim implements XCLAIM: transfers PEL ownership for ids idle at least
// minIdleMS. force creates PEL entries for ids not currently pending
// (only if they exist in the stream); justID callers format the reply
// themselves from the returned ids.
func (e *Engine) Claim(db int, key, group, claimant string, ids []store.ID, minIdleMS int64, force bool) ([]store.Entry, error) {
	var out []store.Entry
	now := e.nowMS()
	err := e.store.WithStream(db, key, false, func(s *store.Stream) bool {
		g, ok := s.Groups[group]
		if !ok {
			return false
		}
		changed := false
		for _, id := range ids {
			pel, exists := g.Pel[id]
			entry, inStream := s.Get(id)
			if !exists {
				if !force || !inStream {
					continue
				}
				pel = &store.PelEntry{}
				g.Pel[id] = pel
			} else if now-pel.DeliveryTime < minIdleMS {
				continue
			}
			if prev, ok := g.Consumers[pel.Consumer]; ok {
				delete(prev.Pending, id)
			}
			pel.Consumer = claimant
			pel.DeliveryTime = now
			pel.Deliveries++
			g.consumer(claimant).Pending[id] = struct{}{}
			changed = true
			if inStream {
				out = append(out, entry)
			}
		}
		return changed
	})
	return out, err
}

// AutoClaim implements XAUTOCLAIM: scans the PEL in id order from cursor,
// claiming up to count entries idle at least minIdleMS. Returns the
// claimed entries, deleted-from-PEL ids (entries no longer in the stream),
// and the next cursor (MaxID when exhausted).
func (e *Engine) AutoClaim(db int, key, group, claimant string, cursor store.ID, minIdleMS int64, count int) (claimed []store.Entry, deleted []store.ID, next store.ID, err error) {
	next = store.MaxID
	now := e.nowMS()
	err = e.store.WithStream(db, key, false, func(s *store.Stream) bool {
		g, ok := s.Groups[group]
		if !ok {
			return false
		}
		var ids []store.ID
		for id := range g.Pel {
			if cursor.Less(id) || id.Equal(cursor) {
				ids = append(ids, id)
			}
		}
		sortIDs(ids)
		changed := false
		taken := 0
		for _, id := range ids {
			if taken >= count {
				next = id
				break
			}
			pel := g.Pel[id]
			if now-pel.DeliveryTime < minIdleMS {
				continue
			}
			entry, inStream := s.Get(id)
			if !inStream {
				if c, ok := g.Consumers[pel.Consumer]; ok {
					delete(c.Pending, id)
				}
				delete(g.Pel, id)
				deleted = append(deleted, id)
				changed = true
				continue
			}
			if c, ok := g.Consumers[pel.Consumer]; ok {
				delete(c.Pending, id)
			}
			pel.Consumer = claimant
			pel.DeliveryTime = now
			pel.Deliveries++
			g.consumer(claimant).Pending[id] = struct{}{}
			claimed = append(claimed, entry)
			changed = true
			taken++
		}
		return changed
	})
	return
}
