// Package introspection implements the server-wide observability
// surfaces: MONITOR broadcasting and INFO/MEMORY STATS sampling (spec.md
// component L). MONITOR reuses the same non-blocking fan-out shape as
// internal/pubsub.Bus.Publish: a feed never suspends the command path
// waiting on a slow watcher.
package introspection

import (
	"strconv"
	"strings"
	"sync"

	"github.com/shanas-swi/goredis/internal/resp"
)

// MonitorFeed fans formatted command lines out to every attached watcher.
type MonitorFeed struct {
	mu       sync.Mutex
	watchers map[uint64]chan resp.Value
}

func NewMonitorFeed() *MonitorFeed {
	return &MonitorFeed{watchers: make(map[uint64]chan resp.Value)}
}

func (m *MonitorFeed) Attach(id uint64, queue chan resp.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchers[id] = queue
}

func (m *MonitorFeed) Detach(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.watchers, id)
}

func (m *MonitorFeed) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watchers) > 0
}

// Feed formats one MONITOR line (spec.md §4.11 "timestamp, db, client
// addr, command and args") and pushes it to every attached watcher,
// dropping delivery to any watcher whose queue is full.
func (m *MonitorFeed) Feed(timestampUS int64, db int, clientAddr string, args [][]byte) {
	m.mu.Lock()
	if len(m.watchers) == 0 {
		m.mu.Unlock()
		return
	}
	watchers := make([]chan resp.Value, 0, len(m.watchers))
	for _, w := range m.watchers {
		watchers = append(watchers, w)
	}
	m.mu.Unlock()

	line := formatMonitorLine(timestampUS, db, clientAddr, args)
	v := resp.Str(line)
	for _, w := range watchers {
		select {
		case w <- v:
		default:
		}
	}
}

func formatMonitorLine(timestampUS int64, db int, clientAddr string, args [][]byte) string {
	sec := timestampUS / 1e6
	usec := timestampUS % 1e6
	var b strings.Builder
	b.WriteString(strconv.FormatInt(sec, 10))
	b.WriteByte('.')
	b.WriteString(strconv.FormatInt(usec, 10))
	b.WriteString(" [")
	b.WriteString(strconv.Itoa(db))
	b.WriteByte(' ')
	b.WriteString(clientAddr)
	b.WriteString("] ")
	for i, a := range args {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(string(a), `"`, `\"`))
		b.WriteByte('"')
	}
	return b.String()
}
