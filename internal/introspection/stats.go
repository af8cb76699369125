package introspection

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Stats holds the process-wide counters surfaced by INFO (spec.md
// component L) and MEMORY STATS.
type Stats struct {
	StartedAtUnix   int64
	CommandsProcessed int64
	ConnectionsTotal  int64
	KeyspaceHits      int64
	KeyspaceMisses    int64
	ExpiredKeys       int64
}

func (s *Stats) IncrCommands()   { atomic.AddInt64(&s.CommandsProcessed, 1) }
func (s *Stats) IncrConnections() { atomic.AddInt64(&s.ConnectionsTotal, 1) }
func (s *Stats) IncrHits()       { atomic.AddInt64(&s.KeyspaceHits, 1) }
func (s *Stats) IncrMisses()     { atomic.AddInt64(&s.KeyspaceMisses, 1) }
func (s *Stats) IncrExpired()    { atomic.AddInt64(&s.ExpiredKeys, 1) }

// KeyspaceSection describes one logical database's key/expires counts
// for INFO's "Keyspace" section.
type KeyspaceSection struct {
	DB      int
	Keys    int64
	Expires int64
}

// RenderInfo builds the INFO reply text (spec.md §4.11 "INFO"), grouped
// into sections the way real Redis does, trimmed to what this server
// actually tracks.
func RenderInfo(version string, uptimeSeconds int64, s *Stats, connectedClients int, dbs []KeyspaceSection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Server\r\ngoredis_version:%s\r\nuptime_in_seconds:%d\r\n\r\n", version, uptimeSeconds)
	fmt.Fprintf(&b, "# Clients\r\nconnected_clients:%d\r\n\r\n", connectedClients)
	fmt.Fprintf(&b, "# Stats\r\ntotal_commands_processed:%d\r\ntotal_connections_received:%d\r\nexpired_keys:%d\r\nkeyspace_hits:%d\r\nkeyspace_misses:%d\r\n\r\n",
		atomic.LoadInt64(&s.CommandsProcessed), atomic.LoadInt64(&s.ConnectionsTotal),
		atomic.LoadInt64(&s.ExpiredKeys), atomic.LoadInt64(&s.KeyspaceHits), atomic.LoadInt64(&s.KeyspaceMisses))
	b.WriteString("# Keyspace\r\n")
	for _, d := range dbs {
		if d.Keys == 0 {
			continue
		}
		fmt.Fprintf(&b, "db%d:keys=%d,expires=%d\r\n", d.DB, d.Keys, d.Expires)
	}
	return b.String()
}
