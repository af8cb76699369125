package persistence

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofrs/uuid"

	"github.com/shanas-swi/goredis/internal/store"
)

// saveWindow is one "seconds changes" pair from the `save` directive:
// BGSAVE fires once at least Changes writes have landed within the
// trailing Seconds window since the last successful save.
type saveWindow struct {
	Seconds int64
	Changes int64
}

// Manager ties RDB snapshotting and AOF append/rewrite together behind
// the command.Persister surface (SAVE/BGSAVE/LASTSAVE). Only one save
// may run at a time (spec.md §4.11 "a second BGSAVE during one returns
// an error").
type Manager struct {
	rdbPath string
	aofPath string
	engine  *store.Engine
	aof     *AOF

	mu        sync.Mutex
	saving    int32
	rewriting int32
	lastSave  int64
	windows   []saveWindow
	changes   int64
}

// NewManager wires together RDB snapshotting (rdbPath) and, when aof is
// non-nil, append-only persistence at aofPath.
func NewManager(rdbPath, aofPath string, engine *store.Engine, aof *AOF) *Manager {
	return &Manager{rdbPath: rdbPath, aofPath: aofPath, engine: engine, aof: aof}
}

// BGRewriteAOF implements BGREWRITEAOF: compact the append-only file on
// a goroutine, the same fire-and-forget shape as BGSave. A no-op when
// append-only persistence isn't configured.
func (m *Manager) BGRewriteAOF() error {
	if m.aof == nil {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&m.rewriting, 0, 1) {
		return fmt.Errorf("ERR Background append only file rewriting already in progress")
	}
	go func() {
		defer atomic.StoreInt32(&m.rewriting, 0)
		RewriteAOF(m.aofPath, m.engine, m.aof)
	}()
	return nil
}

// IncrChanges records one write command against the save-trigger
// counters; internal/server calls it after every successful non-readonly
// command, mirroring real Redis's "dirty" counter.
func (m *Manager) IncrChanges() {
	atomic.AddInt64(&m.changes, 1)
}

// SetSaveWindows parses a `save` directive value ("3600 1 300 100 60
// 10000", or "" to disable) into the trigger windows the background
// scheduler checks. It implements command.SaveReconfigurer so CONFIG SET
// save can reconfigure it at runtime (SPEC_FULL.md component K).
func (m *Manager) SetSaveWindows(spec string) error {
	spec = strings.TrimSpace(spec)
	var windows []saveWindow
	if spec != "" && spec != "\"\"" {
		fields := strings.Fields(spec)
		if len(fields)%2 != 0 {
			return fmt.Errorf("ERR Invalid save parameters")
		}
		for i := 0; i < len(fields); i += 2 {
			secs, err := strconv.ParseInt(fields[i], 10, 64)
			if err != nil {
				return fmt.Errorf("ERR Invalid save parameters")
			}
			chg, err := strconv.ParseInt(fields[i+1], 10, 64)
			if err != nil {
				return fmt.Errorf("ERR Invalid save parameters")
			}
			windows = append(windows, saveWindow{Seconds: secs, Changes: chg})
		}
	}
	m.mu.Lock()
	m.windows = windows
	m.mu.Unlock()
	return nil
}

// RunSaveScheduler polls the configured save windows on a fixed tick
// until the process exits, triggering a BGSave the first time any
// window's (elapsed-seconds, changes) pair is satisfied — the same
// "dirty enough, long enough" rule real Redis's serverCron applies.
// It never returns; callers start it on its own goroutine, the way
// cmd/goredis-server starts the AOF everysec flusher.
func (m *Manager) RunSaveScheduler(clk clock.Clock, tick time.Duration) {
	if clk == nil {
		clk = clock.New()
	}
	ticker := clk.Ticker(tick)
	defer ticker.Stop()
	for range ticker.C {
		m.mu.Lock()
		windows := m.windows
		changes := atomic.LoadInt64(&m.changes)
		lastSave := m.lastSave
		m.mu.Unlock()
		if len(windows) == 0 || changes == 0 {
			continue
		}
		elapsed := m.engine.Now()/1e9 - lastSave
		due := false
		for _, w := range windows {
			if elapsed >= w.Seconds && changes >= w.Changes {
				due = true
				break
			}
		}
		if due {
			if err := m.BGSave(); err == nil {
				atomic.StoreInt64(&m.changes, 0)
			}
		}
	}
}

// Save performs a foreground snapshot (spec.md: "SAVE performs the
// snapshot in the foreground holding the executor mutex" — the caller,
// command.cmdSave, takes that mutex itself unless an enclosing EXEC
// already holds it, so no additional lock is taken here).
func (m *Manager) Save() error {
	if !atomic.CompareAndSwapInt32(&m.saving, 0, 1) {
		return fmt.Errorf("ERR Background save already in progress")
	}
	defer atomic.StoreInt32(&m.saving, 0)
	if err := SaveRDB(m.rdbPath, m.engine); err != nil {
		return err
	}
	m.mu.Lock()
	m.lastSave = m.engine.Now() / 1e9
	m.mu.Unlock()
	return nil
}

// BGSave launches the same snapshot on a goroutine; a failed snapshot is
// not reported anywhere, it only leaves LASTSAVE where it was, matching real Redis's fire-and-forget
// BGSAVE reply ("Background saving started").
func (m *Manager) BGSave() error {
	if !atomic.CompareAndSwapInt32(&m.saving, 0, 1) {
		return fmt.Errorf("ERR Background save already in progress")
	}
	go func() {
		defer atomic.StoreInt32(&m.saving, 0)
		if err := SaveRDB(m.rdbPath, m.engine); err == nil {
			m.mu.Lock()
			m.lastSave = m.engine.Now() / 1e9
			m.mu.Unlock()
		}
	}()
	return nil
}

func (m *Manager) LastSaveUnix() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSave
}

// Load restores the RDB snapshot, then replays the AOF on top of it if
// one is configured (spec.md §4.11 "On startup... replay commands
// through E with caller = Replay... before accepting connections").
func (m *Manager) Load(aofPath string, replay Replayer) error {
	if err := LoadRDB(m.rdbPath, m.engine); err != nil {
		return err
	}
	if aofPath == "" {
		return nil
	}
	return ReplayAOF(aofPath, replay)
}

// aofRewriteBufferCapacity bounds how many commands CompleteRewrite will
// buffer while a rewrite snapshot is in flight before Append blocks
// (SPEC_FULL.md component K: block rather than drop).
const aofRewriteBufferCapacity = 4096

// RewriteAOF compacts aofPath to the minimal command sequence that
// reconstructs the current dataset (spec.md §4.11 "AOF rewrite"):
// iterate every key, emit a restore command for it, write to a staging
// file under a random name, then atomically rename it over the old one.
// When live is non-nil (the server's running append-only file), writes
// arriving during the snapshot are buffered and replayed onto the
// rewritten file before the live writer swaps over to it, so no command
// is lost even though it isn't part of this snapshot's key iteration.
func RewriteAOF(aofPath string, engine *store.Engine, live *AOF) error {
	id, err := uuid.NewV4()
	if err != nil {
		return err
	}
	staging := aofPath + ".rewrite." + id.String()
	tmp, err := OpenAOF(staging, FsyncNo)
	if err != nil {
		return err
	}

	if live != nil {
		live.BeginRewrite(aofRewriteBufferCapacity)
	}

	var writeErr error
	for db := 0; db < engine.NumDBs(); db++ {
		engine.ForEach(db, func(key string, v *store.Value, expiresAt int64) {
			if writeErr != nil {
				return
			}
			cmds := restoreCommands(key, v, expiresAt)
			for _, args := range cmds {
				if err := tmp.Append(db, args); err != nil {
					writeErr = err
					return
				}
			}
		})
		if writeErr != nil {
			break
		}
	}

	if writeErr != nil {
		if live != nil {
			live.mu.Lock()
			if live.rewriteBuf != nil {
				close(live.rewriteBuf)
				live.rewriteBuf = nil
			}
			live.mu.Unlock()
		}
		tmp.Close()
		os.Remove(staging)
		return writeErr
	}

	if live != nil {
		if err := live.CompleteRewrite(tmp, aofPath); err != nil {
			os.Remove(staging)
			return err
		}
		return nil
	}

	if err := tmp.Close(); err != nil {
		os.Remove(staging)
		return err
	}
	return os.Rename(staging, aofPath)
}

// restoreCommands emits the minimal write commands to reconstruct one
// key (spec.md §4.11): the value-building command(s) followed by a
// PEXPIREAT if it carries a TTL. Streams are rebuilt through XADD with
// explicit IDs; consumer groups and PELs are not preserved by the
// rewrite (see DESIGN.md).
func restoreCommands(key string, v *store.Value, expiresAt int64) [][][]byte {
	var out [][][]byte
	k := []byte(key)
	switch v.Kind {
	case store.KindString:
		out = append(out, [][]byte{[]byte("SET"), k, v.Str})
	case store.KindList:
		n := v.List.Len()
		if n > 0 {
			args := [][]byte{[]byte("RPUSH"), k}
			for i := 0; i < n; i++ {
				item, _ := v.List.Index(i)
				args = append(args, item)
			}
			out = append(out, args)
		}
	case store.KindSet:
		members := v.Set.Members()
		if len(members) > 0 {
			args := append([][]byte{[]byte("SADD"), k}, members...)
			out = append(out, args)
		}
	case store.KindHash:
		all := v.Hash.All()
		if len(all) > 0 {
			args := [][]byte{[]byte("HSET"), k}
			for f, val := range all {
				args = append(args, []byte(f), val)
			}
			out = append(out, args)
		}
	case store.KindSortedSet:
		members := v.ZSet.RangeByRank(0, -1, false)
		if len(members) > 0 {
			args := [][]byte{[]byte("ZADD"), k}
			for _, m := range members {
				args = append(args, []byte(formatScore(m.Score)), m.Member)
			}
			out = append(out, args)
		}
	case store.KindStream:
		for _, e := range v.Stream.Entries {
			args := [][]byte{[]byte("XADD"), k, []byte(formatStreamID(e.ID))}
			for _, f := range e.Fields {
				args = append(args, f.Key, f.Value)
			}
			out = append(out, args)
		}
	}
	if expiresAt != 0 && len(out) > 0 {
		ms := expiresAt / 1e6
		out = append(out, [][]byte{[]byte("PEXPIREAT"), k, []byte(fmt.Sprintf("%d", ms))})
	}
	return out
}

func formatScore(f float64) string {
	return fmt.Sprintf("%g", f)
}

func formatStreamID(id store.ID) string {
	return fmt.Sprintf("%d-%d", id.MS, id.Seq)
}
