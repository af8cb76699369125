package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/shanas-swi/goredis/internal/resp"
)

// FsyncPolicy selects when the AOF is flushed to stable storage (spec.md
// §4.11 "fsync policy").
type FsyncPolicy int

const (
	FsyncAlways FsyncPolicy = iota
	FsyncEverySec
	FsyncNo
)

func ParseFsyncPolicy(s string) FsyncPolicy {
	switch s {
	case "always":
		return FsyncAlways
	case "no":
		return FsyncNo
	default:
		return FsyncEverySec
	}
}

// rewriteItem is one command buffered while a rewrite snapshot is being
// written, so it can be replayed onto the rewritten file before the live
// writer swaps over to it.
type rewriteItem struct {
	db   int
	args [][]byte
}

// AOF appends every successful write command in RESP form (spec.md
// §4.11). A background goroutine performs the `everysec` fsync; `always`
// fsyncs inline on every Append; `no` never fsyncs explicitly.
type AOF struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *bufio.Writer
	policy FsyncPolicy

	// rewriteBuf is non-nil only while RewriteAOF is in flight: Append
	// mirrors every incoming command onto it so CompleteRewrite can
	// replay what arrived during the snapshot onto the rewritten file.
	// Bounded and blocking (SPEC_FULL.md component K): a rewrite that
	// falls behind stalls writers rather than silently losing commands.
	rewriteBuf chan rewriteItem
}

// OpenAOF opens (creating if absent) path for appending.
func OpenAOF(path string, policy FsyncPolicy) (*AOF, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &AOF{path: path, file: f, writer: bufio.NewWriter(f), policy: policy}, nil
}

// Append encodes a SELECT for db (written before every command) followed
// by args, the way OnWrite receives them from the command executor.
func (a *AOF) Append(db int, args [][]byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	sel := resp.Arr(resp.BulkStr("SELECT"), resp.BulkStr(strconv.Itoa(db)))
	if _, err := a.writer.Write(resp.Encode(sel)); err != nil {
		return err
	}
	items := make([]resp.Value, len(args))
	for i, a := range args {
		items[i] = resp.Bulk(a)
	}
	if _, err := a.writer.Write(resp.Encode(resp.ArrSlice(items))); err != nil {
		return err
	}
	if a.policy == FsyncAlways {
		if err := a.writer.Flush(); err != nil {
			return err
		}
		if err := a.file.Sync(); err != nil {
			return err
		}
	}
	if a.rewriteBuf != nil {
		a.rewriteBuf <- rewriteItem{db: db, args: args}
	}
	return nil
}

// BeginRewrite starts mirroring every Append onto a bounded buffer of
// the given capacity so a concurrent RewriteAOF can replay them onto the
// rewritten file afterward (SPEC_FULL.md component K).
func (a *AOF) BeginRewrite(capacity int) {
	a.mu.Lock()
	a.rewriteBuf = make(chan rewriteItem, capacity)
	a.mu.Unlock()
}

// CompleteRewrite drains whatever arrived on the rewrite buffer onto
// tmp, renames tmp's file into finalPath, and swaps the live writer over
// to it, closing the old (now unlinked) file descriptor. tmp must not be
// used by its caller afterward.
func (a *AOF) CompleteRewrite(tmp *AOF, finalPath string) error {
	a.mu.Lock()
	ch := a.rewriteBuf
	a.rewriteBuf = nil
	a.mu.Unlock()

	if ch != nil {
		close(ch)
		for item := range ch {
			if err := tmp.Append(item.db, item.args); err != nil {
				return err
			}
		}
	}

	tmp.mu.Lock()
	err := tmp.writer.Flush()
	tmp.mu.Unlock()
	if err != nil {
		return err
	}

	if err := os.Rename(tmp.path, finalPath); err != nil {
		return err
	}

	a.mu.Lock()
	old := a.file
	a.file = tmp.file
	a.writer = tmp.writer
	a.path = finalPath
	a.mu.Unlock()
	return old.Close()
}

// FlushIfDue is called periodically by the `everysec` background ticker.
func (a *AOF) FlushIfDue() error {
	if a.policy != FsyncEverySec {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.writer.Flush(); err != nil {
		return err
	}
	return a.file.Sync()
}

func (a *AOF) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.writer.Flush(); err != nil {
		a.file.Close()
		return err
	}
	return a.file.Close()
}

// Replayer is the minimal surface AOF replay needs from the command
// executor: a single call per decoded command, running with caller type
// Replay (spec.md §4.11 "bypassing client-only checks").
type Replayer interface {
	ReplayCommand(db int, args [][]byte) error
}

// ReplayAOF reads path command-by-command and feeds each to replay,
// tracking the db selected by interleaved SELECT frames. A missing file
// is not an error.
func ReplayAOF(path string, replay Replayer) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	parser := resp.NewParser()
	reader := resp.NewReader(bufio.NewReader(f), parser)
	db := 0
	for {
		v, err := reader.ReadValue()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		args := make([][]byte, len(v.Items))
		for i, item := range v.Items {
			args[i] = item.Bulk
		}
		if len(args) == 0 {
			continue
		}
		if string(args[0]) == "SELECT" && len(args) == 2 {
			n, err := strconv.Atoi(string(args[1]))
			if err != nil {
				return fmt.Errorf("aof: bad SELECT: %w", err)
			}
			db = n
			continue
		}
		if err := replay.ReplayCommand(db, args); err != nil {
			return err
		}
	}
}
