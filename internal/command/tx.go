package command

import (
	"strings"
	"sync"

	"github.com/shanas-swi/goredis/internal/resp"
)

// execMu is the global executor mutex (spec.md §4.6, Glossary
// "Executor mutex"): held for the duration of EXEC's queued commands and,
// later, for an entire Lua script, so no other connection's writes
// interleave.
var execMu sync.Mutex

// WatchEntry is one (db, key, version_at_watch) triple recorded by WATCH
// (spec.md §4.6).
type WatchEntry struct {
	DB      int
	Key     string
	Version uint64
}

// Transaction holds one connection's MULTI/EXEC/WATCH state (component F).
// The real connection type owns one and returns it via Conn.Tx().
type Transaction struct {
	Active  bool
	Dirty   bool
	Queued  [][][]byte
	Watches []WatchEntry
}

func init() {
	Register(&Spec{Name: "MULTI", MinArgs: 1, MaxArgs: 1, NoScript: true, NoMulti: true, Handler: cmdMulti})
	Register(&Spec{Name: "EXEC", MinArgs: 1, MaxArgs: 1, NoScript: true, NoMulti: true, Handler: cmdExec})
	Register(&Spec{Name: "DISCARD", MinArgs: 1, MaxArgs: 1, NoScript: true, NoMulti: true, Handler: cmdDiscard})
	Register(&Spec{Name: "WATCH", MinArgs: 2, MaxArgs: -1, NoScript: true, NoMulti: true, Handler: cmdWatch})
	Register(&Spec{Name: "UNWATCH", MinArgs: 1, MaxArgs: 1, NoScript: true, Handler: cmdUnwatch})
}

func cmdMulti(ctx *Context, args [][]byte) (resp.Value, error) {
	tx := ctx.Conn.Tx()
	if tx.Active {
		return resp.Value{}, NewError("ERR", "MULTI calls can not be nested")
	}
	tx.Active = true
	tx.Dirty = false
	tx.Queued = nil
	return ok(), nil
}

func cmdDiscard(ctx *Context, args [][]byte) (resp.Value, error) {
	tx := ctx.Conn.Tx()
	if !tx.Active {
		return resp.Value{}, NewError("ERR", "DISCARD without MULTI")
	}
	*tx = Transaction{}
	return ok(), nil
}

func cmdWatch(ctx *Context, args [][]byte) (resp.Value, error) {
	tx := ctx.Conn.Tx()
	if tx.Active {
		return resp.Value{}, NewError("ERR", "WATCH inside MULTI is not allowed")
	}
	for _, a := range args[1:] {
		key := string(a)
		tx.Watches = append(tx.Watches, WatchEntry{
			DB:      ctx.DB,
			Key:     key,
			Version: ctx.Store.WatchSnapshot(ctx.DB, key),
		})
	}
	return ok(), nil
}

func cmdUnwatch(ctx *Context, args [][]byte) (resp.Value, error) {
	ctx.Conn.Tx().Watches = nil
	return ok(), nil
}

func cmdExec(ctx *Context, args [][]byte) (resp.Value, error) {
	tx := ctx.Conn.Tx()
	if !tx.Active {
		return resp.Value{}, NewError("ERR", "EXEC without MULTI")
	}
	queued := tx.Queued
	dirty := tx.Dirty
	watches := tx.Watches
	*tx = Transaction{}

	if dirty {
		return resp.Value{}, &Error{Kind: "EXECABORT", Message: "EXECABORT Transaction discarded because of previous errors."}
	}

	execMu.Lock()
	defer execMu.Unlock()

	for _, w := range watches {
		if !ctx.Store.CheckUnchanged(w.DB, w.Key, w.Version) {
			return resp.NilArray(), nil
		}
	}

	ctx.InExec = true
	defer func() { ctx.InExec = false }()

	replies := make([]resp.Value, len(queued))
	for i, cmdArgs := range queued {
		v, err := Execute(ctx, cmdArgs)
		if err != nil {
			replies[i] = errValue(err)
			continue
		}
		replies[i] = v
	}
	return resp.ArrSlice(replies), nil
}

func errValue(err error) resp.Value {
	if ce, ok := err.(*Error); ok {
		return resp.Err(ce.Message)
	}
	return resp.Err("ERR " + err.Error())
}

// MaybeQueue implements the connection-level MULTI queueing step
// described in spec.md §4.6: called by the server before Execute for
// every parsed command. If the connection is inside a transaction and
// cmd isn't one of the always-immediate transaction-control commands, it
// is arity/validity-checked and queued (reply +QUEUED) instead of run;
// an invalid command marks the transaction dirty per spec.md §4.6.
func MaybeQueue(ctx *Context, args [][]byte) (queued bool, reply resp.Value) {
	tx := ctx.Conn.Tx()
	if !tx.Active || len(args) == 0 {
		return false, resp.Value{}
	}
	name := strings.ToUpper(string(args[0]))
	switch name {
	case "EXEC", "DISCARD", "WATCH", "MULTI", "RESET", "QUIT":
		return false, resp.Value{}
	}
	spec, ok := registry[name]
	if !ok {
		tx.Dirty = true
		return true, resp.Err(NewError("ERR", "unknown command '%s'", string(args[0])).Message)
	}
	if len(args) < spec.MinArgs || (spec.MaxArgs >= 0 && len(args) > spec.MaxArgs) {
		tx.Dirty = true
		return true, resp.Err(NewError("ERR", "wrong number of arguments for '%s' command", strings.ToLower(spec.Name)).Message)
	}
	if spec.NoMulti {
		tx.Dirty = true
		return true, resp.Err(NewError("ERR", "%s is not allowed in transactions", strings.ToLower(spec.Name)).Message)
	}
	tx.Queued = append(tx.Queued, args)
	return true, resp.Str("QUEUED")
}
