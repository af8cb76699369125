package command

import (
	"strconv"
	"time"

	"github.com/gobwas/glob"

	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/store"
)

func init() {
	Register(&Spec{Name: "DEL", MinArgs: 2, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdDel})
	Register(&Spec{Name: "EXISTS", MinArgs: 2, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 1, ReadOnly: true, Handler: cmdExists})
	Register(&Spec{Name: "TYPE", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdType})
	Register(&Spec{Name: "TTL", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdTTL})
	Register(&Spec{Name: "PTTL", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdPTTL})
	Register(&Spec{Name: "EXPIRE", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdExpire})
	Register(&Spec{Name: "PEXPIRE", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdPExpire})
	Register(&Spec{Name: "EXPIREAT", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdExpireAt})
	Register(&Spec{Name: "PEXPIREAT", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdPExpireAt})
	Register(&Spec{Name: "PERSIST", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, Handler: cmdPersist})
	Register(&Spec{Name: "RENAME", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 2, KeyStep: 1, Handler: cmdRename})
	Register(&Spec{Name: "KEYS", MinArgs: 2, MaxArgs: 2, ReadOnly: true, Handler: cmdKeys})
	Register(&Spec{Name: "SCAN", MinArgs: 2, MaxArgs: -1, ReadOnly: true, Handler: cmdScan})
	Register(&Spec{Name: "FLUSHDB", MinArgs: 1, MaxArgs: 2, Handler: cmdFlushDB})
	Register(&Spec{Name: "FLUSHALL", MinArgs: 1, MaxArgs: 2, Handler: cmdFlushAll})
	Register(&Spec{Name: "DBSIZE", MinArgs: 1, MaxArgs: 1, ReadOnly: true, Handler: cmdDBSize})
	Register(&Spec{Name: "SELECT", MinArgs: 2, MaxArgs: 2, NoScript: true, NoMulti: true, Handler: cmdSelect})
}

func cmdDel(ctx *Context, args [][]byte) (resp.Value, error) {
	keys := make([]string, len(args)-1)
	for i, a := range args[1:] {
		keys[i] = string(a)
	}
	n := ctx.Store.Delete(ctx.DB, keys...)
	return resp.Int(int64(n)), nil
}

func cmdExists(ctx *Context, args [][]byte) (resp.Value, error) {
	keys := make([]string, len(args)-1)
	for i, a := range args[1:] {
		keys[i] = string(a)
	}
	return resp.Int(int64(ctx.Store.Exists(ctx.DB, keys...))), nil
}

func cmdType(ctx *Context, args [][]byte) (resp.Value, error) {
	k, ok := ctx.Store.TypeOf(ctx.DB, string(args[1]))
	if !ok {
		return resp.Str("none"), nil
	}
	return resp.Str(k.String()), nil
}

func cmdTTL(ctx *Context, args [][]byte) (resp.Value, error) {
	ns := ctx.Store.TTLNanos(ctx.DB, string(args[1]))
	if ns < 0 {
		return resp.Int(ns), nil
	}
	return resp.Int(int64(time.Duration(ns).Round(time.Second) / time.Second)), nil
}

func cmdPTTL(ctx *Context, args [][]byte) (resp.Value, error) {
	ns := ctx.Store.TTLNanos(ctx.DB, string(args[1]))
	if ns < 0 {
		return resp.Int(ns), nil
	}
	return resp.Int(int64(time.Duration(ns) / time.Millisecond)), nil
}

func parseSeconds(b []byte) (time.Duration, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, NewError("ERR", "value is not an integer or out of range")
	}
	return time.Duration(n) * time.Second, nil
}

func parseMillis(b []byte) (time.Duration, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, NewError("ERR", "value is not an integer or out of range")
	}
	return time.Duration(n) * time.Millisecond, nil
}

// expireRelative computes an absolute deadline off the engine's own
// clock (so it agrees with the expiry check PExpireAt performs) and
// applies it.
func expireRelative(ctx *Context, key string, d time.Duration) bool {
	return ctx.Store.PExpireAt(ctx.DB, key, ctx.Store.Now()+d.Nanoseconds())
}

func cmdExpire(ctx *Context, args [][]byte) (resp.Value, error) {
	d, err := parseSeconds(args[2])
	if err != nil {
		return resp.Value{}, err
	}
	ok := expireRelative(ctx, string(args[1]), d)
	return resp.Int(boolInt(ok)), nil
}

func cmdPExpire(ctx *Context, args [][]byte) (resp.Value, error) {
	d, err := parseMillis(args[2])
	if err != nil {
		return resp.Value{}, err
	}
	ok := expireRelative(ctx, string(args[1]), d)
	return resp.Int(boolInt(ok)), nil
}

func cmdExpireAt(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	ok := ctx.Store.PExpireAt(ctx.DB, string(args[1]), n*int64(time.Second))
	return resp.Int(boolInt(ok)), nil
}

func cmdPExpireAt(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	ok := ctx.Store.PExpireAt(ctx.DB, string(args[1]), n*int64(time.Millisecond))
	return resp.Int(boolInt(ok)), nil
}

func cmdPersist(ctx *Context, args [][]byte) (resp.Value, error) {
	return resp.Int(boolInt(ctx.Store.Persist(ctx.DB, string(args[1])))), nil
}

func cmdRename(ctx *Context, args [][]byte) (resp.Value, error) {
	if err := ctx.Store.Rename(ctx.DB, string(args[1]), string(args[2])); err != nil {
		if err == store.ErrNoSuchKey {
			return resp.Value{}, NewError("ERR", "no such key")
		}
		return resp.Value{}, err
	}
	return ok(), nil
}

func cmdKeys(ctx *Context, args [][]byte) (resp.Value, error) {
	g, err := glob.Compile(string(args[1]))
	if err != nil {
		return resp.Value{}, NewError("ERR", "invalid glob pattern")
	}
	var out []string
	var cursor uint64
	for {
		next, batch := ctx.Store.Scan(ctx.DB, cursor, g.Match, 1000)
		out = append(out, batch...)
		if next == 0 {
			break
		}
		cursor = next
	}
	return strArray(out), nil
}

func cmdScan(ctx *Context, args [][]byte) (resp.Value, error) {
	cursor, err := strconv.ParseUint(string(args[1]), 10, 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "invalid cursor")
	}
	count := 10
	var matchFn func(string) bool
	for i := 2; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return resp.Value{}, NewError("ERR", "syntax error")
		}
		switch string(args[i]) {
		case "MATCH", "match":
			g, err := glob.Compile(string(args[i+1]))
			if err != nil {
				return resp.Value{}, NewError("ERR", "invalid glob pattern")
			}
			matchFn = g.Match
		case "COUNT", "count":
			n, err := strconv.Atoi(string(args[i+1]))
			if err != nil {
				return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
			}
			count = n
		}
	}
	next, keys := ctx.Store.Scan(ctx.DB, cursor, matchFn, count)
	return resp.Arr(resp.BulkStr(strconv.FormatUint(next, 10)), strArray(keys)), nil
}

func cmdFlushDB(ctx *Context, args [][]byte) (resp.Value, error) {
	ctx.Store.FlushDB(ctx.DB)
	return ok(), nil
}

func cmdFlushAll(ctx *Context, args [][]byte) (resp.Value, error) {
	ctx.Store.FlushAll()
	return ok(), nil
}

func cmdDBSize(ctx *Context, args [][]byte) (resp.Value, error) {
	return resp.Int(ctx.Store.DBSize(ctx.DB)), nil
}

func cmdSelect(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := strconv.Atoi(string(args[1]))
	if err != nil || n < 0 || n >= ctx.Store.NumDBs() {
		return resp.Value{}, NewError("ERR", "DB index is out of range")
	}
	ctx.DB = n
	if ctx.Conn != nil {
		ctx.Conn.SetDB(n)
	}
	return ok(), nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
