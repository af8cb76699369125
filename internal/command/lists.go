package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/shanas-swi/goredis/internal/resp"
)

func init() {
	Register(&Spec{Name: "LPUSH", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdLPush})
	Register(&Spec{Name: "RPUSH", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdRPush})
	Register(&Spec{Name: "LPUSHX", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdLPushX})
	Register(&Spec{Name: "RPUSHX", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdRPushX})
	Register(&Spec{Name: "LPOP", MinArgs: 2, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdLPop})
	Register(&Spec{Name: "RPOP", MinArgs: 2, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdRPop})
	Register(&Spec{Name: "LLEN", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdLLen})
	Register(&Spec{Name: "LINDEX", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdLIndex})
	Register(&Spec{Name: "LSET", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdLSet})
	Register(&Spec{Name: "LRANGE", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdLRange})
	Register(&Spec{Name: "LTRIM", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdLTrim})
	Register(&Spec{Name: "LREM", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdLRem})
	Register(&Spec{Name: "LINSERT", MinArgs: 5, MaxArgs: 5, FirstKey: 1, LastKey: 1, Handler: cmdLInsert})
	Register(&Spec{Name: "BLPOP", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: -2, KeyStep: 1, Blocking: true, NoScript: true, Handler: cmdBLPop})
	Register(&Spec{Name: "BRPOP", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: -2, KeyStep: 1, Blocking: true, NoScript: true, Handler: cmdBRPop})
}

func cmdLPush(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.Push(ctx.DB, string(args[1]), true, false, args[2:]...)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdRPush(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.Push(ctx.DB, string(args[1]), false, false, args[2:]...)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdLPushX(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.Push(ctx.DB, string(args[1]), true, true, args[2:]...)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdRPushX(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.Push(ctx.DB, string(args[1]), false, true, args[2:]...)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func popCount(args [][]byte) (int, error) {
	if len(args) < 3 {
		return 1, nil
	}
	n, err := strconv.Atoi(string(args[2]))
	if err != nil || n < 0 {
		return 0, NewError("ERR", "value is not an integer or out of range")
	}
	return n, nil
}

func cmdLPop(ctx *Context, args [][]byte) (resp.Value, error) {
	count, err := popCount(args)
	if err != nil {
		return resp.Value{}, err
	}
	hasCount := len(args) >= 3
	out, err := ctx.Store.Pop(ctx.DB, string(args[1]), true, count)
	if err != nil {
		return resp.Value{}, err
	}
	return popReply(out, hasCount), nil
}

func cmdRPop(ctx *Context, args [][]byte) (resp.Value, error) {
	count, err := popCount(args)
	if err != nil {
		return resp.Value{}, err
	}
	hasCount := len(args) >= 3
	out, err := ctx.Store.Pop(ctx.DB, string(args[1]), false, count)
	if err != nil {
		return resp.Value{}, err
	}
	return popReply(out, hasCount), nil
}

// popReply implements spec.md §4.5: no COUNT + empty -> nil bulk; COUNT
// given + empty -> nil array.
func popReply(out [][]byte, hasCount bool) resp.Value {
	if len(out) == 0 {
		if hasCount {
			return resp.NilArray()
		}
		return resp.NilBulk()
	}
	if !hasCount {
		return resp.Bulk(out[0])
	}
	return bulkArray(out)
}

func cmdLLen(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.LLen(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdLIndex(ctx *Context, args [][]byte) (resp.Value, error) {
	idx, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	v, ok, err := ctx.Store.LIndex(ctx.DB, string(args[1]), idx)
	if err != nil {
		return resp.Value{}, err
	}
	if !ok {
		return resp.NilBulk(), nil
	}
	return resp.Bulk(v), nil
}

func cmdLSet(ctx *Context, args [][]byte) (resp.Value, error) {
	idx, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	if err := ctx.Store.LSet(ctx.DB, string(args[1]), idx, args[3]); err != nil {
		return resp.Value{}, err
	}
	return ok(), nil
}

func cmdLRange(ctx *Context, args [][]byte) (resp.Value, error) {
	start, err1 := strconv.Atoi(string(args[2]))
	stop, err2 := strconv.Atoi(string(args[3]))
	if err1 != nil || err2 != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	out, err := ctx.Store.LRange(ctx.DB, string(args[1]), start, stop)
	if err != nil {
		return resp.Value{}, err
	}
	return bulkArray(out), nil
}

func cmdLTrim(ctx *Context, args [][]byte) (resp.Value, error) {
	start, err1 := strconv.Atoi(string(args[2]))
	stop, err2 := strconv.Atoi(string(args[3]))
	if err1 != nil || err2 != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	if err := ctx.Store.LTrim(ctx.DB, string(args[1]), start, stop); err != nil {
		return resp.Value{}, err
	}
	return ok(), nil
}

func cmdLRem(ctx *Context, args [][]byte) (resp.Value, error) {
	count, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	n, err := ctx.Store.LRem(ctx.DB, string(args[1]), count, args[3])
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdLInsert(ctx *Context, args [][]byte) (resp.Value, error) {
	var before bool
	switch strings.ToUpper(string(args[2])) {
	case "BEFORE":
		before = true
	case "AFTER":
		before = false
	default:
		return resp.Value{}, NewError("ERR", "syntax error")
	}
	n, err := ctx.Store.LInsert(ctx.DB, string(args[1]), before, args[3], args[4])
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func blockingTimeout(b []byte) (time.Duration, error) {
	secs, err := strconv.ParseFloat(string(b), 64)
	if err != nil || secs < 0 {
		return 0, NewError("ERR", "timeout is not a float or out of range")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func cmdBLPop(ctx *Context, args [][]byte) (resp.Value, error) {
	return blockingPop(ctx, args, true)
}

func cmdBRPop(ctx *Context, args [][]byte) (resp.Value, error) {
	return blockingPop(ctx, args, false)
}

// blockingPop implements BLPOP/BRPOP (spec.md §4.7): try each key
// immediately in argument order; if none has data, register with the
// blocking coordinator and wait. Inside EXEC or a script (ctx.InExec),
// blocking commands never suspend — like real Redis, an immediate miss
// just returns nil, since the executor mutex is held for the whole batch.
func blockingPop(ctx *Context, args [][]byte, left bool) (resp.Value, error) {
	keys := make([]string, len(args)-2)
	for i, a := range args[1 : len(args)-1] {
		keys[i] = string(a)
	}
	timeout, err := blockingTimeout(args[len(args)-1])
	if err != nil {
		return resp.Value{}, err
	}

	for _, k := range keys {
		out, err := ctx.Store.Pop(ctx.DB, k, left, 1)
		if err != nil {
			return resp.Value{}, err
		}
		if len(out) > 0 {
			return resp.Arr(resp.BulkStr(k), resp.Bulk(out[0])), nil
		}
	}

	if ctx.Blocking == nil || ctx.InExec {
		return resp.NilArray(), nil
	}

	attempt := func(db int, key string) (interface{}, bool) {
		out, err := ctx.Store.Pop(db, key, left, 1)
		if err != nil || len(out) == 0 {
			return nil, false
		}
		return [2][]byte{[]byte(key), out[0]}, true
	}
	w := ctx.Blocking.Register(ctx.DB, keys, attempt, timeout)
	result, ok, _ := w.Result(blockingContext(ctx))
	if !ok || result == nil {
		return resp.NilArray(), nil
	}
	pair := result.([2][]byte)
	return resp.Arr(resp.Bulk(pair[0]), resp.Bulk(pair[1])), nil
}
