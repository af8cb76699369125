package command

import (
	"strconv"
	"strings"

	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/store"
)

func init() {
	Register(&Spec{Name: "GET", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdGet})
	Register(&Spec{Name: "SET", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdSet})
	Register(&Spec{Name: "SETNX", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdSetNX})
	Register(&Spec{Name: "SETEX", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdSetEX})
	Register(&Spec{Name: "PSETEX", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdPSetEX})
	Register(&Spec{Name: "GETSET", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdGetSet})
	Register(&Spec{Name: "GETDEL", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, Handler: cmdGetDel})
	Register(&Spec{Name: "APPEND", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdAppend})
	Register(&Spec{Name: "STRLEN", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdStrLen})
	Register(&Spec{Name: "GETRANGE", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdGetRange})
	Register(&Spec{Name: "SETRANGE", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdSetRange})
	Register(&Spec{Name: "INCR", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, Handler: cmdIncr})
	Register(&Spec{Name: "DECR", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, Handler: cmdDecr})
	Register(&Spec{Name: "INCRBY", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdIncrBy})
	Register(&Spec{Name: "DECRBY", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdDecrBy})
	Register(&Spec{Name: "INCRBYFLOAT", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, Handler: cmdIncrByFloat})
	Register(&Spec{Name: "MGET", MinArgs: 2, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 1, ReadOnly: true, Handler: cmdMGet})
	Register(&Spec{Name: "MSET", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 2, Handler: cmdMSet})
	Register(&Spec{Name: "MSETNX", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 2, Handler: cmdMSetNX})
}

func cmdGet(ctx *Context, args [][]byte) (resp.Value, error) {
	v, ok := ctx.Store.Get(ctx.DB, string(args[1]))
	if !ok {
		return resp.NilBulk(), nil
	}
	if err := typeCheckString(v); err != nil {
		return resp.Value{}, err
	}
	return resp.Bulk(v.Str), nil
}

func typeCheckString(v *store.Value) error {
	if v.Kind != store.KindString {
		return &store.WrongTypeError{Have: v.Kind, Want: store.KindString}
	}
	return nil
}

func cmdSet(ctx *Context, args [][]byte) (resp.Value, error) {
	key := string(args[1])
	val := args[2]
	opts := store.SetOptions{}
	getReturn := false
	for i := 3; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "NX":
			opts.Existence = store.OnlyIfAbsent
		case "XX":
			opts.Existence = store.OnlyIfPresent
		case "KEEPTTL":
			opts.TTLPolicy = store.KeepExisting
		case "GET":
			getReturn = true
		case "EX":
			i++
			if i >= len(args) {
				return resp.Value{}, NewError("ERR", "syntax error")
			}
			d, err := parseSeconds(args[i])
			if err != nil {
				return resp.Value{}, err
			}
			opts.TTLPolicy = store.SetAbsolute
			opts.ExpiresAt = ctx.Store.Now() + d.Nanoseconds()
		case "PX":
			i++
			if i >= len(args) {
				return resp.Value{}, NewError("ERR", "syntax error")
			}
			d, err := parseMillis(args[i])
			if err != nil {
				return resp.Value{}, err
			}
			opts.TTLPolicy = store.SetAbsolute
			opts.ExpiresAt = ctx.Store.Now() + d.Nanoseconds()
		default:
			return resp.Value{}, NewError("ERR", "syntax error")
		}
	}

	var oldVal *store.Value
	if getReturn {
		oldVal, _ = ctx.Store.Get(ctx.DB, key)
		if oldVal != nil {
			if err := typeCheckString(oldVal); err != nil {
				return resp.Value{}, err
			}
		}
	}

	stored, _ := ctx.Store.SetKey(ctx.DB, key, store.NewString(append([]byte(nil), val...)), opts)

	if getReturn {
		if !stored {
			if oldVal == nil {
				return resp.NilBulk(), nil
			}
			return resp.Bulk(oldVal.Str), nil
		}
		if oldVal == nil {
			return resp.NilBulk(), nil
		}
		return resp.Bulk(oldVal.Str), nil
	}
	if !stored {
		return resp.NilBulk(), nil
	}
	return ok(), nil
}

func cmdSetNX(ctx *Context, args [][]byte) (resp.Value, error) {
	stored, _ := ctx.Store.SetKey(ctx.DB, string(args[1]), store.NewString(append([]byte(nil), args[2]...)), store.SetOptions{Existence: store.OnlyIfAbsent})
	return resp.Int(boolInt(stored)), nil
}

func cmdSetEX(ctx *Context, args [][]byte) (resp.Value, error) {
	d, err := parseSeconds(args[2])
	if err != nil {
		return resp.Value{}, err
	}
	opts := store.SetOptions{TTLPolicy: store.SetAbsolute, ExpiresAt: ctx.Store.Now() + d.Nanoseconds()}
	ctx.Store.SetKey(ctx.DB, string(args[1]), store.NewString(append([]byte(nil), args[3]...)), opts)
	return ok(), nil
}

func cmdPSetEX(ctx *Context, args [][]byte) (resp.Value, error) {
	d, err := parseMillis(args[2])
	if err != nil {
		return resp.Value{}, err
	}
	opts := store.SetOptions{TTLPolicy: store.SetAbsolute, ExpiresAt: ctx.Store.Now() + d.Nanoseconds()}
	ctx.Store.SetKey(ctx.DB, string(args[1]), store.NewString(append([]byte(nil), args[3]...)), opts)
	return ok(), nil
}

func cmdGetSet(ctx *Context, args [][]byte) (resp.Value, error) {
	old, _, err := ctx.Store.GetSet(ctx.DB, string(args[1]), append([]byte(nil), args[2]...))
	if err != nil {
		return resp.Value{}, err
	}
	if old == nil {
		return resp.NilBulk(), nil
	}
	return resp.Bulk(old), nil
}

func cmdGetDel(ctx *Context, args [][]byte) (resp.Value, error) {
	v, ok := ctx.Store.Get(ctx.DB, string(args[1]))
	if !ok {
		return resp.NilBulk(), nil
	}
	if err := typeCheckString(v); err != nil {
		return resp.Value{}, err
	}
	val := v.Str
	ctx.Store.Delete(ctx.DB, string(args[1]))
	return resp.Bulk(val), nil
}

func cmdAppend(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.Append(ctx.DB, string(args[1]), args[2])
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdStrLen(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.StrLen(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdGetRange(ctx *Context, args [][]byte) (resp.Value, error) {
	start, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	end, err := strconv.Atoi(string(args[3]))
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	out, err := ctx.Store.GetRange(ctx.DB, string(args[1]), start, end)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Bulk(out), nil
}

func cmdSetRange(ctx *Context, args [][]byte) (resp.Value, error) {
	offset, err := strconv.Atoi(string(args[2]))
	if err != nil || offset < 0 {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	n, err := ctx.Store.SetRange(ctx.DB, string(args[1]), offset, args[3])
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdIncr(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.IncrBy(ctx.DB, string(args[1]), 1)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(n), nil
}

func cmdDecr(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.IncrBy(ctx.DB, string(args[1]), -1)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(n), nil
}

func cmdIncrBy(ctx *Context, args [][]byte) (resp.Value, error) {
	delta, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	n, err := ctx.Store.IncrBy(ctx.DB, string(args[1]), delta)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(n), nil
}

func cmdDecrBy(ctx *Context, args [][]byte) (resp.Value, error) {
	delta, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	n, err := ctx.Store.IncrBy(ctx.DB, string(args[1]), -delta)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(n), nil
}

func cmdIncrByFloat(ctx *Context, args [][]byte) (resp.Value, error) {
	delta, err := strconv.ParseFloat(string(args[2]), 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not a valid float")
	}
	n, err := ctx.Store.IncrByFloat(ctx.DB, string(args[1]), delta)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.BulkStr(formatFloat(n)), nil
}

func cmdMGet(ctx *Context, args [][]byte) (resp.Value, error) {
	keys := make([]string, len(args)-1)
	for i, a := range args[1:] {
		keys[i] = string(a)
	}
	vals := ctx.Store.MultiKeyRead(ctx.DB, keys)
	out := make([][]byte, len(vals))
	for i, v := range vals {
		if v != nil && v.Kind == store.KindString {
			out[i] = v.Str
		}
	}
	return bulkArray(out), nil
}

func cmdMSet(ctx *Context, args [][]byte) (resp.Value, error) {
	if (len(args)-1)%2 != 0 {
		return resp.Value{}, wrongArgsErr("mset")
	}
	for i := 1; i < len(args); i += 2 {
		ctx.Store.SetKey(ctx.DB, string(args[i]), store.NewString(append([]byte(nil), args[i+1]...)), store.SetOptions{})
	}
	return ok(), nil
}

func cmdMSetNX(ctx *Context, args [][]byte) (resp.Value, error) {
	if (len(args)-1)%2 != 0 {
		return resp.Value{}, wrongArgsErr("msetnx")
	}
	for i := 1; i < len(args); i += 2 {
		if ctx.Store.Exists(ctx.DB, string(args[i])) > 0 {
			return resp.Int(0), nil
		}
	}
	for i := 1; i < len(args); i += 2 {
		ctx.Store.SetKey(ctx.DB, string(args[i]), store.NewString(append([]byte(nil), args[i+1]...)), store.SetOptions{Existence: store.OnlyIfAbsent})
	}
	return resp.Int(1), nil
}

func wrongArgsErr(name string) error {
	return NewError("ERR", "wrong number of arguments for '%s' command", name)
}
