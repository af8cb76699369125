package command

import (
	"strconv"

	"github.com/shanas-swi/goredis/internal/resp"
)

func init() {
	Register(&Spec{Name: "HSET", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdHSet})
	Register(&Spec{Name: "HMSET", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdHMSet})
	Register(&Spec{Name: "HSETNX", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdHSetNX})
	Register(&Spec{Name: "HGET", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdHGet})
	Register(&Spec{Name: "HMGET", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdHMGet})
	Register(&Spec{Name: "HDEL", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdHDel})
	Register(&Spec{Name: "HGETALL", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdHGetAll})
	Register(&Spec{Name: "HKEYS", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdHKeys})
	Register(&Spec{Name: "HVALS", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdHVals})
	Register(&Spec{Name: "HLEN", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdHLen})
	Register(&Spec{Name: "HEXISTS", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdHExists})
	Register(&Spec{Name: "HINCRBY", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdHIncrBy})
	Register(&Spec{Name: "HINCRBYFLOAT", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdHIncrByFloat})
}

func hFieldsValues(args [][]byte) (fields, values [][]byte, err error) {
	rest := args[2:]
	if len(rest)%2 != 0 {
		return nil, nil, NewError("ERR", "wrong number of arguments for HMSET")
	}
	for i := 0; i < len(rest); i += 2 {
		fields = append(fields, rest[i])
		values = append(values, rest[i+1])
	}
	return fields, values, nil
}

func cmdHSet(ctx *Context, args [][]byte) (resp.Value, error) {
	fields, values, err := hFieldsValues(args)
	if err != nil {
		return resp.Value{}, err
	}
	n, err := ctx.Store.HSet(ctx.DB, string(args[1]), fields, values)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdHMSet(ctx *Context, args [][]byte) (resp.Value, error) {
	fields, values, err := hFieldsValues(args)
	if err != nil {
		return resp.Value{}, err
	}
	if _, err := ctx.Store.HSet(ctx.DB, string(args[1]), fields, values); err != nil {
		return resp.Value{}, err
	}
	return ok(), nil
}

func cmdHSetNX(ctx *Context, args [][]byte) (resp.Value, error) {
	created, err := ctx.Store.HSetNX(ctx.DB, string(args[1]), args[2], args[3])
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(boolInt(created)), nil
}

func cmdHGet(ctx *Context, args [][]byte) (resp.Value, error) {
	v, found, err := ctx.Store.HGet(ctx.DB, string(args[1]), args[2])
	if err != nil {
		return resp.Value{}, err
	}
	if !found {
		return resp.NilBulk(), nil
	}
	return resp.Bulk(v), nil
}

func cmdHMGet(ctx *Context, args [][]byte) (resp.Value, error) {
	out := make([][]byte, len(args)-2)
	for i, f := range args[2:] {
		v, found, err := ctx.Store.HGet(ctx.DB, string(args[1]), f)
		if err != nil {
			return resp.Value{}, err
		}
		if found {
			out[i] = v
		}
	}
	return bulkArray(out), nil
}

func cmdHDel(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.HDel(ctx.DB, string(args[1]), args[2:]...)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdHGetAll(ctx *Context, args [][]byte) (resp.Value, error) {
	m, err := ctx.Store.HGetAll(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	vals := make([]resp.Value, 0, len(m)*2)
	for k, v := range m {
		vals = append(vals, resp.BulkStr(k), resp.Bulk(v))
	}
	return resp.ArrSlice(vals), nil
}

func cmdHKeys(ctx *Context, args [][]byte) (resp.Value, error) {
	m, err := ctx.Store.HGetAll(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return strArray(keys), nil
}

func cmdHVals(ctx *Context, args [][]byte) (resp.Value, error) {
	m, err := ctx.Store.HGetAll(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	vals := make([][]byte, 0, len(m))
	for _, v := range m {
		vals = append(vals, v)
	}
	return bulkArray(vals), nil
}

func cmdHLen(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.HLen(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdHExists(ctx *Context, args [][]byte) (resp.Value, error) {
	ok, err := ctx.Store.HExists(ctx.DB, string(args[1]), args[2])
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(boolInt(ok)), nil
}

func cmdHIncrBy(ctx *Context, args [][]byte) (resp.Value, error) {
	delta, err := strconv.ParseInt(string(args[3]), 10, 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	n, err := ctx.Store.HIncrBy(ctx.DB, string(args[1]), args[2], delta)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(n), nil
}

func cmdHIncrByFloat(ctx *Context, args [][]byte) (resp.Value, error) {
	delta, err := strconv.ParseFloat(string(args[3]), 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not a valid float")
	}
	n, err := ctx.Store.HIncrByFloat(ctx.DB, string(args[1]), args[2], delta)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.BulkStr(formatFloat(n)), nil
}
