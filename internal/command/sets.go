package command

import "github.com/shanas-swi/goredis/internal/resp"

func init() {
	Register(&Spec{Name: "SADD", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdSAdd})
	Register(&Spec{Name: "SREM", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdSRem})
	Register(&Spec{Name: "SMEMBERS", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdSMembers})
	Register(&Spec{Name: "SISMEMBER", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdSIsMember})
	Register(&Spec{Name: "SCARD", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdSCard})
	Register(&Spec{Name: "SUNION", MinArgs: 2, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 1, ReadOnly: true, Handler: cmdSUnion})
	Register(&Spec{Name: "SINTER", MinArgs: 2, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 1, ReadOnly: true, Handler: cmdSInter})
	Register(&Spec{Name: "SDIFF", MinArgs: 2, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 1, ReadOnly: true, Handler: cmdSDiff})
	Register(&Spec{Name: "SUNIONSTORE", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdSUnionStore})
	Register(&Spec{Name: "SINTERSTORE", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdSInterStore})
	Register(&Spec{Name: "SDIFFSTORE", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: -1, KeyStep: 1, Handler: cmdSDiffStore})
}

func cmdSAdd(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.SAdd(ctx.DB, string(args[1]), args[2:]...)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdSRem(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.SRem(ctx.DB, string(args[1]), args[2:]...)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdSMembers(ctx *Context, args [][]byte) (resp.Value, error) {
	out, err := ctx.Store.SMembers(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	return bulkArray(out), nil
}

func cmdSIsMember(ctx *Context, args [][]byte) (resp.Value, error) {
	ok, err := ctx.Store.SIsMember(ctx.DB, string(args[1]), args[2])
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(boolInt(ok)), nil
}

func cmdSCard(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.SCard(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func keysFrom(args [][]byte) []string {
	keys := make([]string, len(args)-1)
	for i, a := range args[1:] {
		keys[i] = string(a)
	}
	return keys
}

func cmdSUnion(ctx *Context, args [][]byte) (resp.Value, error) {
	out, err := ctx.Store.SUnion(ctx.DB, keysFrom(args))
	if err != nil {
		return resp.Value{}, err
	}
	return bulkArray(out), nil
}

func cmdSInter(ctx *Context, args [][]byte) (resp.Value, error) {
	out, err := ctx.Store.SInter(ctx.DB, keysFrom(args))
	if err != nil {
		return resp.Value{}, err
	}
	return bulkArray(out), nil
}

func cmdSDiff(ctx *Context, args [][]byte) (resp.Value, error) {
	out, err := ctx.Store.SDiff(ctx.DB, keysFrom(args))
	if err != nil {
		return resp.Value{}, err
	}
	return bulkArray(out), nil
}

func cmdSUnionStore(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.SUnionStore(ctx.DB, string(args[1]), keysFrom(args[1:]))
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdSInterStore(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.SInterStore(ctx.DB, string(args[1]), keysFrom(args[1:]))
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdSDiffStore(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.SDiffStore(ctx.DB, string(args[1]), keysFrom(args[1:]))
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}
