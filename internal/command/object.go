package command

import (
	"strconv"
	"strings"

	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/store"
)

func init() {
	Register(&Spec{Name: "OBJECT", MinArgs: 2, MaxArgs: -1, ReadOnly: true, Handler: cmdObject})
}

// listpackThreshold mirrors real Redis's default list-max-listpack-size /
// hash-max-listpack-entries / zset-max-listpack-entries cutover: small
// aggregates report the compact listpack encoding, larger ones report
// the encoding real Redis promotes to.
const listpackThreshold = 128

// embstrThreshold is real Redis's OBJ_ENCODING_EMBSTR_SIZE_LIMIT: strings
// at or under this length are embedded rather than raw-allocated.
const embstrThreshold = 44

// objectEncoding reports the encoding name OBJECT ENCODING would print
// for the given value, per SPEC_FULL.md component E.
func objectEncoding(v *store.Value) string {
	switch v.Kind {
	case store.KindString:
		if _, err := strconv.ParseInt(string(v.Str), 10, 64); err == nil {
			return "int"
		}
		if len(v.Str) <= embstrThreshold {
			return "embstr"
		}
		return "raw"
	case store.KindList:
		if v.List.Len() <= listpackThreshold {
			return "listpack"
		}
		return "quicklist"
	case store.KindSet:
		if v.Set.Len() <= listpackThreshold {
			return "listpack"
		}
		return "hashtable"
	case store.KindHash:
		if v.Hash.Len() <= listpackThreshold {
			return "listpack"
		}
		return "hashtable"
	case store.KindSortedSet:
		if v.ZSet.Len() <= listpackThreshold {
			return "listpack"
		}
		return "skiplist"
	case store.KindStream:
		return "stream"
	default:
		return "unknown"
	}
}

// cmdObject implements OBJECT ENCODING/REFCOUNT/IDLETIME/HELP. Reference
// counting is not modeled (every value is exclusively owned by its key),
// so REFCOUNT always answers 1; IDLETIME has no per-key access clock, so
// it answers 0 rather than fabricate one.
func cmdObject(ctx *Context, args [][]byte) (resp.Value, error) {
	sub := string(args[1])
	switch strings.ToUpper(sub) {
	case "ENCODING":
		if len(args) != 3 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'object|encoding' command")
		}
		v, found := ctx.Store.Get(ctx.DB, string(args[2]))
		if !found {
			return resp.Value{}, NewError("ERR", "no such key")
		}
		return resp.BulkStr(objectEncoding(v)), nil
	case "REFCOUNT":
		if len(args) != 3 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'object|refcount' command")
		}
		if _, found := ctx.Store.Get(ctx.DB, string(args[2])); !found {
			return resp.Value{}, NewError("ERR", "no such key")
		}
		return resp.Int(1), nil
	case "IDLETIME":
		if len(args) != 3 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'object|idletime' command")
		}
		if _, found := ctx.Store.Get(ctx.DB, string(args[2])); !found {
			return resp.Value{}, NewError("ERR", "no such key")
		}
		return resp.Int(0), nil
	case "HELP":
		return resp.Arr(resp.BulkStr("OBJECT ENCODING|REFCOUNT|IDLETIME key")), nil
	default:
		return resp.Value{}, NewError("ERR", "unknown subcommand or wrong number of arguments for '%s'", sub)
	}
}
