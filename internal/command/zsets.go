package command

import (
	"strconv"
	"strings"

	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/store"
)

func init() {
	Register(&Spec{Name: "ZADD", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdZAdd})
	Register(&Spec{Name: "ZREM", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdZRem})
	Register(&Spec{Name: "ZSCORE", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZScore})
	Register(&Spec{Name: "ZCARD", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZCard})
	Register(&Spec{Name: "ZRANK", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZRank})
	Register(&Spec{Name: "ZREVRANK", MinArgs: 3, MaxArgs: 3, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZRevRank})
	Register(&Spec{Name: "ZRANGE", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZRange})
	Register(&Spec{Name: "ZREVRANGE", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZRevRange})
	Register(&Spec{Name: "ZRANGEBYSCORE", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZRangeByScore})
	Register(&Spec{Name: "ZREVRANGEBYSCORE", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZRevRangeByScore})
	Register(&Spec{Name: "ZRANGEBYLEX", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZRangeByLex})
	Register(&Spec{Name: "ZREVRANGEBYLEX", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZRevRangeByLex})
	Register(&Spec{Name: "ZCOUNT", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdZCount})
	Register(&Spec{Name: "ZINCRBY", MinArgs: 4, MaxArgs: 4, FirstKey: 1, LastKey: 1, Handler: cmdZIncrBy})
}

func cmdZAdd(ctx *Context, args [][]byte) (resp.Value, error) {
	var flags store.ZAddFlags
	i := 2
loop:
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "NX":
			flags.NX = true
		case "XX":
			flags.XX = true
		case "GT":
			flags.GT = true
		case "LT":
			flags.LT = true
		case "CH":
			flags.Ch = true
		case "INCR":
			flags.Incr = true
		default:
			break loop
		}
		i++
	}
	if flags.NX && (flags.GT || flags.LT) {
		return resp.Value{}, NewError("ERR", "GT, LT, and/or NX options at the same time are not compatible")
	}
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.Value{}, NewError("ERR", "syntax error")
	}
	if flags.Incr && len(rest) != 2 {
		return resp.Value{}, NewError("ERR", "INCR option supports a single increment-element pair")
	}
	members := make([][]byte, 0, len(rest)/2)
	scores := make([]float64, 0, len(rest)/2)
	for j := 0; j < len(rest); j += 2 {
		s, err := strconv.ParseFloat(string(rest[j]), 64)
		if err != nil {
			return resp.Value{}, NewError("ERR", "value is not a valid float")
		}
		scores = append(scores, s)
		members = append(members, rest[j+1])
	}
	if flags.Incr {
		score, ok, err := ctx.Store.ZAddIncr(ctx.DB, string(args[1]), flags, members[0], scores[0])
		if err != nil {
			return resp.Value{}, err
		}
		if !ok {
			return resp.NilBulk(), nil
		}
		return resp.BulkStr(formatFloat(score)), nil
	}
	n, err := ctx.Store.ZAdd(ctx.DB, string(args[1]), flags, members, scores)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdZRem(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.ZRem(ctx.DB, string(args[1]), args[2:]...)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdZScore(ctx *Context, args [][]byte) (resp.Value, error) {
	s, found, err := ctx.Store.ZScore(ctx.DB, string(args[1]), args[2])
	if err != nil {
		return resp.Value{}, err
	}
	if !found {
		return resp.NilBulk(), nil
	}
	return resp.BulkStr(formatFloat(s)), nil
}

func cmdZCard(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Store.ZCard(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func zRank(ctx *Context, args [][]byte, rev bool) (resp.Value, error) {
	r, found, err := ctx.Store.ZRank(ctx.DB, string(args[1]), args[2], rev)
	if err != nil {
		return resp.Value{}, err
	}
	if !found {
		return resp.NilBulk(), nil
	}
	return resp.Int(int64(r)), nil
}

func cmdZRank(ctx *Context, args [][]byte) (resp.Value, error)    { return zRank(ctx, args, false) }
func cmdZRevRank(ctx *Context, args [][]byte) (resp.Value, error) { return zRank(ctx, args, true) }

func zMembersReply(members []store.ZMember, withScores bool) resp.Value {
	if !withScores {
		out := make([][]byte, len(members))
		for i, m := range members {
			out[i] = m.Member
		}
		return bulkArray(out)
	}
	vals := make([]resp.Value, 0, len(members)*2)
	for _, m := range members {
		vals = append(vals, resp.Bulk(m.Member), resp.BulkStr(formatFloat(m.Score)))
	}
	return resp.ArrSlice(vals)
}

func rangeByRank(ctx *Context, args [][]byte, rev bool) (resp.Value, error) {
	start, err1 := strconv.Atoi(string(args[2]))
	stop, err2 := strconv.Atoi(string(args[3]))
	if err1 != nil || err2 != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	withScores := false
	for _, a := range args[4:] {
		if strings.EqualFold(string(a), "WITHSCORES") {
			withScores = true
		}
	}
	members, err := ctx.Store.ZRangeByRank(ctx.DB, string(args[1]), start, stop, rev)
	if err != nil {
		return resp.Value{}, err
	}
	return zMembersReply(members, withScores), nil
}

func cmdZRange(ctx *Context, args [][]byte) (resp.Value, error) {
	return rangeByRank(ctx, args, false)
}

func cmdZRevRange(ctx *Context, args [][]byte) (resp.Value, error) {
	return rangeByRank(ctx, args, true)
}

func parseScoreBound(s string) (float64, bool, error) {
	excl := false
	if strings.HasPrefix(s, "(") {
		excl = true
		s = s[1:]
	}
	switch s {
	case "+inf", "inf":
		return maxFloat, excl, nil
	case "-inf":
		return minFloat, excl, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, NewError("ERR", "min or max is not a float")
	}
	return f, excl, nil
}

const maxFloat = 1.0e308
const minFloat = -1.0e308

func parseScoreRange(minArg, maxArg []byte) (store.ScoreRange, error) {
	min, minExcl, err := parseScoreBound(string(minArg))
	if err != nil {
		return store.ScoreRange{}, err
	}
	max, maxExcl, err := parseScoreBound(string(maxArg))
	if err != nil {
		return store.ScoreRange{}, err
	}
	return store.ScoreRange{Min: min, Max: max, MinExcl: minExcl, MaxExcl: maxExcl}, nil
}

func parseLimit(args [][]byte) (offset, count int, err error) {
	offset, count = 0, -1
	for i := 0; i < len(args); i++ {
		if strings.EqualFold(string(args[i]), "LIMIT") {
			if i+2 >= len(args) {
				return 0, 0, NewError("ERR", "syntax error")
			}
			offset, err = strconv.Atoi(string(args[i+1]))
			if err != nil {
				return 0, 0, NewError("ERR", "value is not an integer or out of range")
			}
			count, err = strconv.Atoi(string(args[i+2]))
			if err != nil {
				return 0, 0, NewError("ERR", "value is not an integer or out of range")
			}
		}
	}
	return offset, count, nil
}

func hasWithScores(args [][]byte) bool {
	for _, a := range args {
		if strings.EqualFold(string(a), "WITHSCORES") {
			return true
		}
	}
	return false
}

func rangeByScore(ctx *Context, args [][]byte, rev bool) (resp.Value, error) {
	lo, hi := args[2], args[3]
	if rev {
		lo, hi = args[3], args[2]
	}
	r, err := parseScoreRange(lo, hi)
	if err != nil {
		return resp.Value{}, err
	}
	offset, count, err := parseLimit(args[4:])
	if err != nil {
		return resp.Value{}, err
	}
	members, err := ctx.Store.ZRangeByScore(ctx.DB, string(args[1]), r, rev, offset, count)
	if err != nil {
		return resp.Value{}, err
	}
	return zMembersReply(members, hasWithScores(args[4:])), nil
}

func cmdZRangeByScore(ctx *Context, args [][]byte) (resp.Value, error) {
	return rangeByScore(ctx, args, false)
}

func cmdZRevRangeByScore(ctx *Context, args [][]byte) (resp.Value, error) {
	return rangeByScore(ctx, args, true)
}

func parseLexBound(s string) (val []byte, excl, unbounded bool, err error) {
	switch {
	case s == "-" || s == "+":
		return nil, false, true, nil
	case strings.HasPrefix(s, "["):
		return []byte(s[1:]), false, false, nil
	case strings.HasPrefix(s, "("):
		return []byte(s[1:]), true, false, nil
	default:
		return nil, false, false, NewError("ERR", "min or max not valid string range item")
	}
}

func parseLexRange(minArg, maxArg []byte) (store.LexRange, error) {
	minVal, minExcl, minUnb, err := parseLexBound(string(minArg))
	if err != nil {
		return store.LexRange{}, err
	}
	maxVal, maxExcl, maxUnb, err := parseLexBound(string(maxArg))
	if err != nil {
		return store.LexRange{}, err
	}
	return store.LexRange{
		Min: minVal, Max: maxVal,
		MinExcl: minExcl, MaxExcl: maxExcl,
		MinUnbounded: minUnb, MaxUnbounded: maxUnb,
	}, nil
}

func rangeByLex(ctx *Context, args [][]byte, rev bool) (resp.Value, error) {
	lo, hi := args[2], args[3]
	if rev {
		lo, hi = args[3], args[2]
	}
	r, err := parseLexRange(lo, hi)
	if err != nil {
		return resp.Value{}, err
	}
	offset, count, err := parseLimit(args[4:])
	if err != nil {
		return resp.Value{}, err
	}
	members, err := ctx.Store.ZRangeByLex(ctx.DB, string(args[1]), r, rev, offset, count)
	if err != nil {
		return resp.Value{}, err
	}
	return zMembersReply(members, false), nil
}

func cmdZRangeByLex(ctx *Context, args [][]byte) (resp.Value, error) {
	return rangeByLex(ctx, args, false)
}

func cmdZRevRangeByLex(ctx *Context, args [][]byte) (resp.Value, error) {
	return rangeByLex(ctx, args, true)
}

func cmdZCount(ctx *Context, args [][]byte) (resp.Value, error) {
	r, err := parseScoreRange(args[2], args[3])
	if err != nil {
		return resp.Value{}, err
	}
	n, err := ctx.Store.ZCount(ctx.DB, string(args[1]), r)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdZIncrBy(ctx *Context, args [][]byte) (resp.Value, error) {
	delta, err := strconv.ParseFloat(string(args[2]), 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not a valid float")
	}
	n, err := ctx.Store.ZIncrBy(ctx.DB, string(args[1]), args[3], delta)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.BulkStr(formatFloat(n)), nil
}
