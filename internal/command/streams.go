package command

import (
	"strconv"
	"strings"

	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/store"
	"github.com/shanas-swi/goredis/internal/stream"
)

func init() {
	Register(&Spec{Name: "XADD", MinArgs: 5, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdXAdd})
	Register(&Spec{Name: "XLEN", MinArgs: 2, MaxArgs: 2, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdXLen})
	Register(&Spec{Name: "XRANGE", MinArgs: 4, MaxArgs: 6, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdXRange})
	Register(&Spec{Name: "XREVRANGE", MinArgs: 4, MaxArgs: 6, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdXRevRange})
	Register(&Spec{Name: "XDEL", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdXDel})
	Register(&Spec{Name: "XTRIM", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdXTrim})
	Register(&Spec{Name: "XGROUP", MinArgs: 2, MaxArgs: -1, FirstKey: 2, LastKey: 2, Handler: cmdXGroup})
	Register(&Spec{Name: "XREADGROUP", MinArgs: 7, MaxArgs: -1, NoScript: true, Handler: cmdXReadGroup})
	Register(&Spec{Name: "XACK", MinArgs: 4, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdXAck})
	Register(&Spec{Name: "XPENDING", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, ReadOnly: true, Handler: cmdXPending})
	Register(&Spec{Name: "XCLAIM", MinArgs: 6, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdXClaim})
	Register(&Spec{Name: "XAUTOCLAIM", MinArgs: 7, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdXAutoClaim})
	Register(&Spec{Name: "XSETID", MinArgs: 3, MaxArgs: -1, FirstKey: 1, LastKey: 1, Handler: cmdXSetID})
}

func entryReply(e store.Entry) resp.Value {
	fields := make([]resp.Value, 0, len(e.Fields)*2)
	for _, f := range e.Fields {
		fields = append(fields, resp.Bulk(f.Key), resp.Bulk(f.Value))
	}
	return resp.Arr(resp.BulkStr(stream.FormatID(e.ID)), resp.ArrSlice(fields))
}

func entriesReply(entries []store.Entry) resp.Value {
	vals := make([]resp.Value, len(entries))
	for i, e := range entries {
		vals[i] = entryReply(e)
	}
	return resp.ArrSlice(vals)
}

func cmdXAdd(ctx *Context, args [][]byte) (resp.Value, error) {
	i := 2
	maxLen := -1
	mkstream := true
	var minID *store.ID
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "MAXLEN":
			i++
			if i < len(args) && (args[i][0] == '~' || args[i][0] == '=') {
				i++
			}
			n, err := strconv.Atoi(string(args[i]))
			if err != nil {
				return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
			}
			maxLen = n
			i++
		case "MINID":
			i++
			if i < len(args) && (args[i][0] == '~' || args[i][0] == '=') {
				i++
			}
			id, err := stream.ParseID(string(args[i]), 0)
			if err != nil {
				return resp.Value{}, err
			}
			minID = &id
			i++
		case "LIMIT":
			i += 2
		case "NOMKSTREAM":
			mkstream = false
			i++
		default:
			goto doneOpts
		}
	}
doneOpts:
	if i >= len(args) {
		return resp.Value{}, NewError("ERR", "wrong number of arguments for 'xadd' command")
	}
	idSpec := string(args[i])
	i++
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return resp.Value{}, NewError("ERR", "wrong number of arguments for 'xadd' command")
	}
	fields := make([]store.Field, 0, len(rest)/2)
	for j := 0; j < len(rest); j += 2 {
		fields = append(fields, store.Field{Key: rest[j], Value: rest[j+1]})
	}
	id, err := ctx.Streams.Add(ctx.DB, string(args[1]), idSpec, fields, maxLen, minID, mkstream)
	if err == store.ErrNoSuchKey {
		return resp.NilBulk(), nil
	}
	if err != nil {
		return resp.Value{}, err
	}
	return resp.BulkStr(stream.FormatID(id)), nil
}

func cmdXLen(ctx *Context, args [][]byte) (resp.Value, error) {
	n, err := ctx.Streams.Len(ctx.DB, string(args[1]))
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func parseRangeBound(s string, isStart bool) (store.ID, error) {
	switch s {
	case "-":
		return store.MinID, nil
	case "+":
		return store.MaxID, nil
	}
	defaultSeq := uint64(0)
	if !isStart {
		defaultSeq = ^uint64(0)
	}
	return stream.ParseID(s, defaultSeq)
}

func rangeCmd(ctx *Context, args [][]byte, rev bool) (resp.Value, error) {
	fromArg, toArg := args[2], args[3]
	if rev {
		fromArg, toArg = args[3], args[2]
	}
	from, err := parseRangeBound(string(fromArg), true)
	if err != nil {
		return resp.Value{}, err
	}
	to, err := parseRangeBound(string(toArg), false)
	if err != nil {
		return resp.Value{}, err
	}
	count := -1
	if len(args) >= 6 && strings.EqualFold(string(args[4]), "COUNT") {
		n, err := strconv.Atoi(string(args[5]))
		if err != nil {
			return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
		}
		count = n
	}
	entries, err := ctx.Streams.Range(ctx.DB, string(args[1]), from, to, count, rev)
	if err != nil {
		return resp.Value{}, err
	}
	return entriesReply(entries), nil
}

func cmdXRange(ctx *Context, args [][]byte) (resp.Value, error)    { return rangeCmd(ctx, args, false) }
func cmdXRevRange(ctx *Context, args [][]byte) (resp.Value, error) { return rangeCmd(ctx, args, true) }

func cmdXDel(ctx *Context, args [][]byte) (resp.Value, error) {
	ids := make([]store.ID, len(args)-2)
	for i, a := range args[2:] {
		id, err := stream.ParseID(string(a), 0)
		if err != nil {
			return resp.Value{}, err
		}
		ids[i] = id
	}
	n, err := ctx.Streams.Del(ctx.DB, string(args[1]), ids)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdXTrim(ctx *Context, args [][]byte) (resp.Value, error) {
	maxLen := -1
	var minID *store.ID
	i := 2
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "MAXLEN":
			i++
			if i < len(args) && (args[i][0] == '~' || args[i][0] == '=') {
				i++
			}
			n, err := strconv.Atoi(string(args[i]))
			if err != nil {
				return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
			}
			maxLen = n
			i++
		case "MINID":
			i++
			if i < len(args) && (args[i][0] == '~' || args[i][0] == '=') {
				i++
			}
			id, err := stream.ParseID(string(args[i]), 0)
			if err != nil {
				return resp.Value{}, err
			}
			minID = &id
			i++
		case "LIMIT":
			i += 2
		default:
			return resp.Value{}, NewError("ERR", "syntax error")
		}
	}
	n, err := ctx.Streams.Trim(ctx.DB, string(args[1]), maxLen, minID)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

// cmdXSetID implements XSETID key id [ENTRIESADDED n] [MAXDELETEDID id],
// the administrative escape hatch for repairing a stream's sequencing
// state after a restore (spec.md §4.9, SPEC_FULL.md component I).
func cmdXSetID(ctx *Context, args [][]byte) (resp.Value, error) {
	id, err := stream.ParseID(string(args[2]), 0)
	if err != nil {
		return resp.Value{}, err
	}
	var entriesAdded *int64
	var maxDeletedID *store.ID
	i := 3
	for i < len(args) {
		switch strings.ToUpper(string(args[i])) {
		case "ENTRIESADDED":
			i++
			if i >= len(args) {
				return resp.Value{}, NewError("ERR", "syntax error")
			}
			n, err := strconv.ParseInt(string(args[i]), 10, 64)
			if err != nil {
				return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
			}
			entriesAdded = &n
			i++
		case "MAXDELETEDID":
			i++
			if i >= len(args) {
				return resp.Value{}, NewError("ERR", "syntax error")
			}
			mdid, err := stream.ParseID(string(args[i]), 0)
			if err != nil {
				return resp.Value{}, err
			}
			maxDeletedID = &mdid
			i++
		default:
			return resp.Value{}, NewError("ERR", "syntax error")
		}
	}
	if err := ctx.Streams.SetID(ctx.DB, string(args[1]), id, entriesAdded, maxDeletedID, false); err != nil {
		return resp.Value{}, err
	}
	return ok(), nil
}

func cmdXGroup(ctx *Context, args [][]byte) (resp.Value, error) {
	sub := strings.ToUpper(string(args[1]))
	switch sub {
	case "CREATE":
		if len(args) < 5 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'xgroup' command")
		}
		key, group := string(args[2]), string(args[3])
		mkstream := false
		for _, a := range args[5:] {
			if strings.EqualFold(string(a), "MKSTREAM") {
				mkstream = true
			}
		}
		var start store.ID
		if string(args[4]) == "$" {
			start = store.MaxID
		} else {
			id, err := stream.ParseID(string(args[4]), 0)
			if err != nil {
				return resp.Value{}, err
			}
			start = id
		}
		if err := ctx.Streams.GroupCreate(ctx.DB, key, group, start, mkstream); err != nil {
			return resp.Value{}, err
		}
		return ok(), nil
	case "DESTROY":
		if len(args) < 4 {
			return resp.Value{}, NewError("ERR", "wrong number of arguments for 'xgroup' command")
		}
		removed, err := ctx.Streams.GroupDestroy(ctx.DB, string(args[2]), string(args[3]))
		if err != nil {
			return resp.Value{}, err
		}
		return resp.Int(boolInt(removed)), nil
	default:
		return resp.Value{}, NewError("ERR", "unknown XGROUP subcommand '%s'", string(args[1]))
	}
}

// cmdXReadGroup supports a single-key "XREADGROUP GROUP g c [COUNT n]
// STREAMS key (>|id)" invocation; multi-key XREADGROUP is out of scope
// per spec.md's single-node, single-stream-per-call Non-goals.
func cmdXReadGroup(ctx *Context, args [][]byte) (resp.Value, error) {
	if !strings.EqualFold(string(args[1]), "GROUP") {
		return resp.Value{}, NewError("ERR", "syntax error")
	}
	group, consumer := string(args[2]), string(args[3])
	count := -1
	i := 4
	for i < len(args) && !strings.EqualFold(string(args[i]), "STREAMS") {
		if strings.EqualFold(string(args[i]), "COUNT") {
			n, err := strconv.Atoi(string(args[i+1]))
			if err != nil {
				return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
			}
			count = n
			i += 2
			continue
		}
		if strings.EqualFold(string(args[i]), "NOACK") {
			i++
			continue
		}
		i++
	}
	if i >= len(args) || !strings.EqualFold(string(args[i]), "STREAMS") {
		return resp.Value{}, NewError("ERR", "syntax error")
	}
	rest := args[i+1:]
	if len(rest) != 2 {
		return resp.Value{}, NewError("ERR", "multi-key XREADGROUP is not supported")
	}
	key := string(rest[0])
	idArg := string(rest[1])
	var startID *store.ID
	if idArg != ">" {
		id, err := stream.ParseID(idArg, 0)
		if err != nil {
			return resp.Value{}, err
		}
		startID = &id
	}
	entries, err := ctx.Streams.ReadGroup(ctx.DB, key, group, consumer, startID, count)
	if err != nil {
		return resp.Value{}, err
	}
	if len(entries) == 0 {
		return resp.NilArray(), nil
	}
	return resp.Arr(resp.Arr(resp.BulkStr(key), entriesReply(entries))), nil
}

func cmdXAck(ctx *Context, args [][]byte) (resp.Value, error) {
	ids := make([]store.ID, len(args)-3)
	for i, a := range args[3:] {
		id, err := stream.ParseID(string(a), 0)
		if err != nil {
			return resp.Value{}, err
		}
		ids[i] = id
	}
	n, err := ctx.Streams.Ack(ctx.DB, string(args[1]), string(args[2]), ids)
	if err != nil {
		return resp.Value{}, err
	}
	return resp.Int(int64(n)), nil
}

func cmdXPending(ctx *Context, args [][]byte) (resp.Value, error) {
	key, group := string(args[1]), string(args[2])
	if len(args) == 3 {
		count, min, max, perConsumer, err := ctx.Streams.PendingSummary(ctx.DB, key, group)
		if err != nil {
			return resp.Value{}, err
		}
		if count == 0 {
			return resp.Arr(resp.Int(0), resp.NilBulk(), resp.NilBulk(), resp.NilArray()), nil
		}
		consumers := make([]resp.Value, 0, len(perConsumer))
		for name, n := range perConsumer {
			consumers = append(consumers, resp.Arr(resp.BulkStr(name), resp.BulkStr(strconv.Itoa(n))))
		}
		return resp.Arr(
			resp.Int(int64(count)),
			resp.BulkStr(stream.FormatID(min)),
			resp.BulkStr(stream.FormatID(max)),
			resp.ArrSlice(consumers),
		), nil
	}

	i := 3
	var minIdle int64
	if strings.EqualFold(string(args[i]), "IDLE") {
		n, err := strconv.ParseInt(string(args[i+1]), 10, 64)
		if err != nil {
			return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
		}
		minIdle = n
		i += 2
	}
	if i+2 >= len(args) {
		return resp.Value{}, NewError("ERR", "syntax error")
	}
	from, err := parseRangeBound(string(args[i]), true)
	if err != nil {
		return resp.Value{}, err
	}
	to, err := parseRangeBound(string(args[i+1]), false)
	if err != nil {
		return resp.Value{}, err
	}
	count, err := strconv.Atoi(string(args[i+2]))
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	consumerFilter := ""
	if i+3 < len(args) {
		consumerFilter = string(args[i+3])
	}
	entries, err := ctx.Streams.PendingRange(ctx.DB, key, group, from, to, count, consumerFilter, minIdle)
	if err != nil {
		return resp.Value{}, err
	}
	vals := make([]resp.Value, len(entries))
	for i, e := range entries {
		vals[i] = resp.Arr(
			resp.BulkStr(stream.FormatID(e.ID)),
			resp.BulkStr(e.Consumer),
			resp.Int(e.IdleMS),
			resp.Int(e.Deliveries),
		)
	}
	return resp.ArrSlice(vals), nil
}

func cmdXClaim(ctx *Context, args [][]byte) (resp.Value, error) {
	key, group, claimant := string(args[1]), string(args[2]), string(args[3])
	minIdle, err := strconv.ParseInt(string(args[4]), 10, 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	var ids []store.ID
	i := 5
	for i < len(args) {
		id, perr := stream.ParseID(string(args[i]), 0)
		if perr != nil {
			break
		}
		ids = append(ids, id)
		i++
	}
	force, justID := false, false
	for ; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "FORCE":
			force = true
		case "JUSTID":
			justID = true
		case "IDLE", "TIME", "RETRYCOUNT", "LASTID":
			i++
		}
	}
	entries, err := ctx.Streams.Claim(ctx.DB, key, group, claimant, ids, minIdle, force)
	if err != nil {
		return resp.Value{}, err
	}
	if justID {
		vals := make([]resp.Value, len(entries))
		for i, e := range entries {
			vals[i] = resp.BulkStr(stream.FormatID(e.ID))
		}
		return resp.ArrSlice(vals), nil
	}
	return entriesReply(entries), nil
}

func cmdXAutoClaim(ctx *Context, args [][]byte) (resp.Value, error) {
	key, group, claimant := string(args[1]), string(args[2]), string(args[3])
	minIdle, err := strconv.ParseInt(string(args[4]), 10, 64)
	if err != nil {
		return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
	}
	cursor, err := stream.ParseID(string(args[5]), 0)
	if err != nil {
		return resp.Value{}, err
	}
	count := 100
	justID := false
	for i := 6; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "COUNT":
			i++
			n, err := strconv.Atoi(string(args[i]))
			if err != nil {
				return resp.Value{}, NewError("ERR", "value is not an integer or out of range")
			}
			count = n
		case "JUSTID":
			justID = true
		}
	}
	claimed, deleted, next, err := ctx.Streams.AutoClaim(ctx.DB, key, group, claimant, cursor, minIdle, count)
	if err != nil {
		return resp.Value{}, err
	}
	var claimedReply resp.Value
	if justID {
		vals := make([]resp.Value, len(claimed))
		for i, e := range claimed {
			vals[i] = resp.BulkStr(stream.FormatID(e.ID))
		}
		claimedReply = resp.ArrSlice(vals)
	} else {
		claimedReply = entriesReply(claimed)
	}
	deletedVals := make([]resp.Value, len(deleted))
	for i, id := range deleted {
		deletedVals[i] = resp.BulkStr(stream.FormatID(id))
	}
	return resp.Arr(resp.BulkStr(stream.FormatID(next)), claimedReply, resp.ArrSlice(deletedVals)), nil
}
