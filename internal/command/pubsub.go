package command

import (
	"strings"

	"github.com/gobwas/glob"

	"github.com/shanas-swi/goredis/internal/pubsub"
	"github.com/shanas-swi/goredis/internal/resp"
)

func init() {
	Register(&Spec{Name: "SUBSCRIBE", MinArgs: 2, MaxArgs: -1, NoScript: true, NoMulti: true, Handler: cmdSubscribe})
	Register(&Spec{Name: "UNSUBSCRIBE", MinArgs: 1, MaxArgs: -1, NoScript: true, Handler: cmdUnsubscribe})
	Register(&Spec{Name: "PSUBSCRIBE", MinArgs: 2, MaxArgs: -1, NoScript: true, NoMulti: true, Handler: cmdPSubscribe})
	Register(&Spec{Name: "PUNSUBSCRIBE", MinArgs: 1, MaxArgs: -1, NoScript: true, Handler: cmdPUnsubscribe})
	Register(&Spec{Name: "PUBLISH", MinArgs: 3, MaxArgs: 3, Handler: cmdPublish})
	Register(&Spec{Name: "PUBSUB", MinArgs: 2, MaxArgs: -1, ReadOnly: true, Handler: cmdPubSub})
}

func subscriberFor(ctx *Context) *pubsub.Subscriber {
	return &pubsub.Subscriber{ID: ctx.Conn.ClientID(), Queue: ctx.Conn.PushQueue()}
}

// pushExceptLast delivers every confirmation frame but the last directly
// to the connection's push queue; the last is returned as the normal
// reply, since Execute returns a single Value per call (spec.md §4.8's
// push-frame framing applies identically either way — only the delivery
// path differs for a multi-channel SUBSCRIBE/UNSUBSCRIBE).
func pushExceptLast(ctx *Context, frames []resp.Value) resp.Value {
	if len(frames) == 0 {
		return resp.NilArray()
	}
	for _, f := range frames[:len(frames)-1] {
		select {
		case ctx.Conn.PushQueue() <- f:
		default:
		}
	}
	return frames[len(frames)-1]
}

func cmdSubscribe(ctx *Context, args [][]byte) (resp.Value, error) {
	sub := subscriberFor(ctx)
	frames := make([]resp.Value, 0, len(args)-1)
	for _, a := range args[1:] {
		ch := string(a)
		n := ctx.PubSub.Subscribe(ch, sub)
		frames = append(frames, resp.Arr(resp.BulkStr("subscribe"), resp.BulkStr(ch), resp.Int(int64(n))))
	}
	return pushExceptLast(ctx, frames), nil
}

func cmdUnsubscribe(ctx *Context, args [][]byte) (resp.Value, error) {
	sub := subscriberFor(ctx)
	channels := args[1:]
	if len(channels) == 0 {
		return resp.Arr(resp.BulkStr("unsubscribe"), resp.NilBulk(), resp.Int(0)), nil
	}
	frames := make([]resp.Value, 0, len(channels))
	for _, a := range channels {
		ch := string(a)
		n := ctx.PubSub.Unsubscribe(ch, sub)
		frames = append(frames, resp.Arr(resp.BulkStr("unsubscribe"), resp.BulkStr(ch), resp.Int(int64(n))))
	}
	return pushExceptLast(ctx, frames), nil
}

func cmdPSubscribe(ctx *Context, args [][]byte) (resp.Value, error) {
	sub := subscriberFor(ctx)
	frames := make([]resp.Value, 0, len(args)-1)
	for _, a := range args[1:] {
		pat := string(a)
		n, err := ctx.PubSub.PSubscribe(pat, sub)
		if err != nil {
			return resp.Value{}, NewError("ERR", "invalid glob pattern")
		}
		frames = append(frames, resp.Arr(resp.BulkStr("psubscribe"), resp.BulkStr(pat), resp.Int(int64(n))))
	}
	return pushExceptLast(ctx, frames), nil
}

func cmdPUnsubscribe(ctx *Context, args [][]byte) (resp.Value, error) {
	sub := subscriberFor(ctx)
	patterns := args[1:]
	if len(patterns) == 0 {
		return resp.Arr(resp.BulkStr("punsubscribe"), resp.NilBulk(), resp.Int(0)), nil
	}
	frames := make([]resp.Value, 0, len(patterns))
	for _, a := range patterns {
		pat := string(a)
		n := ctx.PubSub.PUnsubscribe(pat, sub)
		frames = append(frames, resp.Arr(resp.BulkStr("punsubscribe"), resp.BulkStr(pat), resp.Int(int64(n))))
	}
	return pushExceptLast(ctx, frames), nil
}

func cmdPublish(ctx *Context, args [][]byte) (resp.Value, error) {
	n := ctx.PubSub.Publish(string(args[1]), args[2])
	return resp.Int(int64(n)), nil
}

func cmdPubSub(ctx *Context, args [][]byte) (resp.Value, error) {
	switch strings.ToUpper(string(args[1])) {
	case "CHANNELS":
		var filter glob.Glob
		if len(args) >= 3 {
			g, err := glob.Compile(string(args[2]))
			if err != nil {
				return resp.Value{}, NewError("ERR", "invalid glob pattern")
			}
			filter = g
		}
		return strArray(ctx.PubSub.ActiveChannels(filter)), nil
	case "NUMSUB":
		vals := make([]resp.Value, 0, (len(args)-2)*2)
		for _, a := range args[2:] {
			ch := string(a)
			vals = append(vals, resp.BulkStr(ch), resp.Int(int64(ctx.PubSub.ChannelSubscriberCount(ch))))
		}
		return resp.ArrSlice(vals), nil
	case "NUMPAT":
		return resp.Int(int64(ctx.PubSub.NumPatterns())), nil
	default:
		return resp.Value{}, NewError("ERR", "unknown PUBSUB subcommand '%s'", string(args[1]))
	}
}
