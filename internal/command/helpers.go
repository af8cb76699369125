package command

import (
	"context"
	"strconv"

	"github.com/shanas-swi/goredis/internal/resp"
)

func bulkArray(items [][]byte) resp.Value {
	vals := make([]resp.Value, len(items))
	for i, it := range items {
		if it == nil {
			vals[i] = resp.NilBulk()
		} else {
			vals[i] = resp.Bulk(it)
		}
	}
	return resp.ArrSlice(vals)
}

func strArray(items []string) resp.Value {
	vals := make([]resp.Value, len(items))
	for i, it := range items {
		vals[i] = resp.BulkStr(it)
	}
	return resp.ArrSlice(vals)
}

func ok() resp.Value { return resp.Str("OK") }

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// blockingContext yields the cancellation context a blocking command
// waits on. The server wires per-connection disconnect cancellation by
// giving Conn a context; callers without one (e.g. tests) block only on
// the waiter's own timeout.
func blockingContext(ctx *Context) context.Context {
	if cc, ok := ctx.Conn.(interface{ Context() context.Context }); ok {
		return cc.Context()
	}
	return context.Background()
}
