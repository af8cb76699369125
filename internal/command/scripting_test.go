package command

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/shanas-swi/goredis/internal/script"
	"github.com/shanas-swi/goredis/internal/store"
)

func newScriptTestContext() *Context {
	return &Context{
		Conn:  newFakeConn(),
		Store: store.New(1, 2, 0, clock.NewMock()),
		Admin: &AdminState{Scripts: script.NewCache()},
	}
}

func TestEvalCallsRedisDotCallAgainstSharedStore(t *testing.T) {
	ctx := newScriptTestContext()
	reply, err := cmdEval(ctx, [][]byte{
		[]byte("EVAL"),
		[]byte(`redis.call("SET", KEYS[1], ARGV[1]); return redis.call("GET", KEYS[1])`),
		[]byte("1"), []byte("greeting"), []byte("hello"),
	})
	require.NoError(t, err)
	require.Equal(t, "hello", string(reply.Bulk))

	v, ok := ctx.Store.Get(0, "greeting")
	require.True(t, ok)
	require.Equal(t, "hello", string(v.Str))
}

func TestEvalShaRequiresPriorLoad(t *testing.T) {
	ctx := newScriptTestContext()
	_, err := cmdEvalSha(ctx, [][]byte{[]byte("EVALSHA"), []byte("deadbeef"), []byte("0")})
	require.Error(t, err)

	loaded, err := cmdScript(ctx, [][]byte{[]byte("SCRIPT"), []byte("LOAD"), []byte("return 1")})
	require.NoError(t, err)
	sha := string(loaded.Bulk)

	reply, err := cmdEvalSha(ctx, [][]byte{[]byte("EVALSHA"), []byte(sha), []byte("0")})
	require.NoError(t, err)
	require.Equal(t, int64(1), reply.Int)
}

func TestScriptForbidsNestedEval(t *testing.T) {
	ctx := newScriptTestContext()
	_, err := cmdEval(ctx, [][]byte{
		[]byte("EVAL"), []byte(`return redis.call("EVAL", "return 1", "0")`), []byte("0"),
	})
	require.Error(t, err)
}

func TestEvalDuringExecDoesNotDeadlock(t *testing.T) {
	ctx := newScriptTestContext()
	ctx.InExec = true
	reply, err := cmdEval(ctx, [][]byte{[]byte("EVAL"), []byte("return 'ok'"), []byte("0")})
	require.NoError(t, err)
	require.Equal(t, "ok", string(reply.Bulk))
}
