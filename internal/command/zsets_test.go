package command

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/shanas-swi/goredis/internal/resp"
	"github.com/shanas-swi/goredis/internal/store"
)

func newZSetTestContext() *Context {
	return &Context{
		Store: store.New(1, 2, 0, clock.NewMock()),
		Conn:  newFakeConn(),
	}
}

func TestZAddIncrReturnsNewScore(t *testing.T) {
	ctx := newZSetTestContext()

	v, err := cmdZAdd(ctx, [][]byte{[]byte("ZADD"), []byte("z"), []byte("INCR"), []byte("5"), []byte("m")})
	require.NoError(t, err)
	require.Equal(t, "5", string(v.Bulk))

	v, err = cmdZAdd(ctx, [][]byte{[]byte("ZADD"), []byte("z"), []byte("INCR"), []byte("2"), []byte("m")})
	require.NoError(t, err)
	require.Equal(t, "7", string(v.Bulk))
}

func TestZAddIncrNXSuppressesAndReturnsNil(t *testing.T) {
	ctx := newZSetTestContext()

	_, err := cmdZAdd(ctx, [][]byte{[]byte("ZADD"), []byte("z"), []byte("1"), []byte("m")})
	require.NoError(t, err)

	v, err := cmdZAdd(ctx, [][]byte{[]byte("ZADD"), []byte("z"), []byte("NX"), []byte("INCR"), []byte("5"), []byte("m")})
	require.NoError(t, err)
	require.True(t, v.IsNull)
	require.Equal(t, resp.BulkString, v.Type)
}

func TestZAddIncrRejectsMultiplePairs(t *testing.T) {
	ctx := newZSetTestContext()
	_, err := cmdZAdd(ctx, [][]byte{[]byte("ZADD"), []byte("z"), []byte("INCR"), []byte("1"), []byte("a"), []byte("2"), []byte("b")})
	require.Error(t, err)
}

func TestZAddRejectsNaNScore(t *testing.T) {
	ctx := newZSetTestContext()
	_, err := cmdZAdd(ctx, [][]byte{[]byte("ZADD"), []byte("z"), []byte("nan"), []byte("m")})
	require.Error(t, err)
}
