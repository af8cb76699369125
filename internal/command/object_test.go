package command

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/shanas-swi/goredis/internal/store"
)

func newObjectTestContext() *Context {
	return &Context{
		Store: store.New(1, 2, 0, clock.NewMock()),
		Conn:  newFakeConn(),
	}
}

func TestObjectEncodingString(t *testing.T) {
	ctx := newObjectTestContext()

	_, err := cmdSet(ctx, [][]byte{[]byte("SET"), []byte("n"), []byte("12345")})
	require.NoError(t, err)
	v, err := cmdObject(ctx, [][]byte{[]byte("OBJECT"), []byte("ENCODING"), []byte("n")})
	require.NoError(t, err)
	require.Equal(t, "int", string(v.Bulk))

	_, err = cmdSet(ctx, [][]byte{[]byte("SET"), []byte("s"), []byte("hello")})
	require.NoError(t, err)
	v, err = cmdObject(ctx, [][]byte{[]byte("OBJECT"), []byte("ENCODING"), []byte("s")})
	require.NoError(t, err)
	require.Equal(t, "embstr", string(v.Bulk))

	long := make([]byte, 64)
	for i := range long {
		long[i] = 'x'
	}
	_, err = cmdSet(ctx, [][]byte{[]byte("SET"), []byte("l"), long})
	require.NoError(t, err)
	v, err = cmdObject(ctx, [][]byte{[]byte("OBJECT"), []byte("ENCODING"), []byte("l")})
	require.NoError(t, err)
	require.Equal(t, "raw", string(v.Bulk))
}

func TestObjectEncodingSet(t *testing.T) {
	ctx := newObjectTestContext()
	_, err := cmdSAdd(ctx, [][]byte{[]byte("SADD"), []byte("myset"), []byte("a"), []byte("b")})
	require.NoError(t, err)

	v, err := cmdObject(ctx, [][]byte{[]byte("OBJECT"), []byte("ENCODING"), []byte("myset")})
	require.NoError(t, err)
	require.Equal(t, "listpack", string(v.Bulk))
}

func TestObjectEncodingMissingKey(t *testing.T) {
	ctx := newObjectTestContext()
	_, err := cmdObject(ctx, [][]byte{[]byte("OBJECT"), []byte("ENCODING"), []byte("nope")})
	require.Error(t, err)
}

func TestObjectRefcountAndIdletime(t *testing.T) {
	ctx := newObjectTestContext()
	_, err := cmdSet(ctx, [][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	require.NoError(t, err)

	v, err := cmdObject(ctx, [][]byte{[]byte("OBJECT"), []byte("REFCOUNT"), []byte("k")})
	require.NoError(t, err)
	require.Equal(t, int64(1), v.Int)

	v, err = cmdObject(ctx, [][]byte{[]byte("OBJECT"), []byte("IDLETIME"), []byte("k")})
	require.NoError(t, err)
	require.Equal(t, int64(0), v.Int)
}
