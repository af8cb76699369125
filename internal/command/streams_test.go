package command

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/shanas-swi/goredis/internal/store"
	"github.com/shanas-swi/goredis/internal/stream"
)

func newStreamTestContext() *Context {
	st := store.New(1, 2, 0, clock.NewMock())
	return &Context{
		Store:   st,
		Streams: stream.New(st, clock.NewMock(), logrus.NewEntry(logrus.New())),
		Conn:    newFakeConn(),
	}
}

func TestXSetIDForcesLastID(t *testing.T) {
	ctx := newStreamTestContext()
	_, err := cmdXAdd(ctx, [][]byte{[]byte("XADD"), []byte("events"), []byte("5-0"), []byte("k"), []byte("v")})
	require.NoError(t, err)

	_, err = cmdXSetID(ctx, [][]byte{[]byte("XSETID"), []byte("events"), []byte("10-0")})
	require.NoError(t, err)

	id, err := cmdXAdd(ctx, [][]byte{[]byte("XADD"), []byte("events"), []byte("*"), []byte("k2"), []byte("v2")})
	require.NoError(t, err)
	require.Equal(t, "10-1", string(id.Bulk))
}

func TestXSetIDRejectsIDSmallerThanTopEntry(t *testing.T) {
	ctx := newStreamTestContext()
	_, err := cmdXAdd(ctx, [][]byte{[]byte("XADD"), []byte("events"), []byte("5-0"), []byte("k"), []byte("v")})
	require.NoError(t, err)

	_, err = cmdXSetID(ctx, [][]byte{[]byte("XSETID"), []byte("events"), []byte("1-0")})
	require.Error(t, err)
}

func TestXSetIDRequiresExistingKey(t *testing.T) {
	ctx := newStreamTestContext()
	_, err := cmdXSetID(ctx, [][]byte{[]byte("XSETID"), []byte("missing"), []byte("1-0")})
	require.Error(t, err)
}
