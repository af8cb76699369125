package command

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shanas-swi/goredis/internal/introspection"
	"github.com/shanas-swi/goredis/internal/slowlog"
)

type fakeConfigStore struct {
	values map[string]string
}

func newFakeConfigStore() *fakeConfigStore {
	return &fakeConfigStore{values: map[string]string{"maxmemory": "0"}}
}

func (f *fakeConfigStore) Get(name string) (string, bool) {
	v, ok := f.values[name]
	return v, ok
}

func (f *fakeConfigStore) Set(name, value string) error {
	f.values[name] = value
	return nil
}

func (f *fakeConfigStore) Names(pattern string) []string {
	var out []string
	for k := range f.values {
		out = append(out, k)
	}
	return out
}

type fakePersister struct {
	saved, bgSaved bool
	lastSave       int64
}

func (f *fakePersister) Save() error      { f.saved = true; return nil }
func (f *fakePersister) BGSave() error     { f.bgSaved = true; return nil }
func (f *fakePersister) LastSaveUnix() int64 { return f.lastSave }

func TestAuthRequiresConfiguredPassword(t *testing.T) {
	ctx := &Context{Conn: newFakeConn(), Admin: &AdminState{}}
	_, err := cmdAuth(ctx, [][]byte{[]byte("AUTH"), []byte("secret")})
	require.Error(t, err)

	ctx.Admin.Password = "secret"
	_, err = cmdAuth(ctx, [][]byte{[]byte("AUTH"), []byte("wrong")})
	require.Error(t, err)
	require.False(t, ctx.Conn.Authenticated())

	reply, err := cmdAuth(ctx, [][]byte{[]byte("AUTH"), []byte("secret")})
	require.NoError(t, err)
	require.Equal(t, "OK", reply.Str)
	require.True(t, ctx.Conn.Authenticated())
}

func TestConfigGetSetRoundTrip(t *testing.T) {
	cfg := newFakeConfigStore()
	ctx := &Context{Conn: newFakeConn(), Admin: &AdminState{Config: cfg}}

	_, err := cmdConfig(ctx, [][]byte{[]byte("CONFIG"), []byte("SET"), []byte("maxmemory"), []byte("100mb")})
	require.NoError(t, err)

	reply, err := cmdConfig(ctx, [][]byte{[]byte("CONFIG"), []byte("GET"), []byte("maxmemory")})
	require.NoError(t, err)
	require.Len(t, reply.Items, 2)
	require.Equal(t, "maxmemory", string(reply.Items[0].Bulk))
	require.Equal(t, "100mb", string(reply.Items[1].Bulk))
}

func TestSaveAndBGSaveDelegateToPersister(t *testing.T) {
	p := &fakePersister{lastSave: 42}
	ctx := &Context{Conn: newFakeConn(), Admin: &AdminState{Persist: p}}

	_, err := cmdSave(ctx, [][]byte{[]byte("SAVE")})
	require.NoError(t, err)
	require.True(t, p.saved)

	reply, err := cmdBGSave(ctx, [][]byte{[]byte("BGSAVE")})
	require.NoError(t, err)
	require.True(t, p.bgSaved)
	require.Equal(t, "Background saving started", reply.Str)

	reply, err = cmdLastSave(ctx, [][]byte{[]byte("LASTSAVE")})
	require.NoError(t, err)
	require.Equal(t, int64(42), reply.Int)
}

func TestSlowlogGetLenReset(t *testing.T) {
	log := slowlog.New(128, 0)
	log.Record(1, 500, []string{"GET", "k"}, "addr", "")
	ctx := &Context{Conn: newFakeConn(), Admin: &AdminState{Slowlog: log}}

	reply, err := cmdSlowlog(ctx, [][]byte{[]byte("SLOWLOG"), []byte("LEN")})
	require.NoError(t, err)
	require.Equal(t, int64(1), reply.Int)

	_, err = cmdSlowlog(ctx, [][]byte{[]byte("SLOWLOG"), []byte("RESET")})
	require.NoError(t, err)

	reply, err = cmdSlowlog(ctx, [][]byte{[]byte("SLOWLOG"), []byte("LEN")})
	require.NoError(t, err)
	require.Equal(t, int64(0), reply.Int)
}

func TestClientGetNameSetName(t *testing.T) {
	ctx := &Context{Conn: newFakeConn(), Admin: &AdminState{}}
	_, err := cmdClient(ctx, [][]byte{[]byte("CLIENT"), []byte("SETNAME"), []byte("worker-1")})
	require.NoError(t, err)

	reply, err := cmdClient(ctx, [][]byte{[]byte("CLIENT"), []byte("GETNAME")})
	require.NoError(t, err)
	require.Equal(t, "worker-1", string(reply.Bulk))
}

func TestMonitorAttachesPushQueue(t *testing.T) {
	conn := newFakeConn()
	ctx := &Context{Conn: conn, Admin: &AdminState{Monitor: introspection.NewMonitorFeed()}}
	_, err := cmdMonitor(ctx, [][]byte{[]byte("MONITOR")})
	require.NoError(t, err)
	require.True(t, ctx.Admin.Monitor.Active())
}
