package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/shanas-swi/goredis/internal/store"
)

func buildFixtureEngine(t *testing.T) *store.Engine {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))
	e := store.New(1, 4, 0, clk)

	_, _ = e.SetKey(0, "greeting", store.NewString([]byte("hello")), store.SetOptions{})
	e.PExpireAt(0, "greeting", e.Now()+int64(time.Hour))

	_, err := e.Push(0, "queue", false, false, []byte("a"), []byte("b"), []byte("c"))
	require.NoError(t, err)

	_, err = e.SAdd(0, "tags", []byte("x"), []byte("y"))
	require.NoError(t, err)

	_, err = e.HSet(0, "profile", [][]byte{[]byte("name")}, [][]byte{[]byte("ada")})
	require.NoError(t, err)

	_, err = e.ZAdd(0, "board", store.ZAddFlags{}, [][]byte{[]byte("ada"), []byte("lin")}, []float64{1, 2})
	require.NoError(t, err)

	err = e.WithStream(0, "events", true, func(s *store.Stream) bool {
		s.Append(store.Entry{ID: store.ID{MS: 1, Seq: 0}, Fields: []store.Field{{Key: []byte("k"), Value: []byte("v")}}})
		return true
	})
	require.NoError(t, err)

	return e
}

func TestRDBSaveLoadRoundTrip(t *testing.T) {
	src := buildFixtureEngine(t)
	path := filepath.Join(t.TempDir(), "dump.rdb")

	require.NoError(t, SaveRDB(path, src))

	dst := store.New(1, 4, 0, clock.NewMock())
	require.NoError(t, LoadRDB(path, dst))

	v, ok := dst.Get(0, "greeting")
	require.True(t, ok)
	require.Equal(t, store.KindString, v.Kind)
	require.Equal(t, "hello", string(v.Str))
	require.Greater(t, dst.TTLNanos(0, "greeting"), int64(0))

	items, err := dst.LRange(0, "queue", 0, -1)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, items)

	members, err := dst.SMembers(0, "tags")
	require.NoError(t, err)
	require.ElementsMatch(t, [][]byte{[]byte("x"), []byte("y")}, members)

	hv, err := dst.HGetAll(0, "profile")
	require.NoError(t, err)
	require.Equal(t, []byte("ada"), hv["name"])

	score, ok, err := dst.ZScore(0, "board", []byte("lin"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float64(2), score)

	sv, ok := dst.Get(0, "events")
	require.True(t, ok)
	require.Equal(t, 1, sv.Stream.Len())
}

func TestLoadRDBMissingFileIsNoop(t *testing.T) {
	e := store.New(1, 1, 0, clock.NewMock())
	err := LoadRDB(filepath.Join(t.TempDir(), "absent.rdb"), e)
	require.NoError(t, err)
}
