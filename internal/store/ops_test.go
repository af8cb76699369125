package store

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestForEachSkipsExpiredKeys(t *testing.T) {
	clk := clock.NewMock()
	e := New(1, 2, 0, clk)

	_, _ = e.SetKey(0, "live", NewString([]byte("v")), SetOptions{})
	_, _ = e.SetKey(0, "dying", NewString([]byte("v")), SetOptions{})
	e.PExpireAt(0, "dying", e.Now()+int64(time.Millisecond))

	clk.Add(2 * time.Millisecond)

	var seen []string
	e.ForEach(0, func(key string, v *Value, expiresAt int64) {
		seen = append(seen, key)
	})
	require.Equal(t, []string{"live"}, seen)
}

func TestLoadEntryInstallsValueAndTTL(t *testing.T) {
	clk := clock.NewMock()
	e := New(1, 2, 0, clk)

	expires := e.Now() + int64(time.Hour)
	e.LoadEntry(0, "k", NewString([]byte("v")), expires)

	v, ok := e.Get(0, "k")
	require.True(t, ok)
	require.Equal(t, "v", string(v.Str))
	require.Greater(t, e.TTLNanos(0, "k"), int64(0))
}

func TestLoadEntryWithoutTTLNeverExpires(t *testing.T) {
	clk := clock.NewMock()
	e := New(1, 2, 0, clk)

	e.LoadEntry(0, "k", NewString([]byte("v")), 0)
	clk.Add(365 * 24 * time.Hour)

	_, ok := e.Get(0, "k")
	require.True(t, ok)
}
