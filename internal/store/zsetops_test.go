package store

import (
	"math"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestZAddRejectsNaN(t *testing.T) {
	e := New(1, 2, 0, clock.NewMock())

	_, err := e.ZAdd(0, "z", ZAddFlags{}, [][]byte{[]byte("m")}, []float64{math.NaN()})
	require.Error(t, err)

	_, ok := e.Get(0, "z")
	require.False(t, ok)
}

func TestZAddSkippedAllMembersLeavesNoPhantomKey(t *testing.T) {
	e := New(1, 2, 0, clock.NewMock())

	n, err := e.ZAdd(0, "z", ZAddFlags{XX: true}, [][]byte{[]byte("m")}, []float64{1})
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, ok := e.Get(0, "z")
	require.False(t, ok, "XX-only insert against an absent key must not materialize an empty sorted set")
}

func TestZAddIncrAppliesDeltaAndReportsSuppression(t *testing.T) {
	e := New(1, 2, 0, clock.NewMock())

	score, ok, err := e.ZAddIncr(0, "z", ZAddFlags{}, []byte("m"), 5)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 5.0, score)

	score, ok, err = e.ZAddIncr(0, "z", ZAddFlags{}, []byte("m"), 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 7.0, score)

	_, ok, err = e.ZAddIncr(0, "z", ZAddFlags{NX: true}, []byte("m"), 1)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = e.ZAddIncr(0, "other", ZAddFlags{XX: true}, []byte("m"), 1)
	require.NoError(t, err)
	require.False(t, ok)
	_, exists := e.Get(0, "other")
	require.False(t, exists, "XX-suppressed INCR against an absent key must not materialize an empty sorted set")
}
