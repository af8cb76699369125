package resp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTripSimpleValues(t *testing.T) {
	cases := []Value{
		Str("OK"),
		Err("ERR boom"),
		Int(42),
		Int(-1),
		BulkStr("hello"),
		NilBulk(),
		Arr(BulkStr("a"), BulkStr("b")),
		NilArray(),
		Arr(),
	}
	p := NewParser()
	for _, v := range cases {
		wire := Encode(v)
		got, n, err := p.Parse(wire)
		require.NoError(t, err)
		require.Equal(t, len(wire), n)
		require.Equal(t, v.Type, got.Type)
		require.Equal(t, v.IsNull, got.IsNull)
	}
}

func TestParseBinarySafeBulk(t *testing.T) {
	data := []byte{0, 1, 2, 0, 255}
	wire := Encode(Bulk(data))
	p := NewParser()
	got, n, err := p.Parse(wire)
	require.NoError(t, err)
	require.Equal(t, len(wire), n)
	require.True(t, bytes.Equal(data, got.Bulk))
}

func TestParseIncompleteThenComplete(t *testing.T) {
	p := NewParser()
	full := Encode(Arr(BulkStr("PING")))
	_, _, err := p.Parse(full[:len(full)-2])
	require.ErrorIs(t, err, ErrIncomplete)
	v, n, err := p.Parse(full)
	require.NoError(t, err)
	require.Equal(t, len(full), n)
	require.Equal(t, Array, v.Type)
}

func TestRejectsOversizeBulk(t *testing.T) {
	p := &Parser{MaxBulkLen: 4, MaxArrayLen: DefaultMaxArrayLen}
	_, _, err := p.Parse([]byte("$10\r\n0123456789\r\n"))
	require.Error(t, err)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestInlineCommand(t *testing.T) {
	p := NewParser()
	v, n, err := p.Parse([]byte("PING hello\r\n"))
	require.NoError(t, err)
	require.Equal(t, 12, n)
	require.Equal(t, Array, v.Type)
	require.Len(t, v.Items, 2)
	require.Equal(t, "PING", string(v.Items[0].Bulk))
	require.Equal(t, "hello", string(v.Items[1].Bulk))
}

func TestNegativeArrayLengthRejected(t *testing.T) {
	p := NewParser()
	_, _, err := p.Parse([]byte("*-2\r\n"))
	require.Error(t, err)
}
