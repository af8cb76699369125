package script

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shanas-swi/goredis/internal/resp"
)

func noopExecutor([][]byte) (resp.Value, error) {
	return resp.Value{}, nil
}

func TestCjsonEncodeDecodeObject(t *testing.T) {
	v, err := Run(`
		local t = {a = 1, b = "two"}
		local encoded = cjson.encode(t)
		local decoded = cjson.decode(encoded)
		return {decoded.a, decoded.b}
	`, nil, nil, noopExecutor)
	require.NoError(t, err)
	require.Equal(t, resp.Array, v.Type)
	require.Len(t, v.Items, 2)
	require.Equal(t, int64(1), v.Items[0].Int)
	require.Equal(t, []byte("two"), v.Items[1].Bulk)
}

func TestCjsonEncodeDecodeArray(t *testing.T) {
	v, err := Run(`
		local arr = {10, 20, 30}
		local encoded = cjson.encode(arr)
		local decoded = cjson.decode(encoded)
		return decoded
	`, nil, nil, noopExecutor)
	require.NoError(t, err)
	require.Equal(t, resp.Array, v.Type)
	require.Len(t, v.Items, 3)
	require.Equal(t, int64(10), v.Items[0].Int)
	require.Equal(t, int64(30), v.Items[2].Int)
}

func TestCjsonDecodeScalar(t *testing.T) {
	v, err := Run(`return cjson.decode("42")`, nil, nil, noopExecutor)
	require.NoError(t, err)
	require.Equal(t, int64(42), v.Int)
}

func TestCjsonEncodeEmptyTableAsObject(t *testing.T) {
	v, err := Run(`
		local encoded = cjson.encode({})
		return encoded
	`, nil, nil, noopExecutor)
	require.NoError(t, err)
	require.Equal(t, "{}", string(v.Bulk))
}
