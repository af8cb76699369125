package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingReplayer struct {
	dbs  []int
	args [][][]byte
}

func (r *recordingReplayer) ReplayCommand(db int, args [][]byte) error {
	r.dbs = append(r.dbs, db)
	r.args = append(r.args, args)
	return nil
}

func TestAOFAppendAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appendonly.aof")

	a, err := OpenAOF(path, FsyncAlways)
	require.NoError(t, err)
	require.NoError(t, a.Append(0, [][]byte{[]byte("SET"), []byte("k"), []byte("v")}))
	require.NoError(t, a.Append(2, [][]byte{[]byte("RPUSH"), []byte("q"), []byte("a")}))
	require.NoError(t, a.Close())

	rep := &recordingReplayer{}
	require.NoError(t, ReplayAOF(path, rep))

	require.Equal(t, []int{0, 2}, rep.dbs)
	require.Equal(t, "SET", string(rep.args[0][0]))
	require.Equal(t, "RPUSH", string(rep.args[1][0]))
}

func TestReplayMissingAOFIsNoop(t *testing.T) {
	rep := &recordingReplayer{}
	err := ReplayAOF(filepath.Join(t.TempDir(), "absent.aof"), rep)
	require.NoError(t, err)
	require.Empty(t, rep.dbs)
}

func TestParseFsyncPolicy(t *testing.T) {
	require.Equal(t, FsyncAlways, ParseFsyncPolicy("always"))
	require.Equal(t, FsyncNo, ParseFsyncPolicy("no"))
	require.Equal(t, FsyncEverySec, ParseFsyncPolicy("everysec"))
	require.Equal(t, FsyncEverySec, ParseFsyncPolicy("garbage"))
}
