// Package persistence implements snapshot (RDB) and append-only (AOF)
// durability (spec.md §4.11, component K). The RDB body is a sequence of
// type-tagged records wrapped in an s2 block stream (klauspost/compress),
// a deliberate simplification of real Redis's per-value LZF compression.
package persistence

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/klauspost/compress/s2"

	"github.com/shanas-swi/goredis/internal/store"
)

const (
	rdbMagic       = "GORDB002"
	opSelectDB     = 0xFE
	opExpireMS     = 0xFC
	opKeyVal       = 0xFD
	opEOF          = 0xFF
	typeString     = 1
	typeList       = 2
	typeSet        = 3
	typeHash       = 4
	typeZSet       = 5
	typeStream     = 6
)

// SaveRDB writes a full snapshot of engine to path: the magic header
// (which carries the format version), an s2-compressed stream of one
// opSelectDB/opKeyVal run per non-empty logical database and an opEOF
// sentinel, and a trailing CRC32 over that uncompressed record stream
// (spec.md §4.11 "RDB snapshot").
func SaveRDB(path string, engine *store.Engine) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	crc := crc32.NewIEEE()
	if _, err := io.WriteString(f, rdbMagic); err != nil {
		f.Close()
		return err
	}

	sw := s2.NewWriter(f)
	mw := io.MultiWriter(sw, crc)
	bw := bufio.NewWriter(mw)

	var saveErr error
	for db := 0; db < engine.NumDBs(); db++ {
		if engine.DBSize(db) == 0 {
			continue
		}
		if err := writeByte(bw, opSelectDB); err != nil {
			saveErr = err
			break
		}
		if err := writeUvarint(bw, uint64(db)); err != nil {
			saveErr = err
			break
		}
		engine.ForEach(db, func(key string, v *store.Value, expiresAt int64) {
			if saveErr != nil {
				return
			}
			saveErr = writeKeyVal(bw, key, v, expiresAt)
		})
		if saveErr != nil {
			break
		}
	}
	if saveErr == nil {
		saveErr = writeByte(bw, opEOF)
	}
	if saveErr == nil {
		saveErr = bw.Flush()
	}
	if saveErr == nil {
		saveErr = sw.Close()
	}
	if saveErr != nil {
		f.Close()
		os.Remove(tmp)
		return saveErr
	}

	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	if _, err := f.Write(sum[:]); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadRDB rebuilds engine's keyspace from path (spec.md §4.11). Missing
// file is not an error: a fresh server simply starts empty.
func LoadRDB(path string, engine *store.Engine) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	magic := make([]byte, len(rdbMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return fmt.Errorf("rdb: truncated header: %w", err)
	}
	if string(magic) != rdbMagic {
		return fmt.Errorf("rdb: bad magic %q", magic)
	}

	rest, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	if len(rest) < 4 {
		return fmt.Errorf("rdb: truncated body")
	}
	body, wantSum := rest[:len(rest)-4], binary.BigEndian.Uint32(rest[len(rest)-4:])

	sr := s2.NewReader(newByteReader(body))
	crc := crc32.NewIEEE()
	tee := io.TeeReader(sr, crc)
	br := bufio.NewReader(tee)

	db := 0
	for {
		op, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch op {
		case opEOF:
			if crc.Sum32() != wantSum {
				return fmt.Errorf("rdb: checksum mismatch")
			}
			return nil
		case opSelectDB:
			n, err := binary.ReadUvarint(br)
			if err != nil {
				return err
			}
			db = int(n)
		case opKeyVal:
			key, v, expiresAt, err := readKeyVal(br)
			if err != nil {
				return err
			}
			engine.LoadEntry(db, key, v, expiresAt)
		default:
			return fmt.Errorf("rdb: unknown opcode 0x%x", op)
		}
	}
	return fmt.Errorf("rdb: missing EOF marker")
}
