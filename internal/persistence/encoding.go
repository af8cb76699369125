package persistence

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/shanas-swi/goredis/internal/store"
)

var errBadTag = errors.New("persistence: unknown value type tag")

func newByteReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

func writeByte(w io.ByteWriter, b byte) error { return w.WriteByte(b) }

func writeUvarint(w io.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

func writeBytes(w io.Writer, b []byte) error {
	if err := writeUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.ByteReader) ([]byte, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// byteWriter is what writeKeyVal needs: bufio.Writer satisfies it.
type byteWriter interface {
	io.Writer
	io.ByteWriter
}

// writeKeyVal emits one opKeyVal record: opcode, a has-expiry flag byte
// (kept separate from the varint-encoded lengths that follow so a flag
// value can never be confused with a length's leading byte), optional
// expiry, key, type tag, type-specific payload (spec.md §4.11's per-key
// layout).
func writeKeyVal(bw byteWriter, key string, v *store.Value, expiresAt int64) error {
	if err := bw.WriteByte(opKeyVal); err != nil {
		return err
	}
	if expiresAt != 0 {
		if err := bw.WriteByte(1); err != nil {
			return err
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(expiresAt))
		if _, err := bw.Write(buf[:]); err != nil {
			return err
		}
	} else if err := bw.WriteByte(0); err != nil {
		return err
	}
	if err := writeBytes(bw, []byte(key)); err != nil {
		return err
	}
	return writeValue(bw, v)
}

func writeValue(w io.Writer, v *store.Value) error {
	switch v.Kind {
	case store.KindString:
		if err := writeByteW(w, typeString); err != nil {
			return err
		}
		return writeBytes(w, v.Str)
	case store.KindList:
		if err := writeByteW(w, typeList); err != nil {
			return err
		}
		n := v.List.Len()
		if err := writeUvarint(w, uint64(n)); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			item, _ := v.List.Index(i)
			if err := writeBytes(w, item); err != nil {
				return err
			}
		}
		return nil
	case store.KindSet:
		if err := writeByteW(w, typeSet); err != nil {
			return err
		}
		members := v.Set.Members()
		if err := writeUvarint(w, uint64(len(members))); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeBytes(w, m); err != nil {
				return err
			}
		}
		return nil
	case store.KindHash:
		if err := writeByteW(w, typeHash); err != nil {
			return err
		}
		all := v.Hash.All()
		if err := writeUvarint(w, uint64(len(all))); err != nil {
			return err
		}
		for f, val := range all {
			if err := writeBytes(w, []byte(f)); err != nil {
				return err
			}
			if err := writeBytes(w, val); err != nil {
				return err
			}
		}
		return nil
	case store.KindSortedSet:
		if err := writeByteW(w, typeZSet); err != nil {
			return err
		}
		members := v.ZSet.RangeByRank(0, -1, false)
		if err := writeUvarint(w, uint64(len(members))); err != nil {
			return err
		}
		for _, m := range members {
			if err := writeBytes(w, m.Member); err != nil {
				return err
			}
			var buf [8]byte
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(m.Score))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		}
		return nil
	case store.KindStream:
		if err := writeByteW(w, typeStream); err != nil {
			return err
		}
		return writeStream(w, v.Stream)
	default:
		return nil
	}
}

func writeByteW(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func writeStream(w io.Writer, s *store.Stream) error {
	if err := writeUvarint(w, uint64(len(s.Entries))); err != nil {
		return err
	}
	for _, e := range s.Entries {
		if err := writeID(w, e.ID); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(len(e.Fields))); err != nil {
			return err
		}
		for _, f := range e.Fields {
			if err := writeBytes(w, f.Key); err != nil {
				return err
			}
			if err := writeBytes(w, f.Value); err != nil {
				return err
			}
		}
	}
	if err := writeID(w, s.LastID); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(len(s.Groups))); err != nil {
		return err
	}
	for name, g := range s.Groups {
		if err := writeBytes(w, []byte(name)); err != nil {
			return err
		}
		if err := writeID(w, g.LastDelivered); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(len(g.Pel))); err != nil {
			return err
		}
		for id, pel := range g.Pel {
			if err := writeID(w, id); err != nil {
				return err
			}
			if err := writeBytes(w, []byte(pel.Consumer)); err != nil {
				return err
			}
			if err := writeUvarint(w, uint64(pel.DeliveryTime)); err != nil {
				return err
			}
			if err := writeUvarint(w, uint64(pel.Deliveries)); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeID(w io.Writer, id store.ID) error {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], id.MS)
	binary.BigEndian.PutUint64(buf[8:], id.Seq)
	_, err := w.Write(buf[:])
	return err
}

func readID(r io.Reader) (store.ID, error) {
	var buf [16]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return store.ID{}, err
	}
	return store.ID{MS: binary.BigEndian.Uint64(buf[:8]), Seq: binary.BigEndian.Uint64(buf[8:])}, nil
}

// byteReaderReader combines the two reader interfaces readKeyVal needs.
type byteReaderReader interface {
	io.Reader
	io.ByteReader
}

func readKeyVal(r byteReaderReader) (string, *store.Value, int64, error) {
	var expiresAt int64
	flag, err := r.ReadByte()
	if err != nil {
		return "", nil, 0, err
	}
	if flag == 1 {
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", nil, 0, err
		}
		expiresAt = int64(binary.BigEndian.Uint64(buf[:]))
	}
	key, err := readBytes(r)
	if err != nil {
		return "", nil, 0, err
	}
	v, err := readValue(r)
	if err != nil {
		return "", nil, 0, err
	}
	return string(key), v, expiresAt, nil
}

func readValue(r byteReaderReader) (*store.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch tag {
	case typeString:
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return store.NewString(b), nil
	case typeList:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		v := store.NewList()
		items := make([][]byte, n)
		for i := range items {
			items[i], err = readBytes(r)
			if err != nil {
				return nil, err
			}
		}
		v.List.PushRight(items...)
		return v, nil
	case typeSet:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		v := store.NewSet()
		for i := uint64(0); i < n; i++ {
			m, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			v.Set.Add(m)
		}
		return v, nil
	case typeHash:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		v := store.NewHash()
		for i := uint64(0); i < n; i++ {
			f, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			val, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			v.Hash.Set(f, val)
		}
		return v, nil
	case typeZSet:
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		v := store.NewZSet()
		for i := uint64(0); i < n; i++ {
			member, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			var buf [8]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, err
			}
			score := math.Float64frombits(binary.BigEndian.Uint64(buf[:]))
			v.ZSet.Add(member, score)
		}
		return v, nil
	case typeStream:
		return readStream(r)
	default:
		return nil, errBadTag
	}
}

func readStream(r byteReaderReader) (*store.Value, error) {
	v := store.NewStreamValue()
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		id, err := readID(r)
		if err != nil {
			return nil, err
		}
		nf, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		fields := make([]store.Field, nf)
		for j := range fields {
			k, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			val, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			fields[j] = store.Field{Key: k, Value: val}
		}
		v.Stream.Append(store.Entry{ID: id, Fields: fields})
	}
	lastID, err := readID(r)
	if err != nil {
		return nil, err
	}
	v.Stream.LastID = lastID
	ng, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < ng; i++ {
		name, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		start, err := readID(r)
		if err != nil {
			return nil, err
		}
		g := store.NewGroup(string(name), start)
		npel, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		for j := uint64(0); j < npel; j++ {
			id, err := readID(r)
			if err != nil {
				return nil, err
			}
			consumer, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			dt, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, err
			}
			deliveries, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, err
			}
			g.Pel[id] = &store.PelEntry{Consumer: string(consumer), DeliveryTime: int64(dt), Deliveries: int64(deliveries)}
		}
		v.Stream.Groups[string(name)] = g
	}
	return v, nil
}
