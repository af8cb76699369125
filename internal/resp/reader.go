package resp

import (
	"bufio"
	"io"
)

// Reader incrementally buffers bytes from an underlying io.Reader and hands
// complete RESP values to the caller one at a time. Connections hold one
// Reader for their lifetime.
type Reader struct {
	src    *bufio.Reader
	parser *Parser
	buf    []byte
}

func NewReader(r io.Reader, p *Parser) *Reader {
	if p == nil {
		p = NewParser()
	}
	return &Reader{src: bufio.NewReaderSize(r, 16*1024), parser: p}
}

// ReadValue blocks until a full value is available, the connection errors,
// or a protocol violation is detected.
func (r *Reader) ReadValue() (Value, error) {
	for {
		if len(r.buf) > 0 {
			v, n, err := r.parser.Parse(r.buf)
			if err == nil {
				r.buf = r.buf[n:]
				return v, nil
			}
			if err != ErrIncomplete {
				return Value{}, err
			}
		}
		chunk := make([]byte, 4096)
		n, err := r.src.Read(chunk)
		if n > 0 {
			r.buf = append(r.buf, chunk[:n]...)
		}
		if err != nil {
			if n == 0 {
				return Value{}, err
			}
		}
	}
}
