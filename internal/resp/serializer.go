package resp

import (
	"strconv"
)

// Encode serializes v to its wire form. Array and Push encode identically;
// the distinction matters only to the connection layer (which frames use
// is "in reply to a request" vs "pushed").
func Encode(v Value) []byte {
	buf := make([]byte, 0, 64)
	return appendValue(buf, v)
}

func appendValue(buf []byte, v Value) []byte {
	switch v.Type {
	case SimpleString:
		buf = append(buf, '+')
		buf = append(buf, v.Str...)
		return appendCRLF(buf)
	case Error:
		buf = append(buf, '-')
		buf = append(buf, v.Str...)
		return appendCRLF(buf)
	case Integer:
		buf = append(buf, ':')
		buf = strconv.AppendInt(buf, v.Int, 10)
		return appendCRLF(buf)
	case BulkString:
		if v.IsNull {
			return append(buf, '$', '-', '1', '\r', '\n')
		}
		buf = append(buf, '$')
		buf = strconv.AppendInt(buf, int64(len(v.Bulk)), 10)
		buf = appendCRLF(buf)
		buf = append(buf, v.Bulk...)
		return appendCRLF(buf)
	case Array:
		if v.IsNull {
			return append(buf, '*', '-', '1', '\r', '\n')
		}
		buf = append(buf, '*')
		buf = strconv.AppendInt(buf, int64(len(v.Items)), 10)
		buf = appendCRLF(buf)
		for _, item := range v.Items {
			buf = appendValue(buf, item)
		}
		return buf
	default:
		return appendCRLF(append(buf, '-', 'E', 'R', 'R', ' '))
	}
}

func appendCRLF(buf []byte) []byte {
	return append(buf, '\r', '\n')
}

// EncodeError is a convenience for the common "-CODE message\r\n" shape.
func EncodeError(code, message string) []byte {
	if message == "" {
		return Encode(Err(code))
	}
	return Encode(Err(code + " " + message))
}
