// Package resp implements RESP2 framing: parsing client requests off a byte
// stream and serializing server replies, including out-of-band push frames
// used for pub/sub, MONITOR, and blocking wakeups.
package resp

import "fmt"

// Type tags the wire kind a Value was parsed from or should be serialized as.
type Type byte

const (
	SimpleString Type = '+'
	Error        Type = '-'
	Integer      Type = ':'
	BulkString   Type = '$'
	Array        Type = '*'
	// Push is framed identically to Array on the wire but is delivered
	// outside the normal request/reply cycle.
	Push Type = '*'
)

// Value is a parsed or to-be-serialized RESP value. Only the fields
// relevant to Type are meaningful; e.g. a BulkString uses Bulk and IsNull,
// an Array uses Items and IsNull.
type Value struct {
	Type  Type
	Str   string  // SimpleString, Error
	Int   int64   // Integer
	Bulk  []byte  // BulkString
	Items []Value // Array
	IsNull bool   // nil bulk ($-1) or nil array (*-1)
}

func Str(s string) Value      { return Value{Type: SimpleString, Str: s} }
func Err(s string) Value      { return Value{Type: Error, Str: s} }
func Int(n int64) Value       { return Value{Type: Integer, Int: n} }
func Bulk(b []byte) Value     { return Value{Type: BulkString, Bulk: b} }
func BulkStr(s string) Value  { return Value{Type: BulkString, Bulk: []byte(s)} }
func NilBulk() Value          { return Value{Type: BulkString, IsNull: true} }
func NilArray() Value         { return Value{Type: Array, IsNull: true} }
func Arr(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Type: Array, Items: items}
}

// ArrSlice builds an array reply from a slice without the variadic copy.
func ArrSlice(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Type: Array, Items: items}
}

func (v Value) String() string {
	switch v.Type {
	case SimpleString, Error:
		return v.Str
	case Integer:
		return fmt.Sprintf("%d", v.Int)
	case BulkString:
		if v.IsNull {
			return "(nil)"
		}
		return string(v.Bulk)
	default:
		return fmt.Sprintf("%v", v.Items)
	}
}
