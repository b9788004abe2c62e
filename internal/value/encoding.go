// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package value

import (
	"encoding/binary"
	"math"

	"github.com/zeebo/errs"
)

// ErrDecode classes a malformed wire buffer (short read, bad length prefix)
// encountered while decoding a row written by Value.Encode.
var ErrDecode = errs.Class("decode")

// Encode appends v's wire encoding to buf, per spec.md §6's "serialized
// fields per schema": a one-byte null flag, then (for a non-null value)
// either the type's fixed-width payload or a 4-byte big-endian length
// prefix followed by the variable-length payload.
//
// This is a bespoke fixed-layout format with no compatible ecosystem
// serialization library in the retrieval pack (protobuf/msgpack/etc. all
// assume a schema-described message type, not a per-column SQL-typed tuple
// row); stdlib encoding/binary is the idiomatic way to hand-roll it.
func (v Value) Encode(buf []byte) []byte {
	if v.null {
		return append(buf, 1)
	}
	buf = append(buf, 0)
	switch v.typ {
	case TinyInt:
		return append(buf, byte(v.i64))
	case SmallInt:
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(v.i64))
		return append(buf, b[:]...)
	case Integer:
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(v.i64))
		return append(buf, b[:]...)
	case BigInt, Timestamp:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(v.i64))
		return append(buf, b[:]...)
	case Boolean:
		return append(buf, byte(v.i64))
	case Double:
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], math.Float64bits(v.f64))
		return append(buf, b[:]...)
	default: // Varchar, Varbinary, Decimal, Point, Geography
		var lb [4]byte
		binary.BigEndian.PutUint32(lb[:], uint32(len(v.buf)))
		buf = append(buf, lb[:]...)
		return append(buf, v.buf...)
	}
}

// EncodedLen returns the number of bytes Encode would append for v, without
// allocating, so a caller can test buffer headroom before writing.
func (v Value) EncodedLen() int {
	if v.null {
		return 1
	}
	if size, ok := v.typ.FixedSize(); ok && v.typ != Decimal && v.typ != Point {
		return 1 + size
	}
	return 1 + 4 + len(v.buf)
}

// DecodeValue reads one Value of type t from the front of buf, returning the
// value and the number of bytes consumed.
func DecodeValue(t Type, buf []byte) (Value, int, error) {
	if len(buf) < 1 {
		return Value{}, 0, ErrDecode.New("truncated null flag")
	}
	if buf[0] == 1 {
		return NewNull(t), 1, nil
	}
	buf = buf[1:]
	switch t {
	case TinyInt:
		if len(buf) < 1 {
			return Value{}, 0, ErrDecode.New("truncated TINYINT")
		}
		return NewTinyInt(int8(buf[0])), 2, nil
	case SmallInt:
		if len(buf) < 2 {
			return Value{}, 0, ErrDecode.New("truncated SMALLINT")
		}
		return NewSmallInt(int16(binary.BigEndian.Uint16(buf))), 3, nil
	case Integer:
		if len(buf) < 4 {
			return Value{}, 0, ErrDecode.New("truncated INTEGER")
		}
		return NewInteger(int32(binary.BigEndian.Uint32(buf))), 5, nil
	case BigInt, Timestamp:
		if len(buf) < 8 {
			return Value{}, 0, ErrDecode.New("truncated BIGINT")
		}
		v := Value{typ: t, i64: int64(binary.BigEndian.Uint64(buf))}
		return v, 9, nil
	case Boolean:
		if len(buf) < 1 {
			return Value{}, 0, ErrDecode.New("truncated BOOLEAN")
		}
		return NewBoolean(buf[0] != 0), 2, nil
	case Double:
		if len(buf) < 8 {
			return Value{}, 0, ErrDecode.New("truncated DOUBLE")
		}
		return NewDouble(math.Float64frombits(binary.BigEndian.Uint64(buf))), 9, nil
	default:
		if len(buf) < 4 {
			return Value{}, 0, ErrDecode.New("truncated length prefix")
		}
		n := int(binary.BigEndian.Uint32(buf))
		if n < 0 || len(buf) < 4+n {
			return Value{}, 0, ErrDecode.New("truncated payload")
		}
		payload := append([]byte(nil), buf[4:4+n]...)
		return Value{typ: t, buf: payload}, 1 + 4 + n, nil
	}
}

// DecodeRow reads len(schema.Columns) values in order from the front of buf,
// returning the row and total bytes consumed.
func DecodeRow(schema *TupleSchema, buf []byte) ([]Value, int, error) {
	row := make([]Value, len(schema.Columns))
	total := 0
	for i, col := range schema.Columns {
		v, n, err := DecodeValue(col.Type, buf[total:])
		if err != nil {
			return nil, 0, err
		}
		row[i] = v
		total += n
	}
	return row, total, nil
}
