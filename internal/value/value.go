// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package value

import (
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/errs"
)

// ArithmeticError classes the overflow/underflow/divide-by-zero family from
// spec.md §7. Index-key construction (internal/exec) catches these locally;
// every other raiser lets them propagate.
var (
	ErrOverflow     = errs.Class("overflow")
	ErrUnderflow    = errs.Class("underflow")
	ErrDivideByZero = errs.Class("divide by zero")
	ErrTypeMismatch = errs.Class("type mismatch")
	ErrVarLength    = errs.Class("variable length mismatch")
)

// Value is a tagged union over the SQL type set. It carries a Volatile flag
// meaning "the backing storage may be reused" (spec.md §3): any long-lived
// capture of a volatile Value (an aggregator retaining a MIN/MAX candidate,
// a COW pre-image) must call Clone to deep-copy out of the block's storage.
//
// Value is intentionally a plain struct, copied by value everywhere except
// where Volatile is true and a capture must Clone first.
type Value struct {
	typ      Type
	null     bool
	volatile bool

	i64 int64
	f64 float64
	buf []byte // VARCHAR/VARBINARY/DECIMAL/POINT/GEOGRAPHY payload
}

// NewNull returns the null value of the given type.
func NewNull(t Type) Value { return Value{typ: t, null: true} }

// NewBigInt returns a non-volatile BIGINT value.
func NewBigInt(v int64) Value { return Value{typ: BigInt, i64: v} }

// NewInteger returns a non-volatile INTEGER value.
func NewInteger(v int32) Value { return Value{typ: Integer, i64: int64(v)} }

// NewSmallInt returns a non-volatile SMALLINT value.
func NewSmallInt(v int16) Value { return Value{typ: SmallInt, i64: int64(v)} }

// NewTinyInt returns a non-volatile TINYINT value.
func NewTinyInt(v int8) Value { return Value{typ: TinyInt, i64: int64(v)} }

// NewDouble returns a non-volatile DOUBLE value.
func NewDouble(v float64) Value { return Value{typ: Double, f64: v} }

// NewBoolean returns a non-volatile BOOLEAN value.
func NewBoolean(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{typ: Boolean, i64: i}
}

// NewVarchar returns a Value backed by s. If volatile is true the bytes
// alias storage that may be reused (e.g. a block slot); callers that retain
// the Value past the current scan step must Clone it first.
func NewVarchar(s string, volatile bool) Value {
	return Value{typ: Varchar, buf: []byte(s), volatile: volatile}
}

// NewVarbinary returns a Value backed by b, with the same volatility
// contract as NewVarchar.
func NewVarbinary(b []byte, volatile bool) Value {
	return Value{typ: Varbinary, buf: b, volatile: volatile}
}

// Type returns the value's SQL type.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether the value is SQL NULL.
func (v Value) IsNull() bool { return v.null }

// Volatile reports whether the value's backing storage may be reused.
func (v Value) Volatile() bool { return v.volatile }

// Int64 returns the value's integer payload and true if the type is one of
// the integral types and the value is not null.
func (v Value) Int64() (int64, bool) {
	if v.null || !v.typ.IsIntegral() {
		return 0, false
	}
	return v.i64, true
}

// Float64 returns the value's float payload and true if the type is DOUBLE
// and the value is not null.
func (v Value) Float64() (float64, bool) {
	if v.null || v.typ != Double {
		return 0, false
	}
	return v.f64, true
}

// Bytes returns the value's variable-length payload. The returned slice
// aliases internal storage; callers must not mutate it.
func (v Value) Bytes() []byte { return v.buf }

// Clone returns a Value with the same logical content but its own,
// non-volatile backing storage. Any aggregator or COW pre-image that
// retains a Value past the current scan step must call Clone first
// (spec.md §3, §4.7.4's MIN/MAX note, §8 property on aggregator retention).
func (v Value) Clone() Value {
	if !v.volatile || v.buf == nil {
		out := v
		out.volatile = false
		return out
	}
	out := v
	out.buf = append([]byte(nil), v.buf...)
	out.volatile = false
	return out
}

// Hash returns a stable hash of the value's canonical encoding, used for
// hash-aggregation group keys and the elastic index's partition-column
// hash (spec.md §3's ElasticIndex, §4.4).
func (v Value) Hash() uint64 {
	if v.null {
		return 0xdeadbeef
	}
	h := xxhash.New()
	_, _ = h.Write([]byte{byte(v.typ)})
	switch v.typ {
	case TinyInt, SmallInt, Integer, BigInt, Boolean, Timestamp:
		var b [8]byte
		putUint64(b[:], uint64(v.i64))
		_, _ = h.Write(b[:])
	case Double:
		var b [8]byte
		putUint64(b[:], math.Float64bits(v.f64))
		_, _ = h.Write(b[:])
	default:
		_, _ = h.Write(v.buf)
	}
	return h.Sum64()
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// Compare orders two values of the same type; NULL sorts before any
// non-null value. Comparing values of different, non-coercible types
// returns ErrTypeMismatch.
func (v Value) Compare(other Value) (int, error) {
	if v.null && other.null {
		return 0, nil
	}
	if v.null {
		return -1, nil
	}
	if other.null {
		return 1, nil
	}
	if v.typ != other.typ {
		return 0, ErrTypeMismatch.New("cannot compare %s to %s", v.typ, other.typ)
	}
	switch v.typ {
	case TinyInt, SmallInt, Integer, BigInt, Boolean, Timestamp:
		switch {
		case v.i64 < other.i64:
			return -1, nil
		case v.i64 > other.i64:
			return 1, nil
		default:
			return 0, nil
		}
	case Double:
		switch {
		case v.f64 < other.f64:
			return -1, nil
		case v.f64 > other.f64:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		a, b := v.buf, other.buf
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		for i := 0; i < n; i++ {
			if a[i] != b[i] {
				if a[i] < b[i] {
					return -1, nil
				}
				return 1, nil
			}
		}
		switch {
		case len(a) < len(b):
			return -1, nil
		case len(a) > len(b):
			return 1, nil
		default:
			return 0, nil
		}
	}
}

// Equal reports whether v and other compare equal; type mismatches compare
// unequal rather than erroring (used by group-by key comparison).
func (v Value) Equal(other Value) bool {
	c, err := v.Compare(other)
	return err == nil && c == 0
}

// Add returns v+other, cast to resultType. Only defined for numeric types.
// Returns ErrOverflow on 64-bit integer overflow.
func (v Value) Add(other Value, resultType Type) (Value, error) {
	if v.null || other.null {
		return NewNull(resultType), nil
	}
	if resultType == Double {
		return NewDouble(v.asFloat() + other.asFloat()).CastAs(Double)
	}
	a, b := v.i64, other.i64
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return Value{}, ErrOverflow.New("bigint addition overflow")
	}
	return Value{typ: BigInt, i64: sum}.CastAs(resultType)
}

func (v Value) asFloat() float64 {
	if v.typ == Double {
		return v.f64
	}
	return float64(v.i64)
}

// Divide returns v/other, cast to resultType, or ErrDivideByZero.
func (v Value) Divide(other Value, resultType Type) (Value, error) {
	if v.null || other.null {
		return NewNull(resultType), nil
	}
	if resultType == Double || v.typ == Double || other.typ == Double {
		d := other.asFloat()
		if d == 0 {
			return Value{}, ErrDivideByZero.New("division by zero")
		}
		return NewDouble(v.asFloat() / d).CastAs(resultType)
	}
	if other.i64 == 0 {
		return Value{}, ErrDivideByZero.New("division by zero")
	}
	return Value{typ: BigInt, i64: v.i64 / other.i64}.CastAs(resultType)
}

// Min returns whichever of v, other sorts first.
func (v Value) Min(other Value) (Value, error) {
	c, err := v.Compare(other)
	if err != nil {
		return Value{}, err
	}
	if c <= 0 {
		return v, nil
	}
	return other, nil
}

// Max returns whichever of v, other sorts last.
func (v Value) Max(other Value) (Value, error) {
	c, err := v.Compare(other)
	if err != nil {
		return Value{}, err
	}
	if c >= 0 {
		return v, nil
	}
	return other, nil
}

// CastAs converts v to t. A variable-length target keeps the payload as is,
// with no width check (TruncateVarLength applies spec.md §4.7.2's
// VarLengthMismatch rule). Integer narrowing that would truncate
// significant bits returns ErrOverflow.
func (v Value) CastAs(t Type) (Value, error) {
	if v.null {
		return NewNull(t), nil
	}
	if v.typ == t {
		return v, nil
	}
	switch t {
	case TinyInt, SmallInt, Integer, BigInt:
		i := v.i64
		if v.typ == Double {
			i = int64(v.f64)
		}
		if !fitsIntegral(i, t) {
			return Value{}, ErrOverflow.New("value does not fit in %s", t)
		}
		return Value{typ: t, i64: i}, nil
	case Double:
		f := v.f64
		if v.typ != Double {
			f = float64(v.i64)
		}
		return Value{typ: Double, f64: f}, nil
	case Varchar, Varbinary:
		return Value{typ: t, buf: v.buf, volatile: v.volatile}, nil
	default:
		return Value{}, ErrTypeMismatch.New("cannot cast %s to %s", v.typ, t)
	}
}

func fitsIntegral(i int64, t Type) bool {
	switch t {
	case TinyInt:
		return i >= math.MinInt8 && i <= math.MaxInt8
	case SmallInt:
		return i >= math.MinInt16 && i <= math.MaxInt16
	case Integer:
		return i >= math.MinInt32 && i <= math.MaxInt32
	default:
		return true
	}
}

// TruncateVarLength truncates a variable-length value to width bytes,
// reporting ErrVarLength if truncation was necessary, per spec.md §4.7.2's
// VarLengthMismatch handling in index-key construction.
func (v Value) TruncateVarLength(width int) (Value, error) {
	if !v.typ.IsVariableLength() || len(v.buf) <= width {
		return v, nil
	}
	out := v
	out.buf = v.buf[:width]
	return out, ErrVarLength.New("value of length %d truncated to %d", len(v.buf), width)
}
