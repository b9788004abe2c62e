// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package value implements the engine's tagged-union SQL value, its fixed
// tuple schema and the in-memory tuple handle that the block store and
// executors pass around.
package value

import "fmt"

// Type tags the SQL type of a Value. It is a small value type, not an
// interface, so that AggregateRow slots and TableTuple columns can be laid
// out contiguously without boxing on the hot aggregation/scan path.
type Type int8

// The supported SQL types, per spec.md §3.
const (
	Invalid Type = iota
	TinyInt
	SmallInt
	Integer
	BigInt
	Double
	Decimal
	Varchar
	Varbinary
	Timestamp
	Boolean
	Point
	Geography
)

func (t Type) String() string {
	switch t {
	case Invalid:
		return "INVALID"
	case TinyInt:
		return "TINYINT"
	case SmallInt:
		return "SMALLINT"
	case Integer:
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case Double:
		return "DOUBLE"
	case Decimal:
		return "DECIMAL"
	case Varchar:
		return "VARCHAR"
	case Varbinary:
		return "VARBINARY"
	case Timestamp:
		return "TIMESTAMP"
	case Boolean:
		return "BOOLEAN"
	case Point:
		return "POINT"
	case Geography:
		return "GEOGRAPHY"
	default:
		return fmt.Sprintf("Type(%d)", int8(t))
	}
}

// IsVariableLength reports whether values of this type carry a byte payload
// whose length varies per value (VARCHAR, VARBINARY, GEOGRAPHY).
func (t Type) IsVariableLength() bool {
	switch t {
	case Varchar, Varbinary, Geography:
		return true
	default:
		return false
	}
}

// IsNumeric reports whether the type supports arithmetic (SUM/AVG/op_add).
func (t Type) IsNumeric() bool {
	switch t {
	case TinyInt, SmallInt, Integer, BigInt, Double, Decimal:
		return true
	default:
		return false
	}
}

// IsIntegral reports whether the type is one of the fixed-width integer
// types (used by spec.md §8's AVG/SUM integral-type property).
func (t Type) IsIntegral() bool {
	switch t {
	case TinyInt, SmallInt, Integer, BigInt:
		return true
	default:
		return false
	}
}

// FixedSize returns the in-memory size in bytes for fixed-length types, and
// ok=false for variable-length types (whose size is carried per-value).
func (t Type) FixedSize() (size int, ok bool) {
	switch t {
	case TinyInt:
		return 1, true
	case SmallInt:
		return 2, true
	case Integer:
		return 4, true
	case BigInt, Double, Timestamp:
		return 8, true
	case Decimal:
		return 16, true
	case Boolean:
		return 1, true
	case Point:
		return 16, true
	default:
		return 0, false
	}
}
