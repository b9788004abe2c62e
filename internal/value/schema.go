// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package value

// ColumnSchema describes one column of a TupleSchema: its SQL type, its
// on-disk/in-block size (meaningful for variable-length columns, where it
// is the maximum inline width), whether it accepts NULL, and whether Size
// is expressed in bytes (true) or characters (false) — VARCHAR columns may
// be declared in either unit, per spec.md §3.
type ColumnSchema struct {
	Type     Type
	Size     int
	Nullable bool
	InBytes  bool
}

// TupleSchema is an ordered, value-typed, structurally-compared list of
// columns. Two schemas with the same columns in the same order are equal
// regardless of identity — spec.md §3 requires this for the recursive CTE
// executor's "recursive output schema must be memcpy-compatible with the
// input" check (spec.md §4.7.8).
type TupleSchema struct {
	Columns []ColumnSchema
}

// NewTupleSchema builds a schema from the given columns.
func NewTupleSchema(columns ...ColumnSchema) *TupleSchema {
	cp := append([]ColumnSchema(nil), columns...)
	return &TupleSchema{Columns: cp}
}

// ColumnCount returns the number of columns.
func (s *TupleSchema) ColumnCount() int { return len(s.Columns) }

// TupleLength returns the fixed total width of one tuple under this schema:
// the sum of each column's fixed size, or its declared inline Size for
// variable-length columns (the actual payload may be shorter but the slot
// reserves Size bytes, matching spec.md §3's "fixed tupleLength").
func (s *TupleSchema) TupleLength() int {
	total := 1 // flag byte
	for _, c := range s.Columns {
		if fixed, ok := c.Type.FixedSize(); ok {
			total += fixed
		} else {
			total += c.Size
		}
	}
	return total
}

// Equal reports structural equality: same columns, in the same order.
func (s *TupleSchema) Equal(other *TupleSchema) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		o := other.Columns[i]
		if c.Type != o.Type || c.Size != o.Size || c.Nullable != o.Nullable || c.InBytes != o.InBytes {
			return false
		}
	}
	return true
}

// MemcpyCompatible reports whether a tuple of schema other could be copied
// column-for-column into a tuple of schema s without cast — i.e. the
// column types line up, ignoring cosmetic Size/InBytes differences on
// variable-length columns. Used by the recursive CTE executor (spec.md
// §4.7.8) to validate that a recursive fragment's output can feed back as
// the next iteration's input.
func (s *TupleSchema) MemcpyCompatible(other *TupleSchema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if c.Type != other.Columns[i].Type {
			return false
		}
	}
	return true
}
