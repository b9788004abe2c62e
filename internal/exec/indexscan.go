// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec

import (
	"math"

	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

// IndexScanExecutor walks an OrderedIndex from a directional search key,
// per spec.md §4.7.2. The engine core supports a single leading search-key
// column (the common range-scan case); composite multi-column index keys
// are a documented simplification (see DESIGN.md) rather than a modeled
// concatenated-key type.
type IndexScanExecutor struct {
	Index   *table.OrderedIndex
	TupleAt func(value.Address) value.TableTuple

	// Key is the already-evaluated search key (expression compilation is out
	// of scope; spec.md §1's Non-goals exclude a query planner). IndexType
	// is the key column's declared SQL type, used to cast Key into range.
	Key             value.Value
	IndexType       value.Type
	VarLengthWidth  int // 0 disables truncation (fixed-width key column)
	AllowNullLookup bool
	Lookup          table.LookupType

	// Expression layers, per spec.md §4.7.2.
	SkipNull          Predicate
	InitialExpression Predicate
	EndExpression     Predicate
	PostExpression    Predicate

	// HasOffsetRankOptimization skips straight to a computed rank position
	// instead of re-walking from Offset skipped rows (spec.md §4.7.2).
	HasOffsetRankOptimization bool
	Rank                      int
	RankReverse               bool

	Limit *PostFilter
}

// Execute runs the index scan, appending matching rows (as full base
// tuples) into a temp table of schema.
func (e *IndexScanExecutor) Execute(schema *value.TupleSchema) (*table.TempTable, error) {
	out := table.NewTempTable(schema)

	if !e.AllowNullLookup && e.Key.IsNull() {
		return out, nil
	}

	key, lookup, empty, err := e.resolveKey()
	if err != nil {
		return nil, err
	}
	if empty {
		return out, nil
	}

	var cur *table.Cursor
	if e.HasOffsetRankOptimization {
		if e.Limit != nil {
			e.Limit.Offset = 0
		}
		cur = e.Index.SeekRankPosition(e.Rank, e.RankReverse)
	} else {
		cur = e.Index.Seek(key, lookup)
	}

	skippingNull := e.SkipNull != nil
	sawInitial := e.InitialExpression == nil

	for {
		addr, _, ok := cur.Next()
		if !ok {
			break
		}
		tup := e.TupleAt(addr)

		if skippingNull {
			skip, err := e.SkipNull(tup)
			if err != nil {
				return nil, err
			}
			if skip {
				continue
			}
			skippingNull = false
		}

		if !sawInitial {
			pass, err := e.InitialExpression(tup)
			if err != nil {
				return nil, err
			}
			if !pass {
				continue
			}
			sawInitial = true
		}

		if e.EndExpression != nil {
			pass, err := e.EndExpression(tup)
			if err != nil {
				return nil, err
			}
			if !pass {
				break
			}
		}

		if e.PostExpression != nil {
			pass, err := e.PostExpression(tup)
			if err != nil {
				return nil, err
			}
			if !pass {
				continue
			}
		}

		accept, done := e.Limit.Accept()
		if accept {
			out.Append(cloneRow(tup.Columns()))
		}
		if done {
			break
		}
	}
	return out, nil
}

// resolveKey casts Key into IndexType, applying spec.md §4.7.2's
// Overflow/Underflow/VarLengthMismatch handling: a lookup whose direction
// can be satisfied by a boundary value is downgraded to the nearest
// inclusive/exclusive variant; an Equal (MoveToKey) lookup or a direction
// that cannot be salvaged returns empty=true instead.
func (e *IndexScanExecutor) resolveKey() (key value.Value, lookup table.LookupType, empty bool, err error) {
	lookup = e.Lookup
	casted, castErr := e.Key.CastAs(e.IndexType)
	if castErr != nil {
		if !value.ErrOverflow.Has(castErr) {
			return value.Value{}, lookup, false, castErr
		}
		if lookup == table.MoveToKey {
			return value.Value{}, lookup, true, nil
		}
		i, _ := e.Key.Int64()
		_, hi := intRange(e.IndexType)
		overflowsHigh := i > hi
		switch {
		case overflowsHigh:
			switch lookup {
			case table.MoveToGreaterThanKey, table.MoveToKeyOrGreater:
				return value.Value{}, lookup, true, nil
			case table.MoveToLessThanKey, table.MoveToKeyOrLess:
				return boundaryValue(e.IndexType, true), table.MoveToKeyOrLess, false, nil
			default:
				return value.Value{}, lookup, true, nil
			}
		default:
			switch lookup {
			case table.MoveToLessThanKey, table.MoveToKeyOrLess:
				return value.Value{}, lookup, true, nil
			case table.MoveToGreaterThanKey, table.MoveToKeyOrGreater:
				return boundaryValue(e.IndexType, false), table.MoveToGreaterThanKey, false, nil
			default:
				return value.Value{}, lookup, true, nil
			}
		}
	}

	if e.VarLengthWidth <= 0 {
		return casted, lookup, false, nil
	}
	truncated, trErr := casted.TruncateVarLength(e.VarLengthWidth)
	if trErr == nil {
		return truncated, lookup, false, nil
	}
	if lookup == table.MoveToKey {
		return value.Value{}, lookup, true, nil
	}
	switch lookup {
	case table.MoveToGreaterThanKey, table.MoveToKeyOrGreater:
		lookup = table.MoveToKeyOrGreater
	case table.MoveToLessThanKey, table.MoveToKeyOrLess:
		lookup = table.MoveToKeyOrLess
	}
	return truncated, lookup, false, nil
}

// intRange returns the [min, max] representable range of an integral type.
func intRange(t value.Type) (lo, hi int64) {
	switch t {
	case value.TinyInt:
		return math.MinInt8, math.MaxInt8
	case value.SmallInt:
		return math.MinInt16, math.MaxInt16
	case value.Integer:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// boundaryValue returns the maximal or minimal representable value of t, used
// to substitute for a search key that overflowed or underflowed the index
// column's type during cast.
func boundaryValue(t value.Type, upper bool) value.Value {
	switch t {
	case value.TinyInt:
		if upper {
			return value.NewTinyInt(math.MaxInt8)
		}
		return value.NewTinyInt(math.MinInt8)
	case value.SmallInt:
		if upper {
			return value.NewSmallInt(math.MaxInt16)
		}
		return value.NewSmallInt(math.MinInt16)
	case value.Integer:
		if upper {
			return value.NewInteger(math.MaxInt32)
		}
		return value.NewInteger(math.MinInt32)
	default:
		if upper {
			return value.NewBigInt(math.MaxInt64)
		}
		return value.NewBigInt(math.MinInt64)
	}
}
