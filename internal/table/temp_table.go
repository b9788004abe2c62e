// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package table

import (
	"github.com/tesseradb/tessera/internal/block"
	"github.com/tesseradb/tessera/internal/value"
)

// TempTable is an append-only, block-backed, unindexed table produced and
// consumed within a single fragment execution (spec.md §3). Executors
// write their output rows here; nothing but block.Store's own bucket
// bookkeeping applies, since temp tables are never compacted or streamed.
type TempTable struct {
	schema *value.TupleSchema
	store  *block.Store
}

// NewTempTable creates an empty temp table for schema.
func NewTempTable(schema *value.TupleSchema) *TempTable {
	return &TempTable{schema: schema, store: block.NewStore(schema, DefaultTuplesPerBlock)}
}

// Schema returns the temp table's column schema.
func (t *TempTable) Schema() *value.TupleSchema { return t.schema }

// Append allocates a new tuple and populates it from values.
func (t *TempTable) Append(values []value.Value) value.TableTuple {
	tup := t.store.AllocateTuple()
	for i, v := range values {
		tup.SetColumn(i, v)
	}
	return tup
}

// NewIterator returns an iterator over every appended tuple, in insertion
// order (temp tables never compact or delete, so block/slot order is
// insertion order).
func (t *TempTable) NewIterator() *block.Iterator { return t.store.NewIterator() }

// Count returns the number of tuples appended so far.
func (t *TempTable) Count() int64 {
	var n int64
	it := t.NewIterator()
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		n++
	}
	return n
}

// LargeTempTable is a TempTable variant earmarked for order-by's
// large-query spill path (spec.md §4.7.5: "a special large-query path
// spills to LargeTempTable and calls its on-disk sort"). Disk spill itself
// is out of scope here (spec.md §1 excludes on-disk persistence format from
// the core); LargeTempTable keeps the same in-memory API as TempTable so
// that callers can be written against one interface regardless of size,
// with the on-disk path left as a documented extension point.
type LargeTempTable struct {
	*TempTable
}

// NewLargeTempTable creates an empty large temp table for schema.
func NewLargeTempTable(schema *value.TupleSchema) *LargeTempTable {
	return &LargeTempTable{TempTable: NewTempTable(schema)}
}
