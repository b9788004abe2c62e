// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package exec implements the executor framework (spec.md §4.7): sequential
// scan, index scan, nested-loop index join, order-by, limit, merge receive
// and common-table-expression executors, plus the inline-node dispatch
// (aggregate/projection/insert folded into a scan) that spec.md §4.7.1
// describes.
package exec

import (
	"github.com/tesseradb/tessera/internal/block"
	"github.com/tesseradb/tessera/internal/value"
)

// Relation is the narrow contract every executor's input and output
// satisfies: something with a schema that can be walked tuple-by-tuple.
// table.PersistentTable, table.TempTable and table.LargeTempTable all
// implement it without any adapter.
type Relation interface {
	Schema() *value.TupleSchema
	NewIterator() *block.Iterator
}

func countRows(r Relation) int64 {
	var n int64
	it := r.NewIterator()
	for {
		_, ok := it.Next()
		if !ok {
			break
		}
		n++
	}
	return n
}
