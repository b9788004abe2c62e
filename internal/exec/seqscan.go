// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec

import (
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

// SeqScanExecutor walks Input in base-address order, per spec.md §4.7.1.
// With no Predicate, Projection, Inline consumer or Limit it is a no-copy
// alias: Execute returns Input itself rather than materializing a copy.
type SeqScanExecutor struct {
	Input      Relation
	Predicate  Predicate // nil accepts every tuple
	Projection Projection
	// OutputSchema is required when Projection is set; otherwise the input
	// schema is reused.
	OutputSchema *value.TupleSchema
	// Inline, if set, receives every accepted row instead of having it
	// materialized into the returned temp table (Execute then returns nil).
	Inline InlineConsumer
	Limit  *PostFilter
}

// Execute runs the scan.
func (e *SeqScanExecutor) Execute() (Relation, error) {
	if e.Predicate == nil && e.Projection == nil && e.Inline == nil && e.Limit == nil {
		return e.Input, nil
	}

	outSchema := e.Input.Schema()
	if e.Projection != nil {
		outSchema = e.OutputSchema
	}
	var out *table.TempTable
	if e.Inline == nil {
		out = table.NewTempTable(outSchema)
	}

	it := e.Input.NewIterator()
	for {
		tup, ok := it.Next()
		if !ok {
			break
		}
		if e.Predicate != nil {
			match, err := e.Predicate(tup)
			if err != nil {
				return nil, err
			}
			if !match {
				continue
			}
		}

		row := tup.Columns()
		if e.Projection != nil {
			projected, err := e.Projection(tup)
			if err != nil {
				return nil, err
			}
			row = projected
		}

		accept, done := e.Limit.Accept()
		if accept {
			if e.Inline != nil {
				if err := e.Inline.Consume(row); err != nil {
					return nil, err
				}
			} else {
				out.Append(cloneRow(row))
			}
		}
		if done {
			break
		}
	}

	if e.Inline != nil {
		return nil, e.Inline.Finish()
	}
	return out, nil
}
