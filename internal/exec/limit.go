// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec

import (
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

// LimitExecutor copies Offset-skipped, Limit-bounded rows from Input into a
// fresh temp table, per spec.md §4.7.6 — the standalone form used when
// offset/limit isn't folded into an upstream scan's PostFilter.
type LimitExecutor struct {
	Input        Relation
	OutputSchema *value.TupleSchema
	Offset       int64
	Limit        int64 // 0 means unlimited
}

// Execute runs the copy.
func (e *LimitExecutor) Execute() (*table.TempTable, error) {
	out := table.NewTempTable(e.OutputSchema)
	it := e.Input.NewIterator()
	var skipped, emitted int64
	for {
		tup, ok := it.Next()
		if !ok {
			break
		}
		if skipped < e.Offset {
			skipped++
			continue
		}
		if e.Limit > 0 && emitted >= e.Limit {
			break
		}
		out.Append(cloneRow(tup.Columns()))
		emitted++
	}
	return out, nil
}
