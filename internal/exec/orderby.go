// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec

import (
	"sort"

	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

// SortKey is one ORDER BY term.
type SortKey struct {
	Column     int
	Descending bool
}

// OrderByExecutor materializes Input, sorts it by SortKeys, and applies
// Offset/Limit, per spec.md §4.7.5. The teacher's corpus carries no
// partial-sort library (and no example repo ever needs a bounded top-K
// sort), so this sorts the full materialized set with stdlib sort.SliceStable and
// truncates afterward — a performance simplification of the original's
// partial_sort, not a semantic one: the output rows and their order are
// identical either way.
type OrderByExecutor struct {
	Input        Relation
	OutputSchema *value.TupleSchema
	SortKeys     []SortKey
	Offset       int64
	Limit        int64 // 0 means unlimited
	// Large routes output through table.LargeTempTable, spec.md §4.7.5's
	// large-query spill path. On-disk spill itself is out of scope (spec.md
	// §1 excludes on-disk persistence); LargeTempTable shares TempTable's
	// in-memory API so callers don't need to special-case this path.
	Large bool
}

// Execute runs the sort.
func (e *OrderByExecutor) Execute() (Relation, error) {
	it := e.Input.NewIterator()
	var rows [][]value.Value
	for {
		tup, ok := it.Next()
		if !ok {
			break
		}
		rows = append(rows, cloneRow(tup.Columns()))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range e.SortKeys {
			c, _ := rows[i][k.Column].Compare(rows[j][k.Column])
			if c == 0 {
				continue
			}
			if k.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	start := e.Offset
	if start > int64(len(rows)) {
		start = int64(len(rows))
	}
	end := int64(len(rows))
	if e.Limit > 0 && start+e.Limit < end {
		end = start + e.Limit
	}

	var out Relation
	if e.Large {
		lt := table.NewLargeTempTable(e.OutputSchema)
		for _, r := range rows[start:end] {
			lt.Append(r)
		}
		out = lt
	} else {
		t := table.NewTempTable(e.OutputSchema)
		for _, r := range rows[start:end] {
			t.Append(r)
		}
		out = t
	}
	return out, nil
}
