// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec

import (
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// CommonTableExecutor runs a non-recursive or recursive common table
// expression, per spec.md §4.7.8. Non-recursive CTEs simply emit the base
// query's result; recursive CTEs repeatedly rebind Name to the previous
// fragment's output and re-run RunRecursiveFragment until it emits zero
// rows.
type CommonTableExecutor struct {
	Context *ExecutorContext
	Name    string

	BaseQuery Relation
	Recursive bool
	// RunRecursiveFragment executes the recursive term, reading the current
	// binding of Name from Context via Context.Binding(Name).
	RunRecursiveFragment func() (Relation, error)

	OutputSchema *value.TupleSchema
}

// Execute runs the CTE to completion.
func (e *CommonTableExecutor) Execute() (*table.TempTable, error) {
	out := table.NewTempTable(e.OutputSchema)
	appendAll := func(rel Relation) {
		it := rel.NewIterator()
		for {
			tup, ok := it.Next()
			if !ok {
				break
			}
			out.Append(cloneRow(tup.Columns()))
		}
	}

	appendAll(e.BaseQuery)
	if !e.Recursive {
		return out, nil
	}

	e.Context.SetBinding(e.Name, e.BaseQuery)
	for {
		frag, err := e.RunRecursiveFragment()
		if err != nil {
			return nil, err
		}
		if !frag.Schema().MemcpyCompatible(e.OutputSchema) {
			return nil, tesserr.PlanInvalid.New(
				"recursive CTE %q fragment schema incompatible with output schema", e.Name)
		}
		if countRows(frag) == 0 {
			break
		}
		appendAll(frag)
		e.Context.ClearBinding(e.Name)
		e.Context.SetBinding(e.Name, frag)
	}
	return out, nil
}
