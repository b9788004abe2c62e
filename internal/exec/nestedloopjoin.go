// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec

import (
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

// JoinType selects which unmatched rows a nested-loop index join emits,
// per spec.md §4.7.3.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	FullJoin
)

// NestedLoopIndexJoinExecutor probes InnerIndex once per outer tuple, per
// spec.md §4.7.3. FULL joins track which inner addresses were matched and
// emit the remainder, null-padded, in a second pass once the outer scan
// finishes.
type NestedLoopIndexJoinExecutor struct {
	Outer Relation

	InnerIndex *table.OrderedIndex
	TupleAt    func(value.Address) value.TableTuple
	// BuildInnerKey computes the inner probe key from one outer tuple.
	BuildInnerKey func(outer value.TableTuple) (value.Value, error)
	Lookup        table.LookupType

	// PrejoinExpression filters outer tuples before any inner probe.
	PrejoinExpression Predicate
	// EndExpression, evaluated per inner candidate against the current
	// outer tuple, terminates that outer tuple's inner probe once it turns
	// false (an ordered-range cutoff, e.g. "inner key still equals outer's
	// probe value" for an equi-join).
	EndExpression func(outer, inner value.TableTuple) (bool, error)
	// PostExpression gates whether an (outer, inner) pair joins.
	PostExpression func(outer, inner value.TableTuple) (bool, error)

	Type JoinType
	// Combine builds one output row from an (outer, inner) pair; either side
	// may be the zero TableTuple for a null-padded unmatched row.
	Combine      func(outer, inner value.TableTuple) []value.Value
	OutputSchema *value.TupleSchema

	Limit *PostFilter
}

// Execute runs the join.
func (e *NestedLoopIndexJoinExecutor) Execute() (*table.TempTable, error) {
	out := table.NewTempTable(e.OutputSchema)

	var matched map[value.Address]bool
	if e.Type == FullJoin {
		matched = make(map[value.Address]bool)
	}

	outerIt := e.Outer.NewIterator()
outerLoop:
	for {
		outerTup, ok := outerIt.Next()
		if !ok {
			break
		}

		if e.PrejoinExpression != nil {
			pass, err := e.PrejoinExpression(outerTup)
			if err != nil {
				return nil, err
			}
			if !pass {
				if e.Type == LeftJoin || e.Type == FullJoin {
					accept, done := e.Limit.Accept()
					if accept {
						out.Append(cloneRow(e.Combine(outerTup, value.TableTuple{})))
					}
					if done {
						break outerLoop
					}
				}
				continue
			}
		}

		key, err := e.BuildInnerKey(outerTup)
		if err != nil {
			return nil, err
		}

		cur := e.InnerIndex.Seek(key, e.Lookup)
		anyMatch := false
		for {
			addr, _, ok := cur.Next()
			if !ok {
				break
			}
			innerTup := e.TupleAt(addr)

			if e.EndExpression != nil {
				pass, err := e.EndExpression(outerTup, innerTup)
				if err != nil {
					return nil, err
				}
				if !pass {
					break
				}
			}

			if e.PostExpression != nil {
				pass, err := e.PostExpression(outerTup, innerTup)
				if err != nil {
					return nil, err
				}
				if !pass {
					continue
				}
			}

			anyMatch = true
			if matched != nil {
				matched[addr] = true
			}

			accept, done := e.Limit.Accept()
			if accept {
				out.Append(cloneRow(e.Combine(outerTup, innerTup)))
			}
			if done {
				break outerLoop
			}
		}

		if !anyMatch && (e.Type == LeftJoin || e.Type == FullJoin) {
			accept, done := e.Limit.Accept()
			if accept {
				out.Append(cloneRow(e.Combine(outerTup, value.TableTuple{})))
			}
			if done {
				break
			}
		}
	}

	if e.Type == FullJoin {
		for _, addr := range e.InnerIndex.AllAddresses() {
			if matched[addr] {
				continue
			}
			innerTup := e.TupleAt(addr)
			accept, done := e.Limit.Accept()
			if accept {
				out.Append(cloneRow(e.Combine(value.TableTuple{}, innerTup)))
			}
			if done {
				break
			}
		}
	}

	return out, nil
}
