// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec

import "github.com/tesseradb/tessera/internal/value"

// Predicate evaluates against one live tuple. Expression compilation is out
// of scope (spec.md §1's Non-goals exclude a SQL planner/compiler); callers
// supply closures that already know how to read the tuple's columns.
type Predicate func(value.TableTuple) (bool, error)

// Projection builds an output row from one input tuple.
type Projection func(value.TableTuple) ([]value.Value, error)

// PostFilter is the offset+limit counting post-filter every scan-family
// executor shares (spec.md §4.7's "counting post-filter" referenced by seq
// scan, index scan, merge receive and the join executors). A nil *PostFilter
// accepts every row unconditionally.
type PostFilter struct {
	Offset int64
	Limit  int64 // 0 means unlimited

	seen    int64
	emitted int64
}

// Accept reports whether the current row should be emitted, having first
// skipped Offset rows, and whether Limit has now been reached (the caller
// should stop scanning once done is true, matching spec.md §4.7.1's "early
// termination when an inline LIMIT is reached").
func (f *PostFilter) Accept() (accept, done bool) {
	if f == nil {
		return true, false
	}
	if f.seen < f.Offset {
		f.seen++
		return false, false
	}
	f.seen++
	if f.Limit > 0 && f.emitted >= f.Limit {
		return false, true
	}
	f.emitted++
	return true, f.Limit > 0 && f.emitted >= f.Limit
}

func cloneRow(vs []value.Value) []value.Value {
	out := make([]value.Value, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}
