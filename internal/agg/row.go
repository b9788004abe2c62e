// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg

import (
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// Aggregator is one running computation over a column of input values,
// per spec.md §4.7.4's kind table: Advance feeds one (possibly null) input
// value, Finalize produces the output cast to the requested result type.
type Aggregator interface {
	Advance(input value.Value) error
	Finalize(resultType value.Type) (value.Value, error)
}

// Spec describes one aggregation node: group-by key schema, aggregate-type
// vector, distinct-flag vector and input-column vector, plus pre/post
// predicates and a counting post-filter (spec.md §4.7.4's base fields).
// The predicates are kept as plain functions rather than importing package stream,
// since exec is the only consumer that needs to wire real predicates in;
// agg itself stays independent of the executor framework.
type Spec struct {
	// GroupByColumns names, in order, the input-row column ordinals that
	// form the group-by key.
	GroupByColumns []int
	// Kinds, Distinct and InputColumns are parallel vectors, one entry per
	// aggregate output column. InputColumns[i] is -1 for COUNT(*).
	Kinds        []Kind
	Distinct     []bool
	InputColumns []int
	// OutputTypes is the cast target for each aggregate's Finalize call.
	OutputTypes []value.Type
	// PrePredicate filters input rows before they reach any aggregator, if
	// non-nil.
	PrePredicate func(row []value.Value) (bool, error)
	// PostPredicate is HAVING: evaluated against the finalized output row
	// (group-by key followed by aggregate results) before it is emitted.
	PostPredicate func(row []value.Value) (bool, error)
	// RowLimit caps the number of output rows emitted, 0 meaning unlimited
	// (spec.md §4.7.4's "counting post-filter").
	RowLimit int64
}

func (s *Spec) newAggregators() ([]Aggregator, error) {
	aggs := make([]Aggregator, len(s.Kinds))
	for i, k := range s.Kinds {
		a, err := newAggregator(k, s.Distinct[i])
		if err != nil {
			return nil, err
		}
		aggs[i] = a
	}
	return aggs, nil
}

func newAggregator(k Kind, distinct bool) (Aggregator, error) {
	switch k {
	case Count:
		return newCountAgg(false, distinct), nil
	case CountStar:
		return newCountAgg(true, false), nil
	case Sum:
		return newSumAgg(distinct), nil
	case Avg:
		return newAvgAgg(), nil
	case Min:
		return newMinMaxAgg(false), nil
	case Max:
		return newMinMaxAgg(true), nil
	case ApproxCountDistinct:
		return newApproxCountDistinctAgg(), nil
	case ValsToHyperLogLog:
		return newValsToHLLAgg(), nil
	case HyperLogLogsToCard:
		return newHLLsToCardAgg(), nil
	case UserDefined:
		return nil, tesserr.UnknownAggregateType.New("USER_DEFINED requires NewUserDefinedAgg with a host callback, not the default factory")
	default:
		return nil, tesserr.UnknownAggregateType.New("unknown aggregate kind %d", k)
	}
}

// AggregateRow is one in-progress (or finished) group: its key tuple plus
// one Aggregator per output column (spec.md §4.7.4's "next/in-progress
// group-by key pair").
type AggregateRow struct {
	Key         []value.Value
	Aggregators []Aggregator
}

func newAggregateRow(spec *Spec, key []value.Value) (*AggregateRow, error) {
	aggs, err := spec.newAggregators()
	if err != nil {
		return nil, err
	}
	return &AggregateRow{Key: key, Aggregators: aggs}, nil
}

func (r *AggregateRow) advance(spec *Spec, row []value.Value) error {
	for i, a := range r.Aggregators {
		col := spec.InputColumns[i]
		var in value.Value
		if col < 0 {
			in = value.NewBigInt(0) // COUNT(*) dummy, per spec.md §4.7.4
		} else {
			in = row[col]
		}
		if err := a.Advance(in); err != nil {
			return err
		}
	}
	return nil
}

func (r *AggregateRow) finalize(spec *Spec) ([]value.Value, error) {
	out := make([]value.Value, 0, len(spec.GroupByColumns)+len(r.Aggregators))
	out = append(out, r.Key...)
	for i, a := range r.Aggregators {
		v, err := a.Finalize(spec.OutputTypes[i])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func extractKey(cols []int, row []value.Value) []value.Value {
	if len(cols) == 0 {
		return nil
	}
	key := make([]value.Value, len(cols))
	for i, c := range cols {
		key[i] = row[c].Clone()
	}
	return key
}

// keysEqual compares from the last column to the first, per spec.md
// §4.7.4's serial-aggregation "compares each group-by column from
// least-significant to most-significant" early-exit idiom: with input
// sorted on the group-by prefix, a difference in a trailing (more
// fine-grained) column is statistically likelier and cheaper to detect
// first.
func keysEqual(a, b []value.Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := len(a) - 1; i >= 0; i-- {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func cloneValues(vs []value.Value) []value.Value {
	out := make([]value.Value, len(vs))
	for i, v := range vs {
		out[i] = v.Clone()
	}
	return out
}

func hashKey(key []value.Value) uint64 {
	h := uint64(14695981039346656037) // FNV offset basis, combined with each column's own Hash()
	for _, v := range key {
		h = (h ^ v.Hash()) * 1099511628211
	}
	return h
}
