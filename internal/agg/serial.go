// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg

import "github.com/tesseradb/tessera/internal/value"

// SerialAggregator assumes its input is already sorted on the group-by
// prefix: it keeps exactly one AggregateRow in flight, flushing it to emit
// whenever the group-by key changes (spec.md §4.7.4).
type SerialAggregator struct {
	spec    *Spec
	emit    func(row []value.Value) error
	current *AggregateRow
	sawAny  bool
	emitted int64
}

// NewSerialAggregator builds a serial aggregator over spec, calling emit
// for every output row that survives PostPredicate and RowLimit.
func NewSerialAggregator(spec *Spec, emit func(row []value.Value) error) *SerialAggregator {
	return &SerialAggregator{spec: spec, emit: emit}
}

// Advance feeds one input row.
func (s *SerialAggregator) Advance(row []value.Value) error {
	if s.spec.PrePredicate != nil {
		ok, err := s.spec.PrePredicate(row)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	s.sawAny = true

	key := extractKey(s.spec.GroupByColumns, row)
	if s.current == nil {
		r, err := newAggregateRow(s.spec, key)
		if err != nil {
			return err
		}
		s.current = r
	} else if !keysEqual(s.current.Key, key) {
		if err := s.flush(); err != nil {
			return err
		}
		r, err := newAggregateRow(s.spec, key)
		if err != nil {
			return err
		}
		s.current = r
	}
	return s.current.advance(s.spec, row)
}

func (s *SerialAggregator) flush() error {
	row := s.current
	s.current = nil
	return s.finalizeAndEmit(row)
}

func (s *SerialAggregator) finalizeAndEmit(row *AggregateRow) error {
	if s.spec.RowLimit > 0 && s.emitted >= s.spec.RowLimit {
		return nil
	}
	out, err := row.finalize(s.spec)
	if err != nil {
		return err
	}
	if s.spec.PostPredicate != nil {
		ok, err := s.spec.PostPredicate(out)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	s.emitted++
	return s.emit(out)
}

// Finish flushes any in-flight group, and emits a single synthetic row for
// a grouping-free (no GROUP BY) aggregation that saw zero input rows, per
// spec.md §4.7.4's "SUM(A) FROM T on empty T" special case.
func (s *SerialAggregator) Finish() error {
	if s.current != nil {
		return s.flush()
	}
	if !s.sawAny && len(s.spec.GroupByColumns) == 0 {
		row, err := newAggregateRow(s.spec, nil)
		if err != nil {
			return err
		}
		return s.finalizeAndEmit(row)
	}
	return nil
}
