// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg

import "github.com/tesseradb/tessera/internal/value"

// HashAggregator maintains one AggregateRow per distinct group-by key,
// with no assumption about input order (spec.md §4.7.4).
type HashAggregator struct {
	spec    *Spec
	emit    func(row []value.Value) error
	buckets map[uint64][]*AggregateRow
	order   []*AggregateRow
	emitted int64
}

// NewHashAggregator builds a hash aggregator over spec.
func NewHashAggregator(spec *Spec, emit func(row []value.Value) error) *HashAggregator {
	return &HashAggregator{spec: spec, emit: emit, buckets: make(map[uint64][]*AggregateRow)}
}

func (h *HashAggregator) find(key []value.Value) *AggregateRow {
	for _, r := range h.buckets[hashKey(key)] {
		if keysEqual(r.Key, key) {
			return r
		}
	}
	return nil
}

// Advance feeds one input row. With zero aggregates (a DISTINCT projection
// with no aggregate function), a newly seen key is emitted immediately
// rather than held for Finish (spec.md §4.7.4).
func (h *HashAggregator) Advance(row []value.Value) error {
	if h.spec.PrePredicate != nil {
		ok, err := h.spec.PrePredicate(row)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	key := extractKey(h.spec.GroupByColumns, row)
	if r := h.find(key); r != nil {
		return r.advance(h.spec, row)
	}

	r, err := newAggregateRow(h.spec, key)
	if err != nil {
		return err
	}
	hk := hashKey(key)
	h.buckets[hk] = append(h.buckets[hk], r)
	h.order = append(h.order, r)

	if len(h.spec.Kinds) == 0 {
		return h.finalizeAndEmit(r)
	}
	return r.advance(h.spec, row)
}

func (h *HashAggregator) finalizeAndEmit(row *AggregateRow) error {
	if h.spec.RowLimit > 0 && h.emitted >= h.spec.RowLimit {
		return nil
	}
	out, err := row.finalize(h.spec)
	if err != nil {
		return err
	}
	if h.spec.PostPredicate != nil {
		ok, err := h.spec.PostPredicate(out)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
	h.emitted++
	return h.emit(out)
}

// Finish emits every accumulated group through the post-filter (a no-op if
// the aggregator already emitted at insertion time per the zero-aggregate
// case in Advance).
func (h *HashAggregator) Finish() error {
	if len(h.spec.Kinds) == 0 {
		return nil
	}
	for _, r := range h.order {
		if err := h.finalizeAndEmit(r); err != nil {
			return err
		}
	}
	return nil
}
