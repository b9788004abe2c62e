// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg

import "github.com/tesseradb/tessera/internal/value"

// PartialAggregator splits its group-by columns into a serial-ordered
// prefix and a hashed suffix: input is assumed sorted on the prefix only,
// with the suffix aggregated per sub-group via a fresh HashAggregator for
// each serial run (spec.md §4.7.4).
type PartialAggregator struct {
	spec      *Spec
	prefixLen int
	emit      func(row []value.Value) error

	started       bool
	currentPrefix []value.Value
	suffix        *HashAggregator
	emitted       int64
}

// NewPartialAggregator builds a partial aggregator over spec, whose first
// prefixLen group-by columns form the serial-ordered prefix and whose
// remaining group-by columns form the hashed suffix.
func NewPartialAggregator(spec *Spec, prefixLen int, emit func(row []value.Value) error) *PartialAggregator {
	return &PartialAggregator{spec: spec, prefixLen: prefixLen, emit: emit}
}

func (p *PartialAggregator) newSuffixAggregator() *HashAggregator {
	suffixSpec := &Spec{
		GroupByColumns: p.spec.GroupByColumns[p.prefixLen:],
		Kinds:          p.spec.Kinds,
		Distinct:       p.spec.Distinct,
		InputColumns:   p.spec.InputColumns,
		OutputTypes:    p.spec.OutputTypes,
	}
	return NewHashAggregator(suffixSpec, func(suffixRow []value.Value) error {
		if p.spec.RowLimit > 0 && p.emitted >= p.spec.RowLimit {
			return nil
		}
		full := make([]value.Value, 0, len(p.currentPrefix)+len(suffixRow))
		full = append(full, cloneValues(p.currentPrefix)...)
		full = append(full, suffixRow...)
		if p.spec.PostPredicate != nil {
			ok, err := p.spec.PostPredicate(full)
			if err != nil || !ok {
				return err
			}
		}
		p.emitted++
		return p.emit(full)
	})
}

// Advance feeds one input row.
func (p *PartialAggregator) Advance(row []value.Value) error {
	if p.spec.PrePredicate != nil {
		ok, err := p.spec.PrePredicate(row)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}

	prefixKey := extractKey(p.spec.GroupByColumns[:p.prefixLen], row)
	switch {
	case !p.started:
		p.currentPrefix = prefixKey
		p.suffix = p.newSuffixAggregator()
		p.started = true
	case !keysEqual(p.currentPrefix, prefixKey):
		if err := p.suffix.Finish(); err != nil {
			return err
		}
		p.currentPrefix = prefixKey
		p.suffix = p.newSuffixAggregator()
	}
	return p.suffix.Advance(row)
}

// Finish flushes the final serial run's suffix hash.
func (p *PartialAggregator) Finish() error {
	if p.suffix == nil {
		return nil
	}
	return p.suffix.Finish()
}
