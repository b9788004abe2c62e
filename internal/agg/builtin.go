// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg

import "github.com/tesseradb/tessera/internal/value"

// distinctSet dedupes values fed to a DISTINCT aggregate. It hash-buckets
// on Value.Hash() and resolves collisions with Value.Equal, deep-copying
// every retained value out of volatile (block-owned) storage per spec.md
// §4.7.4's "volatile values deep-copied into pool" note.
type distinctSet struct {
	buckets map[uint64][]value.Value
}

func newDistinctSet() *distinctSet {
	return &distinctSet{buckets: make(map[uint64][]value.Value)}
}

// seenOrRegister reports whether v has already been registered; if not, it
// registers a clone of v and returns false.
func (d *distinctSet) seenOrRegister(v value.Value) bool {
	h := v.Hash()
	for _, e := range d.buckets[h] {
		if e.Equal(v) {
			return true
		}
	}
	d.buckets[h] = append(d.buckets[h], v.Clone())
	return false
}

// countAgg implements COUNT(*) and COUNT(e), with optional DISTINCT.
type countAgg struct {
	star     bool
	distinct *distinctSet
	count    int64
}

func newCountAgg(star, distinct bool) *countAgg {
	a := &countAgg{star: star}
	if distinct {
		a.distinct = newDistinctSet()
	}
	return a
}

func (a *countAgg) Advance(v value.Value) error {
	if !a.star {
		if v.IsNull() {
			return nil
		}
		if a.distinct != nil && a.distinct.seenOrRegister(v) {
			return nil
		}
	}
	a.count++
	return nil
}

func (a *countAgg) Finalize(t value.Type) (value.Value, error) {
	return value.NewBigInt(a.count).CastAs(t)
}

// sumAgg implements SUM(e), with optional DISTINCT.
type sumAgg struct {
	distinct *distinctSet
	has      bool
	sum      value.Value
}

func newSumAgg(distinct bool) *sumAgg {
	a := &sumAgg{}
	if distinct {
		a.distinct = newDistinctSet()
	}
	return a
}

func (a *sumAgg) Advance(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if a.distinct != nil && a.distinct.seenOrRegister(v) {
		return nil
	}
	if !a.has {
		a.sum = v.Clone()
		a.has = true
		return nil
	}
	sum, err := a.sum.Add(v, a.sum.Type())
	if err != nil {
		return err
	}
	a.sum = sum
	return nil
}

func (a *sumAgg) Finalize(t value.Type) (value.Value, error) {
	if !a.has {
		return value.NewNull(t), nil
	}
	return a.sum.CastAs(t)
}

// avgAgg implements AVG(e): sums while counting, and divides at Finalize
// (spec.md §4.7.4: "null when count==0, else value / count cast").
type avgAgg struct {
	sum   sumAgg
	count int64
}

func newAvgAgg() *avgAgg { return &avgAgg{} }

func (a *avgAgg) Advance(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if err := a.sum.Advance(v); err != nil {
		return err
	}
	a.count++
	return nil
}

func (a *avgAgg) Finalize(t value.Type) (value.Value, error) {
	if a.count == 0 {
		return value.NewNull(t), nil
	}
	sum, err := a.sum.Finalize(value.Double)
	if err != nil {
		return value.Value{}, err
	}
	return sum.Divide(value.NewBigInt(a.count), t)
}

// minMaxAgg implements MIN(e)/MAX(e). Every retained candidate is deep
// copied, since the winning value may alias volatile (block-owned) storage
// that gets reused before Finalize runs (spec.md §8's aggregator-retention
// property).
type minMaxAgg struct {
	isMax bool
	has   bool
	val   value.Value
}

func newMinMaxAgg(isMax bool) *minMaxAgg { return &minMaxAgg{isMax: isMax} }

func (a *minMaxAgg) Advance(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if !a.has {
		a.val = v.Clone()
		a.has = true
		return nil
	}
	var winner value.Value
	var err error
	if a.isMax {
		winner, err = a.val.Max(v)
	} else {
		winner, err = a.val.Min(v)
	}
	if err != nil {
		return err
	}
	a.val = winner.Clone()
	return nil
}

func (a *minMaxAgg) Finalize(t value.Type) (value.Value, error) {
	if !a.has {
		return value.NewNull(t), nil
	}
	return a.val.CastAs(t)
}
