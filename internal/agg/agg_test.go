// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/agg"
	"github.com/tesseradb/tessera/internal/value"
)

func row(vals ...int64) []value.Value {
	out := make([]value.Value, len(vals))
	for i, v := range vals {
		out[i] = value.NewBigInt(v)
	}
	return out
}

func TestSerialAggregatorGroupsSortedInputByPrefix(t *testing.T) {
	spec := &agg.Spec{
		GroupByColumns: []int{0},
		Kinds:          []agg.Kind{agg.Sum},
		Distinct:       []bool{false},
		InputColumns:   []int{1},
		OutputTypes:    []value.Type{value.BigInt},
	}
	var out [][]value.Value
	sa := agg.NewSerialAggregator(spec, func(r []value.Value) error {
		out = append(out, r)
		return nil
	})

	rows := [][]int64{{1, 10}, {1, 20}, {2, 5}, {2, 5}, {3, 1}}
	for _, r := range rows {
		require.NoError(t, sa.Advance(row(r...)))
	}
	require.NoError(t, sa.Finish())

	require.Len(t, out, 3)
	sumFor := func(key int64) int64 {
		for _, r := range out {
			k, _ := r[0].Int64()
			if k == key {
				v, _ := r[1].Int64()
				return v
			}
		}
		t.Fatalf("no output row for key %d", key)
		return 0
	}
	require.Equal(t, int64(30), sumFor(1))
	require.Equal(t, int64(10), sumFor(2))
	require.Equal(t, int64(1), sumFor(3))
}

func TestSerialAggregatorEmitsSyntheticRowOnEmptyInputWithNoGroupBy(t *testing.T) {
	spec := &agg.Spec{
		Kinds:        []agg.Kind{agg.Sum},
		Distinct:     []bool{false},
		InputColumns: []int{0},
		OutputTypes:  []value.Type{value.BigInt},
	}
	var out [][]value.Value
	sa := agg.NewSerialAggregator(spec, func(r []value.Value) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, sa.Finish())
	require.Len(t, out, 1)
	require.True(t, out[0][0].IsNull())
}

func TestHashAggregatorGroupsUnsortedInput(t *testing.T) {
	spec := &agg.Spec{
		GroupByColumns: []int{0},
		Kinds:          []agg.Kind{agg.CountStar},
		Distinct:       []bool{false},
		InputColumns:   []int{-1},
		OutputTypes:    []value.Type{value.BigInt},
	}
	counts := map[int64]int64{}
	ha := agg.NewHashAggregator(spec, func(r []value.Value) error {
		k, _ := r[0].Int64()
		c, _ := r[1].Int64()
		counts[k] = c
		return nil
	})

	for _, r := range [][]int64{{3}, {1}, {3}, {2}, {1}, {1}} {
		require.NoError(t, ha.Advance(row(r...)))
	}
	require.NoError(t, ha.Finish())

	require.Equal(t, int64(3), counts[1])
	require.Equal(t, int64(1), counts[2])
	require.Equal(t, int64(2), counts[3])
}

func TestHashAggregatorZeroAggregatesEmitsAtInsertion(t *testing.T) {
	spec := &agg.Spec{
		GroupByColumns: []int{0},
		OutputTypes:    []value.Type{},
	}
	var emitted []int64
	ha := agg.NewHashAggregator(spec, func(r []value.Value) error {
		v, _ := r[0].Int64()
		emitted = append(emitted, v)
		return nil
	})
	require.NoError(t, ha.Advance(row(5)))
	require.NoError(t, ha.Advance(row(5)))
	require.NoError(t, ha.Advance(row(6)))
	require.ElementsMatch(t, []int64{5, 6}, emitted)
	require.NoError(t, ha.Finish())
	require.Len(t, emitted, 2, "Finish must not re-emit already-inserted keys")
}

func TestPartialAggregatorFlushesSuffixOnPrefixChange(t *testing.T) {
	spec := &agg.Spec{
		GroupByColumns: []int{0, 1},
		Kinds:          []agg.Kind{agg.Sum},
		Distinct:       []bool{false},
		InputColumns:   []int{2},
		OutputTypes:    []value.Type{value.BigInt},
	}
	var out [][]value.Value
	pa := agg.NewPartialAggregator(spec, 1, func(r []value.Value) error {
		out = append(out, r)
		return nil
	})

	rows := [][]int64{{1, 10, 100}, {1, 20, 1}, {1, 10, 1}, {2, 10, 5}}
	for _, r := range rows {
		require.NoError(t, pa.Advance(row(r...)))
	}
	require.NoError(t, pa.Finish())

	require.Len(t, out, 3)
	find := func(prefix, suffix int64) int64 {
		for _, r := range out {
			p, _ := r[0].Int64()
			s, _ := r[1].Int64()
			if p == prefix && s == suffix {
				v, _ := r[2].Int64()
				return v
			}
		}
		t.Fatalf("no row for (%d,%d)", prefix, suffix)
		return 0
	}
	require.Equal(t, int64(101), find(1, 10))
	require.Equal(t, int64(1), find(1, 20))
	require.Equal(t, int64(5), find(2, 10))
}

func TestCountDistinctSkipsDuplicates(t *testing.T) {
	spec := &agg.Spec{
		Kinds:        []agg.Kind{agg.Count},
		Distinct:     []bool{true},
		InputColumns: []int{0},
		OutputTypes:  []value.Type{value.BigInt},
	}
	var out []value.Value
	sa := agg.NewSerialAggregator(spec, func(r []value.Value) error {
		out = r
		return nil
	})
	for _, v := range []int64{1, 1, 2, 2, 2, 3} {
		require.NoError(t, sa.Advance(row(v)))
	}
	require.NoError(t, sa.Finish())
	got, _ := out[0].Int64()
	require.Equal(t, int64(3), got)
}

func TestMinMaxRetainsDeepCopiedCandidate(t *testing.T) {
	spec := &agg.Spec{
		Kinds:        []agg.Kind{agg.Min, agg.Max},
		Distinct:     []bool{false, false},
		InputColumns: []int{0, 0},
		OutputTypes:  []value.Type{value.BigInt, value.BigInt},
	}
	var out []value.Value
	sa := agg.NewSerialAggregator(spec, func(r []value.Value) error {
		out = r
		return nil
	})
	for _, v := range []int64{5, 1, 9, 3} {
		require.NoError(t, sa.Advance(row(v)))
	}
	require.NoError(t, sa.Finish())
	lo, _ := out[0].Int64()
	hi, _ := out[1].Int64()
	require.Equal(t, int64(1), lo)
	require.Equal(t, int64(9), hi)
}

func TestApproxCountDistinctEstimatesWithinTolerance(t *testing.T) {
	spec := &agg.Spec{
		Kinds:        []agg.Kind{agg.ApproxCountDistinct},
		Distinct:     []bool{false},
		InputColumns: []int{0},
		OutputTypes:  []value.Type{value.BigInt},
	}
	var out []value.Value
	sa := agg.NewSerialAggregator(spec, func(r []value.Value) error {
		out = r
		return nil
	})
	const n = 5000
	for i := int64(0); i < n; i++ {
		require.NoError(t, sa.Advance(row(i)))
	}
	require.NoError(t, sa.Finish())
	got, _ := out[0].Int64()
	require.InEpsilon(t, float64(n), float64(got), 0.1)
}

func TestValsToHyperLogLogAndHyperLogLogsToCardRoundTrip(t *testing.T) {
	workerSpec := &agg.Spec{
		Kinds:        []agg.Kind{agg.ValsToHyperLogLog},
		Distinct:     []bool{false},
		InputColumns: []int{0},
		OutputTypes:  []value.Type{value.Varbinary},
	}
	var partials [][]value.Value
	collect := func(r []value.Value) error { partials = append(partials, r); return nil }

	w1 := agg.NewSerialAggregator(workerSpec, collect)
	for i := int64(0); i < 1000; i++ {
		require.NoError(t, w1.Advance(row(i)))
	}
	require.NoError(t, w1.Finish())

	w2 := agg.NewSerialAggregator(workerSpec, collect)
	for i := int64(1000); i < 2000; i++ {
		require.NoError(t, w2.Advance(row(i)))
	}
	require.NoError(t, w2.Finish())

	require.Len(t, partials, 2)

	reduceSpec := &agg.Spec{
		Kinds:        []agg.Kind{agg.HyperLogLogsToCard},
		Distinct:     []bool{false},
		InputColumns: []int{0},
		OutputTypes:  []value.Type{value.BigInt},
	}
	var final []value.Value
	reducer := agg.NewSerialAggregator(reduceSpec, func(r []value.Value) error {
		final = r
		return nil
	})
	for _, p := range partials {
		require.NoError(t, reducer.Advance([]value.Value{p[0]}))
	}
	require.NoError(t, reducer.Finish())

	got, _ := final[0].Int64()
	require.InEpsilon(t, 2000.0, float64(got), 0.1)
}

type recordingHost struct {
	batches [][]value.Value
	role    string
}

func (h *recordingHost) Advance(batch []value.Value) error {
	h.batches = append(h.batches, batch)
	return nil
}

func (h *recordingHost) Worker() (value.Value, error) {
	h.role = "worker"
	var total int64
	for _, b := range h.batches {
		total += int64(len(b))
	}
	return value.NewBigInt(total), nil
}

func (h *recordingHost) Coordinator() (value.Value, error) {
	h.role = "coordinator"
	var total int64
	for _, b := range h.batches {
		total += int64(len(b))
	}
	return value.NewBigInt(total), nil
}

func TestUserDefinedAggBatchesAndDelegatesToHost(t *testing.T) {
	host := &recordingHost{}
	a := agg.NewUserDefinedAgg(host, false)
	for i := int64(0); i < 70; i++ {
		require.NoError(t, a.Advance(value.NewBigInt(i)))
	}
	out, err := a.Finalize(value.BigInt)
	require.NoError(t, err)
	n, _ := out.Int64()
	require.Equal(t, int64(70), n)
	require.Equal(t, "worker", host.role)
	require.Len(t, host.batches, 3) // two full batches of 32 plus a final 6
}
