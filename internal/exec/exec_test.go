// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/exec"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

func twoColSchema() *value.TupleSchema {
	return value.NewTupleSchema(
		value.ColumnSchema{Type: value.BigInt},
		value.ColumnSchema{Type: value.BigInt},
	)
}

func ints(rel exec.Relation, col int) []int64 {
	var out []int64
	it := rel.NewIterator()
	for {
		tup, ok := it.Next()
		if !ok {
			break
		}
		v, _ := tup.Column(col).Int64()
		out = append(out, v)
	}
	return out
}

func TestSeqScanNoopAliasesInputWhenUnconstrained(t *testing.T) {
	tb := table.NewPersistentTable(twoColSchema(), 8, -1)
	_, err := tb.Insert([]value.Value{value.NewBigInt(1), value.NewBigInt(2)})
	require.NoError(t, err)

	se := &exec.SeqScanExecutor{Input: tb}
	out, err := se.Execute()
	require.NoError(t, err)
	require.Same(t, exec.Relation(tb), out)
}

func TestSeqScanAppliesPredicateAndLimit(t *testing.T) {
	tb := table.NewPersistentTable(twoColSchema(), 8, -1)
	for _, v := range []int64{1, 2, 3, 4, 5} {
		_, err := tb.Insert([]value.Value{value.NewBigInt(v), value.NewBigInt(v * 10)})
		require.NoError(t, err)
	}

	se := &exec.SeqScanExecutor{
		Input: tb,
		Predicate: func(t value.TableTuple) (bool, error) {
			v, _ := t.Column(0).Int64()
			return v%2 == 1, nil
		},
		Limit: &exec.PostFilter{Limit: 2},
	}
	out, err := se.Execute()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, ints(out, 0))
}

func TestSeqScanInlineConsumerSkipsMaterialization(t *testing.T) {
	tb := table.NewPersistentTable(twoColSchema(), 8, -1)
	for _, v := range []int64{1, 2, 3} {
		_, err := tb.Insert([]value.Value{value.NewBigInt(v), value.NewBigInt(0)})
		require.NoError(t, err)
	}
	dst := table.NewPersistentTable(twoColSchema(), 8, -1)
	consumer := &exec.InsertConsumer{Table: dst}

	se := &exec.SeqScanExecutor{Input: tb, Inline: consumer}
	out, err := se.Execute()
	require.NoError(t, err)
	require.Nil(t, out)
	require.EqualValues(t, 3, consumer.Inserted)
	require.EqualValues(t, 3, dst.VisibleTupleCount())
}

func TestIndexScanMoveToKeyOrGreaterWithOffsetLimit(t *testing.T) {
	tb := table.NewPersistentTable(twoColSchema(), 8, -1)
	idx := table.NewOrderedIndex("k", false, func(t value.TableTuple) value.Value { return t.Column(0) })
	tb.AddIndex(idx, true)
	for _, v := range []int64{10, 20, 30, 40, 50} {
		_, err := tb.Insert([]value.Value{value.NewBigInt(v), value.NewBigInt(0)})
		require.NoError(t, err)
	}

	ise := &exec.IndexScanExecutor{
		Index:     idx,
		TupleAt:   tb.Store().TupleAt,
		Key:       value.NewBigInt(20),
		IndexType: value.BigInt,
		Lookup:    table.MoveToKeyOrGreater,
		Limit:     &exec.PostFilter{Offset: 1, Limit: 2},
	}
	out, err := ise.Execute(twoColSchema())
	require.NoError(t, err)
	require.Equal(t, []int64{30, 40}, ints(out, 0))
}

func TestIndexScanOverflowOnLessThanDowngradesToBoundary(t *testing.T) {
	schema := value.NewTupleSchema(value.ColumnSchema{Type: value.TinyInt})
	tb := table.NewPersistentTable(schema, 8, -1)
	idx := table.NewOrderedIndex("k", false, func(t value.TableTuple) value.Value { return t.Column(0) })
	tb.AddIndex(idx, true)
	for _, v := range []int64{1, 2, 3} {
		_, err := tb.Insert([]value.Value{value.NewTinyInt(int8(v))})
		require.NoError(t, err)
	}

	ise := &exec.IndexScanExecutor{
		Index:     idx,
		TupleAt:   tb.Store().TupleAt,
		Key:       value.NewBigInt(1000), // overflows TINYINT
		IndexType: value.TinyInt,
		Lookup:    table.MoveToLessThanKey,
	}
	out, err := ise.Execute(schema)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2, 1}, func() []int64 {
		var got []int64
		it := out.NewIterator()
		for {
			tup, ok := it.Next()
			if !ok {
				break
			}
			v, _ := tup.Column(0).Int64()
			got = append(got, v)
		}
		return got
	}())
}

func TestIndexScanEqualLookupOverflowReturnsEmpty(t *testing.T) {
	schema := value.NewTupleSchema(value.ColumnSchema{Type: value.TinyInt})
	tb := table.NewPersistentTable(schema, 8, -1)
	idx := table.NewOrderedIndex("k", false, func(t value.TableTuple) value.Value { return t.Column(0) })
	tb.AddIndex(idx, true)
	_, err := tb.Insert([]value.Value{value.NewTinyInt(1)})
	require.NoError(t, err)

	ise := &exec.IndexScanExecutor{
		Index:     idx,
		TupleAt:   tb.Store().TupleAt,
		Key:       value.NewBigInt(1000),
		IndexType: value.TinyInt,
		Lookup:    table.MoveToKey,
	}
	out, err := ise.Execute(schema)
	require.NoError(t, err)
	require.Empty(t, ints(out, 0))
}

func TestNestedLoopIndexJoinInner(t *testing.T) {
	outerTb := table.NewPersistentTable(twoColSchema(), 8, -1)
	for _, v := range []int64{1, 2, 3} {
		_, err := outerTb.Insert([]value.Value{value.NewBigInt(v), value.NewBigInt(v)})
		require.NoError(t, err)
	}

	innerTb := table.NewPersistentTable(twoColSchema(), 8, -1)
	innerIdx := table.NewOrderedIndex("k", false, func(t value.TableTuple) value.Value { return t.Column(0) })
	innerTb.AddIndex(innerIdx, true)
	for _, v := range []int64{2, 3, 3} {
		_, err := innerTb.Insert([]value.Value{value.NewBigInt(v), value.NewBigInt(v * 100)})
		require.NoError(t, err)
	}

	je := &exec.NestedLoopIndexJoinExecutor{
		Outer:      outerTb,
		InnerIndex: innerIdx,
		TupleAt:    innerTb.Store().TupleAt,
		BuildInnerKey: func(outer value.TableTuple) (value.Value, error) {
			return outer.Column(0), nil
		},
		Lookup: table.MoveToKey,
		EndExpression: func(outer, inner value.TableTuple) (bool, error) {
			ov, _ := outer.Column(0).Int64()
			iv, _ := inner.Column(0).Int64()
			return ov == iv, nil
		},
		Type: exec.InnerJoin,
		Combine: func(outer, inner value.TableTuple) []value.Value {
			return []value.Value{outer.Column(0), inner.Column(1)}
		},
		OutputSchema: twoColSchema(),
	}
	out, err := je.Execute()
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{200, 300, 300}, ints(out, 1))
}

func TestNestedLoopIndexJoinLeftEmitsNullPaddedUnmatched(t *testing.T) {
	outerTb := table.NewPersistentTable(twoColSchema(), 8, -1)
	for _, v := range []int64{1, 2} {
		_, err := outerTb.Insert([]value.Value{value.NewBigInt(v), value.NewBigInt(0)})
		require.NoError(t, err)
	}
	innerTb := table.NewPersistentTable(twoColSchema(), 8, -1)
	innerIdx := table.NewOrderedIndex("k", false, func(t value.TableTuple) value.Value { return t.Column(0) })
	innerTb.AddIndex(innerIdx, true)
	_, err := innerTb.Insert([]value.Value{value.NewBigInt(1), value.NewBigInt(99)})
	require.NoError(t, err)

	je := &exec.NestedLoopIndexJoinExecutor{
		Outer:      outerTb,
		InnerIndex: innerIdx,
		TupleAt:    innerTb.Store().TupleAt,
		BuildInnerKey: func(outer value.TableTuple) (value.Value, error) {
			return outer.Column(0), nil
		},
		Lookup: table.MoveToKey,
		Type:   exec.LeftJoin,
		Combine: func(outer, inner value.TableTuple) []value.Value {
			if inner.IsZero() {
				return []value.Value{outer.Column(0), value.NewNull(value.BigInt)}
			}
			return []value.Value{outer.Column(0), inner.Column(1)}
		},
		OutputSchema: twoColSchema(),
	}
	out, err := je.Execute()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ints(out, 0))
}

func TestOrderByExecutorSortsDescendingWithOffsetLimit(t *testing.T) {
	tb := table.NewPersistentTable(twoColSchema(), 8, -1)
	for _, v := range []int64{3, 1, 4, 1, 5, 9} {
		_, err := tb.Insert([]value.Value{value.NewBigInt(v), value.NewBigInt(0)})
		require.NoError(t, err)
	}
	ob := &exec.OrderByExecutor{
		Input:        tb,
		OutputSchema: twoColSchema(),
		SortKeys:     []exec.SortKey{{Column: 0, Descending: true}},
		Offset:       1,
		Limit:        2,
	}
	out, err := ob.Execute()
	require.NoError(t, err)
	require.Equal(t, []int64{5, 4}, ints(out, 0))
}

func TestLimitExecutorSkipsAndBounds(t *testing.T) {
	tb := table.NewPersistentTable(twoColSchema(), 8, -1)
	for _, v := range []int64{1, 2, 3, 4, 5} {
		_, err := tb.Insert([]value.Value{value.NewBigInt(v), value.NewBigInt(0)})
		require.NoError(t, err)
	}
	le := &exec.LimitExecutor{Input: tb, OutputSchema: twoColSchema(), Offset: 1, Limit: 2}
	out, err := le.Execute()
	require.NoError(t, err)
	require.Equal(t, []int64{2, 3}, ints(out, 0))
}

func TestMergeReceiveMergesSortedPartitions(t *testing.T) {
	p1 := table.NewTempTable(twoColSchema())
	for _, v := range []int64{1, 3, 5} {
		p1.Append([]value.Value{value.NewBigInt(v), value.NewBigInt(0)})
	}
	p2 := table.NewTempTable(twoColSchema())
	for _, v := range []int64{2, 4, 6} {
		p2.Append([]value.Value{value.NewBigInt(v), value.NewBigInt(0)})
	}

	mre := &exec.MergeReceiveExecutor{
		Partitions:   []exec.Relation{p1, p2},
		SortKeys:     []exec.SortKey{{Column: 0}},
		OutputSchema: twoColSchema(),
		Limit:        &exec.PostFilter{},
	}
	out, err := mre.Execute()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6}, ints(out, 0))
}

func TestCommonTableExecutorRecursiveTerminatesOnEmptyFragment(t *testing.T) {
	schema := value.NewTupleSchema(value.ColumnSchema{Type: value.BigInt})
	base := table.NewTempTable(schema)
	base.Append([]value.Value{value.NewBigInt(1)})

	ctx := exec.NewExecutorContext()
	iteration := 0
	var run func() (exec.Relation, error)
	run = func() (exec.Relation, error) {
		iteration++
		prev := ctx.Binding("r")
		var last int64
		it := prev.NewIterator()
		for {
			tup, ok := it.Next()
			if !ok {
				break
			}
			v, _ := tup.Column(0).Int64()
			if v > last {
				last = v
			}
		}
		frag := table.NewTempTable(schema)
		if last < 4 {
			frag.Append([]value.Value{value.NewBigInt(last + 1)})
		}
		return frag, nil
	}

	cte := &exec.CommonTableExecutor{
		Context:              ctx,
		Name:                 "r",
		BaseQuery:            base,
		Recursive:            true,
		RunRecursiveFragment: run,
		OutputSchema:         schema,
	}
	out, err := cte.Execute()
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4}, ints(out, 0))
	require.LessOrEqual(t, iteration, 4)
}
