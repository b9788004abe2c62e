// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package table_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

func orderedSchema() *value.TupleSchema {
	return value.NewTupleSchema(value.ColumnSchema{Type: value.BigInt})
}

func keyOf(t value.TableTuple) value.Value { return t.Column(0) }

func TestOrderedIndexSeekMoveToKeyOrGreater(t *testing.T) {
	tb := table.NewPersistentTable(orderedSchema(), 8, -1)
	idx := table.NewOrderedIndex("k", false, keyOf)
	tb.AddIndex(idx, true)

	for _, v := range []int64{10, 30, 20, 50, 40} {
		_, err := tb.Insert([]value.Value{value.NewBigInt(v)})
		require.NoError(t, err)
	}

	cur := idx.Seek(value.NewBigInt(25), table.MoveToKeyOrGreater)
	var got []int64
	for {
		addr, _, ok := cur.Next()
		if !ok {
			break
		}
		tup := tb.Store().TupleAt(addr)
		v, _ := tup.Column(0).Int64()
		got = append(got, v)
	}
	require.Equal(t, []int64{30, 40, 50}, got)
}

func TestOrderedIndexSeekMoveToLessThanKeyReverse(t *testing.T) {
	tb := table.NewPersistentTable(orderedSchema(), 8, -1)
	idx := table.NewOrderedIndex("k", false, keyOf)
	tb.AddIndex(idx, true)

	for _, v := range []int64{10, 20, 30, 40} {
		_, err := tb.Insert([]value.Value{value.NewBigInt(v)})
		require.NoError(t, err)
	}

	cur := idx.Seek(value.NewBigInt(30), table.MoveToLessThanKey)
	var got []int64
	for {
		addr, _, ok := cur.Next()
		if !ok {
			break
		}
		tup := tb.Store().TupleAt(addr)
		v, _ := tup.Column(0).Int64()
		got = append(got, v)
	}
	require.Equal(t, []int64{20, 10}, got)
}

func TestOrderedIndexUniqueRejectsDuplicateKey(t *testing.T) {
	idx := table.NewOrderedIndex("k", true, keyOf)
	require.NoError(t, idx.Insert(value.NewBigInt(1), value.Address{Slot: 0}))
	err := idx.Insert(value.NewBigInt(1), value.Address{Slot: 1})
	require.True(t, tesserr.ConstraintViolation.Has(err))
}

func TestOrderedIndexMovePreservesKeyOrdering(t *testing.T) {
	idx := table.NewOrderedIndex("k", false, keyOf)
	require.NoError(t, idx.Insert(value.NewBigInt(5), value.Address{Slot: 1}))
	idx.Move(value.NewBigInt(5), value.Address{Slot: 1}, value.Address{Slot: 2})

	cur := idx.Seek(value.NewBigInt(5), table.MoveToKey)
	addr, _, ok := cur.Next()
	require.True(t, ok)
	require.Equal(t, uint32(2), addr.Slot)
}
