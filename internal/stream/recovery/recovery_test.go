// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package recovery_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/stream"
	"github.com/tesseradb/tessera/internal/stream/recovery"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

func schema() *value.TupleSchema {
	return value.NewTupleSchema(value.ColumnSchema{Type: value.BigInt})
}

type framingSink struct {
	shippedIDs []int64
	headers    []recovery.Header
	completed  []recovery.Header
}

func (s *framingSink) WriteData(h recovery.Header, t value.TableTuple) (bool, int64, error) {
	v, _ := t.Column(0).Int64()
	s.shippedIDs = append(s.shippedIDs, v)
	s.headers = append(s.headers, h)
	return true, 8, nil
}

func (s *framingSink) WriteComplete(h recovery.Header) error {
	s.completed = append(s.completed, h)
	return nil
}

func TestRecoveryShipsEveryTupleThenCompletes(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 4, -1)
	for i := int64(0); i < 5; i++ {
		_, err := tb.Insert([]value.Value{value.NewBigInt(i)})
		require.NoError(t, err)
	}

	ctx := recovery.NewContext(tb, 42)
	require.Equal(t, stream.Recovery, ctx.Type())

	sink := &framingSink{}
	_, done, err := ctx.StreamMore([]stream.OutputSink{sink})
	require.NoError(t, err)
	require.True(t, done)

	require.ElementsMatch(t, []int64{0, 1, 2, 3, 4}, sink.shippedIDs)
	require.Len(t, sink.completed, 1)
	require.Equal(t, int64(42), sink.completed[0].TableID)
	require.Equal(t, int64(5), sink.completed[0].AllocatedTupleCount)
	for _, h := range sink.headers {
		require.Equal(t, int64(42), h.TableID)
	}
	require.True(t, ctx.Shipped())
}

func TestRecoveryStreamMoreAfterCompletionIsIdempotent(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 4, -1)
	_, err := tb.Insert([]value.Value{value.NewBigInt(1)})
	require.NoError(t, err)

	ctx := recovery.NewContext(tb, 7)
	sink := &framingSink{}
	_, done, err := ctx.StreamMore([]stream.OutputSink{sink})
	require.NoError(t, err)
	require.True(t, done)

	_, done, err = ctx.StreamMore([]stream.OutputSink{sink})
	require.NoError(t, err)
	require.True(t, done)
	require.Len(t, sink.completed, 1, "COMPLETE must be emitted exactly once")
}

func TestRecoveryTryReactivateAlwaysFails(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 4, -1)
	ctx := recovery.NewContext(tb, 1)
	require.Equal(t, stream.Recovery.String(), ctx.Type().String())
	require.Equal(t, tesserr.Failed, ctx.TryReactivate(nil))
}
