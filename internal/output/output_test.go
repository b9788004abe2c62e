// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package output_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/output"
	"github.com/tesseradb/tessera/internal/stream"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

func schema() *value.TupleSchema {
	return value.NewTupleSchema(value.ColumnSchema{Type: value.BigInt})
}

func TestTupleOutputStreamRoundTripsPartitionIDRowCountAndRows(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 8, -1)
	t1, err := tb.Insert([]value.Value{value.NewBigInt(7)})
	require.NoError(t, err)
	t2, err := tb.Insert([]value.Value{value.NewBigInt(8)})
	require.NoError(t, err)

	s := output.NewTupleOutputStream(256)
	s.StartRows(42)
	s.WriteRow(t1, 0)
	s.WriteRow(t2, 0)
	s.EndRows()

	buf := s.Bytes()
	require.Equal(t, int32(42), int32(binary.BigEndian.Uint32(buf[0:4])))
	require.Equal(t, uint32(2), binary.BigEndian.Uint32(buf[4:8]))

	off := 8
	rowLen := binary.BigEndian.Uint32(buf[off : off+4])
	off += 4
	row, n, err := value.DecodeRow(schema(), buf[off:off+int(rowLen)])
	require.NoError(t, err)
	require.Equal(t, int(rowLen), n)
	v, _ := row[0].Int64()
	require.Equal(t, int64(7), v)
}

func TestTupleOutputStreamCanFitRespectsCapacity(t *testing.T) {
	s := output.NewTupleOutputStream(10)
	require.True(t, s.CanFit(10))
	require.False(t, s.CanFit(11))
}

func TestProcessorWritesOnlyToAcceptingStreamsAndOrsDeleteFlags(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 8, -1)
	low, err := tb.Insert([]value.Value{value.NewBigInt(1)})
	require.NoError(t, err)
	high, err := tb.Insert([]value.Value{value.NewBigInt(100)})
	require.NoError(t, err)

	lowOnly := stream.StreamPredicate{
		Expr: func(tup value.TableTuple) (bool, error) {
			v, _ := tup.Column(0).Int64()
			return v < 10, nil
		},
		DeleteIfTrue: true,
	}
	highOnly := stream.StreamPredicate{
		Expr: func(tup value.TableTuple) (bool, error) {
			v, _ := tup.Column(0).Int64()
			return v >= 10, nil
		},
	}
	predicates := stream.NewStreamPredicateList(lowOnly, highOnly)
	streams := []*output.TupleOutputStream{
		output.NewTupleOutputStream(1024),
		output.NewTupleOutputStream(1024),
	}
	proc := output.NewTupleOutputStreamProcessor(streams, predicates, 64, 0)
	proc.StartAll(1)

	_, err = proc.WriteRow(low, 0, 0)
	require.NoError(t, err)
	_, err = proc.WriteRow(high, 0, 0)
	require.NoError(t, err)
	proc.EndAll()

	require.Equal(t, uint32(1), streams[0].Rows())
	require.Equal(t, uint32(1), streams[1].Rows())
	require.Equal(t, []bool{true, false}, proc.DeleteFlags())
}

func TestProcessorYieldsWhenByteThresholdCrossed(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 8, -1)
	tup, err := tb.Insert([]value.Value{value.NewBigInt(1)})
	require.NoError(t, err)

	predicates := stream.NewStreamPredicateList(stream.StreamPredicate{})
	streams := []*output.TupleOutputStream{output.NewTupleOutputStream(1024)}
	proc := output.NewTupleOutputStreamProcessor(streams, predicates, 64, 1)

	yield, err := proc.WriteRow(tup, 0, 0)
	require.NoError(t, err)
	require.True(t, yield)
}
