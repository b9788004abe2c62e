// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package elastic_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/stream"
	"github.com/tesseradb/tessera/internal/stream/elastic"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

func schema() *value.TupleSchema {
	return value.NewTupleSchema(value.ColumnSchema{Type: value.BigInt})
}

func rangePredicates(lo, hi int64) *stream.StreamPredicateList {
	return stream.NewStreamPredicateList(stream.StreamPredicate{HashRange: &stream.HashRange{Lo: lo, Hi: hi}})
}

func drainBuild(t *testing.T, ctx *elastic.BuildContext) {
	t.Helper()
	for {
		_, done, err := ctx.StreamMore(nil)
		require.NoError(t, err)
		if done {
			return
		}
	}
}

func TestBuildContextIndexesOnlyRowsInRange(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 4, 0)
	for i := int64(0); i < 8; i++ {
		_, err := tb.Insert([]value.Value{value.NewBigInt(i)})
		require.NoError(t, err)
	}

	// The range holds exactly row 0's partition hash, folded to 32 bits the
	// way the build context folds it.
	lo := int64(int32(value.NewBigInt(0).Hash()))
	hi := lo + 1
	ctx := elastic.NewBuildContext(tb, rangePredicates(lo, hi), 2)
	tb.SetStreamer(ctx)
	drainBuild(t, ctx)

	require.True(t, ctx.Complete())
	// Every indexed key must itself lie in [lo, hi); exact row membership
	// depends on the value package's Hash(), not on value identity.
	addrs := ctx.Index().Range(lo, hi)
	require.NotEmpty(t, addrs)
	require.Empty(t, ctx.Index().Range(hi, hi+1000))
}

func TestBuildContextOnInsertAndOnDeleteMaintainIndex(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 4, 0)

	ctx := elastic.NewBuildContext(tb, rangePredicates(math.MinInt32, math.MaxInt32+1), 100)
	tb.SetStreamer(ctx)
	drainBuild(t, ctx)
	require.True(t, ctx.Complete())
	require.Equal(t, 0, ctx.Index().Len())

	tup, err := tb.Insert([]value.Value{value.NewBigInt(7)})
	require.NoError(t, err)
	require.Equal(t, 1, ctx.Index().Len())
	require.True(t, ctx.Index().Contains(tup.Addr))

	require.NoError(t, tb.Delete(tup.Addr, nil))
	require.Equal(t, 0, ctx.Index().Len())
}

func TestBuildContextOnTupleMovedRewritesAddress(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 2, 0)

	ctx := elastic.NewBuildContext(tb, rangePredicates(math.MinInt32, math.MaxInt32+1), 100)
	tb.SetStreamer(ctx)

	tup, err := tb.Insert([]value.Value{value.NewBigInt(1)})
	require.NoError(t, err)
	drainBuild(t, ctx)
	require.True(t, ctx.Index().Contains(tup.Addr))

	// Run a forced compaction; a single-tuple table may have nothing to
	// compact, so a move is not guaranteed.
	_ = tb.ForcedCompaction()
	// The index must remain internally consistent either way: every
	// address it reports must still resolve to an active tuple.
	for _, a := range ctx.Index().Range(math.MinInt32, math.MaxInt32+1) {
		got := tb.Store().TupleAt(a)
		require.False(t, got.IsZero())
		require.True(t, got.Active())
	}
}

func TestReadContextStreamsRangeThenDeletesSourceRows(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 4, 0)
	for i := int64(0); i < 6; i++ {
		_, err := tb.Insert([]value.Value{value.NewBigInt(i)})
		require.NoError(t, err)
	}

	build := elastic.NewBuildContext(tb, rangePredicates(math.MinInt32, math.MaxInt32+1), 100)
	tb.SetStreamer(build)
	drainBuild(t, build)
	require.True(t, build.Complete())

	before := tb.VisibleTupleCount()
	require.Equal(t, int64(6), before)

	read := elastic.NewReadContext(tb, build.Index(), math.MinInt32, math.MaxInt32+1)
	tb.SetStreamer(read)

	var streamed int
	sink := recordingSink{onWrite: func(value.TableTuple) { streamed++ }}
	for {
		_, done, err := read.StreamMore([]stream.OutputSink{&sink})
		require.NoError(t, err)
		if done {
			break
		}
	}

	require.Equal(t, int(before), streamed)
	require.Equal(t, int64(0), tb.VisibleTupleCount())
}

func activationBlob(s string) []byte {
	buf := make([]byte, 4+len(s))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(s)))
	copy(buf[4:], s)
	return buf
}

func TestParseActivationBlobDecodesLoAndHi(t *testing.T) {
	lo, hi, err := elastic.ParseActivationBlob(activationBlob("-5:100"))
	require.NoError(t, err)
	require.EqualValues(t, -5, lo)
	require.EqualValues(t, 100, hi)
}

func TestParseActivationBlobRejectsLoGreaterThanHi(t *testing.T) {
	_, _, err := elastic.ParseActivationBlob(activationBlob("10:5"))
	require.Error(t, err)
}

func TestParseActivationBlobRejectsMalformedPayloads(t *testing.T) {
	cases := []string{"", "nope", "1:2:3", "1.5:2", "1:", ":2"}
	for _, s := range cases {
		_, _, err := elastic.ParseActivationBlob(activationBlob(s))
		require.Errorf(t, err, "payload %q should have been rejected", s)
	}
}

func TestParseActivationBlobRejectsLengthPrefixMismatch(t *testing.T) {
	blob := activationBlob("0:1")
	binary.BigEndian.PutUint32(blob[:4], 99)
	_, _, err := elastic.ParseActivationBlob(blob)
	require.Error(t, err)
}

func TestNewReadContextFromBlobMatchesTypedConstructor(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 4, 0)
	for i := int64(0); i < 6; i++ {
		_, err := tb.Insert([]value.Value{value.NewBigInt(i)})
		require.NoError(t, err)
	}

	build := elastic.NewBuildContext(tb, rangePredicates(math.MinInt32, math.MaxInt32+1), 100)
	tb.SetStreamer(build)
	drainBuild(t, build)
	require.True(t, build.Complete())

	read, err := elastic.NewReadContextFromBlob(tb, build.Index(), activationBlob("-2147483648:2147483647"))
	require.NoError(t, err)
	tb.SetStreamer(read)

	var streamed int
	sink := recordingSink{onWrite: func(value.TableTuple) { streamed++ }}
	for {
		_, done, err := read.StreamMore([]stream.OutputSink{&sink})
		require.NoError(t, err)
		if done {
			break
		}
	}
	require.Equal(t, 6, streamed)
	require.Equal(t, int64(0), tb.VisibleTupleCount())
}

func TestReadContextTryReactivateWhileActiveSucceedsWithoutSideEffects(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 4, 0)
	_, err := tb.Insert([]value.Value{value.NewBigInt(1)})
	require.NoError(t, err)

	build := elastic.NewBuildContext(tb, rangePredicates(math.MinInt32, math.MaxInt32+1), 100)
	tb.SetStreamer(build)
	drainBuild(t, build)

	read := elastic.NewReadContext(tb, build.Index(), math.MinInt32, math.MaxInt32+1)
	require.Equal(t, stream.ElasticIndexRead, read.Type())
	require.Equal(t, tesserr.Succeeded, read.TryReactivate(nil))
}

func TestClearContextRefusesWhileIndexNonEmptyViaCoexistencePolicy(t *testing.T) {
	tb := table.NewPersistentTable(schema(), 4, 0)
	_, err := tb.Insert([]value.Value{value.NewBigInt(1)})
	require.NoError(t, err)

	streamer := stream.NewTableStreamer(nil)
	tb.SetStreamer(streamer)

	var built *elastic.BuildContext
	_, err = streamer.Activate(stream.ElasticIndexBuild, rangePredicates(math.MinInt32, math.MaxInt32+1), func() (stream.Context, error) {
		built = elastic.NewBuildContext(tb, rangePredicates(math.MinInt32, math.MaxInt32+1), 100)
		return built, nil
	})
	require.NoError(t, err)
	for {
		_, remErr := streamer.StreamMore(stream.ElasticIndexBuild, nil)
		require.NoError(t, remErr)
		if built.Complete() {
			break
		}
	}
	require.False(t, built.Index().Empty())

	_, err = streamer.Activate(stream.ElasticIndexClear, nil, func() (stream.Context, error) {
		return elastic.NewClearContext(built.Index(), func() {}), nil
	})
	require.Error(t, err)
}

func TestClearContextDropsIndexOnFirstStreamMore(t *testing.T) {
	idx := elastic.NewIndex()
	idx.Insert(1, value.Address{})
	dropped := false

	ctx := elastic.NewClearContext(idx, func() { dropped = true })
	_, done, err := ctx.StreamMore(nil)
	require.NoError(t, err)
	require.True(t, done)
	require.True(t, dropped)
}

type recordingSink struct {
	onWrite func(value.TableTuple)
}

func (s *recordingSink) WriteTuple(t value.TableTuple) (bool, int64, error) {
	if s.onWrite != nil {
		s.onWrite(t)
	}
	return true, 8, nil
}
