// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package output

import (
	"github.com/tesseradb/tessera/internal/stream"
	"github.com/tesseradb/tessera/internal/value"
)

// TupleOutputStreamProcessor drives a vector of TupleOutputStreams in
// lockstep with a parallel StreamPredicateList, per spec.md §4.8: each
// WriteRow call evaluates every predicate, writes the tuple only to the
// streams whose predicate accepted it, and OR-accumulates each stream's
// delete-if-true flag across the whole scan (the flag, once set, stays set
// for the lifetime of this processor — matching a COW/elastic scan's
// "delete this tuple once every accepting stream has consumed it"
// decision, not a per-row reset).
type TupleOutputStreamProcessor struct {
	Streams        []*TupleOutputStream
	Predicates     *stream.StreamPredicateList
	MaxTupleLength int
	ByteThreshold  int64

	deleteFlags  []bool
	bytesWritten int64
}

// NewTupleOutputStreamProcessor builds a processor over streams and
// predicates, which must have the same length (one predicate per stream).
func NewTupleOutputStreamProcessor(streams []*TupleOutputStream, predicates *stream.StreamPredicateList, maxTupleLength int, byteThreshold int64) *TupleOutputStreamProcessor {
	return &TupleOutputStreamProcessor{
		Streams:        streams,
		Predicates:     predicates,
		MaxTupleLength: maxTupleLength,
		ByteThreshold:  byteThreshold,
		deleteFlags:    make([]bool, len(streams)),
	}
}

// WriteRow evaluates every predicate against t and writes to each accepting
// stream. yield reports whether the caller should suspend streamMore: any
// written-to stream now has less than MaxTupleLength headroom, or the
// processor's cumulative byte count has crossed ByteThreshold.
func (p *TupleOutputStreamProcessor) WriteRow(t value.TableTuple, partitionHash int64, hiddenColumns int) (yield bool, err error) {
	matched, _, err := p.Predicates.EvaluateEach(t, partitionHash)
	if err != nil {
		return false, err
	}

	for i, accepted := range matched {
		if !accepted {
			continue
		}
		if p.Predicates.Predicates[i].DeleteIfTrue {
			p.deleteFlags[i] = true
		}
		n := p.Streams[i].WriteRow(t, hiddenColumns)
		p.bytesWritten += int64(n)
		if !p.Streams[i].CanFit(p.MaxTupleLength) {
			yield = true
		}
	}

	if p.ByteThreshold > 0 && p.bytesWritten >= p.ByteThreshold {
		yield = true
	}
	return yield, nil
}

// StartAll calls StartRows(partitionID) on every owned stream.
func (p *TupleOutputStreamProcessor) StartAll(partitionID int32) {
	for _, s := range p.Streams {
		s.StartRows(partitionID)
	}
}

// EndAll calls EndRows on every owned stream.
func (p *TupleOutputStreamProcessor) EndAll() {
	for _, s := range p.Streams {
		s.EndRows()
	}
}

// DeleteFlags returns one OR-accumulated delete-if-true flag per stream.
func (p *TupleOutputStreamProcessor) DeleteFlags() []bool { return p.deleteFlags }
