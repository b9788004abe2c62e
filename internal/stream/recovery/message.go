// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package recovery implements the one-shot recovery streaming context
// (spec.md §4.6), grounded on
// original_source/src/ee/storage/RecoveryContext.cpp and on
// satellite/metabase/zombiedeletion's single drain-to-completion loop.
package recovery

import "github.com/tesseradb/tessera/internal/value"

// MessageType tags a recovery message as carrying a data tuple or the
// terminal completion marker (spec.md §4.6).
type MessageType int

const (
	// Data wraps one shipped tuple.
	Data MessageType = iota
	// Complete is emitted once, after every tuple has shipped.
	Complete
)

func (t MessageType) String() string {
	switch t {
	case Data:
		return "DATA"
	case Complete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Header is the framing a recovery context attaches to every message it
// emits (spec.md §4.6's "{type, tableId, allocatedTupleCount, payload…}").
// AllocatedTupleCount is the table's visible tuple count captured at
// context construction, letting the receiver know the expected total
// without a separate handshake.
type Header struct {
	Type                MessageType
	TableID             int64
	AllocatedTupleCount int64
}

// Sink extends stream.OutputSink with the ability to receive a recovery
// header alongside each data tuple and the terminal COMPLETE marker. A
// plain stream.OutputSink that doesn't implement Sink still receives every
// tuple via WriteTuple; it simply has no way to observe the framing or the
// COMPLETE marker, which is a documented degraded mode for callers that
// don't need it (e.g. tests).
type Sink interface {
	WriteData(h Header, t value.TableTuple) (wrote bool, bytesWritten int64, err error)
	WriteComplete(h Header) error
}
