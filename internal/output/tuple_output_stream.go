// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package output implements the tuple output stream and its multi-stream
// processor (spec.md §4.8), the fixed-buffer destination every streaming
// context's streamMore writes serialized rows into.
package output

import (
	"encoding/binary"

	"github.com/tesseradb/tessera/internal/value"
)

// TupleOutputStream wraps a fixed-capacity buffer with the partition-id
// header, patched row count, and per-row length-prefixed serialized tuples
// of spec.md §6's wire layout. Grounded on
// original_source/src/ee/common/TupleOutputStream*.{h,cpp} for the byte
// layout and on private/kvstore's fixed-buffer item accumulation idiom for
// the "reserve, fill, patch" buffer-growth style.
type TupleOutputStream struct {
	buf         []byte
	rowCountOff int
	rows        uint32
}

// NewTupleOutputStream returns an empty stream backed by a buffer of the
// given capacity; CanFit reports false once that capacity would be
// exceeded.
func NewTupleOutputStream(capacity int) *TupleOutputStream {
	return &TupleOutputStream{buf: make([]byte, 0, capacity)}
}

// StartRows writes the 4-byte partition id and reserves 4 bytes for the row
// count, to be patched by EndRows.
func (s *TupleOutputStream) StartRows(partitionID int32) {
	var pb [4]byte
	binary.BigEndian.PutUint32(pb[:], uint32(partitionID))
	s.buf = append(s.buf, pb[:]...)
	s.rowCountOff = len(s.buf)
	s.buf = append(s.buf, 0, 0, 0, 0)
	s.rows = 0
}

// WriteRow appends t's serialized columns (skipping the last hiddenColumns
// schema columns, per VoltDB's hidden migration-state columns that are
// never surfaced to a client) behind a 4-byte row length, and returns the
// number of bytes written including that length prefix.
func (s *TupleOutputStream) WriteRow(t value.TableTuple, hiddenColumns int) int {
	start := len(s.buf)
	s.buf = append(s.buf, 0, 0, 0, 0)

	cols := t.Columns()
	n := len(cols) - hiddenColumns
	if n < 0 {
		n = 0
	}
	for i := 0; i < n; i++ {
		s.buf = cols[i].Encode(s.buf)
	}

	rowLen := len(s.buf) - start - 4
	binary.BigEndian.PutUint32(s.buf[start:start+4], uint32(rowLen))
	s.rows++
	return rowLen + 4
}

// EndRows patches the reserved row count with the number of rows written
// since StartRows.
func (s *TupleOutputStream) EndRows() {
	binary.BigEndian.PutUint32(s.buf[s.rowCountOff:s.rowCountOff+4], s.rows)
}

// CanFit reports whether n more bytes fit within the stream's declared
// capacity.
func (s *TupleOutputStream) CanFit(n int) bool {
	return len(s.buf)+n <= cap(s.buf)
}

// Bytes returns the stream's accumulated buffer.
func (s *TupleOutputStream) Bytes() []byte { return s.buf }

// Rows returns the number of rows written since the last StartRows.
func (s *TupleOutputStream) Rows() uint32 { return s.rows }
