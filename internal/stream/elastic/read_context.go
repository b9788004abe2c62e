// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package elastic

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/tesseradb/tessera/internal/stream"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// ReadContext streams every tuple whose partition-column hash lies in a
// single range by iterating a completed elastic index, deleting each
// streamed tuple from the table once the scan drains (spec.md §4.5).
type ReadContext struct {
	tbl   *table.PersistentTable
	addrs []value.Address
	pos   int
	active bool
}

// NewReadContext builds a read context over idx restricted to [lo, hi).
// Preconditions (idx exists and is complete) are checked by
// TableStreamer's coexistence policy before this is constructed.
func NewReadContext(tbl *table.PersistentTable, idx *Index, lo, hi int64) *ReadContext {
	return &ReadContext{tbl: tbl, addrs: idx.Range(lo, hi), active: true}
}

// ParseActivationBlob decodes an ELASTIC_INDEX_READ activation payload per
// spec.md §6: a length-prefixed string "LO:HI", where LO and HI are signed
// 32-bit decimal integers, LO <= HI, no wrap. The length prefix is a 4-byte
// big-endian byte count, matching the engine's other length-prefixed wire
// values (internal/output.TupleOutputStream's row-length prefix).
func ParseActivationBlob(blob []byte) (lo, hi int32, err error) {
	if len(blob) < 4 {
		return 0, 0, tesserr.ActivationRejected.New("elastic index read activation blob truncated: missing length prefix")
	}
	n := binary.BigEndian.Uint32(blob[:4])
	rest := blob[4:]
	if int(n) != len(rest) {
		return 0, 0, tesserr.ActivationRejected.New("elastic index read activation blob length mismatch: prefix says %d, got %d bytes", n, len(rest))
	}

	loStr, hiStr, ok := strings.Cut(string(rest), ":")
	if !ok {
		return 0, 0, tesserr.ActivationRejected.New("elastic index read activation blob %q missing ':' separator", rest)
	}
	lo64, err := strconv.ParseInt(loStr, 10, 32)
	if err != nil {
		return 0, 0, tesserr.ActivationRejected.New("elastic index read activation blob has non-integer LO %q: %v", loStr, err)
	}
	hi64, err := strconv.ParseInt(hiStr, 10, 32)
	if err != nil {
		return 0, 0, tesserr.ActivationRejected.New("elastic index read activation blob has non-integer HI %q: %v", hiStr, err)
	}
	if lo64 > hi64 {
		return 0, 0, tesserr.ActivationRejected.New("elastic index read activation blob has LO %d > HI %d", lo64, hi64)
	}
	return int32(lo64), int32(hi64), nil
}

// NewReadContextFromBlob parses blob per ParseActivationBlob and builds a
// ReadContext restricted to the decoded [lo, hi) range — the wire-format
// entry point a host bridge drives an ELASTIC_INDEX_READ activation from
// (spec.md §4.5/§6). NewReadContext itself remains the typed constructor for
// in-process callers that already hold parsed bounds.
func NewReadContextFromBlob(tbl *table.PersistentTable, idx *Index, blob []byte) (*ReadContext, error) {
	lo, hi, err := ParseActivationBlob(blob)
	if err != nil {
		return nil, err
	}
	return NewReadContext(tbl, idx, int64(lo), int64(hi)), nil
}

// Type implements stream.Context.
func (c *ReadContext) Type() stream.Type { return stream.ElasticIndexRead }

// TryReactivate implements stream.Context: a re-activation while a scan is
// underway returns without side effects (spec.md §4.5).
func (c *ReadContext) TryReactivate(*stream.StreamPredicateList) tesserr.ActivationCode {
	if c.active {
		return tesserr.Succeeded
	}
	return tesserr.Unsupported
}

// StreamMore implements stream.Context: streams every remaining tuple to
// outputs[0]; once every address has been streamed, it deletes each of
// them from the underlying table (spec.md §4.5's "under a disabled DR
// guard" — DR replication itself is out of scope here, see spec.md §1).
func (c *ReadContext) StreamMore(outputs []stream.OutputSink) (remaining int64, done bool, err error) {
	for c.pos < len(c.addrs) {
		addr := c.addrs[c.pos]
		tup := c.tbl.Store().TupleAt(addr)
		if tup.IsZero() || !tup.Active() {
			c.pos++
			continue
		}
		if len(outputs) > 0 {
			wrote, _, wErr := outputs[0].WriteTuple(tup)
			if wErr != nil {
				return 0, false, wErr
			}
			if !wrote {
				c.pos++
				return int64(len(c.addrs) - c.pos), false, nil
			}
		}
		c.pos++
	}

	for _, addr := range c.addrs {
		tup := c.tbl.Store().TupleAt(addr)
		if tup.IsZero() {
			continue
		}
		if err := c.tbl.Delete(addr, nil); err != nil {
			return 0, false, err
		}
	}
	c.active = false
	return 0, true, nil
}

// OnInsert implements stream.Context: a no-op, since the range was frozen
// at construction from the completed build index.
func (c *ReadContext) OnInsert(value.TableTuple) {}

// OnUpdate implements stream.Context.
func (c *ReadContext) OnUpdate(value.TableTuple) {}

// OnDelete implements stream.Context: read contexts never block a delete.
func (c *ReadContext) OnDelete(value.TableTuple) bool { return true }

// OnTupleMoved implements stream.Context, keeping the frozen address list
// consistent with compaction.
func (c *ReadContext) OnTupleMoved(src, dst value.Address, _ value.TableTuple) {
	for i, a := range c.addrs {
		if a == src {
			c.addrs[i] = dst
			return
		}
	}
}

// OnBlockCompactedAway implements stream.Context.
func (c *ReadContext) OnBlockCompactedAway(value.BlockID) {}
