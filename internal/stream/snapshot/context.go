// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package snapshot

import (
	"github.com/tesseradb/tessera/internal/stream"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// DefaultByteThreshold is the per-partition serialized byte budget before
// StreamMore yields (spec.md §4.3, default 512KiB); NewContext uses it when
// called with a byteThreshold of zero or less.
const DefaultByteThreshold = 512 * 1024

// Context produces a bit-consistent snapshot of a table as of activation
// time while mutation and compaction continue concurrently (spec.md §4.3).
type Context struct {
	tbl        *table.PersistentTable
	predicates *stream.StreamPredicateList
	replicated bool

	iter              *iterator
	backedUp          *table.TempTable
	backedUpIter      interface{ Next() (value.TableTuple, bool) }
	scanDone          bool
	finishedTableScan bool

	byteThreshold   int64
	totalTuples     int64
	tuplesRemaining int64
}

// NewContext constructs a COW context over tbl. totalTuples of 0 disables
// the residual-counter sentinel check (test mode, per spec.md §4.3).
func NewContext(tbl *table.PersistentTable, predicates *stream.StreamPredicateList, byteThreshold, totalTuples int64, replicated bool) *Context {
	if byteThreshold <= 0 {
		byteThreshold = DefaultByteThreshold
	}
	return &Context{
		tbl:             tbl,
		predicates:      predicates,
		replicated:      replicated,
		iter:            newIterator(tbl),
		backedUp:        table.NewTempTable(tbl.Schema()),
		byteThreshold:   byteThreshold,
		totalTuples:     totalTuples,
		tuplesRemaining: totalTuples,
	}
}

// Type implements stream.Context.
func (c *Context) Type() stream.Type { return stream.Snapshot }

// TryReactivate implements stream.Context: the original engine does not
// support multiple concurrent snapshot streams, so any re-activation
// attempt against a live COW context always fails (spec.md §4.2's
// "SNAPSHOT — at most one at a time").
func (c *Context) TryReactivate(*stream.StreamPredicateList) tesserr.ActivationCode {
	return tesserr.Failed
}

func (c *Context) partitionHash(t value.TableTuple) int64 {
	col := c.tbl.PartitionColumn()
	if col < 0 {
		return 0
	}
	return int64(t.Column(col).Hash())
}

// needToDirtyTuple reports whether a mutation to addr must back up its
// pre-image because the iterator has not yet reached it (spec.md §4.3).
func (c *Context) needToDirtyTuple(addr value.Address) bool {
	if !c.iter.Pending(addr.Block) {
		return false
	}
	curID, hasCur := c.iter.Current()
	if !hasCur || addr.Block != curID {
		return true
	}
	return addr.Slot >= c.iter.SlotIndex()
}

func (c *Context) backupPreImage(t value.TableTuple) {
	cols := t.Columns()
	vals := make([]value.Value, len(cols))
	for i, v := range cols {
		vals[i] = v.Clone()
	}
	c.backedUp.Append(vals)
}

// OnInsert implements stream.Context: a tuple landing in a slot the
// iterator has not yet reached must be marked dirty so the iterator skips
// it as a post-activation row (spec.md §4.3).
func (c *Context) OnInsert(t value.TableTuple) {
	if c.needToDirtyTuple(t.Addr) {
		t.SetDirty(true)
	}
}

// OnUpdate implements stream.Context. t still holds its pre-update values.
func (c *Context) OnUpdate(t value.TableTuple) {
	if t.Dirty() {
		return
	}
	if c.needToDirtyTuple(t.Addr) {
		c.backupPreImage(t)
		t.SetDirty(true)
	}
}

// OnDelete implements stream.Context (spec.md §4.3): allows free
// immediately once the iterator has passed the tuple or the scan is done;
// for a replicated table it backs up the pre-image and still allows free;
// otherwise it refuses, keeping the tuple alive until the iterator passes.
func (c *Context) OnDelete(t value.TableTuple) bool {
	if t.Dirty() || c.finishedTableScan {
		return true
	}
	if !c.needToDirtyTuple(t.Addr) {
		return true
	}
	if c.replicated {
		c.backupPreImage(t)
		return true
	}
	return false
}

// OnTupleMoved implements stream.Context. Compaction is expected not to
// relocate tuples out of blocks still in the PENDING_SNAPSHOT view in
// normal operation (the original engine excludes pending-snapshot blocks
// from compaction candidates); nothing here enforces that, and this
// callback does no bookkeeping for a moved tuple.
func (c *Context) OnTupleMoved(src, dst value.Address, t value.TableTuple) {}

// OnBlockCompactedAway implements stream.Context.
func (c *Context) OnBlockCompactedAway(id value.BlockID) {
	c.iter.onBlockCompactedAway(id)
}

func (c *Context) nextTuple() (value.TableTuple, bool) {
	if !c.scanDone {
		if tup, ok := c.iter.Next(); ok {
			return tup, true
		}
		c.scanDone = true
		c.finishedTableScan = true
		c.backedUpIter = c.backedUp.NewIterator()
	}
	return c.backedUpIter.Next()
}

// StreamMore implements stream.Context (spec.md §4.3): evaluates every
// predicate against each scanned tuple, writes matches to their output
// streams, schedules delete-on-undo-release for delete-if-true hits, and
// yields once an output stream is full or the byte threshold is crossed.
func (c *Context) StreamMore(outputs []stream.OutputSink) (remaining int64, done bool, err error) {
	var bytesWritten int64
	for {
		tup, ok := c.nextTuple()
		if !ok {
			break
		}
		if c.tuplesRemaining > 0 {
			c.tuplesRemaining--
		}

		matched, deleteIfTrue, evalErr := c.predicates.EvaluateEach(tup, c.partitionHash(tup))
		if evalErr != nil {
			return 0, false, evalErr
		}

		yieldNow := false
		for i, m := range matched {
			if !m || i >= len(outputs) {
				continue
			}
			wrote, n, wErr := outputs[i].WriteTuple(tup)
			if wErr != nil {
				return 0, false, wErr
			}
			bytesWritten += n
			if !wrote {
				yieldNow = true
			}
		}

		if deleteIfTrue && !tup.PendingDelete() {
			tup.SetPendingDeleteOnUndoRelease(true)
		}

		if yieldNow || bytesWritten >= c.byteThreshold {
			return c.tuplesRemaining, false, nil
		}
	}

	if c.totalTuples != 0 && c.tuplesRemaining != 0 {
		return 0, true, tesserr.SerializationError.New("copy-on-write scan finished with nonzero residual tuple counter (%d remaining)", c.tuplesRemaining)
	}
	return 0, true, nil
}
