// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package recovery

import (
	"github.com/tesseradb/tessera/internal/block"
	"github.com/tesseradb/tessera/internal/stream"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// Context ships every tuple of a table exactly once, followed by a single
// COMPLETE marker (spec.md §4.6). The base-table iterator is captured on
// the first StreamMore call and assumed stable thereafter: the host
// guarantees no schema or table mutations occur during recovery, so this
// context installs no streamer hooks of its own beyond pass-through no-ops.
type Context struct {
	tbl     *table.PersistentTable
	tableID int64

	iter      *block.Iterator
	header    Header
	shipped   bool
	completed bool
}

// NewContext builds a recovery context over tbl, tagging every message it
// emits with tableID.
func NewContext(tbl *table.PersistentTable, tableID int64) *Context {
	return &Context{
		tbl:     tbl,
		tableID: tableID,
		header: Header{
			TableID:             tableID,
			AllocatedTupleCount: tbl.VisibleTupleCount(),
		},
	}
}

// Type implements stream.Context.
func (c *Context) Type() stream.Type { return stream.Recovery }

// TryReactivate implements stream.Context: RECOVERY may coexist with
// anything (spec.md §4.2), but a second concurrent recovery scan of the
// same table is not a merge the engine needs to support, so any
// reactivation attempt simply fails and the caller keeps the original
// context running.
func (c *Context) TryReactivate(*stream.StreamPredicateList) tesserr.ActivationCode {
	return tesserr.Failed
}

// StreamMore implements stream.Context: ships every tuple once via
// outputs[0], then emits the COMPLETE marker and reports done.
func (c *Context) StreamMore(outputs []stream.OutputSink) (remaining int64, done bool, err error) {
	if c.completed {
		return 0, true, nil
	}
	if c.iter == nil {
		c.iter = c.tbl.NewIterator()
	}

	var sink Sink
	var plain stream.OutputSink
	if len(outputs) > 0 {
		plain = outputs[0]
		sink, _ = outputs[0].(Sink)
	}

	for {
		tup, ok := c.iter.Next()
		if !ok {
			break
		}

		var wrote bool
		var wErr error
		if sink != nil {
			wrote, _, wErr = sink.WriteData(c.header, tup)
		} else if plain != nil {
			wrote, _, wErr = plain.WriteTuple(tup)
		} else {
			wrote = true
		}
		if wErr != nil {
			return 0, false, wErr
		}
		if !wrote {
			return 1, false, nil
		}
	}

	if sink != nil {
		if err := sink.WriteComplete(Header{Type: Complete, TableID: c.tableID, AllocatedTupleCount: c.header.AllocatedTupleCount}); err != nil {
			return 0, false, err
		}
	}
	c.completed = true
	c.shipped = true
	return 0, true, nil
}

// OnInsert implements stream.Context: a no-op. The host guarantees no
// table mutations occur while recovery is in flight (spec.md §4.6).
func (c *Context) OnInsert(value.TableTuple) {}

// OnUpdate implements stream.Context.
func (c *Context) OnUpdate(value.TableTuple) {}

// OnDelete implements stream.Context: recovery never blocks a delete.
func (c *Context) OnDelete(value.TableTuple) bool { return true }

// OnTupleMoved implements stream.Context: a no-op, since the captured
// iterator re-resolves live block state on every Next call rather than
// caching addresses (see block.Iterator's doc comment).
func (c *Context) OnTupleMoved(value.Address, value.Address, value.TableTuple) {}

// OnBlockCompactedAway implements stream.Context.
func (c *Context) OnBlockCompactedAway(value.BlockID) {}

// Shipped reports whether the table scan has fully drained (COMPLETE sent).
func (c *Context) Shipped() bool { return c.shipped }
