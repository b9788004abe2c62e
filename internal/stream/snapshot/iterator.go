// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package snapshot implements the copy-on-write snapshot streaming context
// (spec.md §4.3), grounded on
// original_source/src/ee/storage/CopyOnWriteContext.cpp and
// CopyOnWriteIterator.cpp.
package snapshot

import (
	"github.com/tesseradb/tessera/internal/block"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

// iterator walks every block that was live at activation time (the
// PENDING_SNAPSHOT set) in ascending block-ID order, visiting slot indices
// 0..UnusedTupleBoundary within each, skipping inactive and dirty tuples
// (spec.md §4.3's COW iterator contract).
type iterator struct {
	tbl *table.PersistentTable

	pending map[value.BlockID]struct{} // PENDING_SNAPSHOT; shrinks as blocks are left or compacted away
	order   []value.BlockID            // blocks live at activation, in ascending order

	pos      int // index into order of the block currently (or next) being scanned
	hasCur   bool
	curID    value.BlockID
	slotIdx  uint32

	skippedDirty, skippedInactive int64
}

func newIterator(tbl *table.PersistentTable) *iterator {
	order := tbl.Store().OrderedBlockIDs()
	pending := make(map[value.BlockID]struct{}, len(order))
	for _, id := range order {
		pending[id] = struct{}{}
	}
	return &iterator{tbl: tbl, pending: pending, order: order}
}

// Pending reports whether block id is still (or was always) part of the
// PENDING_SNAPSHOT view this iterator owns.
func (it *iterator) Pending(id value.BlockID) bool {
	_, ok := it.pending[id]
	return ok
}

// Current reports the block ID currently being scanned and whether it is
// valid; false once the iterator has moved past its current block but not
// yet resolved the next one.
func (it *iterator) Current() (value.BlockID, bool) { return it.curID, it.hasCur }

// SlotIndex reports the next slot index within the current block the
// iterator has not yet reached.
func (it *iterator) SlotIndex() uint32 { return it.slotIdx }

// onBlockCompactedAway drops id from the pending view (spec.md §4.3:
// "update iterator to skip b"); if it was the current block, advance will
// move on to the next at the following Next call.
func (it *iterator) onBlockCompactedAway(id value.BlockID) {
	delete(it.pending, id)
	if it.hasCur && it.curID == id {
		it.hasCur = false
	}
}

// Next advances to the next active, non-dirty tuple from the pending block
// set, transitioning each block out of PENDING_SNAPSHOT as it is left.
func (it *iterator) Next() (value.TableTuple, bool) {
	for {
		if !it.hasCur {
			for {
				if it.pos >= len(it.order) {
					return value.TableTuple{}, false
				}
				id := it.order[it.pos]
				it.pos++
				if _, ok := it.pending[id]; !ok {
					continue // already left or compacted away
				}
				it.curID = id
				it.hasCur = true
				it.slotIdx = 0
				break
			}
		}

		blk := it.tbl.Store().BlockByID(it.curID)
		if blk == nil || it.slotIdx >= blk.UnusedTupleBoundary() {
			if blk != nil {
				it.releasePendingDeletes(it.curID, blk)
			}
			delete(it.pending, it.curID)
			it.hasCur = false
			continue
		}

		addr := value.Address{Block: it.curID, Slot: it.slotIdx}
		it.slotIdx++
		tup := it.tbl.Store().TupleAt(addr)
		if !tup.Active() {
			it.skippedInactive++
			continue
		}
		if tup.Dirty() {
			it.skippedDirty++
			continue
		}
		return tup, true
	}
}

// releasePendingDeletes reclaims every slot in blk still flagged
// pendingDelete now that the iterator has scanned blk's entire
// UnusedTupleBoundary: those deletes were refused by OnDelete only because
// blk was still part of PENDING_SNAPSHOT (spec.md §4.3's "refuse free until
// the COW iterator passes the block"), and that condition no longer holds
// once the iterator has moved on.
func (it *iterator) releasePendingDeletes(id value.BlockID, blk *block.Block) {
	boundary := blk.UnusedTupleBoundary()
	for slot := uint32(0); slot < boundary; slot++ {
		addr := value.Address{Block: id, Slot: slot}
		tup := it.tbl.Store().TupleAt(addr)
		if tup.IsZero() || !tup.Active() || !tup.PendingDelete() {
			continue
		}
		it.tbl.ReleasePendingDelete(addr)
	}
}
