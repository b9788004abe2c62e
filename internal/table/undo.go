// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package table

import "github.com/tesseradb/tessera/internal/value"

// undoDelete is one delete recorded against an UndoQuantum.
type undoDelete struct {
	table *PersistentTable
	addr  value.Address
	keys  []indexedKey
}

// UndoQuantum is a scoped transaction: deletes performed through it mark
// tuples pendingDeleteOnUndoRelease and keep them alive until Release
// (actually frees them) or Undo (restores them), per spec.md §3.
type UndoQuantum struct {
	deletes []undoDelete
}

// NewUndoQuantum returns an empty quantum ready to scope a transaction's
// deletes.
func NewUndoQuantum() *UndoQuantum { return &UndoQuantum{} }

func (u *UndoQuantum) recordDelete(t *PersistentTable, addr value.Address, keys []indexedKey) {
	u.deletes = append(u.deletes, undoDelete{table: t, addr: addr, keys: keys})
}

// Release commits every delete recorded in this quantum: the slots are
// physically freed and the quantum is emptied. Calling Release twice is a
// no-op the second time.
func (u *UndoQuantum) Release() {
	for _, d := range u.deletes {
		d.table.store.MarkPendingDeleteOnUndo(d.addr, false)
		tup := d.table.store.TupleAt(d.addr)
		if tup.IsZero() {
			continue
		}
		tup.SetPendingDeleteOnUndoRelease(false)
		d.table.store.FreeTuple(d.addr, false, d.table)
	}
	u.deletes = nil
}

// Undo reverts every delete recorded in this quantum, in reverse order:
// index entries are reinserted, the visible-tuple count is restored, and
// the pendingDelete flags are cleared. The tuple's column content was never
// overwritten by Delete, so no value restoration is needed.
func (u *UndoQuantum) Undo() {
	for i := len(u.deletes) - 1; i >= 0; i-- {
		d := u.deletes[i]
		d.table.store.MarkPendingDeleteOnUndo(d.addr, false)
		tup := d.table.store.TupleAt(d.addr)
		if tup.IsZero() {
			continue
		}
		tup.SetPendingDelete(false)
		tup.SetPendingDeleteOnUndoRelease(false)
		for _, k := range d.keys {
			_ = k.idx.Insert(k.key, d.addr)
		}
		d.table.visibleTuples++
	}
	u.deletes = nil
}
