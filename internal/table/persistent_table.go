// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package table

import (
	"github.com/tesseradb/tessera/internal/block"
	"github.com/tesseradb/tessera/internal/value"
)

// DefaultTuplesPerBlock is used when a caller has no schema-specific reason
// to tune block capacity.
const DefaultTuplesPerBlock = 256

// Streamer is the notification sink a PersistentTable drives on every
// mutation, implemented by the stream package's TableStreamer (spec.md
// §4.2). A table with no attached streamer (streamer == nil) behaves as a
// plain mutable table with no concurrent scan support.
type Streamer interface {
	// OnInsert is called after t has been fully populated and indexed.
	OnInsert(t value.TableTuple)

	// OnUpdate is called with t still holding its pre-update column values,
	// immediately before the table overwrites them, so a copy-on-write
	// context can back up the pre-image (spec.md §4.3).
	OnUpdate(t value.TableTuple)

	// OnDelete is called with t still active and indexed, before physical
	// removal. Returning false refuses the free; the table keeps the slot
	// occupied (flagged pendingDelete) until the caller later invokes
	// ReleasePendingDelete, per spec.md §4.3's "refuse free until the COW
	// iterator passes the block".
	OnDelete(t value.TableTuple) bool

	// OnTupleMoved and OnBlockCompactedAway mirror block.Listener; the
	// table forwards compaction notifications here after rewriting its own
	// indexes, so the streamer's own cursor bookkeeping runs after index
	// consistency is restored.
	OnTupleMoved(src, dst value.Address, t value.TableTuple)
	OnBlockCompactedAway(id value.BlockID)
}

// PersistentTable is a mutable, indexed, optionally-streamed table backed
// by a block.Store (spec.md §3).
type PersistentTable struct {
	schema          *value.TupleSchema
	store           *block.Store
	indexes         []Index
	primaryIndex    Index
	partitionColumn int
	streamer        Streamer
	visibleTuples   int64
}

// NewPersistentTable creates an empty table for schema, with partitionColumn
// identifying the partitioning column used by the elastic index hash
// (spec.md §4.4); pass -1 if the table is unpartitioned/replicated.
func NewPersistentTable(schema *value.TupleSchema, tuplesPerBlock uint32, partitionColumn int) *PersistentTable {
	if tuplesPerBlock == 0 {
		tuplesPerBlock = DefaultTuplesPerBlock
	}
	return &PersistentTable{
		schema:          schema,
		store:           block.NewStore(schema, tuplesPerBlock),
		partitionColumn: partitionColumn,
	}
}

// Schema returns the table's column schema.
func (t *PersistentTable) Schema() *value.TupleSchema { return t.schema }

// Store exposes the underlying block store to the stream package, which
// needs direct access to build snapshot/elastic/recovery iterators over it.
func (t *PersistentTable) Store() *block.Store { return t.store }

// PartitionColumn returns the partitioning column's ordinal, or -1.
func (t *PersistentTable) PartitionColumn() int { return t.partitionColumn }

// VisibleTupleCount returns the number of tuples currently visible to
// queries (excludes tuples pending delete).
func (t *PersistentTable) VisibleTupleCount() int64 { return t.visibleTuples }

// AddIndex attaches idx to the table, marking it primary if requested. At
// most one index may be primary; a later call overwrites the prior primary.
func (t *PersistentTable) AddIndex(idx Index, primary bool) {
	t.indexes = append(t.indexes, idx)
	if primary {
		t.primaryIndex = idx
	}
}

// PrimaryIndex returns the table's primary index, or nil.
func (t *PersistentTable) PrimaryIndex() Index { return t.primaryIndex }

// Indexes returns every attached index, primary included.
func (t *PersistentTable) Indexes() []Index { return t.indexes }

// SetStreamer attaches the table's streaming framework hook. Pass nil to
// detach (e.g. once every stream context has drained).
func (t *PersistentTable) SetStreamer(s Streamer) { t.streamer = s }

// Insert allocates a new tuple, populates it from values (one per schema
// column), adds it to every index, and notifies the streamer. On a unique
// index violation the tuple and any already-inserted index entries are
// rolled back and the error is returned (spec.md §3's index-consistency
// invariant: a rejected mutation must leave indexes untouched).
func (t *PersistentTable) Insert(values []value.Value) (value.TableTuple, error) {
	tup := t.store.AllocateTuple()
	for i, v := range values {
		tup.SetColumn(i, v)
	}

	for i, idx := range t.indexes {
		if err := idx.Insert(idx.KeyOf(tup), tup.Addr); err != nil {
			for _, done := range t.indexes[:i] {
				done.Remove(done.KeyOf(tup), tup.Addr)
			}
			t.store.FreeTuple(tup.Addr, false, t)
			return value.TableTuple{}, err
		}
	}

	t.visibleTuples++
	if t.streamer != nil {
		t.streamer.OnInsert(tup)
	}
	return tup, nil
}

// Update overwrites the tuple at addr with newValues, re-keying any index
// whose key column(s) changed, and notifying the streamer before the
// overwrite so it can capture the pre-image.
func (t *PersistentTable) Update(addr value.Address, newValues []value.Value) error {
	tup := t.store.TupleAt(addr)
	if tup.IsZero() {
		return nil
	}

	if t.streamer != nil {
		t.streamer.OnUpdate(tup)
	}

	oldKeys := make([]value.Value, len(t.indexes))
	for i, idx := range t.indexes {
		oldKeys[i] = idx.KeyOf(tup).Clone()
	}

	for i, v := range newValues {
		tup.SetColumn(i, v)
	}

	for i, idx := range t.indexes {
		newKey := idx.KeyOf(tup)
		if newKey.Equal(oldKeys[i]) {
			continue
		}
		idx.Remove(oldKeys[i], addr)
		if err := idx.Insert(newKey, addr); err != nil {
			return err
		}
	}
	return nil
}

// indexedKey pairs an index with the key it held for a tuple at the moment
// of deletion, so UndoQuantum.Undo can re-insert it.
type indexedKey struct {
	idx Index
	key value.Value
}

// Delete removes the tuple at addr from every index and decrements the
// visible-tuple count. If undo is non-nil the physical slot is kept alive
// (pendingDeleteOnUndoRelease) until the quantum is released or undone
// (spec.md §3's UndoQuantum semantics). Otherwise the streamer is asked
// whether the free may proceed now; if it refuses, the slot is marked
// pendingDelete but not freed until ReleasePendingDelete is called.
func (t *PersistentTable) Delete(addr value.Address, undo *UndoQuantum) error {
	tup := t.store.TupleAt(addr)
	if tup.IsZero() {
		return nil
	}

	keys := make([]indexedKey, len(t.indexes))
	for i, idx := range t.indexes {
		keys[i] = indexedKey{idx: idx, key: idx.KeyOf(tup).Clone()}
	}

	if undo != nil {
		tup.SetPendingDeleteOnUndoRelease(true)
		t.store.MarkPendingDeleteOnUndo(addr, true)
		for _, k := range keys {
			k.idx.Remove(k.key, addr)
		}
		t.visibleTuples--
		if t.streamer != nil {
			t.streamer.OnDelete(tup)
		}
		undo.recordDelete(t, addr, keys)
		return nil
	}

	freeNow := true
	if t.streamer != nil {
		freeNow = t.streamer.OnDelete(tup)
	}
	for _, k := range keys {
		k.idx.Remove(k.key, addr)
	}
	t.visibleTuples--

	if freeNow {
		t.store.FreeTuple(addr, false, t)
		return nil
	}
	tup.SetPendingDelete(true)
	return nil
}

// ReleasePendingDelete physically frees a slot that a streamer previously
// refused to free via Delete's OnDelete hook, once the refusing context has
// advanced past it.
func (t *PersistentTable) ReleasePendingDelete(addr value.Address) {
	t.store.FreeTuple(addr, false, t)
}

// ForcedCompaction repeatedly compacts block pairs until none remain
// productive, forwarding index rewrites and streamer notifications for
// every tuple moved (spec.md §4.1).
func (t *PersistentTable) ForcedCompaction() int { return t.store.ForcedCompaction(t) }

// IdleCompaction performs at most one compaction pairing.
func (t *PersistentTable) IdleCompaction() (int, bool) { return t.store.IdleCompaction(t) }

// NewIterator returns a base tuple iterator over the table's live blocks.
func (t *PersistentTable) NewIterator() *block.Iterator { return t.store.NewIterator() }

// OnTupleMoved implements block.Listener: it rewrites every index entry for
// the moved tuple before forwarding the notification to the streamer, so
// any streaming context observes a table whose indexes are already
// consistent with the new address.
func (t *PersistentTable) OnTupleMoved(src, dst value.Address, tup value.TableTuple) {
	for _, idx := range t.indexes {
		idx.Move(idx.KeyOf(tup), src, dst)
	}
	if t.streamer != nil {
		t.streamer.OnTupleMoved(src, dst, tup)
	}
}

// OnBlockCompactedAway implements block.Listener, forwarding to the
// streamer if one is attached.
func (t *PersistentTable) OnBlockCompactedAway(id value.BlockID) {
	if t.streamer != nil {
		t.streamer.OnBlockCompactedAway(id)
	}
}
