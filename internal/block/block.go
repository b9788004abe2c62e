// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package block implements the fixed-size tuple block store described in
// spec.md §3/§4.1, grounded on the VoltDB original at
// original_source/src/ee/storage/TupleBlock.{h,cpp}: a slab of fixed
// capacity owning tuplesPerBlock slots plus a free-slot list, with a
// fullness-decile bucket index used to pair compaction candidates.
package block

import "github.com/tesseradb/tessera/internal/value"

// NumBuckets is the number of fullness-decile buckets a block may belong
// to, per spec.md §3 ("bucket indexed by fullness decile (0..19)").
const NumBuckets = 20

// NoBucket marks a block that is full or fully inactive and therefore
// belongs to no bucket, mirroring the original's NO_NEW_BUCKET_INDEX.
const NoBucket = -1

// Block is a fixed-capacity slab of tuple slots. Its base address (its ID)
// never changes; compaction only moves tuple content between blocks, never
// a block's identity (spec.md §3's compaction invariant).
type Block struct {
	id       value.BlockID
	schema   *value.TupleSchema
	capacity uint32

	slots []value.Slot

	freeList []uint32 // offsets of once-used, now-freed slots
	nextFree uint32   // bump-allocation cursor past the free list

	activeTuples             uint32
	pendingDeleteOnUndoCount uint32

	bucketIndex int // current bucket membership, NoBucket if none
}

// newBlock allocates a zeroed block of the given capacity under schema.
func newBlock(id value.BlockID, schema *value.TupleSchema, capacity uint32) *Block {
	slots := make([]value.Slot, capacity)
	for i := range slots {
		slots[i] = *value.NewSlot(schema)
	}
	return &Block{
		id:          id,
		schema:      schema,
		capacity:    capacity,
		slots:       slots,
		bucketIndex: NoBucket,
	}
}

// ID returns the block's stable identifier.
func (b *Block) ID() value.BlockID { return b.id }

// ActiveTuples returns the number of currently active tuples.
func (b *Block) ActiveTuples() uint32 { return b.activeTuples }

// Capacity returns tuplesPerBlock for this block.
func (b *Block) Capacity() uint32 { return b.capacity }

// LoadFactor is 1.0 for a full block and 0.0 for an empty one.
func (b *Block) LoadFactor() float64 {
	return float64(b.activeTuples) / float64(b.capacity)
}

// HasFreeTuples reports whether more tuples can be inserted.
func (b *Block) HasFreeTuples() bool { return b.activeTuples < b.capacity }

// IsEmpty reports whether the block holds no active tuples.
func (b *Block) IsEmpty() bool { return b.activeTuples == 0 }

// UnusedTupleBoundary returns the ordinal position of the first never-used
// slot — the COW iterator's "slot indices 0..unusedTupleBoundary" bound
// (spec.md §4.3).
func (b *Block) UnusedTupleBoundary() uint32 { return b.nextFree }

// BucketIndex returns the block's current bucket membership, or NoBucket.
func (b *Block) BucketIndex() int { return b.bucketIndex }

// calculateBucketIndex computes which decile bucket this block currently
// belongs in, returning NoBucket if the block is full, or if every active
// tuple is pending-delete-on-undo-release (spec.md §4.1: "ignored when
// computing effectively empty").
func (b *Block) calculateBucketIndex() int {
	if !b.HasFreeTuples() || b.pendingDeleteOnUndoCount == b.activeTuples {
		return NoBucket
	}
	index := int(NumBuckets * b.activeTuples / b.capacity)
	if index >= NumBuckets {
		index = NumBuckets - 1
	}
	return index
}

// Slot returns the tuple handle for slot index i.
func (b *Block) Slot(addr value.Address, i uint32) value.TableTuple {
	return value.NewTableTuple(b.schema, addr, &b.slots[i])
}

// allocate finds the next free slot (free list first, else bump the
// cursor), marks it active and returns its handle plus whether the block's
// bucket classification changed.
func (b *Block) allocate() (tuple value.TableTuple, addr value.Address, newBucket int, changed bool, ok bool) {
	var slotIdx uint32
	if n := len(b.freeList); n > 0 {
		slotIdx = b.freeList[n-1]
		b.freeList = b.freeList[:n-1]
	} else {
		if b.nextFree >= b.capacity {
			return value.TableTuple{}, value.Address{}, 0, false, false
		}
		slotIdx = b.nextFree
		b.nextFree++
	}
	b.activeTuples++
	slot := &b.slots[slotIdx]
	slot.Reset(b.schema)
	slot.Flags = value.FlagActive

	addr = value.Address{Block: b.id, Slot: slotIdx}
	tuple = value.NewTableTuple(b.schema, addr, slot)

	newIndex := b.calculateBucketIndex()
	changed = newIndex != b.bucketIndex
	b.bucketIndex = newIndex
	return tuple, addr, newIndex, changed, true
}

// free pushes slotIdx onto the free list and decrements activeTuples,
// returning whether the bucket classification changed.
func (b *Block) free(slotIdx uint32) (newBucket int, changed bool) {
	slot := &b.slots[slotIdx]
	if slot.Flags&value.FlagPendingDeleteOnUndoRelease != 0 {
		b.pendingDeleteOnUndoCount--
	}
	slot.Flags = 0
	b.activeTuples--
	b.freeList = append(b.freeList, slotIdx)

	newIndex := b.calculateBucketIndex()
	changed = newIndex != b.bucketIndex
	b.bucketIndex = newIndex
	return newIndex, changed
}

// notePendingDeleteOnUndo adjusts the bookkeeping count used by
// calculateBucketIndex's "effectively empty" check when a tuple's
// pending-delete-on-undo-release flag is toggled. It does not itself
// recompute bucket membership; callers should follow up with
// recalculateBucket if they need the transition.
func (b *Block) notePendingDeleteOnUndo(set bool) {
	if set {
		b.pendingDeleteOnUndoCount++
	} else {
		b.pendingDeleteOnUndoCount--
	}
}

// recalculateBucket re-evaluates bucket classification after a flag change
// that calculateBucketIndex depends on but that didn't go through
// allocate/free (e.g. a pendingDeleteOnUndoRelease toggle).
func (b *Block) recalculateBucket() (newBucket int, changed bool) {
	newIndex := b.calculateBucketIndex()
	changed = newIndex != b.bucketIndex
	b.bucketIndex = newIndex
	return newIndex, changed
}
