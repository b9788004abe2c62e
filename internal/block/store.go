// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package block

import (
	"sort"

	"github.com/tesseradb/tessera/internal/value"
)

// Listener receives notifications of tuple movement and block destruction
// during compaction, so that a live streaming context can keep its cursor
// and indexes consistent (spec.md §4.1: "notifies the streamer (if any) via
// onTupleMoved(src,dst,tuple) and onBlockCompactedAway(src)").
type Listener interface {
	OnTupleMoved(src, dst value.Address, tuple value.TableTuple)
	OnBlockCompactedAway(id value.BlockID)
}

// Store is the block-allocated tuple store for one table: a TableBlockMap
// (blocks sorted by creation order, standing in for sorted-by-base-address
// per spec.md §3) plus the fullness-decile buckets used to pick compaction
// pairs (spec.md §4.1).
type Store struct {
	schema          *value.TupleSchema
	tuplesPerBlock  uint32
	blocks          map[value.BlockID]*Block
	order           []value.BlockID // ascending by BlockID, i.e. by creation/base-address order
	buckets         [NumBuckets]map[value.BlockID]struct{}
	nextID          value.BlockID
	currentBlock    value.BlockID
	hasCurrentBlock bool
}

// NewStore creates an empty block store for the given schema, allocating
// tuplesPerBlock slots per block.
func NewStore(schema *value.TupleSchema, tuplesPerBlock uint32) *Store {
	s := &Store{
		schema:         schema,
		tuplesPerBlock: tuplesPerBlock,
		blocks:         make(map[value.BlockID]*Block),
	}
	for i := range s.buckets {
		s.buckets[i] = make(map[value.BlockID]struct{})
	}
	return s
}

// BlockCount returns the number of live blocks.
func (s *Store) BlockCount() int { return len(s.blocks) }

// BlockByID returns the block with the given ID, or nil.
func (s *Store) BlockByID(id value.BlockID) *Block { return s.blocks[id] }

// BlockByAddress returns the block containing addr, or nil.
func (s *Store) BlockByAddress(addr value.Address) *Block { return s.blocks[addr.Block] }

// OrderedBlockIDs returns every live block's ID in base-address order.
func (s *Store) OrderedBlockIDs() []value.BlockID {
	out := make([]value.BlockID, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Store) createBlock() *Block {
	id := s.nextID
	s.nextID++
	b := newBlock(id, s.schema, s.tuplesPerBlock)
	s.blocks[id] = b
	idx := sort.Search(len(s.order), func(i int) bool { return s.order[i] >= id })
	s.order = append(s.order, 0)
	copy(s.order[idx+1:], s.order[idx:])
	s.order[idx] = id
	return b
}

func (s *Store) moveBucket(id value.BlockID, oldIndex, newIndex int) {
	if oldIndex == newIndex {
		return
	}
	if oldIndex != NoBucket {
		delete(s.buckets[oldIndex], id)
	}
	if newIndex != NoBucket {
		s.buckets[newIndex][id] = struct{}{}
	}
}

func (s *Store) destroyBlock(id value.BlockID, listener Listener) {
	b := s.blocks[id]
	if b == nil {
		return
	}
	s.moveBucket(id, b.bucketIndex, NoBucket)
	delete(s.blocks, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.hasCurrentBlock && s.currentBlock == id {
		s.hasCurrentBlock = false
	}
	if listener != nil {
		listener.OnBlockCompactedAway(id)
	}
}

// AllocateTuple finds or creates a block with a free slot and allocates a
// new active tuple from it, per spec.md §4.1's "allocateTuple() -> (addr,
// bucketTransition)". Blocks are created lazily when the current block has
// no free slots (spec.md §3's lifecycle).
func (s *Store) AllocateTuple() value.TableTuple {
	var b *Block
	if s.hasCurrentBlock {
		if cur := s.blocks[s.currentBlock]; cur != nil && cur.HasFreeTuples() {
			b = cur
		}
	}
	if b == nil {
		b = s.createBlock()
		s.currentBlock = b.id
		s.hasCurrentBlock = true
	}

	oldIndex := b.bucketIndex
	tuple, _, newIndex, changed, ok := b.allocate()
	if !ok {
		// current block filled concurrently with the free-tuples check
		// above (shouldn't happen single-threaded, but stay defensive):
		// fall back to a fresh block.
		b = s.createBlock()
		s.currentBlock = b.id
		oldIndex = b.bucketIndex
		tuple, _, newIndex, changed, _ = b.allocate()
	}
	if changed {
		s.moveBucket(b.id, oldIndex, newIndex)
	}
	return tuple
}

// FreeTuple deletes the tuple at addr: pushes its slot onto the owning
// block's free list, decrements activeTuples, and — if the block becomes
// empty and is not pending snapshot — destroys the block (spec.md §3/§4.1).
// keepAlive, if true (the block is still PENDING_SNAPSHOT), suppresses
// destruction even at zero active tuples.
func (s *Store) FreeTuple(addr value.Address, keepAlive bool, listener Listener) {
	b := s.blocks[addr.Block]
	if b == nil {
		return
	}
	oldIndex := b.bucketIndex
	newIndex, changed := b.free(addr.Slot)
	if changed {
		s.moveBucket(b.id, oldIndex, newIndex)
	}
	if b.IsEmpty() && !keepAlive {
		s.destroyBlock(b.id, listener)
	}
}

// MarkPendingDeleteOnUndo toggles the pending-delete-on-undo-release flag
// bookkeeping used by the "effectively empty" bucket rule (spec.md §4.1),
// re-synchronizing bucket membership afterward.
func (s *Store) MarkPendingDeleteOnUndo(addr value.Address, set bool) {
	b := s.blocks[addr.Block]
	if b == nil {
		return
	}
	oldIndex := b.bucketIndex
	b.notePendingDeleteOnUndo(set)
	newIndex, changed := b.recalculateBucket()
	if changed {
		s.moveBucket(b.id, oldIndex, newIndex)
	}
}

// TupleAt returns the tuple handle at addr.
func (s *Store) TupleAt(addr value.Address) value.TableTuple {
	b := s.blocks[addr.Block]
	if b == nil {
		return value.TableTuple{}
	}
	return b.Slot(addr, addr.Slot)
}
