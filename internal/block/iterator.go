// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package block

import "github.com/tesseradb/tessera/internal/value"

// Iterator is the base tuple iterator (spec.md §2's "TupleIterator (base |
// COW | ElasticScanner | IndexRange)"): it walks every live block in
// base-address order and, within a block, every slot up to
// UnusedTupleBoundary, skipping inactive slots. It reflects the store's
// live state as of each Next call — blocks created or destroyed during
// iteration are picked up or skipped accordingly, since it re-resolves
// through the block map on every step (spec.md §9's cursor design note).
type Iterator struct {
	store    *Store
	blockIdx int
	slotIdx  uint32
	curBlock *Block
	curID    value.BlockID
}

// NewIterator returns an iterator positioned before the first block.
func (s *Store) NewIterator() *Iterator {
	return &Iterator{store: s}
}

// Next advances to the next active tuple, returning ok=false once every
// block has been exhausted.
func (it *Iterator) Next() (value.TableTuple, bool) {
	for {
		if it.curBlock == nil {
			ids := it.store.OrderedBlockIDs()
			if it.blockIdx >= len(ids) {
				return value.TableTuple{}, false
			}
			it.curID = ids[it.blockIdx]
			it.curBlock = it.store.blocks[it.curID]
			it.blockIdx++
			it.slotIdx = 0
			if it.curBlock == nil {
				continue
			}
		}
		if it.slotIdx >= it.curBlock.UnusedTupleBoundary() {
			it.curBlock = nil
			continue
		}
		idx := it.slotIdx
		it.slotIdx++
		slot := &it.curBlock.slots[idx]
		if slot.Flags&value.FlagActive == 0 {
			continue
		}
		addr := value.Address{Block: it.curID, Slot: idx}
		return value.NewTableTuple(it.curBlock.schema, addr, slot), true
	}
}
