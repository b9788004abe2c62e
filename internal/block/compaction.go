// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package block

import "github.com/tesseradb/tessera/internal/value"

// pickCompactionPair finds the emptiest block with any active tuples
// (lowest non-empty bucket) and the fullest block that still has free
// slots (highest occupied bucket), per spec.md §4.1: "pairs the emptiest
// block... with the fullest block that still has free slots". Returns
// ok=false if no productive pair exists (fewer than two distinct
// bucketed blocks, or source/target would be the same block).
func (s *Store) pickCompactionPair() (source, target value.BlockID, ok bool) {
	var sourceSet, targetSet bool
	for i := 0; i < NumBuckets; i++ {
		for id := range s.buckets[i] {
			if !sourceSet {
				source = id
				sourceSet = true
			}
			break
		}
		if sourceSet {
			break
		}
	}
	for i := NumBuckets - 1; i >= 0; i-- {
		for id := range s.buckets[i] {
			if sourceSet && id == source {
				continue
			}
			target = id
			targetSet = true
			break
		}
		if targetSet {
			break
		}
	}
	if !sourceSet || !targetSet || source == target {
		return 0, 0, false
	}
	return source, target, true
}

// compactPair moves tuples one at a time from source into target until
// either source is fully drained (and destroyed) or target has no more
// free slots, notifying listener of each move and of the source block's
// destruction, per spec.md §4.1.
func (s *Store) compactPair(sourceID, targetID value.BlockID, listener Listener) (moved int) {
	source := s.blocks[sourceID]
	target := s.blocks[targetID]
	if source == nil || target == nil {
		return 0
	}

	for idx := uint32(0); idx < source.UnusedTupleBoundary() && target.HasFreeTuples(); idx++ {
		slot := &source.slots[idx]
		if slot.Flags&value.FlagActive == 0 {
			continue
		}
		srcAddr := value.Address{Block: sourceID, Slot: idx}
		srcTuple := value.NewTableTuple(source.schema, srcAddr, slot)

		oldTargetIdx := target.bucketIndex
		dstTuple, dstAddr, newTargetIdx, targetChanged, ok := target.allocate()
		if !ok {
			break
		}
		dstTuple.Copy(srcTuple)
		dstTuple.SetDirty(srcTuple.Dirty())
		dstTuple.SetPendingDelete(srcTuple.PendingDelete())
		dstTuple.SetPendingDeleteOnUndoRelease(srcTuple.PendingDeleteOnUndoRelease())
		if targetChanged {
			s.moveBucket(targetID, oldTargetIdx, newTargetIdx)
		}

		if listener != nil {
			listener.OnTupleMoved(srcAddr, dstAddr, dstTuple)
		}

		oldSourceIdx := source.bucketIndex
		newSourceIdx, sourceChanged := source.free(idx)
		if sourceChanged {
			s.moveBucket(sourceID, oldSourceIdx, newSourceIdx)
		}
		moved++
	}

	if source.IsEmpty() {
		s.destroyBlock(sourceID, listener)
	}
	return moved
}

// ForcedCompaction repeatedly pairs and compacts blocks until no productive
// pair remains, per spec.md §4.1: "Forced compaction repeats until no
// productive pair remains."
func (s *Store) ForcedCompaction(listener Listener) (totalMoved int) {
	for {
		source, target, ok := s.pickCompactionPair()
		if !ok {
			return totalMoved
		}
		totalMoved += s.compactPair(source, target, listener)
	}
}

// IdleCompaction performs at most one pairing, per spec.md §4.1: "Idle
// compaction performs at most one such pairing."
func (s *Store) IdleCompaction(listener Listener) (moved int, didWork bool) {
	source, target, ok := s.pickCompactionPair()
	if !ok {
		return 0, false
	}
	return s.compactPair(source, target, listener), true
}
