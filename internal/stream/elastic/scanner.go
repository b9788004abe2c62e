// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package elastic

import (
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

// Scanner iterates a table's blocks like the copy-on-write iterator but
// without any dirty/pending bookkeeping: it just records which blocks it
// has fully visited so it can stop once every block live at construction
// time has been exhausted (spec.md §4.4).
type Scanner struct {
	tbl   *table.PersistentTable
	order []value.BlockID

	pos     int
	hasCur  bool
	curID   value.BlockID
	slotIdx uint32
}

// NewScanner captures the table's current block order as the scan's scope.
func NewScanner(tbl *table.PersistentTable) *Scanner {
	return &Scanner{tbl: tbl, order: tbl.Store().OrderedBlockIDs()}
}

// Next advances to the next active tuple, or reports exhaustion.
func (s *Scanner) Next() (value.TableTuple, bool) {
	for {
		if !s.hasCur {
			if s.pos >= len(s.order) {
				return value.TableTuple{}, false
			}
			s.curID = s.order[s.pos]
			s.pos++
			s.hasCur = true
			s.slotIdx = 0
		}

		blk := s.tbl.Store().BlockByID(s.curID)
		if blk == nil || s.slotIdx >= blk.UnusedTupleBoundary() {
			s.hasCur = false
			continue
		}

		addr := value.Address{Block: s.curID, Slot: s.slotIdx}
		s.slotIdx++
		tup := s.tbl.Store().TupleAt(addr)
		if !tup.Active() {
			continue
		}
		return tup, true
	}
}
