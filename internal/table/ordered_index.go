// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package table

import (
	"sort"

	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// OrderedIndex is a sorted (key, address) index supporting the directional
// seeks an index scan executor needs (spec.md §4.7.2's moveToKey family),
// on top of the plain Index contract AddIndex expects.
type OrderedIndex struct {
	name    string
	unique  bool
	keyOf   func(value.TableTuple) value.Value
	entries []orderedEntry
}

type orderedEntry struct {
	key  value.Value
	addr value.Address
}

// NewOrderedIndex builds an empty ordered index named name, keyed by keyOf.
func NewOrderedIndex(name string, unique bool, keyOf func(value.TableTuple) value.Value) *OrderedIndex {
	return &OrderedIndex{name: name, unique: unique, keyOf: keyOf}
}

// Name implements Index.
func (x *OrderedIndex) Name() string { return x.name }

// Unique implements Index.
func (x *OrderedIndex) Unique() bool { return x.unique }

// KeyOf implements Index.
func (x *OrderedIndex) KeyOf(t value.TableTuple) value.Value { return x.keyOf(t) }

// lowerBound returns the first position whose key is >= key.
func (x *OrderedIndex) lowerBound(key value.Value) int {
	return sort.Search(len(x.entries), func(i int) bool {
		c, _ := x.entries[i].key.Compare(key)
		return c >= 0
	})
}

// upperBound returns the first position whose key is > key.
func (x *OrderedIndex) upperBound(key value.Value) int {
	return sort.Search(len(x.entries), func(i int) bool {
		c, _ := x.entries[i].key.Compare(key)
		return c > 0
	})
}

// Insert implements Index, rejecting a duplicate key when the index is
// unique.
func (x *OrderedIndex) Insert(key value.Value, addr value.Address) error {
	lo := x.lowerBound(key)
	if x.unique {
		if lo < len(x.entries) {
			if c, _ := x.entries[lo].key.Compare(key); c == 0 {
				return tesserr.ConstraintViolation.New("duplicate key in unique index %q", x.name)
			}
		}
	}
	x.entries = append(x.entries, orderedEntry{})
	copy(x.entries[lo+1:], x.entries[lo:])
	x.entries[lo] = orderedEntry{key: key.Clone(), addr: addr}
	return nil
}

// Remove implements Index.
func (x *OrderedIndex) Remove(key value.Value, addr value.Address) {
	lo := x.lowerBound(key)
	hi := x.upperBound(key)
	for i := lo; i < hi; i++ {
		if x.entries[i].addr == addr {
			x.entries = append(x.entries[:i], x.entries[i+1:]...)
			return
		}
	}
}

// Move implements Index.
func (x *OrderedIndex) Move(key value.Value, old, new value.Address) {
	x.Remove(key, old)
	_ = x.Insert(key, new)
}

// Len returns the number of indexed entries.
func (x *OrderedIndex) Len() int { return len(x.entries) }

// AllAddresses returns every indexed address in key order, for a FULL
// join's unmatched-inner-tuple second pass (spec.md §4.7.3).
func (x *OrderedIndex) AllAddresses() []value.Address {
	out := make([]value.Address, len(x.entries))
	for i, e := range x.entries {
		out[i] = e.addr
	}
	return out
}

// LookupType selects an index scan cursor's starting position and walk
// direction, per spec.md §4.7.2's "moveToKey | moveToGreaterThanKey |
// moveToKeyOrGreater | moveToLessThanKey | moveToKeyOrLess |
// moveToCoveringCell | moveToEnd".
type LookupType int

const (
	MoveToKey LookupType = iota
	MoveToGreaterThanKey
	MoveToKeyOrGreater
	MoveToLessThanKey
	MoveToKeyOrLess
	MoveToCoveringCell
	MoveToEnd
)

// Cursor walks an OrderedIndex forward or backward from a seeked position.
type Cursor struct {
	idx     *OrderedIndex
	pos     int
	reverse bool
}

// Seek positions a cursor per lookup's direction and starting rule.
// MoveToCoveringCell is treated as MoveToKeyOrGreater: the engine core has
// no spatial R-tree of its own (spec.md's Non-goals exclude a new query
// planner, and no spatial indexing scheme is specified), so covering-cell
// lookups degrade to an ordinary ordered seek on whatever key value the
// caller computed for the cell.
func (x *OrderedIndex) Seek(key value.Value, lookup LookupType) *Cursor {
	switch lookup {
	case MoveToKey, MoveToKeyOrGreater, MoveToCoveringCell:
		return &Cursor{idx: x, pos: x.lowerBound(key)}
	case MoveToGreaterThanKey:
		return &Cursor{idx: x, pos: x.upperBound(key)}
	case MoveToLessThanKey:
		return &Cursor{idx: x, pos: x.lowerBound(key) - 1, reverse: true}
	case MoveToKeyOrLess:
		return &Cursor{idx: x, pos: x.upperBound(key) - 1, reverse: true}
	case MoveToEnd:
		return &Cursor{idx: x, pos: len(x.entries) - 1, reverse: true}
	default:
		return &Cursor{idx: x, pos: len(x.entries)}
	}
}

// SeekRankPosition positions a cursor at a 1-based rank (spec.md §4.7.2's
// hasOffsetRankOptimization: "offset+1 forward, size-offset reverse").
func (x *OrderedIndex) SeekRankPosition(rank int, reverse bool) *Cursor {
	pos := rank - 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(x.entries) {
		pos = len(x.entries)
	}
	return &Cursor{idx: x, pos: pos, reverse: reverse}
}

// Next returns the next address in the cursor's walk direction.
func (c *Cursor) Next() (value.Address, value.Value, bool) {
	if c.reverse {
		if c.pos < 0 || c.pos >= len(c.idx.entries) {
			return value.Address{}, value.Value{}, false
		}
		e := c.idx.entries[c.pos]
		c.pos--
		return e.addr, e.key, true
	}
	if c.pos < 0 || c.pos >= len(c.idx.entries) {
		return value.Address{}, value.Value{}, false
	}
	e := c.idx.entries[c.pos]
	c.pos++
	return e.addr, e.key, true
}
