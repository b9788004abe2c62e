// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package value

// Address identifies a tuple's storage slot uniquely and stably: which
// block it lives in, and which slot index within that block. Per spec.md
// §3 ("a tuple's address uniquely identifies it; all indexes store tuple
// addresses as values") and the design note in spec.md §9 ("an arena-owned
// BlockId index... notifications carry BlockId to avoid pointer
// aliasing"), Address plays the role of the original engine's raw pointer
// without any unsafe/aliasing hazards: a block's base address never moves
// (spec.md §3's compaction invariant), only the Slot's content does.
type Address struct {
	Block BlockID
	Slot  uint32
}

// BlockID is an opaque, stable identifier for one TupleBlock. IDs are
// assigned once at block creation and never reused while any Address still
// refers to them.
type BlockID uint64

// Flag bits stored in a Slot's Flags byte, per spec.md §3's "flags in the
// first storage byte".
const (
	FlagActive byte = 1 << iota
	FlagDirty
	FlagPendingDelete
	FlagPendingDeleteOnUndoRelease
	FlagMigrating
)

// Slot is the actual storage cell a TableTuple refers to: a flag byte plus
// one Value per schema column. Blocks own a contiguous slice of Slots;
// TableTuple is a lightweight handle (schema pointer + address + pointer to
// the live slot) so that "copy is shallow (pointer move)" per spec.md §3.
type Slot struct {
	Flags  byte
	Values []Value
}

// NewSlot allocates a zeroed slot with one column per schema entry, each
// initialized to NULL of its declared type.
func NewSlot(schema *TupleSchema) *Slot {
	values := make([]Value, len(schema.Columns))
	for i, c := range schema.Columns {
		values[i] = NewNull(c.Type)
	}
	return &Slot{Values: values}
}

// Reset clears a slot for reuse by a fresh allocateTuple (spec.md §4.1):
// flags are cleared and every column reverts to NULL.
func (s *Slot) Reset(schema *TupleSchema) {
	s.Flags = 0
	for i, c := range schema.Columns {
		s.Values[i] = NewNull(c.Type)
	}
}

// TableTuple is a schema pointer plus a handle to live storage, per spec.md
// §3. Copy is shallow: copying a TableTuple moves the handle, not the data.
// Deep copy requires the explicit Copy method.
type TableTuple struct {
	Schema *TupleSchema
	Addr   Address
	slot   *Slot
}

// NewTableTuple wraps slot as a tuple at addr under schema. Used by the
// block store when handing a freshly allocated or iterated slot to a
// caller.
func NewTableTuple(schema *TupleSchema, addr Address, slot *Slot) TableTuple {
	return TableTuple{Schema: schema, Addr: addr, slot: slot}
}

// IsZero reports whether t is the zero TableTuple (no backing slot).
func (t TableTuple) IsZero() bool { return t.slot == nil }

// Column returns the value of column i.
func (t TableTuple) Column(i int) Value { return t.slot.Values[i] }

// SetColumn sets column i. Any previous volatile value at that column is
// simply overwritten; callers retaining the old value must have already
// cloned it (spec.md §3's volatile-capture contract).
func (t TableTuple) SetColumn(i int, v Value) { t.slot.Values[i] = v }

// Columns returns the tuple's backing value slice. The slice aliases live
// storage; callers must not retain it past the current scan step without
// cloning each volatile element.
func (t TableTuple) Columns() []Value { return t.slot.Values }

func (t TableTuple) flag(bit byte) bool   { return t.slot.Flags&bit != 0 }
func (t TableTuple) setFlag(bit byte, v bool) {
	if v {
		t.slot.Flags |= bit
	} else {
		t.slot.Flags &^= bit
	}
}

// Active reports whether the slot holds a live row.
func (t TableTuple) Active() bool { return t.flag(FlagActive) }

// SetActive sets the active flag.
func (t TableTuple) SetActive(v bool) { t.setFlag(FlagActive, v) }

// Dirty reports whether a COW snapshot has already backed up this tuple's
// pre-image (spec.md §4.3).
func (t TableTuple) Dirty() bool { return t.flag(FlagDirty) }

// SetDirty sets the dirty flag.
func (t TableTuple) SetDirty(v bool) { t.setFlag(FlagDirty, v) }

// PendingDelete reports whether a delete-if-true predicate has already
// scheduled this tuple for deletion (spec.md §4.3's streamMore).
func (t TableTuple) PendingDelete() bool { return t.flag(FlagPendingDelete) }

// SetPendingDelete sets the pending-delete flag.
func (t TableTuple) SetPendingDelete(v bool) { t.setFlag(FlagPendingDelete, v) }

// PendingDeleteOnUndoRelease reports whether the tuple was deleted inside an
// UndoQuantum and is being kept alive until release or undo (spec.md §3).
func (t TableTuple) PendingDeleteOnUndoRelease() bool {
	return t.flag(FlagPendingDeleteOnUndoRelease)
}

// SetPendingDeleteOnUndoRelease sets that flag.
func (t TableTuple) SetPendingDeleteOnUndoRelease(v bool) {
	t.setFlag(FlagPendingDeleteOnUndoRelease, v)
}

// Migrating reports whether the tuple is mid-flight in an elastic rebalance.
func (t TableTuple) Migrating() bool { return t.flag(FlagMigrating) }

// SetMigrating sets the migrating flag.
func (t TableTuple) SetMigrating(v bool) { t.setFlag(FlagMigrating, v) }

// Copy deep-copies other's column values (cloning any volatile value) into
// t's storage, per spec.md §3's "deep copy requires an explicit
// copy(other, pool)". t's own address and flags are left untouched; only
// the column payload is overwritten.
func (t TableTuple) Copy(other TableTuple) {
	for i, v := range other.Columns() {
		t.slot.Values[i] = v.Clone()
	}
}
