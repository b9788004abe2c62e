// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package table implements PersistentTable, TempTable/LargeTempTable and
// UndoQuantum (spec.md §3), layered on package block's tuple-block store.
package table

import "github.com/tesseradb/tessera/internal/value"

// Index is the abstract indexing capability a PersistentTable consumes.
// spec.md §1 excludes concrete index data structures (tree, hash,
// covering-cell) from the core; Index is the narrow contract the table
// needs in order to keep every attached index consistent with table
// contents after each committed mutation (spec.md §3's invariant).
type Index interface {
	// Name identifies the index, e.g. for error messages on constraint
	// violations.
	Name() string

	// Unique reports whether this index enforces key uniqueness.
	Unique() bool

	// KeyOf extracts the index key from a tuple's column values.
	KeyOf(tuple value.TableTuple) value.Value

	// Insert adds (key, addr) to the index. A unique index returns
	// tesserr.ConstraintViolation if key is already present.
	Insert(key value.Value, addr value.Address) error

	// Remove deletes the (key, addr) entry.
	Remove(key value.Value, addr value.Address)

	// Move rewrites addr from old to new for the entry keyed by key,
	// used when compaction relocates a tuple (spec.md §4.1's "updates
	// indexes by address rewrite").
	Move(key value.Value, old, new value.Address)
}
