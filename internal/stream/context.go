// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package stream

import (
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// OutputSink is the narrow contract a streaming context needs from an
// output stream to write a serialized tuple, decoupling this package from
// internal/output's concrete TupleOutputStream (spec.md §4.8).
type OutputSink interface {
	// WriteTuple serializes t and appends it to the sink. It returns false
	// if the sink cannot hold another max-sized tuple right now, per
	// spec.md §4.3's streamMore yield condition.
	WriteTuple(t value.TableTuple) (wrote bool, bytesWritten int64, err error)
}

// Context is one live streaming operation attached to a table: a copy-on-
// write snapshot, an elastic index build/read/clear, or a recovery ship
// (spec.md §4.2/§4.3-4.6).
type Context interface {
	Type() Type

	// TryReactivate is called when a new activate request names this
	// context's Type. Succeeded means predicates were merged in place;
	// Unsupported means this context cannot accept them (the caller tries
	// the next same-type context, or creates a fresh one); Failed aborts
	// the whole activation request.
	TryReactivate(predicates *StreamPredicateList) tesserr.ActivationCode

	// StreamMore drains a bounded amount of work into outputs, returning a
	// remaining-work hint (exact when known) and whether the context is
	// now fully drained.
	StreamMore(outputs []OutputSink) (remaining int64, done bool, err error)

	// OnInsert/OnUpdate notify the context of a committed mutation.
	OnInsert(t value.TableTuple)
	OnUpdate(t value.TableTuple)

	// OnDelete returns whether this context permits the tuple to be freed
	// right now. A delete can proceed only once every live context agrees
	// (spec.md §4.2).
	OnDelete(t value.TableTuple) bool

	OnTupleMoved(src, dst value.Address, t value.TableTuple)
	OnBlockCompactedAway(id value.BlockID)
}

// completionAware is implemented by contexts whose coexistence rules
// depend on build completeness or emptiness (the elastic index build
// context, per spec.md §4.2's ELASTIC_INDEX_READ/_CLEAR preconditions).
// Contexts that don't implement it are treated as never-complete,
// non-empty for the purposes of TableStreamer's coexistence checks.
type completionAware interface {
	Complete() bool
	Empty() bool
}
