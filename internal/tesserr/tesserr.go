// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package tesserr defines the engine's error taxonomy (spec.md §7) as
// zeebo/errs classes, following the teacher's error-handling idiom (see
// private/errs2, satellite/metabase's *_test.go ErrClass fields).
package tesserr

import (
	"github.com/zeebo/errs"
	"go.uber.org/zap"
)

// Error kinds from spec.md §7. Arithmetic and VarLengthMismatch are
// value.ErrOverflow/ErrUnderflow/ErrDivideByZero/ErrVarLength in package
// value; the remaining kinds live here since they are engine-level rather
// than value-level concerns.
var (
	// TypeMismatch mirrors value.ErrTypeMismatch for engine-level call
	// sites that don't want to import package value just to report one.
	TypeMismatch = errs.Class("type mismatch")

	// ConstraintViolation is raised by table mutation paths (e.g. a unique
	// index rejecting a duplicate key) — spec.md §3's "all indexes are
	// consistent with table contents" invariant is enforced by rejecting
	// mutations that would violate it.
	ConstraintViolation = errs.Class("constraint violation")

	// PlanInvalid is raised during plan-node init when the JSON plan tree
	// is structurally invalid; per spec.md §7 this always aborts
	// initialization and is never observed at runtime.
	PlanInvalid = errs.Class("plan invalid")

	// SerializationError is the sentinel returned by a streaming context's
	// streamMore when output serialization cannot complete cleanly
	// (spec.md §4.3, §4.8). Internal invariants (block pendingness) are
	// preserved before it is returned.
	SerializationError = errs.Class("serialization error")

	// UnknownAggregateType is raised when a plan names an AGGREGATE_TYPE
	// the engine does not implement (spec.md §4.7.4).
	UnknownAggregateType = errs.Class("unknown aggregate type")

	// ActivationRejected is returned when TableStreamer.Activate refuses a
	// stream-type activation, either by coexistence policy or because an
	// existing context explicitly rejected re-activation (spec.md §4.2).
	ActivationRejected = errs.Class("activation rejected")

	// Internal marks an invariant violation. spec.md §7 says this kind
	// "terminates the process" in the original engine; tessera is a
	// library embedded in a host process and cannot unilaterally abort it,
	// so Internal is surfaced as a normal error plus a DPanic log (see
	// DESIGN.md's Open Question resolution #3) — the host bridge is
	// responsible for treating this class as fatal.
	Internal = errs.Class("internal invariant violation")
)

// ActivationCode is the result of TableStreamer.Activate (spec.md §4.2).
type ActivationCode int

const (
	// Succeeded means either a fresh context was created, or an existing
	// context of the same stream type accepted (and merged in) the new
	// predicates.
	Succeeded ActivationCode = iota
	// Failed means activation was rejected outright (e.g. a SNAPSHOT
	// requested while elastic indexing is still running).
	Failed
	// Unsupported means no existing context of this stream type could
	// accept the predicates; the caller should create a fresh context.
	Unsupported
)

func (c ActivationCode) String() string {
	switch c {
	case Succeeded:
		return "Succeeded"
	case Failed:
		return "Failed"
	case Unsupported:
		return "Unsupported"
	default:
		return "Unknown"
	}
}

// ReportInternal logs an Internal-class invariant violation via log at
// DPanic level (panics in development builds, logs in production builds —
// zap's own distinction) and returns the wrapped error for the caller to
// propagate up through execute()/streamMore returning false/an error.
func ReportInternal(log *zap.Logger, msg string, fields ...zap.Field) error {
	if log != nil {
		log.DPanic(msg, fields...)
	}
	return Internal.New("%s", msg)
}
