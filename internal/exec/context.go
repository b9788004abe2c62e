// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec

import "github.com/tesseradb/tessera/internal/value"

// HostCallbacks is the opaque bridge to the host runtime (spec.md §9,
// SPEC_FULL.md §6 addition): the engine never calls an aggregate's
// user-defined body or publishes progress directly, it calls back out
// through this interface, which the host process implements.
type HostCallbacks interface {
	// ReportProgress is invoked by the progress monitor at its configured
	// tuple-count boundaries (spec.md §4.9).
	ReportProgress(tuplesProcessed int64)

	// UDAFStart begins one user-defined aggregate invocation, returning an
	// opaque handle the engine threads through the rest of the calls below.
	UDAFStart(udafID int32) (handle int64, err error)
	// UDAFAssemble feeds one row's aggregate-argument values into the UDAF
	// identified by handle.
	UDAFAssemble(handle int64, args []value.Value) error
	// UDAFCombine merges the partial state of src into dst, for the
	// worker/coordinator split of a partitioned UDAF.
	UDAFCombine(dst, src int64) error
	// UDAFWorkerEnd finalizes a worker-side partial UDAF and returns its
	// serialized partial result.
	UDAFWorkerEnd(handle int64) (value.Value, error)
	// UDAFCoordinatorEnd finalizes a coordinator-side UDAF and returns the
	// aggregate's final value.
	UDAFCoordinatorEnd(handle int64) (value.Value, error)
}

// ExecutorContext carries state shared across the executors of one
// fragment, in particular the CTE name→relation bindings a recursive common
// table executor rewrites on each iteration (spec.md §4.7.8), and the
// HostCallbacks bridge a UDAF-driving aggregator or progress monitor calls
// out through.
type ExecutorContext struct {
	bindings map[string]Relation

	// Host is the fragment's callback bridge. Nil in contexts that never
	// drive a UDAF or report progress (e.g. most unit tests).
	Host HostCallbacks
}

// NewExecutorContext returns an empty context with no host bridge attached.
func NewExecutorContext() *ExecutorContext {
	return &ExecutorContext{bindings: make(map[string]Relation)}
}

// WithHost attaches host as the context's callback bridge and returns c for
// chaining.
func (c *ExecutorContext) WithHost(host HostCallbacks) *ExecutorContext {
	c.Host = host
	return c
}

// Binding returns the relation currently bound to name, or nil.
func (c *ExecutorContext) Binding(name string) Relation { return c.bindings[name] }

// SetBinding binds name to rel, replacing any prior binding.
func (c *ExecutorContext) SetBinding(name string, rel Relation) { c.bindings[name] = rel }

// ClearBinding removes name's binding.
func (c *ExecutorContext) ClearBinding(name string) { delete(c.bindings, name) }
