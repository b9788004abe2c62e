// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg

import "github.com/tesseradb/tessera/internal/value"

// userDefinedBatchSize is the batch width USER_DEFINED buffers input values
// into before calling the host (spec.md §4.7.4: "batch into vector of 32").
const userDefinedBatchSize = 32

// UserDefinedHost is the callback channel a USER_DEFINED aggregate drives
// (spec.md §4.7.4). The engine core has no UDF runtime of its own; Advance
// is called once per full batch (and once more with a short final batch at
// Finalize), and exactly one of Worker or Coordinator is called once,
// depending on which role this aggregate instance plays.
type UserDefinedHost interface {
	// Advance processes one batch of (already non-null) input values.
	Advance(batch []value.Value) error
	// Worker finalizes a worker-side partial aggregation, returning a
	// serialized partial result.
	Worker() (value.Value, error)
	// Coordinator finalizes a coordinator-side reduce over partials
	// already fed in via Advance, returning the final result.
	Coordinator() (value.Value, error)
}

// userDefinedAgg implements Aggregator by batching input and delegating to
// a UserDefinedHost (spec.md §4.7.4's USER_DEFINED row).
type userDefinedAgg struct {
	host          UserDefinedHost
	isCoordinator bool
	batch         []value.Value
}

// NewUserDefinedAgg builds a USER_DEFINED aggregator bound to host. Spec's
// factory (newAggregator) cannot build this kind itself since it has no
// host to bind; callers assembling a Spec with a USER_DEFINED kind must
// construct this aggregator directly and splice it into the AggregateRow's
// Aggregators slice after construction, or drive it standalone outside the
// Spec/AggregateRow machinery entirely.
func NewUserDefinedAgg(host UserDefinedHost, isCoordinator bool) Aggregator {
	return &userDefinedAgg{host: host, isCoordinator: isCoordinator}
}

func (a *userDefinedAgg) Advance(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	a.batch = append(a.batch, v.Clone())
	if len(a.batch) < userDefinedBatchSize {
		return nil
	}
	batch := a.batch
	a.batch = nil
	return a.host.Advance(batch)
}

func (a *userDefinedAgg) Finalize(resultType value.Type) (value.Value, error) {
	if len(a.batch) > 0 {
		if err := a.host.Advance(a.batch); err != nil {
			return value.Value{}, err
		}
		a.batch = nil
	}
	var result value.Value
	var err error
	if a.isCoordinator {
		result, err = a.host.Coordinator()
	} else {
		result, err = a.host.Worker()
	}
	if err != nil {
		return value.Value{}, err
	}
	return result.CastAs(resultType)
}
