// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package elastic

import (
	"github.com/tesseradb/tessera/internal/stream"
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// ClearContext is the one-shot ELASTIC_INDEX_CLEAR stream (spec.md §4.2):
// it refuses to activate while the index still contains keys, and on its
// single StreamMore call drops the index via drop.
type ClearContext struct {
	idx  *Index
	drop func()
	done bool
}

// NewClearContext builds a clear context over idx. drop is invoked once,
// from StreamMore, to release the build index from its owning table.
func NewClearContext(idx *Index, drop func()) *ClearContext {
	return &ClearContext{idx: idx, drop: drop}
}

// Type implements stream.Context.
func (c *ClearContext) Type() stream.Type { return stream.ElasticIndexClear }

// TryReactivate implements stream.Context: clears are one-shot and never
// merge with a running clear.
func (c *ClearContext) TryReactivate(*stream.StreamPredicateList) tesserr.ActivationCode {
	return tesserr.Failed
}

// StreamMore implements stream.Context: drops the index on the first call
// and completes immediately.
func (c *ClearContext) StreamMore([]stream.OutputSink) (remaining int64, done bool, err error) {
	if !c.done {
		c.drop()
		c.done = true
	}
	return 0, true, nil
}

// OnInsert implements stream.Context.
func (c *ClearContext) OnInsert(value.TableTuple) {}

// OnUpdate implements stream.Context.
func (c *ClearContext) OnUpdate(value.TableTuple) {}

// OnDelete implements stream.Context.
func (c *ClearContext) OnDelete(value.TableTuple) bool { return true }

// OnTupleMoved implements stream.Context.
func (c *ClearContext) OnTupleMoved(value.Address, value.Address, value.TableTuple) {}

// OnBlockCompactedAway implements stream.Context.
func (c *ClearContext) OnBlockCompactedAway(value.BlockID) {}
