// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package elastic

import (
	"github.com/tesseradb/tessera/internal/stream"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// DefaultTuplesPerCall bounds how many qualifying keys a build context
// inserts per StreamMore invocation (spec.md §4.4, default 10000).
const DefaultTuplesPerCall = 10000

// BuildContext builds an in-memory (hash, tupleAddress) index over rows
// whose partition-column hash lies within predicates' hash ranges (spec.md
// §4.4).
type BuildContext struct {
	tbl           *table.PersistentTable
	predicates    *stream.StreamPredicateList
	idx           *Index
	scanner       *Scanner
	tuplesPerCall int
}

// NewBuildContext constructs a fresh build context over tbl.
func NewBuildContext(tbl *table.PersistentTable, predicates *stream.StreamPredicateList, tuplesPerCall int) *BuildContext {
	if tuplesPerCall <= 0 {
		tuplesPerCall = DefaultTuplesPerCall
	}
	return &BuildContext{
		tbl:           tbl,
		predicates:    predicates,
		idx:           NewIndex(),
		scanner:       NewScanner(tbl),
		tuplesPerCall: tuplesPerCall,
	}
}

// Type implements stream.Context.
func (c *BuildContext) Type() stream.Type { return stream.ElasticIndexBuild }

// Index returns the index under construction, for a read context to query.
func (c *BuildContext) Index() *Index { return c.idx }

// Complete implements the completionAware contract TableStreamer checks.
func (c *BuildContext) Complete() bool { return c.idx.Complete() }

// Empty implements the completionAware contract.
func (c *BuildContext) Empty() bool { return c.idx.Empty() }

// TryReactivate implements stream.Context, per spec.md §4.4's
// updatePredicates: re-activation succeeds only if every range in the new
// predicate list is already covered by the existing one (idempotent
// reactivation); otherwise the whole activation fails.
func (c *BuildContext) TryReactivate(newPredicates *stream.StreamPredicateList) tesserr.ActivationCode {
	if newPredicates.CoveredBy(c.predicates) {
		return tesserr.Succeeded
	}
	return tesserr.Failed
}

// partitionHash folds the partition column's hash to a signed 32-bit value,
// the domain of an ELASTIC_INDEX_READ range (see ParseActivationBlob).
func partitionHash(tbl *table.PersistentTable, t value.TableTuple) int64 {
	col := tbl.PartitionColumn()
	if col < 0 {
		return 0
	}
	return int64(int32(t.Column(col).Hash()))
}

func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}
	return false
}

// StreamMore implements stream.Context: inserts up to tuplesPerCall
// qualifying keys per call, reporting 1 while more scanning remains and 0
// once the scan completes (spec.md §4.4).
func (c *BuildContext) StreamMore(_ []stream.OutputSink) (remaining int64, done bool, err error) {
	inserted := 0
	for inserted < c.tuplesPerCall {
		tup, ok := c.scanner.Next()
		if !ok {
			c.idx.MarkComplete()
			return 0, true, nil
		}
		h := partitionHash(c.tbl, tup)
		matched, _, evalErr := c.predicates.EvaluateEach(tup, h)
		if evalErr != nil {
			return 0, false, evalErr
		}
		if anyTrue(matched) {
			c.idx.Insert(h, tup.Addr)
			inserted++
		}
	}
	return 1, false, nil
}

// OnInsert implements stream.Context.
func (c *BuildContext) OnInsert(t value.TableTuple) {
	h := partitionHash(c.tbl, t)
	matched, _, err := c.predicates.EvaluateEach(t, h)
	if err == nil && anyTrue(matched) {
		c.idx.Insert(h, t.Addr)
	}
}

// OnUpdate implements stream.Context: a no-op, since an update never
// changes a tuple's address and the partition column is immutable under
// elastic rebalancing (spec.md §4.4).
func (c *BuildContext) OnUpdate(value.TableTuple) {}

// OnDelete implements stream.Context.
func (c *BuildContext) OnDelete(t value.TableTuple) bool {
	c.idx.Remove(t.Addr)
	return true
}

// OnTupleMoved implements stream.Context.
func (c *BuildContext) OnTupleMoved(src, dst value.Address, t value.TableTuple) {
	if !c.idx.Contains(src) {
		return
	}
	c.idx.Remove(src)
	h := partitionHash(c.tbl, t)
	matched, _, err := c.predicates.EvaluateEach(t, h)
	if err == nil && anyTrue(matched) {
		c.idx.Insert(h, dst)
	}
}

// OnBlockCompactedAway implements stream.Context: a no-op, since the index
// keys on tuple address, not block identity, and address rewrites are
// already handled by OnTupleMoved.
func (c *BuildContext) OnBlockCompactedAway(value.BlockID) {}
