// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package exec

import (
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

// InlineConsumer receives a scan's output rows directly instead of having
// them materialized into a temp table, implementing spec.md §4.7.1's inline
// executor pattern (PartialAggregate/Aggregate/HashAggregate/Insert folded
// into the driving scan).
type InlineConsumer interface {
	Consume(row []value.Value) error
	Finish() error
}

// aggregatorLike is satisfied by internal/agg's SerialAggregator,
// HashAggregator and PartialAggregator without importing package agg from
// this narrow adapter's signature.
type aggregatorLike interface {
	Advance(row []value.Value) error
	Finish() error
}

// AggregateConsumer adapts any of internal/agg's three aggregator drivers
// to InlineConsumer, so a scan executor can feed them directly.
type AggregateConsumer struct {
	agg aggregatorLike
}

// NewAggregateConsumer wraps agg as an InlineConsumer.
func NewAggregateConsumer(agg aggregatorLike) *AggregateConsumer {
	return &AggregateConsumer{agg: agg}
}

// Consume implements InlineConsumer.
func (c *AggregateConsumer) Consume(row []value.Value) error { return c.agg.Advance(row) }

// Finish implements InlineConsumer.
func (c *AggregateConsumer) Finish() error { return c.agg.Finish() }

// InsertConsumer folds an INSERT INTO ... SELECT directly into the driving
// scan, writing each row straight into Table rather than staging it in a
// temp table first.
type InsertConsumer struct {
	Table    *table.PersistentTable
	Inserted int64
}

// Consume implements InlineConsumer.
func (c *InsertConsumer) Consume(row []value.Value) error {
	if _, err := c.Table.Insert(row); err != nil {
		return err
	}
	c.Inserted++
	return nil
}

// Finish implements InlineConsumer.
func (c *InsertConsumer) Finish() error { return nil }
