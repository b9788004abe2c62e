// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package agg implements serial, hash and partial aggregation plus the
// built-in Aggregator kinds (spec.md §4.7.4), grounded on
// original_source/src/ee/executors/aggregateexecutor.{h,cpp} and
// original_source/src/ee/plannodes/aggregatenode.{h,cpp}.
package agg

// Kind names one of the aggregate functions an AggregateRow's Aggregator
// slots can compute (spec.md §4.7.4's kind table).
type Kind int

const (
	Count Kind = iota
	CountStar
	Sum
	Avg
	Min
	Max
	ApproxCountDistinct
	ValsToHyperLogLog
	HyperLogLogsToCard
	UserDefined
)

func (k Kind) String() string {
	switch k {
	case Count:
		return "COUNT"
	case CountStar:
		return "COUNT(*)"
	case Sum:
		return "SUM"
	case Avg:
		return "AVG"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	case ApproxCountDistinct:
		return "APPROX_COUNT_DISTINCT"
	case ValsToHyperLogLog:
		return "VALS_TO_HYPERLOGLOG"
	case HyperLogLogsToCard:
		return "HYPERLOGLOGS_TO_CARD"
	case UserDefined:
		return "USER_DEFINED"
	default:
		return "UNKNOWN"
	}
}
