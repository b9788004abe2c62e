// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package planpb_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/planpb"
	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

func TestDecodeSeqScanNode(t *testing.T) {
	raw := []byte(`{
		"ID": 1,
		"PLAN_NODE_TYPE": "SEQSCAN",
		"CHILDREN_IDS": [],
		"OUTPUT_SCHEMA": [
			{"TYPE": "BIGINT", "SIZE": 8, "NULLABLE": false, "IN_BYTES": true},
			{"TYPE": "VARCHAR", "SIZE": 256, "NULLABLE": true, "IN_BYTES": true}
		],
		"PRE_PREDICATE": {"op": "GT", "col": 0, "value": 10}
	}`)

	n, err := planpb.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, 1, n.ID)
	require.Equal(t, planpb.SeqScan, n.Type)
	require.Equal(t, 2, n.OutputSchema.ColumnCount())
	require.Equal(t, value.BigInt, n.OutputSchema.Columns[0].Type)
	require.Equal(t, value.Varchar, n.OutputSchema.Columns[1].Type)
	require.True(t, n.OutputSchema.Columns[1].Nullable)
	require.NotEmpty(t, n.PrePredicate)
}

func TestDecodeIndexScanNodeLookupTypeAndSortDirection(t *testing.T) {
	raw := []byte(`{
		"ID": 2,
		"PLAN_NODE_TYPE": "INDEXSCAN",
		"TARGET_INDEX_NAME": "idx_foo",
		"LOOKUP_TYPE": "GTE",
		"SORT_DIRECTION": "DESC",
		"SEARCH_KEY_EXPRESSIONS": [{"value": 5}],
		"HAS_OFFSET_RANK_OPTIMIZATION": true
	}`)

	n, err := planpb.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "idx_foo", n.TargetIndexName)
	require.Equal(t, table.MoveToKeyOrGreater, n.LookupType)
	require.Equal(t, planpb.Descending, n.SortDirection)
	require.True(t, n.HasOffsetRankOptimization)
	require.Len(t, n.SearchKeyExpressions, 1)
}

func TestDecodeAggregateNodeWithInlineAndGroupBy(t *testing.T) {
	raw := []byte(`{
		"ID": 3,
		"PLAN_NODE_TYPE": "HASHAGGREGATE",
		"AGGREGATE_COLUMNS": [
			{"AGGREGATE_TYPE": "SUM", "AGGREGATE_DISTINCT": false, "AGGREGATE_OUTPUT_COLUMN": 1},
			{"AGGREGATE_TYPE": "USER", "AGGREGATE_OUTPUT_COLUMN": 2, "USER_AGGREGATE_ID": 7, "IS_WORKER": true}
		],
		"GROUPBY_EXPRESSIONS": [{"col": 0}],
		"INLINE_NODES": [
			{"ID": 4, "PLAN_NODE_TYPE": "INSERT", "CHILDREN_IDS": []}
		]
	}`)

	n, err := planpb.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, planpb.HashAggregate, n.Type)
	require.Len(t, n.AggregateColumns, 2)
	require.Equal(t, "SUM", n.AggregateColumns[0].AggregateType)
	require.True(t, n.AggregateColumns[1].HasUserAggregate)
	require.EqualValues(t, 7, n.AggregateColumns[1].UserAggregateID)
	require.Len(t, n.GroupByExpressions, 1)
	require.Len(t, n.InlineNodes, 1)
	require.Equal(t, planpb.Insert, n.InlineNodes[0].Type)
}

func TestDecodeJoinNodeType(t *testing.T) {
	raw := []byte(`{"ID": 5, "PLAN_NODE_TYPE": "NESTLOOPINDEX", "JOIN_TYPE": "FULL"}`)
	n, err := planpb.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, planpb.FullJoin, n.JoinType)
}

func TestDecodeRejectsMissingNodeType(t *testing.T) {
	_, err := planpb.Decode([]byte(`{"ID": 6}`))
	require.Error(t, err)
}

func TestDecodeRejectsUnknownColumnType(t *testing.T) {
	raw := []byte(`{"PLAN_NODE_TYPE": "SEQSCAN", "OUTPUT_SCHEMA": [{"TYPE": "NOT_A_TYPE"}]}`)
	_, err := planpb.Decode(raw)
	require.Error(t, err)
}

func TestDecodeDocumentFindsRootByChildrenReferences(t *testing.T) {
	nodes := []json.RawMessage{
		json.RawMessage(`{"ID": 1, "PLAN_NODE_TYPE": "LIMIT", "CHILDREN_IDS": [2]}`),
		json.RawMessage(`{"ID": 2, "PLAN_NODE_TYPE": "SEQSCAN", "CHILDREN_IDS": []}`),
	}
	doc, err := planpb.DecodeDocument(nodes)
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 2)
	require.Equal(t, 1, doc.Root)
}
