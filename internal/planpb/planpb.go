// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package planpb decodes the JSON plan-node document tree that the
// catalog/planner/SQL-compiler layer hands to the engine as a fragment
// (spec.md §1: that layer is an excluded external collaborator; only its
// wire contract is in scope here — spec.md §6). This package only turns
// JSON into typed, inert data: PLAN_NODE_TYPE, CHILDREN_IDS, OUTPUT_SCHEMA,
// INLINE_NODES, and each node type's own fields (SEARCH_KEY_EXPRESSIONS,
// SORT_DIRECTIONS, AGGREGATE_COLUMNS, and so on). Expression compilation —
// turning a PRE_PREDICATE or SEARCH_KEY_EXPRESSIONS string into a callable
// internal/exec.Predicate — stays out of core per the same exclusion; a
// host-side compiler is expected to populate internal/exec executors
// directly, using a decoded Node only as a data source for its literal
// fields (offsets, limits, lookup/join/sort enums, column indexes).
package planpb

import (
	"encoding/json"

	"github.com/zeebo/errs"

	"github.com/tesseradb/tessera/internal/table"
	"github.com/tesseradb/tessera/internal/value"
)

// ErrDecode classes a malformed plan document: missing required field,
// unknown enum string, or schema column that doesn't parse.
var ErrDecode = errs.Class("planpb decode")

// NodeType enumerates PLAN_NODE_TYPE, the spec's closed set of executors
// (spec.md §4.7).
type NodeType string

const (
	SeqScan           NodeType = "SEQSCAN"
	IndexScan         NodeType = "INDEXSCAN"
	NestedLoopIndex   NodeType = "NESTLOOPINDEX"
	OrderBy           NodeType = "ORDERBY"
	Limit             NodeType = "LIMIT"
	MergeReceive      NodeType = "MERGERECEIVE"
	CommonTable       NodeType = "COMMONTABLE"
	Aggregate         NodeType = "AGGREGATE"
	HashAggregate     NodeType = "HASHAGGREGATE"
	PartialAggregate  NodeType = "PARTIALAGGREGATE"
	Projection        NodeType = "PROJECTION"
	Insert            NodeType = "INSERT"
)

// Document is the top-level decoded JSON plan-node tree: a flat list of
// Nodes keyed by id, mirroring the wire document's id/CHILDREN_IDS graph
// rather than an already-linked tree, so a caller can resolve children in
// whatever order it builds executors.
type Document struct {
	Nodes map[int]*Node
	Root  int
}

// Node is one decoded plan-node document entry. Fields absent from the
// JSON for a given node's type are left at their zero value; which fields
// apply is determined by Type, per spec.md §6's per-node-type field lists.
type Node struct {
	ID           int
	Type         NodeType
	ChildrenIDs  []int
	OutputSchema *value.TupleSchema
	InlineNodes  []*Node

	// Aggregate / HashAggregate / PartialAggregate
	AggregateColumns     []AggregateColumn
	GroupByExpressions   []json.RawMessage
	PartialGroupByCols   []int
	PrePredicate         json.RawMessage
	PostPredicate        json.RawMessage

	// OrderBy
	SortExpressions []json.RawMessage
	SortDirections  []SortDirection

	// Limit
	LimitValue     int64
	OffsetValue    int64
	LimitParamIdx  int
	OffsetParamIdx int
	LimitExpr      json.RawMessage

	// NestedLoopIndex / other joins
	JoinType          JoinType
	PreJoinPredicate  json.RawMessage
	JoinPredicate     json.RawMessage
	WherePredicate    json.RawMessage

	// IndexScan
	TargetIndexName          string
	LookupType               table.LookupType
	SortDirection             SortDirection
	SearchKeyExpressions      []json.RawMessage
	CompareNotDistinctFlags   []bool
	EndExpression             json.RawMessage
	InitialExpression         json.RawMessage
	SkipNullPredicate         json.RawMessage
	HasOffsetRankOptimization bool
}

// AggregateColumn decodes one entry of AGGREGATE_COLUMNS[].
type AggregateColumn struct {
	AggregateType     string
	Distinct          bool
	OutputColumn      int
	Expression        json.RawMessage
	UserAggregateID   int32
	HasUserAggregate  bool
	IsWorker          bool
	IsPartition       bool
}

// SortDirection decodes a SORT_DIRECTIONS entry / index-scan SORT_DIRECTION.
type SortDirection int

const (
	Invalid SortDirection = iota
	Ascending
	Descending
)

// JoinType decodes JOIN_TYPE.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	FullJoin
)

// wireNode is the raw JSON shape; Decode copies its fields into Node after
// translating enum strings.
type wireNode struct {
	ID           int               `json:"ID"`
	PlanNodeType string            `json:"PLAN_NODE_TYPE"`
	ChildrenIDs  []int             `json:"CHILDREN_IDS"`
	OutputSchema []wireColumn      `json:"OUTPUT_SCHEMA"`
	InlineNodes  []json.RawMessage `json:"INLINE_NODES"`

	AggregateColumns   []wireAggregateColumn `json:"AGGREGATE_COLUMNS"`
	GroupByExpressions []json.RawMessage     `json:"GROUPBY_EXPRESSIONS"`
	PartialGroupByCols []int                 `json:"PARTIAL_GROUPBY_COLUMNS"`
	PrePredicate       json.RawMessage       `json:"PRE_PREDICATE"`
	PostPredicate      json.RawMessage       `json:"POST_PREDICATE"`

	SortExpressions []json.RawMessage `json:"SORT_EXPRESSIONS"`
	SortDirections  []string          `json:"SORT_DIRECTIONS"`

	Limit          *int64          `json:"LIMIT"`
	Offset         *int64          `json:"OFFSET"`
	LimitParamIdx  int             `json:"LIMIT_PARAM_IDX"`
	OffsetParamIdx int             `json:"OFFSET_PARAM_IDX"`
	LimitExpr      json.RawMessage `json:"LIMIT_EXPRESSION"`

	JoinTypeStr      string          `json:"JOIN_TYPE"`
	PreJoinPredicate json.RawMessage `json:"PRE_JOIN_PREDICATE"`
	JoinPredicate    json.RawMessage `json:"JOIN_PREDICATE"`
	WherePredicate   json.RawMessage `json:"WHERE_PREDICATE"`

	TargetIndexName           string            `json:"TARGET_INDEX_NAME"`
	LookupTypeStr             string            `json:"LOOKUP_TYPE"`
	SortDirectionStr          string            `json:"SORT_DIRECTION"`
	SearchKeyExpressions      []json.RawMessage `json:"SEARCH_KEY_EXPRESSIONS"`
	CompareNotDistinctFlags   []bool            `json:"COMPARE_NOT_DISTINCT_FLAGS"`
	EndExpression             json.RawMessage   `json:"END_EXPRESSION"`
	InitialExpression         json.RawMessage   `json:"INITIAL_EXPRESSION"`
	SkipNullPredicate         json.RawMessage   `json:"SKIP_NULL_PREDICATE"`
	HasOffsetRankOptimization bool              `json:"HAS_OFFSET_RANK_OPTIMIZATION"`
}

type wireColumn struct {
	Type     string `json:"TYPE"`
	Size     int    `json:"SIZE"`
	Nullable bool   `json:"NULLABLE"`
	InBytes  bool   `json:"IN_BYTES"`
}

type wireAggregateColumn struct {
	AggregateType    string          `json:"AGGREGATE_TYPE"`
	Distinct         bool            `json:"AGGREGATE_DISTINCT"`
	OutputColumn     int             `json:"AGGREGATE_OUTPUT_COLUMN"`
	Expression       json.RawMessage `json:"AGGREGATE_EXPRESSION"`
	UserAggregateID  *int32          `json:"USER_AGGREGATE_ID"`
	IsWorker         bool            `json:"IS_WORKER"`
	IsPartition      bool            `json:"IS_PARTITION"`
}

// Decode parses a single plan-node JSON document (one node, with nested
// INLINE_NODES) into a Node tree. The top-level CHILDREN_IDS graph across
// multiple sibling documents is assembled by DecodeDocument.
func Decode(raw []byte) (*Node, error) {
	var w wireNode
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, ErrDecode.Wrap(err)
	}
	return decodeWire(&w)
}

func decodeWire(w *wireNode) (*Node, error) {
	if w.PlanNodeType == "" {
		return nil, ErrDecode.New("missing PLAN_NODE_TYPE")
	}
	n := &Node{
		ID:                        w.ID,
		Type:                      NodeType(w.PlanNodeType),
		ChildrenIDs:               w.ChildrenIDs,
		GroupByExpressions:        w.GroupByExpressions,
		PartialGroupByCols:        w.PartialGroupByCols,
		PrePredicate:              w.PrePredicate,
		PostPredicate:             w.PostPredicate,
		SortExpressions:           w.SortExpressions,
		LimitParamIdx:             w.LimitParamIdx,
		OffsetParamIdx:            w.OffsetParamIdx,
		LimitExpr:                 w.LimitExpr,
		PreJoinPredicate:          w.PreJoinPredicate,
		JoinPredicate:             w.JoinPredicate,
		WherePredicate:            w.WherePredicate,
		TargetIndexName:           w.TargetIndexName,
		SearchKeyExpressions:      w.SearchKeyExpressions,
		CompareNotDistinctFlags:   w.CompareNotDistinctFlags,
		EndExpression:             w.EndExpression,
		InitialExpression:         w.InitialExpression,
		SkipNullPredicate:         w.SkipNullPredicate,
		HasOffsetRankOptimization: w.HasOffsetRankOptimization,
	}
	if w.Limit != nil {
		n.LimitValue = *w.Limit
	}
	if w.Offset != nil {
		n.OffsetValue = *w.Offset
	}

	schema, err := decodeSchema(w.OutputSchema)
	if err != nil {
		return nil, err
	}
	n.OutputSchema = schema

	for _, raw := range w.InlineNodes {
		var iw wireNode
		if err := json.Unmarshal(raw, &iw); err != nil {
			return nil, ErrDecode.Wrap(err)
		}
		inline, err := decodeWire(&iw)
		if err != nil {
			return nil, err
		}
		n.InlineNodes = append(n.InlineNodes, inline)
	}

	for _, ac := range w.AggregateColumns {
		col := AggregateColumn{
			AggregateType: ac.AggregateType,
			Distinct:      ac.Distinct,
			OutputColumn:  ac.OutputColumn,
			Expression:    ac.Expression,
			IsWorker:      ac.IsWorker,
			IsPartition:   ac.IsPartition,
		}
		if ac.UserAggregateID != nil {
			col.UserAggregateID = *ac.UserAggregateID
			col.HasUserAggregate = true
		}
		n.AggregateColumns = append(n.AggregateColumns, col)
	}

	for _, s := range w.SortDirections {
		d, err := parseSortDirection(s)
		if err != nil {
			return nil, err
		}
		n.SortDirections = append(n.SortDirections, d)
	}

	if w.JoinTypeStr != "" {
		jt, err := parseJoinType(w.JoinTypeStr)
		if err != nil {
			return nil, err
		}
		n.JoinType = jt
	}
	if w.LookupTypeStr != "" {
		lt, err := parseLookupType(w.LookupTypeStr)
		if err != nil {
			return nil, err
		}
		n.LookupType = lt
	}
	if w.SortDirectionStr != "" {
		d, err := parseSortDirection(w.SortDirectionStr)
		if err != nil {
			return nil, err
		}
		n.SortDirection = d
	}

	return n, nil
}

func decodeSchema(cols []wireColumn) (*value.TupleSchema, error) {
	if cols == nil {
		return nil, nil
	}
	out := make([]value.ColumnSchema, len(cols))
	for i, c := range cols {
		t, err := parseValueType(c.Type)
		if err != nil {
			return nil, err
		}
		out[i] = value.ColumnSchema{Type: t, Size: c.Size, Nullable: c.Nullable, InBytes: c.InBytes}
	}
	return value.NewTupleSchema(out...), nil
}

func parseValueType(s string) (value.Type, error) {
	switch s {
	case "TINYINT":
		return value.TinyInt, nil
	case "SMALLINT":
		return value.SmallInt, nil
	case "INTEGER":
		return value.Integer, nil
	case "BIGINT":
		return value.BigInt, nil
	case "DOUBLE":
		return value.Double, nil
	case "DECIMAL":
		return value.Decimal, nil
	case "VARCHAR":
		return value.Varchar, nil
	case "VARBINARY":
		return value.Varbinary, nil
	case "TIMESTAMP":
		return value.Timestamp, nil
	case "BOOLEAN":
		return value.Boolean, nil
	case "POINT":
		return value.Point, nil
	case "GEOGRAPHY":
		return value.Geography, nil
	default:
		return 0, ErrDecode.New("unknown column type %q", s)
	}
}

func parseSortDirection(s string) (SortDirection, error) {
	switch s {
	case "ASC":
		return Ascending, nil
	case "DESC":
		return Descending, nil
	case "INVALID", "":
		return Invalid, nil
	default:
		return 0, ErrDecode.New("unknown sort direction %q", s)
	}
}

func parseJoinType(s string) (JoinType, error) {
	switch s {
	case "INNER":
		return InnerJoin, nil
	case "LEFT":
		return LeftJoin, nil
	case "FULL":
		return FullJoin, nil
	default:
		return 0, ErrDecode.New("unknown join type %q", s)
	}
}

func parseLookupType(s string) (table.LookupType, error) {
	switch s {
	case "EQ", "GEO_CONTAINS":
		return table.MoveToKey, nil
	case "GT":
		return table.MoveToGreaterThanKey, nil
	case "GTE":
		return table.MoveToKeyOrGreater, nil
	case "LT":
		return table.MoveToLessThanKey, nil
	case "LTE":
		return table.MoveToKeyOrLess, nil
	case "GEO_COVERING_CELL":
		return table.MoveToCoveringCell, nil
	case "END":
		return table.MoveToEnd, nil
	default:
		return 0, ErrDecode.New("unknown lookup type %q", s)
	}
}

// DecodeDocument parses a list of sibling plan-node JSON documents (as a
// fragment's planner typically ships one object per node rather than one
// nested tree) into a Document keyed by node id, with root set to the id
// that no other node's ChildrenIDs references.
func DecodeDocument(rawNodes []json.RawMessage) (*Document, error) {
	doc := &Document{Nodes: make(map[int]*Node, len(rawNodes))}
	referenced := make(map[int]bool)
	for _, raw := range rawNodes {
		n, err := Decode(raw)
		if err != nil {
			return nil, err
		}
		doc.Nodes[n.ID] = n
		for _, c := range n.ChildrenIDs {
			referenced[c] = true
		}
	}
	for id := range doc.Nodes {
		if !referenced[id] {
			doc.Root = id
			break
		}
	}
	return doc, nil
}
