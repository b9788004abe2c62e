// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package stream implements the streaming framework (spec.md §4.2):
// StreamPredicate(List), TableStreamer, and the stream-type coexistence
// policy that the snapshot/elastic/recovery contexts plug into.
package stream

import "github.com/tesseradb/tessera/internal/value"

// Expr is a compiled boolean predicate over a tuple. Expression compilation
// itself is excluded from the core (spec.md §1: "SQL compiler... excluded");
// the streaming framework only needs something it can call.
type Expr func(value.TableTuple) (bool, error)

// HashRange is a half-open partition-column hash range [Lo, Hi), no
// wrap-around (spec.md §3's ElasticIndex range-query semantics and §6's
// "LO:HI" elastic-index-read predicate blob).
type HashRange struct {
	Lo, Hi int64
}

// Contains reports whether h falls in [r.Lo, r.Hi).
func (r HashRange) Contains(h int64) bool { return h >= r.Lo && h < r.Hi }

// StreamPredicate pairs a compiled expression with a delete-if-true flag
// and an optional hash-range form (spec.md §3). A predicate with a non-nil
// HashRange is evaluated against a precomputed partition-column hash
// instead of calling Expr.
type StreamPredicate struct {
	Expr         Expr
	DeleteIfTrue bool
	HashRange    *HashRange
}

// Matches evaluates the predicate against tuple t, using partitionHash as
// the tuple's partition-column hash when the predicate is a hash-range
// form.
func (p StreamPredicate) Matches(t value.TableTuple, partitionHash int64) (bool, error) {
	if p.HashRange != nil {
		return p.HashRange.Contains(partitionHash), nil
	}
	if p.Expr == nil {
		return true, nil
	}
	return p.Expr(t)
}

// StreamPredicateList is an ordered list of predicates, one per output
// stream a context writes to.
type StreamPredicateList struct {
	Predicates []StreamPredicate
}

// NewStreamPredicateList wraps predicates as a list.
func NewStreamPredicateList(predicates ...StreamPredicate) *StreamPredicateList {
	return &StreamPredicateList{Predicates: append([]StreamPredicate(nil), predicates...)}
}

// Len returns the number of predicates (== number of output streams).
func (l *StreamPredicateList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Predicates)
}

// EvaluateEach runs every predicate against t, returning one bool per
// predicate plus whether any fired predicate carries DeleteIfTrue.
func (l *StreamPredicateList) EvaluateEach(t value.TableTuple, partitionHash int64) (matched []bool, deleteIfTrue bool, err error) {
	if l == nil {
		return nil, false, nil
	}
	matched = make([]bool, len(l.Predicates))
	for i, p := range l.Predicates {
		ok, err := p.Matches(t, partitionHash)
		if err != nil {
			return nil, false, err
		}
		matched[i] = ok
		if ok && p.DeleteIfTrue {
			deleteIfTrue = true
		}
	}
	return matched, deleteIfTrue, nil
}

// CoveredBy reports whether every hash range in l is fully contained in
// some range of other, per spec.md §4.4's updatePredicates contract: "every
// range in new is fully covered by the existing predicate's ranges".
// Non-hash-range predicates are ignored (the elastic build context only
// ever carries hash-range predicates).
func (l *StreamPredicateList) CoveredBy(other *StreamPredicateList) bool {
	if l == nil {
		return true
	}
	for _, p := range l.Predicates {
		if p.HashRange == nil {
			continue
		}
		if !rangeCoveredByAny(*p.HashRange, other) {
			return false
		}
	}
	return true
}

func rangeCoveredByAny(r HashRange, list *StreamPredicateList) bool {
	if list == nil {
		return false
	}
	for _, p := range list.Predicates {
		if p.HashRange == nil {
			continue
		}
		if r.Lo >= p.HashRange.Lo && r.Hi <= p.HashRange.Hi {
			return true
		}
	}
	return false
}
