// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package elastic implements the elastic index build/read/clear streaming
// contexts (spec.md §4.4/§4.5), grounded on
// original_source/src/ee/storage/ElasticContext.cpp, ElasticScanner.cpp and
// ElasticIndexReadContext.cpp.
package elastic

import (
	"sort"

	"github.com/tesseradb/tessera/internal/value"
)

// Index is the in-memory (hash, tupleAddress) set spec.md §3 describes:
// iterable in hash order, supporting half-open range queries. A sorted
// slice plus an address->hash side map keeps both Insert/Remove-by-address
// and ordered range scans simple; see DESIGN.md for why this uses a plain
// sorted slice rather than a third-party ordered-map/btree package.
type Index struct {
	entries  []hashEntry // kept sorted by hash ascending
	byAddr   map[value.Address]int64
	complete bool
}

type hashEntry struct {
	hash int64
	addr value.Address
}

// NewIndex returns an empty elastic index.
func NewIndex() *Index {
	return &Index{byAddr: make(map[value.Address]int64)}
}

// Len returns the number of indexed entries.
func (x *Index) Len() int { return len(x.entries) }

// Empty reports whether the index holds no keys.
func (x *Index) Empty() bool { return len(x.entries) == 0 }

// Complete reports whether the build scan has finished.
func (x *Index) Complete() bool { return x.complete }

// MarkComplete records that the build scan has finished.
func (x *Index) MarkComplete() { x.complete = true }

// Contains reports whether addr is currently indexed.
func (x *Index) Contains(addr value.Address) bool {
	_, ok := x.byAddr[addr]
	return ok
}

func (x *Index) searchFrom(hash int64) int {
	return sort.Search(len(x.entries), func(i int) bool { return x.entries[i].hash >= hash })
}

// Insert adds (hash, addr) if addr is not already indexed.
func (x *Index) Insert(hash int64, addr value.Address) {
	if _, exists := x.byAddr[addr]; exists {
		return
	}
	i := x.searchFrom(hash)
	x.entries = append(x.entries, hashEntry{})
	copy(x.entries[i+1:], x.entries[i:])
	x.entries[i] = hashEntry{hash: hash, addr: addr}
	x.byAddr[addr] = hash
}

// Remove deletes addr's entry, if indexed.
func (x *Index) Remove(addr value.Address) {
	hash, ok := x.byAddr[addr]
	if !ok {
		return
	}
	delete(x.byAddr, addr)
	for i := x.searchFrom(hash); i < len(x.entries) && x.entries[i].hash == hash; i++ {
		if x.entries[i].addr == addr {
			x.entries = append(x.entries[:i], x.entries[i+1:]...)
			return
		}
	}
}

// Move rewrites addr oldAddr to newAddr, preserving its hash key.
func (x *Index) Move(oldAddr, newAddr value.Address) {
	hash, ok := x.byAddr[oldAddr]
	if !ok {
		return
	}
	x.Remove(oldAddr)
	x.Insert(hash, newAddr)
}

// Range returns every indexed address whose hash lies in [lo, hi).
func (x *Index) Range(lo, hi int64) []value.Address {
	start := x.searchFrom(lo)
	var out []value.Address
	for i := start; i < len(x.entries) && x.entries[i].hash < hi; i++ {
		out = append(out, x.entries[i].addr)
	}
	return out
}
