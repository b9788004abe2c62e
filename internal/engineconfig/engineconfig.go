// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

// Package engineconfig holds the engine's configurable tunables (SPEC_FULL.md
// §6), bindable from the host process's environment via viper, following
// the teacher's convention of config structs with bound defaults (seen
// across the teacher's satellite config fixtures).
package engineconfig

import "github.com/spf13/viper"

// Tunables are the engine's configurable numeric thresholds. Every field
// has a spec-mandated default (spec.md §4.3/§4.4/§4.7.4) that the host may
// override through LoadFromViper. Within this module only
// ProgressReportEvery is read (by cmd/tesseractl); the snapshot, elastic and
// HLL code use their own parameters and constants with the same defaults.
type Tunables struct {
	// SnapshotByteThreshold is the per-partition serialized byte budget
	// before a COW streamMore call yields (spec.md §4.3, default 512KiB).
	SnapshotByteThreshold int64

	// ElasticTuplesPerCall bounds how many qualifying keys an elastic index
	// build inserts per streamMore invocation (spec.md §4.4, default 10000).
	ElasticTuplesPerCall int

	// HLLRegisterWidth is the HyperLogLog register index width in bits
	// (spec.md §4.7.4, default 16). The agg package does not read it; its
	// sketches always use agg.DefaultRegisterWidth.
	HLLRegisterWidth uint8

	// ProgressReportEvery is how many tuples the progress monitor counts
	// down between host callbacks (spec.md §4.9, default 10000).
	ProgressReportEvery int64
}

// Defaults returns the spec-mandated default tunables.
func Defaults() Tunables {
	return Tunables{
		SnapshotByteThreshold: 512 * 1024,
		ElasticTuplesPerCall:  10000,
		HLLRegisterWidth:      16,
		ProgressReportEvery:   10000,
	}
}

// LoadFromViper overlays any keys the host has set in v on top of the
// spec-mandated defaults. Unset keys keep their default. Recognized keys:
// "snapshot_byte_threshold", "elastic_tuples_per_call", "hll_register_width",
// "progress_report_every".
func LoadFromViper(v *viper.Viper) Tunables {
	t := Defaults()
	if v == nil {
		return t
	}
	if v.IsSet("snapshot_byte_threshold") {
		t.SnapshotByteThreshold = v.GetInt64("snapshot_byte_threshold")
	}
	if v.IsSet("elastic_tuples_per_call") {
		t.ElasticTuplesPerCall = v.GetInt("elastic_tuples_per_call")
	}
	if v.IsSet("hll_register_width") {
		t.HLLRegisterWidth = uint8(v.GetUint32("hll_register_width"))
	}
	if v.IsSet("progress_report_every") {
		t.ProgressReportEvery = v.GetInt64("progress_report_every")
	}
	return t
}
