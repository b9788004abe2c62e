// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg

import (
	"math"
	"math/bits"

	"github.com/tesseradb/tessera/internal/tesserr"
	"github.com/tesseradb/tessera/internal/value"
)

// DefaultRegisterWidth is the register-count exponent APPROX_COUNT_DISTINCT
// uses (spec.md §4.7.4: "register width 16"). The aggregators in this
// package always build sketches of this width;
// engineconfig.Tunables.HLLRegisterWidth is not read here.
const DefaultRegisterWidth = 16

// hyperLogLog is a bespoke, wire-compatible HyperLogLog sketch: one byte of
// register width followed by one byte per register, holding the register's
// maximum observed rank (spec.md §4.7.4's ValsToHyperLogLog/
// HyperLogLogsToCard wire format).
type hyperLogLog struct {
	b         uint8
	registers []byte
}

func newHyperLogLog(b uint8) *hyperLogLog {
	return &hyperLogLog{b: b, registers: make([]byte, 1<<b)}
}

func (h *hyperLogLog) add(hash uint64) {
	idx := hash >> (64 - h.b)
	rest := hash<<h.b | (1<<h.b - 1)
	rank := uint8(bits.LeadingZeros64(rest)) + 1
	if rank > h.registers[idx] {
		h.registers[idx] = rank
	}
}

// estimate applies the standard HyperLogLog cardinality formula with small-
// and large-range bias corrections.
func (h *hyperLogLog) estimate() float64 {
	m := float64(len(h.registers))
	alpha := alphaFor(len(h.registers))

	sum := 0.0
	zeros := 0
	for _, r := range h.registers {
		sum += 1.0 / float64(uint64(1)<<r)
		if r == 0 {
			zeros++
		}
	}
	raw := alpha * m * m / sum

	switch {
	case raw <= 2.5*m && zeros > 0:
		return m * math.Log(m/float64(zeros))
	case raw <= math.Pow(2, 32)/30:
		return raw
	default:
		return -math.Pow(2, 32) * math.Log(1-raw/math.Pow(2, 32))
	}
}

func alphaFor(m int) float64 {
	switch m {
	case 16:
		return 0.673
	case 32:
		return 0.697
	case 64:
		return 0.709
	default:
		return 0.7213 / (1 + 1.079/float64(m))
	}
}

func (h *hyperLogLog) merge(other *hyperLogLog) error {
	if h.b != other.b {
		return tesserr.TypeMismatch.New("cannot merge HyperLogLog sketches of differing register width (%d vs %d)", h.b, other.b)
	}
	for i, r := range other.registers {
		if r > h.registers[i] {
			h.registers[i] = r
		}
	}
	return nil
}

func (h *hyperLogLog) serialize() []byte {
	out := make([]byte, 1+len(h.registers))
	out[0] = h.b
	copy(out[1:], h.registers)
	return out
}

func deserializeHyperLogLog(buf []byte) (*hyperLogLog, error) {
	if len(buf) < 1 {
		return nil, tesserr.SerializationError.New("empty HyperLogLog payload")
	}
	b := buf[0]
	want := 1 << b
	if len(buf)-1 != want {
		return nil, tesserr.SerializationError.New("HyperLogLog payload length %d does not match register width %d", len(buf), b)
	}
	h := newHyperLogLog(b)
	copy(h.registers, buf[1:])
	return h, nil
}

// approxCountDistinctAgg implements APPROX_COUNT_DISTINCT(e): feeds each
// value's hash into a HyperLogLog sketch and rounds the estimate to a
// BIGINT (spec.md §4.7.4). Rejects variable-length, POINT and DOUBLE
// inputs, for which Value.Hash's canonical encoding is either unstable
// across equal values (DOUBLE NaN/−0) or not meaningfully boundable.
type approxCountDistinctAgg struct {
	hll *hyperLogLog
}

func newApproxCountDistinctAgg() *approxCountDistinctAgg {
	return &approxCountDistinctAgg{hll: newHyperLogLog(DefaultRegisterWidth)}
}

func rejectForHLL(t value.Type) error {
	if t.IsVariableLength() || t == value.Point || t == value.Double {
		return tesserr.TypeMismatch.New("APPROX_COUNT_DISTINCT does not support %s inputs", t)
	}
	return nil
}

func (a *approxCountDistinctAgg) Advance(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if err := rejectForHLL(v.Type()); err != nil {
		return err
	}
	a.hll.add(v.Hash())
	return nil
}

func (a *approxCountDistinctAgg) Finalize(t value.Type) (value.Value, error) {
	return value.NewBigInt(int64(math.Round(a.hll.estimate()))).CastAs(t)
}

// valsToHLLAgg implements VALS_TO_HYPERLOGLOG(e): a worker-side
// pre-aggregation that serializes its sketch to VARBINARY instead of
// resolving a cardinality (spec.md §4.7.4).
type valsToHLLAgg struct {
	approxCountDistinctAgg
}

func newValsToHLLAgg() *valsToHLLAgg {
	return &valsToHLLAgg{approxCountDistinctAgg: *newApproxCountDistinctAgg()}
}

func (a *valsToHLLAgg) Finalize(value.Type) (value.Value, error) {
	return value.NewVarbinary(a.hll.serialize(), false), nil
}

// hllsToCardAgg implements HYPERLOGLOGS_TO_CARD(e): the coordinator-side
// reduce that merges serialized sketches and finalizes like
// APPROX_COUNT_DISTINCT (spec.md §4.7.4).
type hllsToCardAgg struct {
	merged *hyperLogLog
}

func newHLLsToCardAgg() *hllsToCardAgg { return &hllsToCardAgg{} }

func (a *hllsToCardAgg) Advance(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	other, err := deserializeHyperLogLog(v.Bytes())
	if err != nil {
		return err
	}
	if a.merged == nil {
		a.merged = other
		return nil
	}
	return a.merged.merge(other)
}

func (a *hllsToCardAgg) Finalize(t value.Type) (value.Value, error) {
	if a.merged == nil {
		return value.NewBigInt(0).CastAs(t)
	}
	return value.NewBigInt(int64(math.Round(a.merged.estimate()))).CastAs(t)
}
