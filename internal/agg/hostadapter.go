// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg

import (
	"github.com/tesseradb/tessera/internal/exec"
	"github.com/tesseradb/tessera/internal/value"
)

// hostUDAF adapts an exec.HostCallbacks bridge, bound to one started UDAF
// handle, into the narrower UserDefinedHost contract a userDefinedAgg
// drives. This is the only place USER_AGGREGATE_ID (decoded by
// internal/planpb) and the engine's HostCallbacks bridge actually meet: the
// aggregator itself only ever sees the batching/finalize contract above.
type hostUDAF struct {
	host   exec.HostCallbacks
	handle int64
}

// NewHostUDAF starts udafID against host and returns a UserDefinedHost bound
// to the resulting handle, ready to splice into NewUserDefinedAgg.
func NewHostUDAF(host exec.HostCallbacks, udafID int32) (UserDefinedHost, error) {
	handle, err := host.UDAFStart(udafID)
	if err != nil {
		return nil, err
	}
	return &hostUDAF{host: host, handle: handle}, nil
}

func (h *hostUDAF) Advance(batch []value.Value) error {
	return h.host.UDAFAssemble(h.handle, batch)
}

func (h *hostUDAF) Worker() (value.Value, error) {
	return h.host.UDAFWorkerEnd(h.handle)
}

func (h *hostUDAF) Coordinator() (value.Value, error) {
	return h.host.UDAFCoordinatorEnd(h.handle)
}
