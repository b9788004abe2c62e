// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package agg_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/agg"
	"github.com/tesseradb/tessera/internal/exec"
	"github.com/tesseradb/tessera/internal/value"
)

type fakeHost struct {
	started  int32
	batches  [][]value.Value
	workerCalled, coordCalled bool
}

func (f *fakeHost) ReportProgress(int64) {}

func (f *fakeHost) UDAFStart(udafID int32) (int64, error) {
	f.started = udafID
	return 99, nil
}

func (f *fakeHost) UDAFAssemble(handle int64, args []value.Value) error {
	f.batches = append(f.batches, args)
	return nil
}

func (f *fakeHost) UDAFCombine(dst, src int64) error { return nil }

func (f *fakeHost) UDAFWorkerEnd(handle int64) (value.Value, error) {
	f.workerCalled = true
	return value.NewBigInt(handle), nil
}

func (f *fakeHost) UDAFCoordinatorEnd(handle int64) (value.Value, error) {
	f.coordCalled = true
	return value.NewBigInt(handle * 2), nil
}

var _ exec.HostCallbacks = (*fakeHost)(nil)

func TestHostUDAFDrivesHostCallbacksThroughUserDefinedHost(t *testing.T) {
	h := &fakeHost{}
	ud, err := agg.NewHostUDAF(h, 7)
	require.NoError(t, err)
	require.EqualValues(t, 7, h.started)

	require.NoError(t, ud.Advance([]value.Value{value.NewBigInt(1)}))
	require.Len(t, h.batches, 1)

	v, err := ud.Worker()
	require.NoError(t, err)
	require.True(t, h.workerCalled)
	got, _ := v.Int64()
	require.Equal(t, int64(99), got)
}

func TestHostUDAFCoordinatorEnd(t *testing.T) {
	h := &fakeHost{}
	ud, err := agg.NewHostUDAF(h, 3)
	require.NoError(t, err)

	v, err := ud.Coordinator()
	require.NoError(t, err)
	require.True(t, h.coordCalled)
	got, _ := v.Int64()
	require.Equal(t, int64(198), got)
}
