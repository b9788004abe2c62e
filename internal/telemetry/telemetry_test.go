// Copyright (C) 2024 Tessera Labs, Inc.
// See LICENSE for copying information.

package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tesseradb/tessera/internal/telemetry"
)

func TestProgressMonitorReportsEveryBudget(t *testing.T) {
	var reports []int64
	pm := telemetry.NewProgressMonitor(10, func(n int64) {
		reports = append(reports, n)
	})

	pm.Advance(4)
	require.Empty(t, reports)

	pm.Advance(7)
	require.Equal(t, []int64{10}, reports)

	pm.Advance(25)
	require.Equal(t, []int64{10, 20, 30}, reports)

	pm.Close()
	require.Equal(t, []int64{10, 20, 30, 36}, reports)
}
