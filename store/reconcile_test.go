// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stampedWorkbook(t *testing.T, version string) *sheetops.Workbook {
	t.Helper()
	wb := sheetops.NewWorkbook()
	_, err := sheetops.Apply(wb, []sheetops.Operation{
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "A1", Formula: "=1"},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "A2", Formula: "=2"},
	})
	require.NoError(t, err)
	if version != "" {
		for _, c := range wb.Sheets[0].Cells {
			c.Computed = &sheetops.Computed{Value: 1.0, Type: sheetops.ValueTypeNumber, EngineVersion: version}
		}
	}
	return wb
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	for i := range 20 {
		version := "v2"
		if i%5 == 0 {
			version = "v1"
		}
		require.NoError(t, s.Create(ctx, fmt.Sprintf("wb%02d", i), stampedWorkbook(t, version)))
	}
	require.NoError(t, s.Create(ctx, "uncomputed", stampedWorkbook(t, "")))

	reports, err := s.Reconcile(ctx, "v2", 3)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	assert.Equal(t, StaleReport{ID: "wb00", Version: 1, Cells: []string{"Sheet1!A1", "Sheet1!A2"}}, reports[0])
	assert.Equal(t, "wb15", reports[3].ID)

	reports, err = s.Reconcile(ctx, "v1", 0)
	require.NoError(t, err)
	assert.Len(t, reports, 16)

	// Reconcile only reports.
	wb, err := s.Get(ctx, "wb00")
	require.NoError(t, err)
	assert.Equal(t, "v1", wb.Sheets[0].Cells[sheetops.Address{Row: 1, Col: 1}].Computed.EngineVersion)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Reconcile(cancelled, "v2", 1)
	assert.ErrorIs(t, err, context.Canceled)
}
