// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package duckdb

import (
	"context"
	"testing"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkbook(t *testing.T) *sheetops.Workbook {
	t.Helper()
	wb := sheetops.NewWorkbook("Sheet1", "My Data")
	res, err := sheetops.Apply(wb, []sheetops.Operation{
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "A1", Value: 10},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "B1", Formula: "=A1*2"},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "A2", Value: 2.5},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "C2", Value: true},
		&sheetops.SetCell{Sheet: "My Data", Cell: "B3", Value: "north"},
		&sheetops.SetCell{Sheet: "My Data", Cell: "AS1", Value: 1},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	wb.Sheets[0].Cells[sheetops.Address{Row: 1, Col: 2}].Computed = &sheetops.Computed{
		Value: 20.0, Type: sheetops.ValueTypeNumber, EngineVersion: "test",
	}
	return wb
}

func openEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngineWithConfig(&Config{MemoryLimit: "256MB", Threads: 1})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, e.Close()) })
	return e
}

func TestLoadAndQuery(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t)
	_, err := e.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, ErrNotLoaded)

	require.NoError(t, e.Load(ctx, testWorkbook(t)))

	res, err := e.Query(ctx, "SELECT SUM(number) AS total FROM cells WHERE sheet = $1", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, []string{"total"}, res.Columns)
	assert.Equal(t, [][]any{{12.5}}, res.Rows)

	res, err = e.Query(ctx, "SELECT address, raw_type, formula, value, engine_version FROM cells WHERE raw_type = 'formula'")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"B1", "formula", "=A1*2", "20", "test"}}, res.Rows)

	res, err = e.Query(ctx, "SELECT name, position FROM sheets ORDER BY position")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Sheet1", int32(0)}, {"My Data", int32(1)}}, res.Rows)

	table, ok := e.TableName("Sheet1")
	require.True(t, ok)
	assert.Equal(t, "sheet_sheet1", table)
	res, err = e.Query(ctx, "SELECT row_num, a, b, c FROM sheet_sheet1 ORDER BY row_num")
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{int32(1), "10", "20", nil},
		{int32(2), "2.5", nil, "TRUE"},
	}, res.Rows)

	table, ok = e.TableName("My Data")
	require.True(t, ok)
	assert.Equal(t, "sheet_my_data", table)
	res, err = e.Query(ctx, `SELECT b, "as" FROM sheet_my_data ORDER BY row_num`)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{nil, "1"}, {"north", nil}}, res.Rows)
}

func TestReloadReplacesTables(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t)
	require.NoError(t, e.Load(ctx, testWorkbook(t)))
	require.NoError(t, e.Load(ctx, sheetops.NewWorkbook("Other")))

	_, ok := e.TableName("Sheet1")
	assert.False(t, ok)
	_, err := e.Query(ctx, "SELECT * FROM sheet_sheet1")
	assert.Error(t, err)

	res, err := e.Query(ctx, "SELECT COUNT(*) FROM cells")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(0)}}, res.Rows)
	res, err = e.Query(ctx, "SELECT * FROM sheet_other")
	require.NoError(t, err)
	assert.Equal(t, []string{"row_num"}, res.Columns)
	assert.Empty(t, res.Rows)

	assert.Error(t, e.Load(ctx, nil))
}

func TestExternalAccessDisabled(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t)
	require.NoError(t, e.Load(ctx, sheetops.NewWorkbook()))
	_, err := e.Query(ctx, "SELECT * FROM read_csv('/etc/hostname')")
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {
	_, err := NewEngineWithConfig(&Config{MemoryLimit: "1GB'; DROP"})
	assert.Error(t, err)

	e, err := NewEngineWithConfig(nil)
	require.NoError(t, err)
	assert.NoError(t, e.Close())
}

func TestTableNames(t *testing.T) {
	used := map[string]struct{}{}
	assert.Equal(t, "sheet_q1_sales", uniqueTableName(sanitizeTableName("Q1 Sales!"), used))
	assert.Equal(t, "sheet_q1_sales_2", uniqueTableName(sanitizeTableName("q1-sales"), used))
	assert.Equal(t, "sheet_sheet", uniqueTableName(sanitizeTableName("***"), used))
	assert.Equal(t, "1.5", formatFloat(1.5))
	assert.Equal(t, "-3", formatFloat(-3))
}
