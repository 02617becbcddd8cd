// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridWorkbook(t *testing.T) *Workbook {
	t.Helper()
	wb := NewWorkbook()
	applyOK(t, wb, &FillRange{Sheet: "Sheet1", Range: "A1:C3", Values: [][]any{
		{"a1", "b1", "c1"},
		{"a2", "b2", "c2"},
		{"a3", "b3", "c3"},
	}})
	return wb
}

func rawAt(t *testing.T, wb *Workbook, ref string) any {
	t.Helper()
	if c := cellOf(t, wb, ref); c != nil {
		return c.Raw
	}
	return nil
}

func TestInsertRows(t *testing.T) {
	wb := gridWorkbook(t)
	res := applyOK(t, wb, &InsertRows{Sheet: "Sheet1", Before: 2, Count: 2})
	assert.Equal(t, "a1", rawAt(t, wb, "Sheet1!A1"))
	assert.Nil(t, rawAt(t, wb, "Sheet1!A2"))
	assert.Nil(t, rawAt(t, wb, "Sheet1!A3"))
	assert.Equal(t, "a2", rawAt(t, wb, "Sheet1!A4"))
	assert.Equal(t, "c3", rawAt(t, wb, "Sheet1!C5"))
	assert.Equal(t, DefaultRowCount+2, wb.Sheets[0].RowCount)

	require.Len(t, res.Diff, 1)
	assert.Equal(t, DiffEntry{
		Sheet: "Sheet1", Kind: DiffRowsInserted, Index: 2, Count: 2, Extent: DefaultRowCount,
	}, res.Diff[0])
}

func TestInsertCols(t *testing.T) {
	wb := gridWorkbook(t)
	applyOK(t, wb, &InsertCols{Sheet: "Sheet1", Before: 1, Count: 1})
	assert.Nil(t, rawAt(t, wb, "Sheet1!A1"))
	assert.Equal(t, "a1", rawAt(t, wb, "Sheet1!B1"))
	assert.Equal(t, "c3", rawAt(t, wb, "Sheet1!D3"))
	assert.Equal(t, DefaultColCount+1, wb.Sheets[0].ColCount)

	// Inserting past the current extent grows it to cover the new lines.
	applyOK(t, wb, &InsertCols{Sheet: "Sheet1", Before: 100, Count: 5})
	assert.Equal(t, 104, wb.Sheets[0].ColCount)
}

func TestDeleteRows(t *testing.T) {
	wb := gridWorkbook(t)
	res := applyOK(t, wb, &DeleteRows{Sheet: "Sheet1", Start: 1, Count: 2})
	assert.Equal(t, "a3", rawAt(t, wb, "Sheet1!A1"))
	assert.Nil(t, rawAt(t, wb, "Sheet1!A2"))
	assert.Len(t, wb.Sheets[0].Cells, 3)
	assert.Equal(t, DefaultRowCount-2, wb.Sheets[0].RowCount)

	// Removed cells come first in row-major order, then the structural entry.
	require.Len(t, res.Diff, 7)
	assert.Equal(t, "A1", res.Diff[0].Cell)
	assert.Equal(t, "a1", res.Diff[0].Before.Raw)
	assert.Nil(t, res.Diff[0].After)
	assert.Equal(t, "C2", res.Diff[5].Cell)
	assert.Equal(t, DiffRowsDeleted, res.Diff[6].Kind)
}

func TestDeleteCols(t *testing.T) {
	wb := gridWorkbook(t)
	applyOK(t, wb, &DeleteCols{Sheet: "Sheet1", Start: 2, Count: 1})
	assert.Equal(t, "a1", rawAt(t, wb, "Sheet1!A1"))
	assert.Equal(t, "c1", rawAt(t, wb, "Sheet1!B1"))
	assert.Nil(t, rawAt(t, wb, "Sheet1!C1"))
	assert.Equal(t, DefaultColCount-1, wb.Sheets[0].ColCount)
}

func TestStructuralErrors(t *testing.T) {
	for _, tc := range []struct {
		op  Operation
		err error
	}{
		{&InsertRows{Sheet: "Sheet1", Before: 1, Count: 0}, ErrInvalidCount},
		{&InsertRows{Sheet: "Sheet1", Before: 0, Count: 1}, ErrRowNumber},
		{&InsertCols{Sheet: "Sheet1", Before: 0, Count: 1}, ErrColumnNumber},
		{&InsertRows{Sheet: "Sheet1", Before: 1, Count: MaxRows}, ErrOutOfBounds},
		{&InsertCols{Sheet: "Sheet1", Before: MaxColumns, Count: 2}, ErrOutOfBounds},
		{&DeleteRows{Sheet: "Sheet1", Start: 1, Count: -1}, ErrInvalidCount},
		{&DeleteRows{Sheet: "Sheet1", Start: DefaultRowCount, Count: 2}, ErrOutOfBounds},
		{&DeleteCols{Sheet: "Sheet1", Start: 27, Count: 1}, ErrOutOfBounds},
		{&DeleteCols{Sheet: "Sheet1", Start: 0, Count: 1}, ErrColumnNumber},
		{&DeleteRows{Sheet: "Nope", Start: 1, Count: 1}, ErrSheetNotExist},
	} {
		wb := gridWorkbook(t)
		before, err := wb.Clone()
		require.NoError(t, err)
		res, err := Apply(wb, []Operation{tc.op})
		require.NoError(t, err)
		require.Len(t, res.Errors, 1, "%T", tc.op)
		assert.ErrorIs(t, &res.Errors[0], tc.err, "%T", tc.op)
		assert.Equal(t, before, wb, "%T", tc.op)
	}
}

func TestDeleteUpToExtent(t *testing.T) {
	wb := gridWorkbook(t)
	applyOK(t, wb, &DeleteRows{Sheet: "Sheet1", Start: 1, Count: DefaultRowCount})
	assert.Empty(t, wb.Sheets[0].Cells)
	assert.Zero(t, wb.Sheets[0].RowCount)

	// Cells beyond the bookkeeping extent widen what may be deleted.
	applyOK(t, wb, &SetCell{Sheet: "Sheet1", Cell: "A50", Value: 1})
	applyOK(t, wb, &DeleteRows{Sheet: "Sheet1", Start: 50, Count: 1})
	assert.Empty(t, wb.Sheets[0].Cells)
}
