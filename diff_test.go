// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevert(t *testing.T) {
	wb := gridWorkbook(t)
	applyOK(t, wb,
		&AddSheet{Name: "Extra"},
		&SetCell{Sheet: "Extra", Cell: "A1", Value: 1},
	)
	original, err := wb.Clone()
	require.NoError(t, err)

	res := applyOK(t, wb,
		&SetCell{Sheet: "Sheet1", Cell: "A1", Value: "changed"},
		&InsertRows{Sheet: "Sheet1", Before: 2, Count: 3},
		&DeleteCols{Sheet: "Sheet1", Start: 1, Count: 1},
		&FormatRange{Sheet: "Sheet1", Range: "A1:B2", Format: Style{"bold": true}},
		&RenameSheet{OldName: "Extra", NewName: "Renamed"},
		&AddSheet{Name: "New"},
		&DeleteSheet{Name: "Renamed"},
		&FillRange{Sheet: "New", Range: "A1:B2", Value: 0},
	)
	require.Equal(t, int64(3), wb.Version)

	require.NoError(t, Revert(wb, res.Diff))
	assert.Equal(t, int64(4), wb.Version)
	original.Version = wb.Version
	assert.Equal(t, original, wb)
}

func TestRevertAfterJSONRoundTrip(t *testing.T) {
	wb := gridWorkbook(t)
	res := applyOK(t, wb,
		&DeleteRows{Sheet: "Sheet1", Start: 2, Count: 1},
		&SetCell{Sheet: "Sheet1", Cell: "B1", Value: 5},
	)
	data, err := json.Marshal(res.Diff)
	require.NoError(t, err)
	var diff []DiffEntry
	require.NoError(t, json.Unmarshal(data, &diff))

	require.NoError(t, Revert(wb, diff))
	assert.Equal(t, "b1", rawAt(t, wb, "Sheet1!B1"))
	assert.Equal(t, "a2", rawAt(t, wb, "Sheet1!A2"))
	assert.Equal(t, "c3", rawAt(t, wb, "Sheet1!C3"))
	assert.Equal(t, DefaultRowCount, wb.Sheets[0].RowCount)
}

func TestRevertIsAtomic(t *testing.T) {
	wb := NewWorkbook()
	res := applyOK(t, wb,
		&SetCell{Sheet: "Sheet1", Cell: "A1", Value: 1},
		&AddSheet{Name: "Data"},
	)
	// A later batch removes the sheet the added-sheet entry refers to.
	applyOK(t, wb, &DeleteSheet{Name: "Data"})
	before, err := wb.Clone()
	require.NoError(t, err)

	err = Revert(wb, res.Diff)
	assert.ErrorIs(t, err, ErrInvalidDiff)
	assert.Equal(t, before, wb)

	assert.ErrorIs(t, Revert(nil, res.Diff), ErrInvalidDiff)
	assert.ErrorIs(t, Revert(wb, []DiffEntry{{Kind: "merge"}}), ErrInvalidDiff)
	assert.ErrorIs(t, Revert(wb, []DiffEntry{{Kind: DiffSheetDeleted, Sheet: "X"}}), ErrInvalidDiff)
	assert.NoError(t, Revert(wb, nil))
	assert.Equal(t, before.Version, wb.Version)
}

func TestEditedCells(t *testing.T) {
	wb := NewWorkbook()
	applyOK(t, wb, &SetCell{Sheet: "Sheet1", Cell: "A1", Value: 1})
	res := applyOK(t, wb,
		&SetCell{Sheet: "Sheet1", Cell: "B1", Formula: "=A1"},
		&SetCell{Sheet: "Sheet1", Cell: "A1", Value: 1},
		&FormatRange{Sheet: "Sheet1", Range: "C1", Format: Style{"bold": true}},
		&SetCell{Sheet: "Sheet1", Cell: "B1", Formula: "=A1+1"},
	)
	assert.Equal(t, []CellRef{mustRef(t, "Sheet1!B1")}, EditedCells(res.Diff))
	assert.False(t, StructuralChange(res.Diff))

	res = applyOK(t, wb, &AddSheet{Name: "S2"})
	assert.True(t, StructuralChange(res.Diff))
	assert.Empty(t, EditedCells(res.Diff))
}

func TestContentChanged(t *testing.T) {
	assert.False(t, contentChanged(nil, nil))
	assert.True(t, contentChanged(nil, &Cell{Raw: 1.0}))
	assert.True(t, contentChanged(&Cell{Raw: 1.0}, nil))
	assert.False(t, contentChanged(&Cell{Raw: 1.0}, &Cell{Raw: 1.0, Style: Style{"b": true}}))
	assert.True(t, contentChanged(&Cell{Formula: "=A1"}, &Cell{Formula: "=A2"}))
}
