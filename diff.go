// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/tiendc/go-deepcopy"
)

// DiffKind tags a diff entry.
type DiffKind string

// Diff entry kinds.
const (
	DiffCell         DiffKind = "cell"
	DiffRowsInserted DiffKind = "rows_inserted"
	DiffRowsDeleted  DiffKind = "rows_deleted"
	DiffColsInserted DiffKind = "cols_inserted"
	DiffColsDeleted  DiffKind = "cols_deleted"
	DiffSheetAdded   DiffKind = "sheet_added"
	DiffSheetRenamed DiffKind = "sheet_renamed"
	DiffSheetDeleted DiffKind = "sheet_deleted"
)

// DiffEntry records one reversible change made by a batch.
//
// Cell entries carry the pre- and post-image of one cell; a nil image means
// the cell was absent. Row and column entries carry the first affected index,
// the count and the sheet's extent before the change. Cells removed by a
// delete are recorded as cell entries ahead of the structural entry. Sheet
// entries carry the names involved, the position and, for deleted sheets, the
// removed sheet itself.
type DiffEntry struct {
	OpIndex     int      `json:"opIndex"`
	Sheet       string   `json:"sheet"`
	Kind        DiffKind `json:"kind"`
	Cell        string   `json:"cell,omitempty"`
	Before      *Cell    `json:"before,omitempty"`
	After       *Cell    `json:"after,omitempty"`
	Index       int      `json:"index,omitempty"`
	Count       int      `json:"count,omitempty"`
	Extent      int      `json:"extent,omitempty"`
	OldName     string   `json:"oldName,omitempty"`
	NewName     string   `json:"newName,omitempty"`
	Position    int      `json:"position,omitempty"`
	Snapshot    *Sheet   `json:"snapshot,omitempty"`
	// ActiveSheet is the active sheet before a rename or delete moved it.
	ActiveSheet string   `json:"activeSheet,omitempty"`
}

// Revert provides a function to undo a batch by replaying its diff in
// reverse order. The workbook is changed only if every entry can be undone,
// in which case its version is incremented once. Reverting a diff against a
// workbook that was edited afterwards restores the recorded images over
// those later edits.
func Revert(wb *Workbook, diff []DiffEntry) error {
	if wb == nil {
		return fmt.Errorf("%w: nil workbook", ErrInvalidDiff)
	}
	if len(diff) == 0 {
		return nil
	}
	work, err := wb.Clone()
	if err != nil {
		return err
	}
	for i, entry := range slices.Backward(diff) {
		if err := revertEntry(work, entry); err != nil {
			return fmt.Errorf("%w: entry %d (%s): %v", ErrInvalidDiff, i, entry.Kind, err)
		}
	}
	work.Version = wb.Version + 1
	*wb = *work
	return nil
}

func revertEntry(wb *Workbook, e DiffEntry) error {
	switch e.Kind {
	case DiffCell:
		s, ok := wb.Sheet(e.Sheet)
		if !ok {
			return sheetNotExist(e.Sheet)
		}
		addr, err := ParseAddress(e.Cell)
		if err != nil {
			return err
		}
		if e.Before == nil {
			delete(s.Cells, addr)
			return nil
		}
		s.putCell(addr, e.Before.Clone())
		return nil
	case DiffRowsInserted, DiffColsInserted:
		s, ok := wb.Sheet(e.Sheet)
		if !ok {
			return sheetNotExist(e.Sheet)
		}
		ax := diffAxis(e.Kind)
		deleteLines(s, ax, e.Index, e.Count)
		ax.setExtent(s, e.Extent)
		return nil
	case DiffRowsDeleted, DiffColsDeleted:
		s, ok := wb.Sheet(e.Sheet)
		if !ok {
			return sheetNotExist(e.Sheet)
		}
		ax := diffAxis(e.Kind)
		insertLines(s, ax, e.Index, e.Count)
		ax.setExtent(s, e.Extent)
		return nil
	case DiffSheetAdded:
		i := wb.SheetIndex(e.Sheet)
		if i < 0 {
			return sheetNotExist(e.Sheet)
		}
		wb.Sheets = slices.Delete(wb.Sheets, i, i+1)
		return nil
	case DiffSheetRenamed:
		s, ok := wb.Sheet(e.NewName)
		if !ok {
			return sheetNotExist(e.NewName)
		}
		if wb.nameTaken(e.OldName, s) {
			return &SheetError{Sheet: e.OldName, Err: ErrSheetExists}
		}
		s.Name = e.OldName
		restoreActive(wb, e)
		return nil
	case DiffSheetDeleted:
		if e.Snapshot == nil {
			return fmt.Errorf("missing snapshot of sheet %q", e.Sheet)
		}
		if wb.nameTaken(e.Sheet, nil) {
			return &SheetError{Sheet: e.Sheet, Err: ErrSheetExists}
		}
		var restored Sheet
		if err := deepcopy.Copy(&restored, e.Snapshot); err != nil {
			return err
		}
		pos := min(max(e.Position, 0), len(wb.Sheets))
		wb.Sheets = slices.Insert(wb.Sheets, pos, &restored)
		restoreActive(wb, e)
		return nil
	}
	return fmt.Errorf("unknown diff kind %q", e.Kind)
}

func restoreActive(wb *Workbook, e DiffEntry) {
	if e.ActiveSheet != "" {
		wb.ActiveSheet = e.ActiveSheet
	}
}

func diffAxis(kind DiffKind) axis {
	if kind == DiffRowsInserted || kind == DiffRowsDeleted {
		return rows
	}
	return columns
}

// EditedCells returns the cells whose raw value or formula a batch wrote or
// removed, deduplicated in diff order. Style-only changes are not included.
func EditedCells(diff []DiffEntry) []CellRef {
	seen := make(map[CellRef]struct{})
	var refs []CellRef
	for _, e := range diff {
		if e.Kind != DiffCell || !contentChanged(e.Before, e.After) {
			continue
		}
		addr, err := ParseAddress(e.Cell)
		if err != nil {
			continue
		}
		ref := CellRef{Sheet: e.Sheet, Addr: addr}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

// StructuralChange reports whether the diff changes anything beyond single
// cell writes: rows, columns or the sheet list.
func StructuralChange(diff []DiffEntry) bool {
	for _, e := range diff {
		if e.Kind != DiffCell {
			return true
		}
	}
	return false
}

func contentChanged(before, after *Cell) bool {
	var br, ar any
	var bf, af string
	if before != nil {
		br, bf = before.Raw, before.Formula
	}
	if after != nil {
		ar, af = after.Raw, after.Formula
	}
	return bf != af || !reflect.DeepEqual(br, ar)
}
