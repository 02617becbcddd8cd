// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import "slices"

// axis selects rows or columns for structural edits.
type axis int

const (
	rows axis = iota
	columns
)

func (ax axis) coord(a Address) int {
	if ax == rows {
		return a.Row
	}
	return a.Col
}

func (ax axis) with(a Address, v int) Address {
	if ax == rows {
		a.Row = v
	} else {
		a.Col = v
	}
	return a
}

// extent returns the sheet's bookkeeping size along the axis, never smaller
// than the furthest occupied cell.
func (ax axis) extent(s *Sheet) int {
	n := s.RowCount
	if ax == columns {
		n = s.ColCount
	}
	for addr := range s.Cells {
		n = max(n, ax.coord(addr))
	}
	return n
}

func (ax axis) setExtent(s *Sheet, n int) {
	if ax == rows {
		s.RowCount = n
	} else {
		s.ColCount = n
	}
}

// limit is the largest index the axis accepts.
func (ax axis) limit() int {
	if ax == rows {
		return MaxRows
	}
	return MaxColumns
}

// insertLines shifts every cell at or after index before by count along the
// axis, leaving count empty lines at before.
func insertLines(s *Sheet, ax axis, before, count int) {
	extent := ax.extent(s)
	moved := make(map[Address]*Cell, len(s.Cells))
	for addr, c := range s.Cells {
		if v := ax.coord(addr); v >= before {
			addr = ax.with(addr, v+count)
		}
		moved[addr] = c
	}
	s.Cells = moved
	ax.setExtent(s, max(extent, before-1)+count)
}

// deleteLines removes count lines starting at start and shifts later cells
// back. The removed cells are returned in row-major order keyed by their
// original address.
func deleteLines(s *Sheet, ax axis, start, count int) []removedCell {
	extent := ax.extent(s)
	end := start + count - 1
	var removed []removedCell
	moved := make(map[Address]*Cell, len(s.Cells))
	for addr, c := range s.Cells {
		switch v := ax.coord(addr); {
		case v < start:
			moved[addr] = c
		case v > end:
			moved[ax.with(addr, v-count)] = c
		default:
			removed = append(removed, removedCell{addr: addr, cell: c})
		}
	}
	s.Cells = moved
	ax.setExtent(s, max(extent-count, 0))
	slices.SortFunc(removed, func(a, b removedCell) int { return compareAddress(a.addr, b.addr) })
	return removed
}

type removedCell struct {
	addr Address
	cell *Cell
}

// checkInsert validates an insertion against the axis limit.
func checkInsert(s *Sheet, ax axis, before, count int) error {
	if count <= 0 {
		return ErrInvalidCount
	}
	if before < 1 {
		return ax.indexError()
	}
	if max(ax.extent(s), before-1) > ax.limit()-count {
		return ErrOutOfBounds
	}
	return nil
}

// checkDelete validates a deletion against the sheet's extent.
func checkDelete(s *Sheet, ax axis, start, count int) error {
	if count <= 0 {
		return ErrInvalidCount
	}
	if start < 1 {
		return ax.indexError()
	}
	if start > ax.extent(s)-count+1 {
		return ErrOutOfBounds
	}
	return nil
}

func (ax axis) indexError() error {
	if ax == rows {
		return ErrRowNumber
	}
	return ErrColumnNumber
}
