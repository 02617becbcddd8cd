// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"iter"
	"math"
	"strings"
)

const (
	// DefaultMaxSampleCells is the expansion bound used by ExpandRange when
	// the caller passes a non-positive maxCells.
	DefaultMaxSampleCells = 100
	// MaxRows is the row extent given to whole-column references such as A:A.
	MaxRows = 1048576
	// MaxColumns is the column extent given to whole-row references such as 1:1.
	MaxColumns = 16384

	sampleStride = 10
)

// Range is a rectangle given by two corners. The corners are not required to
// be normalized; Normalize returns the top-left/bottom-right form.
type Range struct {
	Start Address
	End   Address
}

// ParseRange provides a function to parse a range reference like "A1:Z1000".
// A single reference "B2" is accepted as a one-cell range. Anchors ($) are
// ignored and the corners may be given in any order.
func ParseRange(ref string) (Range, error) {
	ref = stripAnchors(strings.TrimSpace(ref))
	startCell, endCell, found := strings.Cut(ref, ":")
	if !found {
		endCell = startCell
	}
	start, err := ParseAddress(startCell)
	if err != nil {
		return Range{}, &AddressError{Input: ref, Err: ErrInvalidRange}
	}
	end, err := ParseAddress(endCell)
	if err != nil {
		return Range{}, &AddressError{Input: ref, Err: ErrInvalidRange}
	}
	return Range{Start: start, End: end}, nil
}

// Normalize swaps corners so Start is the top-left and End the bottom-right
// cell of the rectangle.
func (r Range) Normalize() Range {
	return Range{
		Start: Address{Row: min(r.Start.Row, r.End.Row), Col: min(r.Start.Col, r.End.Col)},
		End:   Address{Row: max(r.Start.Row, r.End.Row), Col: max(r.Start.Col, r.End.Col)},
	}
}

// Valid reports whether both corners are valid addresses.
func (r Range) Valid() bool {
	return r.Start.Valid() && r.End.Valid()
}

// Rows returns the height of the rectangle.
func (r Range) Rows() int {
	n := r.Normalize()
	return n.End.Row - n.Start.Row + 1
}

// Cols returns the width of the rectangle.
func (r Range) Cols() int {
	n := r.Normalize()
	return n.End.Col - n.Start.Col + 1
}

// CellCount returns the number of cells in the rectangle, saturating at
// math.MaxInt.
func (r Range) CellCount() int {
	rows, cols := r.Rows(), r.Cols()
	if rows > 0 && cols > math.MaxInt/rows {
		return math.MaxInt
	}
	return rows * cols
}

// Contains reports whether the address lies inside the rectangle.
func (r Range) Contains(a Address) bool {
	n := r.Normalize()
	return a.Row >= n.Start.Row && a.Row <= n.End.Row &&
		a.Col >= n.Start.Col && a.Col <= n.End.Col
}

// String returns the normalized "A1:C3" form, or "A1" for a single cell.
func (r Range) String() string {
	n := r.Normalize()
	if n.Start == n.End {
		return n.Start.String()
	}
	return n.Start.String() + ":" + n.End.String()
}

// All iterates every cell of the normalized rectangle in row-major order.
// Mutating operations use it; analysis uses the bounded ExpandRange.
func (r Range) All() iter.Seq[Address] {
	n := r.Normalize()
	return func(yield func(Address) bool) {
		for row := n.Start.Row; row <= n.End.Row; row++ {
			for col := n.Start.Col; col <= n.End.Col; col++ {
				if !yield(Address{Row: row, Col: col}) {
					return
				}
			}
		}
	}
}

// ExpandRange provides a function to list the addresses inside the rectangle
// spanned by start and end, in either corner order.
//
// Ranges with at most maxCells cells are enumerated exactly in row-major
// order. Larger ranges are sampled deterministically: the four corners, then
// cells along the top, bottom, left and right edges, then the center cell,
// deduplicated and capped at maxCells. Edges are sampled every 10th cell, or
// at ~10 evenly spaced points on edges longer than 100 cells. The same input
// always yields the same output. A non-positive maxCells means
// DefaultMaxSampleCells.
//
// Sampling trades completeness for bounded cost: cells strictly inside a large
// range that are not on a sampled edge point or the center are never
// returned.
func ExpandRange(start, end Address, maxCells int) []Address {
	if maxCells <= 0 {
		maxCells = DefaultMaxSampleCells
	}
	r := Range{Start: start, End: end}.Normalize()
	if r.Start == r.End {
		return []Address{r.Start}
	}
	if count := r.CellCount(); count <= maxCells {
		out := make([]Address, 0, count)
		for addr := range r.All() {
			out = append(out, addr)
		}
		return out
	}
	return sampleRange(r, maxCells)
}

func sampleRange(r Range, maxCells int) []Address {
	out := make([]Address, 0, maxCells)
	seen := make(map[Address]struct{}, maxCells)
	add := func(row, col int) {
		if len(out) >= maxCells {
			return
		}
		a := Address{Row: row, Col: col}
		if _, ok := seen[a]; ok {
			return
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}

	top, left, bottom, right := r.Start.Row, r.Start.Col, r.End.Row, r.End.Col
	add(top, left)
	add(top, right)
	add(bottom, left)
	add(bottom, right)

	colStep := edgeStride(right - left + 1)
	for col := left + colStep; col < right; col += colStep {
		add(top, col)
	}
	for col := left + colStep; col < right; col += colStep {
		add(bottom, col)
	}
	rowStep := edgeStride(bottom - top + 1)
	for row := top + rowStep; row < bottom; row += rowStep {
		add(row, left)
	}
	for row := top + rowStep; row < bottom; row += rowStep {
		add(row, right)
	}

	add(top+(bottom-top)/2, left+(right-left)/2)
	return out
}

func edgeStride(length int) int {
	return max(sampleStride, length/sampleStride)
}
