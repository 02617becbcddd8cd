// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refsOf(t *testing.T, refs []Reference) []string {
	t.Helper()
	var out []string
	for _, r := range refs {
		out = append(out, r.String())
	}
	return out
}

func TestExtractReferences(t *testing.T) {
	for _, c := range []struct {
		formula string
		expect  []string
	}{
		{"=A1+B2", []string{"Sheet1!A1", "Sheet1!B2"}},
		{"=$A$1*A1+$B2", []string{"Sheet1!A1", "Sheet1!B2"}},
		{"=SUM(B1:B3)", []string{"Sheet1!B1:B3"}},
		{"=SUM(B3:B1)", []string{"Sheet1!B1:B3"}},
		{"=Data!C5+1", []string{"Data!C5"}},
		{"='My Sheet'!A1", []string{"My Sheet!A1"}},
		{"=SUM(A:A)", []string{"Sheet1!A1:A1048576"}},
		{"=SUM(2:3)", []string{"Sheet1!A2:XFD3"}},
		{"=VLOOKUP(A1,Data!A:B,2,FALSE)", []string{"Sheet1!A1", "Data!A1:B1048576"}},
		{"=\"A1\"&TRUE", nil},
		{"=Revenue*2", nil},
		{"=1+2", nil},
	} {
		t.Run(c.formula, func(t *testing.T) {
			assert.Equal(t, c.expect, refsOf(t, ExtractReferences(c.formula, "Sheet1")))
		})
	}
}

func TestExtractReferencesCached(t *testing.T) {
	first := ExtractReferences("=C1+C2", "Cached")
	second := ExtractReferences("=C1+C2", "Cached")
	require.Len(t, first, 2)
	assert.Same(t, &first[0], &second[0])

	other := ExtractReferences("=C1+C2", "Other")
	assert.Equal(t, "Other", other[0].Sheet)
}

func TestDependencyIndexDependents(t *testing.T) {
	idx := NewDependencyIndex(nil)
	a1, b1, c1, d1 := mustRef(t, "S!A1"), mustRef(t, "S!B1"), mustRef(t, "S!C1"), mustRef(t, "S!D1")
	idx.Set(b1, "=A1*2")
	idx.Set(c1, "=B1+1")
	idx.Set(d1, "=SUM(A1:C1)")
	idx.Set(mustRef(t, "T!A1"), "=S!D1")
	assert.Equal(t, 4, idx.Len())

	assert.Equal(t, []CellRef{b1, c1, d1, mustRef(t, "T!A1")}, idx.Dependents([]CellRef{a1}))
	assert.Equal(t, []CellRef{d1, mustRef(t, "T!A1")}, idx.Dependents([]CellRef{c1}))
	assert.Empty(t, idx.Dependents([]CellRef{mustRef(t, "S!E1")}))

	idx.Remove(d1)
	assert.Equal(t, []CellRef{b1, c1}, idx.Dependents([]CellRef{a1}))
	idx.Set(c1, "")
	assert.Equal(t, []CellRef{b1}, idx.Dependents([]CellRef{a1}))
	assert.Nil(t, idx.Precedents(c1))
	assert.Equal(t, 2, idx.Len())
}

func TestDependencyIndexFromWorkbook(t *testing.T) {
	wb := NewWorkbook("Sheet1", "Data")
	applyOK(t, wb,
		&SetCell{Sheet: "Data", Cell: "A1", Value: 1},
		&SetCell{Sheet: "Sheet1", Cell: "A1", Formula: "=Data!A1"},
		&SetCell{Sheet: "Sheet1", Cell: "A2", Formula: "=A1"},
	)
	idx := NewDependencyIndex(wb)
	assert.Equal(t, []CellRef{mustRef(t, "Sheet1!A1"), mustRef(t, "Sheet1!A2")},
		idx.Dependents([]CellRef{mustRef(t, "Data!A1")}))
}

func TestDependencyIndexLevels(t *testing.T) {
	idx := NewDependencyIndex(nil)
	a1, b1, b2, c1 := mustRef(t, "S!A1"), mustRef(t, "S!B1"), mustRef(t, "S!B2"), mustRef(t, "S!C1")
	// Diamond: A1 feeds B1 and B2, both feed C1.
	idx.Set(a1, "=10")
	idx.Set(b1, "=A1+1")
	idx.Set(b2, "=A1*2")
	idx.Set(c1, "=B1+B2")

	levels := idx.Levels([]CellRef{c1, b2, b1, a1, a1})
	assert.Equal(t, [][]CellRef{{a1}, {b1, b2}, {c1}}, levels)

	// Cells outside the set do not constrain the order.
	assert.Equal(t, [][]CellRef{{b1, b2}, {c1}}, idx.Levels([]CellRef{b1, b2, c1}))

	// Range precedents order too.
	d1 := mustRef(t, "S!D1")
	idx.Set(d1, "=SUM(A1:C1)")
	levels = idx.Levels([]CellRef{d1, c1, b1, a1})
	assert.Equal(t, [][]CellRef{{a1}, {b1}, {c1}, {d1}}, levels)
}

func TestDependencyIndexLevelsCycle(t *testing.T) {
	idx := NewDependencyIndex(nil)
	a1, b1, c1 := mustRef(t, "S!A1"), mustRef(t, "S!B1"), mustRef(t, "S!C1")
	idx.Set(a1, "=B1")
	idx.Set(b1, "=A1")
	idx.Set(c1, "=1")
	assert.Equal(t, [][]CellRef{{c1}, {a1, b1}}, idx.Levels([]CellRef{a1, b1, c1}))
	assert.Equal(t, []CellRef{b1}, idx.Dependents([]CellRef{a1}))
}
