// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/efp"
)

// Reference is a cell or rectangular range read by a formula, resolved to a
// sheet. Whole-column references such as A:A span rows 1 to MaxRows and
// whole-row references such as 1:1 span columns 1 to MaxColumns.
type Reference struct {
	Sheet string
	Range Range
}

// IsCell reports whether the reference names a single cell.
func (r Reference) IsCell() bool {
	return r.Range.Start == r.Range.End
}

func (r Reference) String() string {
	return r.Sheet + "!" + r.Range.String()
}

// referenceCache memoizes ExtractReferences by formula and current sheet.
var referenceCache = newLRUCache[[]Reference](defaultReferenceCacheSize)

// ExtractReferences returns the cell and range references of a formula, in
// order of first appearance and without duplicates. References without a
// sheet prefix resolve to currentSheet. Anchors are ignored. Defined names,
// structured references and anything else that is not an A1-style cell, range,
// column or row reference are skipped.
//
// The returned slice is shared with an internal cache and must not be
// modified.
func ExtractReferences(formula, currentSheet string) []Reference {
	key := currentSheet + "\x00" + formula
	if refs, ok := referenceCache.Load(key); ok {
		return refs
	}
	refs := extractReferences(formula, currentSheet)
	referenceCache.Store(key, refs)
	return refs
}

func extractReferences(formula, currentSheet string) []Reference {
	ps := efp.ExcelParser()
	tokens := ps.Parse(formula)
	var refs []Reference
	seen := make(map[Reference]struct{})
	for _, token := range tokens {
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		ref, ok := parseReference(token.TValue, currentSheet)
		if !ok {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	return refs
}

// parseReference resolves one range operand such as "B1", "$B$1:$C$9",
// "'My Sheet'!A:A", "Sheet2!1:3" or "Sheet2!A1:Sheet2!A3".
func parseReference(value, currentSheet string) (Reference, bool) {
	sheet, rest, ok := splitSheetPrefix(value)
	if !ok {
		return Reference{}, false
	}
	if sheet == "" {
		sheet = currentSheet
	}
	rest = stripAnchors(rest)
	startPart, endPart, isRange := strings.Cut(rest, ":")
	if !isRange {
		addr, err := ParseAddress(startPart)
		if err != nil {
			return Reference{}, false
		}
		return Reference{Sheet: sheet, Range: Range{Start: addr, End: addr}}, true
	}
	if endSheet, endRest, ok := splitSheetPrefix(endPart); ok && endSheet != "" {
		if endSheet != sheet {
			return Reference{}, false
		}
		endPart = endRest
	}
	if r, err := ParseRange(startPart + ":" + endPart); err == nil {
		return Reference{Sheet: sheet, Range: r.Normalize()}, true
	}
	if c1, err1 := ColumnNameToNumber(startPart); err1 == nil {
		if c2, err2 := ColumnNameToNumber(endPart); err2 == nil {
			r := Range{Start: Address{Row: 1, Col: c1}, End: Address{Row: MaxRows, Col: c2}}
			return Reference{Sheet: sheet, Range: r.Normalize()}, true
		}
	}
	r1, err1 := strconv.Atoi(startPart)
	r2, err2 := strconv.Atoi(endPart)
	if err1 == nil && err2 == nil && r1 >= 1 && r2 >= 1 {
		r := Range{Start: Address{Row: r1, Col: 1}, End: Address{Row: r2, Col: MaxColumns}}
		return Reference{Sheet: sheet, Range: r.Normalize()}, true
	}
	return Reference{}, false
}

// splitSheetPrefix splits "Sheet!ref" or "'Quoted ''name'''!ref". A value
// without a prefix yields an empty sheet.
func splitSheetPrefix(value string) (sheet, rest string, ok bool) {
	if strings.HasPrefix(value, "'") {
		for i := 1; i < len(value); i++ {
			if value[i] != '\'' {
				continue
			}
			if i+1 < len(value) && value[i+1] == '\'' {
				i++
				continue
			}
			if i+1 < len(value) && value[i+1] == '!' {
				return unquoteSheetName(value[:i+1]), value[i+2:], true
			}
			return "", "", false
		}
		return "", "", false
	}
	if i := strings.IndexByte(value, '!'); i >= 0 {
		if i == 0 {
			return "", "", false
		}
		return value[:i], value[i+1:], true
	}
	return "", value, true
}

// DependencyIndex tracks which formula cells read which cells, so that the
// transitive dependents of an edit can be found without re-parsing the
// workbook. Single-cell references are indexed exactly; range references are
// kept as per-sheet observers and matched by containment.
//
// A DependencyIndex is not safe for concurrent use.
type DependencyIndex struct {
	precedents map[CellRef][]Reference
	cellDeps   map[CellRef]map[CellRef]struct{}
	observers  map[string]map[CellRef][]Range
}

// NewDependencyIndex returns an index of every formula cell in wb.
func NewDependencyIndex(wb *Workbook) *DependencyIndex {
	idx := &DependencyIndex{
		precedents: make(map[CellRef][]Reference),
		cellDeps:   make(map[CellRef]map[CellRef]struct{}),
		observers:  make(map[string]map[CellRef][]Range),
	}
	if wb == nil {
		return idx
	}
	for _, ref := range wb.FormulaCells() {
		idx.Set(ref, wb.CellAt(ref).Formula)
	}
	return idx
}

// Len returns the number of indexed formula cells.
func (idx *DependencyIndex) Len() int {
	return len(idx.precedents)
}

// Precedents returns the references read by the formula at cell.
func (idx *DependencyIndex) Precedents(cell CellRef) []Reference {
	return idx.precedents[cell]
}

// Set records formula as the content of cell, replacing any earlier formula.
// An empty formula removes the cell.
func (idx *DependencyIndex) Set(cell CellRef, formula string) {
	idx.Remove(cell)
	if formula == "" {
		return
	}
	refs := ExtractReferences(formula, cell.Sheet)
	idx.precedents[cell] = refs
	for _, ref := range refs {
		if ref.IsCell() {
			target := CellRef{Sheet: ref.Sheet, Addr: ref.Range.Start}
			deps := idx.cellDeps[target]
			if deps == nil {
				deps = make(map[CellRef]struct{})
				idx.cellDeps[target] = deps
			}
			deps[cell] = struct{}{}
			continue
		}
		obs := idx.observers[ref.Sheet]
		if obs == nil {
			obs = make(map[CellRef][]Range)
			idx.observers[ref.Sheet] = obs
		}
		obs[cell] = append(obs[cell], ref.Range)
	}
}

// Remove forgets the formula at cell.
func (idx *DependencyIndex) Remove(cell CellRef) {
	refs, ok := idx.precedents[cell]
	if !ok {
		return
	}
	delete(idx.precedents, cell)
	for _, ref := range refs {
		if ref.IsCell() {
			target := CellRef{Sheet: ref.Sheet, Addr: ref.Range.Start}
			if deps := idx.cellDeps[target]; deps != nil {
				delete(deps, cell)
				if len(deps) == 0 {
					delete(idx.cellDeps, target)
				}
			}
			continue
		}
		if obs := idx.observers[ref.Sheet]; obs != nil {
			delete(obs, cell)
			if len(obs) == 0 {
				delete(idx.observers, ref.Sheet)
			}
		}
	}
}

// directDependents returns the formula cells that read cell directly or
// through a range.
func (idx *DependencyIndex) directDependents(cell CellRef, visit func(CellRef)) {
	for dep := range idx.cellDeps[cell] {
		visit(dep)
	}
	for dep, ranges := range idx.observers[cell.Sheet] {
		for _, r := range ranges {
			if r.Contains(cell.Addr) {
				visit(dep)
				break
			}
		}
	}
}

// Dependents returns every formula cell that reads any of the edited cells,
// directly or transitively, excluding the edited cells themselves. The result
// is sorted by sheet name and then row-major.
func (idx *DependencyIndex) Dependents(edited []CellRef) []CellRef {
	affected := make(map[CellRef]struct{})
	seeds := make(map[CellRef]struct{}, len(edited))
	queue := make([]CellRef, 0, len(edited))
	for _, cell := range edited {
		seeds[cell] = struct{}{}
		queue = append(queue, cell)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		idx.directDependents(current, func(dep CellRef) {
			if _, ok := affected[dep]; ok {
				return
			}
			affected[dep] = struct{}{}
			queue = append(queue, dep)
		})
	}
	out := make([]CellRef, 0, len(affected))
	for cell := range affected {
		if _, ok := seeds[cell]; !ok {
			out = append(out, cell)
		}
	}
	slices.SortFunc(out, compareCellRef)
	return out
}

// Levels groups cells into evaluation levels: every cell in a level depends
// only on cells outside the given set or in earlier levels. Cells caught in a
// cycle cannot be ordered and are returned together as the last level.
func (idx *DependencyIndex) Levels(cells []CellRef) [][]CellRef {
	members := make(map[CellRef]struct{}, len(cells))
	bySheet := make(map[string][]CellRef)
	for _, c := range cells {
		if _, dup := members[c]; dup {
			continue
		}
		members[c] = struct{}{}
		bySheet[c.Sheet] = append(bySheet[c.Sheet], c)
	}

	pending := make(map[CellRef]map[CellRef]struct{}, len(members))
	dependents := make(map[CellRef][]CellRef)
	for c := range members {
		deps := make(map[CellRef]struct{})
		for _, ref := range idx.precedents[c] {
			for _, other := range bySheet[ref.Sheet] {
				if other != c && ref.Range.Contains(other.Addr) {
					deps[other] = struct{}{}
				}
			}
		}
		pending[c] = deps
		for d := range deps {
			dependents[d] = append(dependents[d], c)
		}
	}

	var levels [][]CellRef
	var ready []CellRef
	for c, deps := range pending {
		if len(deps) == 0 {
			ready = append(ready, c)
		}
	}
	for len(ready) > 0 {
		slices.SortFunc(ready, compareCellRef)
		levels = append(levels, ready)
		var next []CellRef
		for _, c := range ready {
			delete(pending, c)
			for _, d := range dependents[c] {
				deps, ok := pending[d]
				if !ok {
					continue
				}
				delete(deps, c)
				if len(deps) == 0 {
					next = append(next, d)
				}
			}
		}
		ready = next
	}
	if len(pending) > 0 {
		rest := make([]CellRef, 0, len(pending))
		for c := range pending {
			rest = append(rest, c)
		}
		slices.SortFunc(rest, compareCellRef)
		levels = append(levels, rest)
	}
	return levels
}

func compareCellRef(a, b CellRef) int {
	if c := cmp.Compare(a.Sheet, b.Sheet); c != 0 {
		return c
	}
	return compareAddress(a.Addr, b.Addr)
}
