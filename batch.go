// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
)

// BatchResult is the outcome of one Apply call.
//
// Success is true only when every operation applied. AppliedOps counts the
// operations that did. Version is the workbook version after the batch; it
// moved by exactly one if AppliedOps > 0. Next is the mutated workbook.
type BatchResult struct {
	BatchID    string          `json:"batchId"`
	Success    bool            `json:"success"`
	AppliedOps int             `json:"appliedOps"`
	Errors     []OpError       `json:"errors"`
	Diff       []DiffEntry     `json:"diff"`
	Version    int64           `json:"version"`
	Circular   *CircularReport `json:"circular,omitempty"`
	Next       *Workbook       `json:"-"`
}

// Apply provides a function to apply an ordered batch of operations to a
// workbook in place. For example:
//
//	wb := sheetops.NewWorkbook()
//	res, err := sheetops.Apply(wb, []sheetops.Operation{
//	    &sheetops.SetCell{Sheet: "Sheet1", Cell: "A1", Value: 10},
//	    &sheetops.SetCell{Sheet: "Sheet1", Cell: "B1", Formula: "=A1*2"},
//	})
//
// Operations run strictly in order. Each one is validated completely before
// it changes anything, so a failing operation leaves no partial edit behind;
// its error is recorded in the result and the batch continues. The returned
// error is reserved for batch-fatal input (a nil workbook or a nil operation)
// and is reported before any mutation.
//
// Apply does not lock the workbook. Callers serialize batches per workbook.
func Apply(wb *Workbook, ops []Operation, opts ...Options) (*BatchResult, error) {
	if wb == nil {
		return nil, fmt.Errorf("%w: nil workbook", ErrMalformedBatch)
	}
	for i, op := range ops {
		if op == nil || reflect.ValueOf(op).IsNil() {
			return nil, fmt.Errorf("%w: operation %d is nil", ErrMalformedBatch, i)
		}
	}
	o := getOptions(opts...)
	startTime := time.Now()

	res := &BatchResult{
		BatchID: uuid.NewString(),
		Errors:  []OpError{},
		Diff:    []DiffEntry{},
		Next:    wb,
	}
	a := &applier{wb: wb, opts: o}
	for i, op := range ops {
		a.index, a.pending = i, a.pending[:0]
		err := op.Accept(a)
		observeOperation(op.Kind(), err)
		if err != nil {
			res.Errors = append(res.Errors, newOpError(i, op.Kind(), err))
			o.Logger.Debug("operation failed", "index", i, "kind", op.Kind(), "error", err)
			continue
		}
		res.AppliedOps++
		res.Diff = append(res.Diff, a.pending...)
	}
	if res.AppliedOps > 0 {
		wb.Version++
	}
	res.Version = wb.Version
	res.Success = len(res.Errors) == 0

	if o.DetectCircular {
		res.Circular = DetectCircularReferences(wb, o)
	}

	elapsed := time.Since(startTime)
	batchDuration.Observe(elapsed.Seconds())
	o.Logger.Debug("batch applied",
		"batch", res.BatchID,
		"operations", len(ops),
		"applied", res.AppliedOps,
		"failed", len(res.Errors),
		"diff", len(res.Diff),
		"version", res.Version,
		"duration", elapsed)
	return res, nil
}

// applier executes operations against one workbook. Each visit either
// returns an error without touching the workbook or applies the whole
// operation and stages its diff in pending.
type applier struct {
	wb      *Workbook
	opts    Options
	index   int
	pending []DiffEntry
}

func (a *applier) sheet(name string) (*Sheet, error) {
	s, ok := a.wb.Sheet(name)
	if !ok {
		return nil, sheetNotExist(name)
	}
	return s, nil
}

// cellContent is a validated raw value or formula ready to be written.
type cellContent struct {
	raw     any
	formula string
}

// resolveContent validates the value/formula pair of a cell write. A string
// value beginning with "=" is taken as a formula.
func resolveContent(value any, hasValue bool, formula string) (cellContent, error) {
	hasValue = hasValue || value != nil
	if hasValue == (formula != "") {
		return cellContent{}, ErrValueConflict
	}
	if !hasValue {
		return formulaContent(formula)
	}
	if s, ok := value.(string); ok && strings.HasPrefix(s, "=") {
		return formulaContent(s)
	}
	raw, err := normalizeScalar(value)
	if err != nil {
		return cellContent{}, err
	}
	return cellContent{raw: raw}, nil
}

func formulaContent(formula string) (cellContent, error) {
	if len(formula) < 2 || formula[0] != '=' {
		return cellContent{}, fmt.Errorf("%w: %q", ErrInvalidFormula, formula)
	}
	return cellContent{formula: formula}, nil
}

// writeCell stores content at addr and stages a cell diff entry. The cached
// computed value survives only if the content did not change.
func (a *applier) writeCell(s *Sheet, addr Address, content cellContent) {
	before := s.Cell(addr)
	after := before.Clone()
	if after == nil {
		after = &Cell{}
	}
	if after.Formula != content.formula || !reflect.DeepEqual(after.Raw, content.raw) {
		after.Computed = nil
	}
	after.Raw, after.Formula = content.raw, content.formula
	a.replaceCell(s, addr, before, after)
}

func (a *applier) replaceCell(s *Sheet, addr Address, before, after *Cell) {
	s.putCell(addr, after)
	entry := DiffEntry{
		OpIndex: a.index,
		Sheet:   s.Name,
		Kind:    DiffCell,
		Cell:    addr.String(),
		Before:  before,
	}
	if !after.IsEmpty() {
		entry.After = after.Clone()
	}
	a.pending = append(a.pending, entry)
}

// targetRange parses a range for a mutating operation and enforces the sheet
// bounds and Options.MaxFillCells.
func (a *applier) targetRange(ref string) (Range, error) {
	r, err := ParseRange(ref)
	if err != nil {
		return Range{}, err
	}
	r = r.Normalize()
	if err := checkBounds(r); err != nil {
		return Range{}, err
	}
	if n := r.CellCount(); n > a.opts.MaxFillCells {
		return Range{}, fmt.Errorf("%w: %s has %d cells, limit %d", ErrRangeTooLarge, r, n, a.opts.MaxFillCells)
	}
	return r, nil
}

func (a *applier) VisitSetCell(op *SetCell) error {
	s, err := a.sheet(op.Sheet)
	if err != nil {
		return err
	}
	addr, err := ParseAddress(op.Cell)
	if err != nil {
		return err
	}
	if err := checkBounds(Range{Start: addr, End: addr}); err != nil {
		return err
	}
	content, err := resolveContent(op.Value, op.HasValue, op.Formula)
	if err != nil {
		return err
	}
	a.writeCell(s, addr, content)
	return nil
}

func (a *applier) VisitFillRange(op *FillRange) error {
	s, err := a.sheet(op.Sheet)
	if err != nil {
		return err
	}
	r, err := a.targetRange(op.Range)
	if err != nil {
		return err
	}
	hasValue := op.HasValue || op.Value != nil
	set := 0
	for _, present := range []bool{hasValue, op.Formula != "", op.Values != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return ErrValueConflict
	}

	contents := make([]cellContent, 0, r.CellCount())
	switch {
	case op.Values != nil:
		if len(op.Values) != r.Rows() {
			return fmt.Errorf("%w: got %d rows for %s", ErrFillShape, len(op.Values), r)
		}
		for i, row := range op.Values {
			if len(row) != r.Cols() {
				return fmt.Errorf("%w: row %d has %d values for %s", ErrFillShape, i, len(row), r)
			}
			for _, v := range row {
				content, err := resolveContent(v, true, "")
				if err != nil {
					return err
				}
				contents = append(contents, content)
			}
		}
	case op.Formula != "":
		if _, err := formulaContent(op.Formula); err != nil {
			return err
		}
		for addr := range r.All() {
			contents = append(contents, cellContent{formula: expandFormulaTemplate(op.Formula, addr)})
		}
	default:
		content, err := resolveContent(op.Value, true, "")
		if err != nil {
			return err
		}
		for range r.All() {
			contents = append(contents, content)
		}
	}

	i := 0
	for addr := range r.All() {
		a.writeCell(s, addr, contents[i])
		i++
	}
	return nil
}

// expandFormulaTemplate substitutes the {row} and {col} placeholders with the
// target cell's row number and column letters.
func expandFormulaTemplate(formula string, addr Address) string {
	if !strings.Contains(formula, "{") {
		return formula
	}
	col, _ := ColumnNumberToName(addr.Col)
	return strings.NewReplacer("{row}", strconv.Itoa(addr.Row), "{col}", col).Replace(formula)
}

func (a *applier) VisitFormatRange(op *FormatRange) error {
	s, err := a.sheet(op.Sheet)
	if err != nil {
		return err
	}
	r, err := a.targetRange(op.Range)
	if err != nil {
		return err
	}
	if len(op.Format) == 0 {
		return ErrEmptyFormat
	}
	for addr := range r.All() {
		before := s.Cell(addr)
		after := before.Clone()
		if after == nil {
			after = &Cell{}
		}
		var format Style
		if err := deepcopy.Copy(&format, op.Format); err != nil {
			return fmt.Errorf("copy format: %w", err)
		}
		if after.Style == nil {
			after.Style = make(Style, len(format))
		}
		maps.Copy(after.Style, format)
		a.replaceCell(s, addr, before, after)
	}
	return nil
}

func (a *applier) VisitInsertRows(op *InsertRows) error {
	return a.insert(op.Sheet, rows, op.Before, op.Count)
}

func (a *applier) VisitInsertCols(op *InsertCols) error {
	return a.insert(op.Sheet, columns, op.Before, op.Count)
}

func (a *applier) VisitDeleteRows(op *DeleteRows) error {
	return a.remove(op.Sheet, rows, op.Start, op.Count)
}

func (a *applier) VisitDeleteCols(op *DeleteCols) error {
	return a.remove(op.Sheet, columns, op.Start, op.Count)
}

func (a *applier) insert(name string, ax axis, before, count int) error {
	s, err := a.sheet(name)
	if err != nil {
		return err
	}
	if err := checkInsert(s, ax, before, count); err != nil {
		return err
	}
	extent := ax.extent(s)
	insertLines(s, ax, before, count)
	kind := DiffRowsInserted
	if ax == columns {
		kind = DiffColsInserted
	}
	a.pending = append(a.pending, DiffEntry{
		OpIndex: a.index, Sheet: s.Name, Kind: kind,
		Index: before, Count: count, Extent: extent,
	})
	return nil
}

func (a *applier) remove(name string, ax axis, start, count int) error {
	s, err := a.sheet(name)
	if err != nil {
		return err
	}
	if err := checkDelete(s, ax, start, count); err != nil {
		return err
	}
	extent := ax.extent(s)
	for _, rc := range deleteLines(s, ax, start, count) {
		a.pending = append(a.pending, DiffEntry{
			OpIndex: a.index, Sheet: s.Name, Kind: DiffCell,
			Cell: rc.addr.String(), Before: rc.cell,
		})
	}
	kind := DiffRowsDeleted
	if ax == columns {
		kind = DiffColsDeleted
	}
	a.pending = append(a.pending, DiffEntry{
		OpIndex: a.index, Sheet: s.Name, Kind: kind,
		Index: start, Count: count, Extent: extent,
	})
	return nil
}

func (a *applier) VisitAddSheet(op *AddSheet) error {
	if err := checkSheetName(op.Name); err != nil {
		return err
	}
	if a.wb.nameTaken(op.Name, nil) {
		return &SheetError{Sheet: op.Name, Err: ErrSheetExists}
	}
	a.wb.Sheets = append(a.wb.Sheets, NewSheet(op.Name))
	a.pending = append(a.pending, DiffEntry{
		OpIndex: a.index, Sheet: op.Name, Kind: DiffSheetAdded,
		Position: len(a.wb.Sheets) - 1,
	})
	return nil
}

func (a *applier) VisitRenameSheet(op *RenameSheet) error {
	s, err := a.sheet(op.OldName)
	if err != nil {
		return err
	}
	if err := checkSheetName(op.NewName); err != nil {
		return err
	}
	if op.NewName == op.OldName {
		return nil
	}
	if a.wb.nameTaken(op.NewName, s) {
		return &SheetError{Sheet: op.NewName, Err: ErrSheetExists}
	}
	s.Name = op.NewName
	entry := DiffEntry{
		OpIndex: a.index, Sheet: op.NewName, Kind: DiffSheetRenamed,
		OldName: op.OldName, NewName: op.NewName,
	}
	if a.wb.ActiveSheet == op.OldName {
		entry.ActiveSheet = op.OldName
		a.wb.ActiveSheet = op.NewName
	}
	a.pending = append(a.pending, entry)
	return nil
}

func (a *applier) VisitDeleteSheet(op *DeleteSheet) error {
	i := a.wb.SheetIndex(op.Name)
	if i < 0 {
		return sheetNotExist(op.Name)
	}
	if len(a.wb.Sheets) == 1 {
		return &SheetError{Sheet: op.Name, Err: ErrLastSheet}
	}
	removed := a.wb.Sheets[i]
	a.wb.Sheets = append(a.wb.Sheets[:i:i], a.wb.Sheets[i+1:]...)
	entry := DiffEntry{
		OpIndex: a.index, Sheet: op.Name, Kind: DiffSheetDeleted,
		Position: i, Snapshot: removed,
	}
	if a.wb.ActiveSheet == op.Name {
		entry.ActiveSheet = op.Name
		a.wb.ActiveSheet = a.wb.Sheets[0].Name
	}
	a.pending = append(a.pending, entry)
	return nil
}
