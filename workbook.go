// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tiendc/go-deepcopy"
)

const (
	// DefaultRowCount is the bookkeeping height of a new sheet.
	DefaultRowCount = 1000
	// DefaultColCount is the bookkeeping width of a new sheet.
	DefaultColCount = 26
)

// ValueType classifies a computed value.
type ValueType string

// Computed value types.
const (
	ValueTypeEmpty   ValueType = "empty"
	ValueTypeNumber  ValueType = "number"
	ValueTypeString  ValueType = "string"
	ValueTypeBoolean ValueType = "boolean"
	ValueTypeError   ValueType = "error"
)

// Computed is the derived result of a formula as reported by the evaluation
// engine. It is never authoritative: it goes stale when the cell's raw value
// or formula changes, when a precedent changes, and when the engine that
// produced it is replaced by another version.
type Computed struct {
	Value         any       `json:"value"`
	Type          ValueType `json:"type"`
	EngineVersion string    `json:"engineVersion"`
}

// IsStale reports whether the cached value was not produced by the given
// engine version. A nil Computed is always stale.
func (c *Computed) IsStale(engineVersion string) bool {
	return c == nil || c.EngineVersion != engineVersion
}

// Style is an opaque formatting payload. Keys are merged, never interpreted.
type Style map[string]any

// Cell holds a raw scalar or a formula, the cached computed result and the
// style payload. A cell with a formula carries no raw value.
type Cell struct {
	Raw      any       `json:"raw"`
	Formula  string    `json:"formula,omitempty"`
	Computed *Computed `json:"computed,omitempty"`
	Style    Style     `json:"style,omitempty"`
}

// HasFormula reports whether the cell holds a formula.
func (c *Cell) HasFormula() bool {
	return c != nil && c.Formula != ""
}

// IsEmpty reports whether the cell carries nothing worth storing.
func (c *Cell) IsEmpty() bool {
	return c == nil || (c.Raw == nil && c.Formula == "" && c.Computed == nil && len(c.Style) == 0)
}

// Clone returns a deep copy of the cell. A nil cell clones to nil.
func (c *Cell) Clone() *Cell {
	if c == nil {
		return nil
	}
	var out Cell
	if err := deepcopy.Copy(&out, c); err != nil {
		// deepcopy only fails on unsupported kinds, which normalizeScalar
		// keeps out of Raw.
		panic(fmt.Sprintf("sheetops: clone cell: %v", err))
	}
	return &out
}

// Sheet is a named grid of cells. RowCount and ColCount are bookkeeping
// extents used by structural operations; writes beyond them grow them.
type Sheet struct {
	Name     string            `json:"name"`
	Cells    map[Address]*Cell `json:"cells"`
	Hidden   bool              `json:"hidden,omitempty"`
	RowCount int               `json:"rowCount"`
	ColCount int               `json:"colCount"`
}

// NewSheet returns an empty sheet with default extents.
func NewSheet(name string) *Sheet {
	return &Sheet{
		Name:     name,
		Cells:    make(map[Address]*Cell),
		RowCount: DefaultRowCount,
		ColCount: DefaultColCount,
	}
}

// Cell returns the cell stored at addr or nil.
func (s *Sheet) Cell(addr Address) *Cell {
	return s.Cells[addr]
}

// Addresses returns the occupied addresses in row-major order.
func (s *Sheet) Addresses() []Address {
	addrs := make([]Address, 0, len(s.Cells))
	for addr := range s.Cells {
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, compareAddress)
	return addrs
}

// putCell stores c at addr, removing the entry when c is empty, and grows
// the sheet's extents to cover addr.
func (s *Sheet) putCell(addr Address, c *Cell) {
	if c.IsEmpty() {
		delete(s.Cells, addr)
		return
	}
	if s.Cells == nil {
		s.Cells = make(map[Address]*Cell)
	}
	s.Cells[addr] = c
	s.RowCount = max(s.RowCount, addr.Row)
	s.ColCount = max(s.ColCount, addr.Col)
}

// Workbook is an ordered list of sheets plus a version counter incremented
// once per batch that applied at least one operation.
type Workbook struct {
	Sheets      []*Sheet `json:"sheets"`
	Version     int64    `json:"version"`
	ActiveSheet string   `json:"activeSheet,omitempty"`
	Theme       string   `json:"theme,omitempty"`
}

// NewWorkbook creates a workbook with the named sheets, or a single "Sheet1"
// when no names are given.
func NewWorkbook(names ...string) *Workbook {
	if len(names) == 0 {
		names = []string{"Sheet1"}
	}
	wb := &Workbook{ActiveSheet: names[0]}
	for _, name := range names {
		wb.Sheets = append(wb.Sheets, NewSheet(name))
	}
	return wb
}

// Sheet looks a sheet up by exact name.
func (wb *Workbook) Sheet(name string) (*Sheet, bool) {
	if i := wb.SheetIndex(name); i >= 0 {
		return wb.Sheets[i], true
	}
	return nil, false
}

// SheetIndex returns the position of the named sheet or -1.
func (wb *Workbook) SheetIndex(name string) int {
	return slices.IndexFunc(wb.Sheets, func(s *Sheet) bool { return s.Name == name })
}

// MaxSheetNameLength is the longest sheet name, in characters, the engine
// accepts.
const MaxSheetNameLength = 31

// checkSheetName applies the engine's sheet naming rules.
func checkSheetName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return ErrSheetName
	case utf8.RuneCountInString(name) > MaxSheetNameLength:
		return &SheetError{Sheet: name, Err: ErrSheetNameLength}
	case strings.HasPrefix(name, "'") || strings.HasSuffix(name, "'"):
		return &SheetError{Sheet: name, Err: ErrSheetNameQuote}
	case strings.ContainsAny(name, `:\/?*[]`):
		return &SheetError{Sheet: name, Err: ErrSheetNameChar}
	}
	return nil
}

// nameTaken reports whether a sheet other than skip is called name. Names
// are compared case-insensitively because the engine resolves sheet
// references that way.
func (wb *Workbook) nameTaken(name string, skip *Sheet) bool {
	return slices.ContainsFunc(wb.Sheets, func(s *Sheet) bool {
		return s != skip && strings.EqualFold(s.Name, name)
	})
}

// checkBounds rejects a range reaching past MaxRows or MaxColumns.
func checkBounds(r Range) error {
	if r.End.Row > MaxRows || r.End.Col > MaxColumns {
		return fmt.Errorf("%w: %s is beyond %s", ErrOutOfBounds, r, Address{Row: MaxRows, Col: MaxColumns})
	}
	return nil
}

// SheetNames returns the sheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		names[i] = s.Name
	}
	return names
}

// CellAt returns the cell a reference points to, or nil.
func (wb *Workbook) CellAt(ref CellRef) *Cell {
	s, ok := wb.Sheet(ref.Sheet)
	if !ok {
		return nil
	}
	return s.Cells[ref.Addr]
}

// FormulaCells lists every formula-bearing cell in sheet order, then
// row-major order.
func (wb *Workbook) FormulaCells() []CellRef {
	var refs []CellRef
	for _, s := range wb.Sheets {
		for _, addr := range s.Addresses() {
			if s.Cells[addr].HasFormula() {
				refs = append(refs, CellRef{Sheet: s.Name, Addr: addr})
			}
		}
	}
	return refs
}

// Clone returns a deep copy of the workbook.
func (wb *Workbook) Clone() (*Workbook, error) {
	var out Workbook
	if err := deepcopy.Copy(&out, wb); err != nil {
		return nil, fmt.Errorf("clone workbook: %w", err)
	}
	return &out, nil
}

// Validate checks a workbook that arrived from outside the package: at least
// one sheet, valid names unique regardless of case, cells inside the sheet
// bounds, formulas with a leading "=" and no raw value next to them. Raw
// values are normalized to the scalar types the applier stores and missing
// cell maps are initialized.
func (wb *Workbook) Validate() error {
	if wb == nil || len(wb.Sheets) == 0 {
		return fmt.Errorf("%w: no sheets", ErrInvalidWorkbook)
	}
	for i, s := range wb.Sheets {
		if s == nil {
			return fmt.Errorf("%w: sheet %d: %w", ErrInvalidWorkbook, i, ErrSheetName)
		}
		if err := checkSheetName(s.Name); err != nil {
			return fmt.Errorf("%w: sheet %d: %w", ErrInvalidWorkbook, i, err)
		}
		if wb.nameTaken(s.Name, s) {
			return fmt.Errorf("%w: %w", ErrInvalidWorkbook, &SheetError{Sheet: s.Name, Err: ErrSheetExists})
		}
		if s.Cells == nil {
			s.Cells = make(map[Address]*Cell)
		}
		for addr, c := range s.Cells {
			if c == nil {
				delete(s.Cells, addr)
				continue
			}
			if err := validateCell(addr, c); err != nil {
				return fmt.Errorf("%w: %s!%s: %w", ErrInvalidWorkbook, s.Name, addr, err)
			}
		}
	}
	return nil
}

func validateCell(addr Address, c *Cell) error {
	if !addr.Valid() {
		return ErrInvalidAddress
	}
	if err := checkBounds(Range{Start: addr, End: addr}); err != nil {
		return err
	}
	if c.Formula == "" {
		raw, err := normalizeScalar(c.Raw)
		if err != nil {
			return err
		}
		c.Raw = raw
		return nil
	}
	if len(c.Formula) < 2 || c.Formula[0] != '=' {
		return ErrInvalidFormula
	}
	if c.Raw != nil {
		return ErrValueConflict
	}
	return nil
}

// StaleCells lists cells whose computed value was stamped by a different
// engine version than engineVersion.
func StaleCells(wb *Workbook, engineVersion string) []CellRef {
	var refs []CellRef
	for _, s := range wb.Sheets {
		for _, addr := range s.Addresses() {
			if c := s.Cells[addr]; c.Computed != nil && c.Computed.IsStale(engineVersion) {
				refs = append(refs, CellRef{Sheet: s.Name, Addr: addr})
			}
		}
	}
	return refs
}

func compareAddress(a, b Address) int {
	if c := cmp.Compare(a.Row, b.Row); c != 0 {
		return c
	}
	return cmp.Compare(a.Col, b.Col)
}

// normalizeScalar accepts string, bool, nil and any numeric kind, converting
// numbers to float64. Arrays, maps and structs are rejected.
func normalizeScalar(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool:
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, ErrNonScalarValue
		}
		return x, nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil, ErrNonScalarValue
		}
		return f, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32:
		return normalizeScalar(rv.Float())
	}
	return nil, ErrNonScalarValue
}
