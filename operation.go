// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

// OpKind is the wire tag of an operation.
type OpKind string

// Operation kinds.
const (
	OpSetCell     OpKind = "set_cell"
	OpFillRange   OpKind = "fill_range"
	OpInsertRows  OpKind = "insert_rows"
	OpInsertCols  OpKind = "insert_cols"
	OpDeleteRows  OpKind = "delete_rows"
	OpDeleteCols  OpKind = "delete_cols"
	OpAddSheet    OpKind = "add_sheet"
	OpRenameSheet OpKind = "rename_sheet"
	OpDeleteSheet OpKind = "delete_sheet"
	OpFormatRange OpKind = "format_range"
)

// Operation is one edit in a batch. The set of implementations is closed:
// every variant lives in this package and dispatches through
// OperationVisitor, so adding a kind forces every visitor to handle it.
type Operation interface {
	Kind() OpKind
	Accept(v OperationVisitor) error
	operation()
}

// OperationVisitor has one handler per operation kind.
type OperationVisitor interface {
	VisitSetCell(op *SetCell) error
	VisitFillRange(op *FillRange) error
	VisitInsertRows(op *InsertRows) error
	VisitInsertCols(op *InsertCols) error
	VisitDeleteRows(op *DeleteRows) error
	VisitDeleteCols(op *DeleteCols) error
	VisitAddSheet(op *AddSheet) error
	VisitRenameSheet(op *RenameSheet) error
	VisitDeleteSheet(op *DeleteSheet) error
	VisitFormatRange(op *FormatRange) error
}

// SetCell overwrites the raw value or the formula of one cell. Exactly one of
// Value and Formula is used; HasValue distinguishes an explicit null value
// (which clears the cell) from an absent one.
type SetCell struct {
	Sheet    string `json:"sheet" validate:"required"`
	Cell     string `json:"cell" validate:"required"`
	Value    any    `json:"value,omitempty"`
	Formula  string `json:"formula,omitempty"`
	HasValue bool   `json:"-"`
}

// FillRange writes the same value, a formula template or a matrix of values
// to every cell of a range. Formula templates may use the {row} and {col}
// placeholders, replaced by each target cell's row number and column letters.
// Values must be a row-major matrix with exactly the range's shape.
type FillRange struct {
	Sheet    string  `json:"sheet" validate:"required"`
	Range    string  `json:"range" validate:"required"`
	Value    any     `json:"value,omitempty"`
	Formula  string  `json:"formula,omitempty"`
	Values   [][]any `json:"values,omitempty"`
	HasValue bool    `json:"-"`
}

// InsertRows inserts Count empty rows before row Before.
type InsertRows struct {
	Sheet  string `json:"sheet" validate:"required"`
	Before int    `json:"before" validate:"gte=1"`
	Count  int    `json:"count"`
}

// InsertCols inserts Count empty columns before column Before. Before may be
// given as a number or as column letters on the wire.
type InsertCols struct {
	Sheet  string `json:"sheet" validate:"required"`
	Before int    `json:"before" validate:"gte=1"`
	Count  int    `json:"count"`
}

// DeleteRows removes Count rows starting at row Start.
type DeleteRows struct {
	Sheet string `json:"sheet" validate:"required"`
	Start int    `json:"start" validate:"gte=1"`
	Count int    `json:"count"`
}

// DeleteCols removes Count columns starting at column Start.
type DeleteCols struct {
	Sheet string `json:"sheet" validate:"required"`
	Start int    `json:"start" validate:"gte=1"`
	Count int    `json:"count"`
}

// AddSheet appends an empty sheet.
type AddSheet struct {
	Name string `json:"name" validate:"required"`
}

// RenameSheet renames a sheet in place. Formulas referring to the old name
// are left as written.
type RenameSheet struct {
	OldName string `json:"oldName" validate:"required"`
	NewName string `json:"newName" validate:"required"`
}

// DeleteSheet removes a sheet and its cells. The last sheet cannot be
// deleted.
type DeleteSheet struct {
	Name string `json:"name" validate:"required"`
}

// FormatRange merges Format into the style of every cell of a range without
// touching raw values, formulas or computed results.
type FormatRange struct {
	Sheet  string `json:"sheet" validate:"required"`
	Range  string `json:"range" validate:"required"`
	Format Style  `json:"format" validate:"required"`
}

func (*SetCell) Kind() OpKind     { return OpSetCell }
func (*FillRange) Kind() OpKind   { return OpFillRange }
func (*InsertRows) Kind() OpKind  { return OpInsertRows }
func (*InsertCols) Kind() OpKind  { return OpInsertCols }
func (*DeleteRows) Kind() OpKind  { return OpDeleteRows }
func (*DeleteCols) Kind() OpKind  { return OpDeleteCols }
func (*AddSheet) Kind() OpKind    { return OpAddSheet }
func (*RenameSheet) Kind() OpKind { return OpRenameSheet }
func (*DeleteSheet) Kind() OpKind { return OpDeleteSheet }
func (*FormatRange) Kind() OpKind { return OpFormatRange }

func (op *SetCell) Accept(v OperationVisitor) error     { return v.VisitSetCell(op) }
func (op *FillRange) Accept(v OperationVisitor) error   { return v.VisitFillRange(op) }
func (op *InsertRows) Accept(v OperationVisitor) error  { return v.VisitInsertRows(op) }
func (op *InsertCols) Accept(v OperationVisitor) error  { return v.VisitInsertCols(op) }
func (op *DeleteRows) Accept(v OperationVisitor) error  { return v.VisitDeleteRows(op) }
func (op *DeleteCols) Accept(v OperationVisitor) error  { return v.VisitDeleteCols(op) }
func (op *AddSheet) Accept(v OperationVisitor) error    { return v.VisitAddSheet(op) }
func (op *RenameSheet) Accept(v OperationVisitor) error { return v.VisitRenameSheet(op) }
func (op *DeleteSheet) Accept(v OperationVisitor) error { return v.VisitDeleteSheet(op) }
func (op *FormatRange) Accept(v OperationVisitor) error { return v.VisitFormatRange(op) }

func (*SetCell) operation()     {}
func (*FillRange) operation()   {}
func (*InsertRows) operation()  {}
func (*InsertCols) operation()  {}
func (*DeleteRows) operation()  {}
func (*DeleteCols) operation()  {}
func (*AddSheet) operation()    {}
func (*RenameSheet) operation() {}
func (*DeleteSheet) operation() {}
func (*FormatRange) operation() {}
