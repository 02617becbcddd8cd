// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAddress defined the error message on a reference that is not
	// of the form [A-Za-z]+[0-9]+.
	ErrInvalidAddress = errors.New("invalid cell address")
	// ErrColumnName defined the error message on an invalid column name.
	ErrColumnName = errors.New("invalid column name")
	// ErrColumnNumber defined the error message on a column number that is
	// not positive or does not fit in an int.
	ErrColumnNumber = errors.New("invalid column number")
	// ErrRowNumber defined the error message on a row number below 1.
	ErrRowNumber = errors.New("invalid row number")
	// ErrInvalidRange defined the error message on a malformed range.
	ErrInvalidRange = errors.New("invalid range")
	// ErrRangeTooLarge defined the error message on a range holding more cells
	// than Options.MaxFillCells allows a mutating operation to touch.
	ErrRangeTooLarge = errors.New("range exceeds the maximum number of cells")
	// ErrSheetNotExist defined the error message on a missing sheet.
	ErrSheetNotExist = errors.New("sheet does not exist")
	// ErrSheetExists defined the error message on a sheet name collision.
	ErrSheetExists = errors.New("sheet already exists")
	// ErrSheetName defined the error message on an empty sheet name.
	ErrSheetName = errors.New("sheet name must not be empty")
	// ErrSheetNameLength defined the error message on a sheet name longer
	// than MaxSheetNameLength characters.
	ErrSheetNameLength = fmt.Errorf("sheet name length exceeds the %d characters limit", MaxSheetNameLength)
	// ErrSheetNameChar defined the error message on a sheet name containing
	// one of : \ / ? * [ ].
	ErrSheetNameChar = errors.New("sheet name can not contain any of the characters :\\/?*[]")
	// ErrSheetNameQuote defined the error message on a sheet name starting or
	// ending with an apostrophe.
	ErrSheetNameQuote = errors.New("sheet name can not start or end with a single quote")
	// ErrLastSheet defined the error message on deleting the only sheet.
	ErrLastSheet = errors.New("cannot delete the last remaining sheet")
	// ErrInvalidFormula defined the error message on a formula that does not
	// begin with "=".
	ErrInvalidFormula = errors.New("formula must start with '='")
	// ErrNonScalarValue defined the error message on an array or object
	// where a scalar (string, number, boolean or null) is required.
	ErrNonScalarValue = errors.New("value must be a string, number, boolean or null")
	// ErrValueConflict defined the error message on an operation carrying
	// more than one of value, formula and values.
	ErrValueConflict = errors.New("exactly one of value, formula or values must be set")
	// ErrFillShape defined the error message on fill values whose shape does
	// not match the target range.
	ErrFillShape = errors.New("fill values must be a rows x cols matrix matching the range")
	// ErrEmptyFormat defined the error message on a format_range without a
	// style payload.
	ErrEmptyFormat = errors.New("format must not be empty")
	// ErrInvalidCount defined the error message on a non-positive row or
	// column count.
	ErrInvalidCount = errors.New("count must be greater than zero")
	// ErrOutOfBounds defined the error message on a structural operation
	// reaching past the sheet's extents.
	ErrOutOfBounds = errors.New("range exceeds sheet bounds")
	// ErrMalformedBatch defined the error message on an operation list that
	// cannot be applied at all. No mutation happens.
	ErrMalformedBatch = errors.New("malformed operation batch")
	// ErrNoEngine defined the error message on a synchronous recompute
	// requested without an evaluation engine.
	ErrNoEngine = errors.New("no evaluation engine configured")
	// ErrInvalidDiff defined the error message on a diff that cannot be
	// reverted against the given workbook.
	ErrInvalidDiff = errors.New("diff cannot be reverted")
	// ErrInvalidWorkbook defined the error message on a workbook document
	// that breaks the model's structural rules.
	ErrInvalidWorkbook = errors.New("invalid workbook")
)

// AddressError records the input that failed address parsing.
type AddressError struct {
	Input string
	Err   error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Input)
}

func (e *AddressError) Unwrap() error {
	return e.Err
}

// SheetError records the sheet an error refers to.
type SheetError struct {
	Sheet string
	Err   error
}

func (e *SheetError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Sheet)
}

func (e *SheetError) Unwrap() error {
	return e.Err
}

// OpError is a per-operation failure recorded in a batch result. The batch
// keeps going after an OpError.
type OpError struct {
	OpIndex int    `json:"opIndex"`
	Kind    OpKind `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *OpError) Error() string {
	return fmt.Sprintf("operation %d (%s): %s", e.OpIndex, e.Kind, e.Message)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newOpError(index int, kind OpKind, err error) OpError {
	return OpError{OpIndex: index, Kind: kind, Message: err.Error(), Err: err}
}

func sheetNotExist(name string) error {
	return &SheetError{Sheet: name, Err: ErrSheetNotExist}
}
