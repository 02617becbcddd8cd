// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"math"
	"strconv"
	"strings"
)

// Address is a 1-based (row, column) cell coordinate. The column has no upper
// bound; its textual form uses bijective base-26 letters (A..Z, AA..AZ, ...).
type Address struct {
	Row int
	Col int
}

// Valid reports whether both coordinates are positive.
func (a Address) Valid() bool {
	return a.Row >= 1 && a.Col >= 1
}

// String returns the A1-style reference, or "" for an invalid address.
func (a Address) String() string {
	s, err := ToAddress(a.Row, a.Col)
	if err != nil {
		return ""
	}
	return s
}

// MarshalText encodes the address as an A1-style reference so that
// map[Address]*Cell serializes with keys like "B7".
func (a Address) MarshalText() ([]byte, error) {
	s, err := ToAddress(a.Row, a.Col)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// UnmarshalText parses an A1-style reference.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ColumnNumberToName provides a function to convert a 1-based column number
// to its letter name. For example:
//
//	name, err := sheetops.ColumnNumberToName(703) // "AAA"
func ColumnNumberToName(num int) (string, error) {
	if num < 1 {
		return "", &AddressError{Input: strconv.Itoa(num), Err: ErrColumnNumber}
	}
	var buf [16]byte
	i := len(buf)
	for num > 0 {
		num--
		i--
		buf[i] = byte('A' + num%26)
		num /= 26
	}
	return string(buf[i:]), nil
}

// ColumnNameToNumber provides a function to convert a column name (case
// insensitive) to its 1-based number. For example:
//
//	col, err := sheetops.ColumnNameToNumber("AZ") // 52
func ColumnNameToNumber(name string) (int, error) {
	if name == "" {
		return 0, &AddressError{Input: name, Err: ErrColumnName}
	}
	col := 0
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
		case ch >= 'a' && ch <= 'z':
			ch -= 'a' - 'A'
		default:
			return 0, &AddressError{Input: name, Err: ErrColumnName}
		}
		if col > (math.MaxInt-26)/26 {
			return 0, &AddressError{Input: name, Err: ErrColumnNumber}
		}
		col = col*26 + int(ch-'A'+1)
	}
	return col, nil
}

// ToAddress converts structural coordinates to an A1-style reference.
func ToAddress(row, col int) (string, error) {
	if row < 1 {
		return "", &AddressError{Input: strconv.Itoa(row), Err: ErrRowNumber}
	}
	name, err := ColumnNumberToName(col)
	if err != nil {
		return "", err
	}
	return name + strconv.Itoa(row), nil
}

// ParseAddress parses a reference of the exact form [A-Za-z]+[0-9]+ into
// structural coordinates. Anchors ($), sheet prefixes and whitespace are not
// accepted here; callers strip them first.
func ParseAddress(s string) (Address, error) {
	split := 0
	for split < len(s) && isASCIILetter(s[split]) {
		split++
	}
	if split == 0 || split == len(s) {
		return Address{}, &AddressError{Input: s, Err: ErrInvalidAddress}
	}
	for i := split; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return Address{}, &AddressError{Input: s, Err: ErrInvalidAddress}
		}
	}
	col, err := ColumnNameToNumber(s[:split])
	if err != nil {
		return Address{}, &AddressError{Input: s, Err: ErrInvalidAddress}
	}
	row, err := strconv.Atoi(s[split:])
	if err != nil || row < 1 {
		return Address{}, &AddressError{Input: s, Err: ErrInvalidAddress}
	}
	return Address{Row: row, Col: col}, nil
}

func isASCIILetter(ch byte) bool {
	return (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z')
}

// CellRef identifies a cell across the workbook and is the node identity used
// by the dependency index and the circular-reference guard.
type CellRef struct {
	Sheet string
	Addr  Address
}

// String returns the node id in "Sheet!A1" form.
func (r CellRef) String() string {
	return r.Sheet + "!" + r.Addr.String()
}

// ParseCellRef parses a "Sheet!A1" node id. Sheet names may be quoted.
func ParseCellRef(s string) (CellRef, error) {
	idx := strings.LastIndexByte(s, '!')
	if idx <= 0 {
		return CellRef{}, &AddressError{Input: s, Err: ErrInvalidAddress}
	}
	addr, err := ParseAddress(stripAnchors(s[idx+1:]))
	if err != nil {
		return CellRef{}, err
	}
	return CellRef{Sheet: unquoteSheetName(s[:idx]), Addr: addr}, nil
}

func stripAnchors(s string) string {
	if strings.IndexByte(s, '$') < 0 {
		return s
	}
	return strings.ReplaceAll(s, "$", "")
}

func unquoteSheetName(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
