// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// opValidate checks the wire schema of decoded operations.
var opValidate *validator.Validate

func init() {
	opValidate = validator.New()
}

// DecodeOperations provides a function to parse a JSON array of tagged
// operation objects, for example:
//
//	[
//	    {"type": "set_cell", "sheet": "Sheet1", "cell": "A1", "value": 10},
//	    {"type": "fill_range", "sheet": "Sheet1", "range": "B1:B10", "formula": "=A{row}*2"}
//	]
//
// Anything that is not an array, an element that is not an object, an unknown
// type tag or a missing required field makes the whole batch malformed: the
// returned error wraps ErrMalformedBatch and no operation is returned.
// Semantic problems such as a missing sheet are left to Apply. Fill values
// that are not an array of arrays also wrap ErrFillShape.
func DecodeOperations(data []byte) ([]Operation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, fmt.Errorf("%w: operations must be a JSON array", ErrMalformedBatch)
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}
	ops := make([]Operation, 0, len(raws))
	for i, raw := range raws {
		op, err := decodeOperation(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: operation %d: %w", ErrMalformedBatch, i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func decodeOperation(raw json.RawMessage) (Operation, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, errors.New("operation must be a JSON object")
	}
	tag, ok := fields["type"]
	if !ok {
		return nil, errors.New(`missing "type"`)
	}
	var kind OpKind
	if err := json.Unmarshal(tag, &kind); err != nil {
		return nil, fmt.Errorf(`"type" must be a string: %v`, err)
	}

	var op Operation
	switch kind {
	case OpSetCell:
		o := &SetCell{}
		_, o.HasValue = fields["value"]
		op = o
	case OpFillRange:
		o := &FillRange{}
		_, o.HasValue = fields["value"]
		if values, ok := fields["values"]; ok {
			var matrix [][]json.RawMessage
			if err := json.Unmarshal(values, &matrix); err != nil {
				return nil, fmt.Errorf("%s: %w", kind, ErrFillShape)
			}
		}
		op = o
	case OpInsertRows:
		op = &InsertRows{}
	case OpInsertCols:
		op = &InsertCols{}
	case OpDeleteRows:
		op = &DeleteRows{}
	case OpDeleteCols:
		op = &DeleteCols{}
	case OpAddSheet:
		op = &AddSheet{}
	case OpRenameSheet:
		op = &RenameSheet{}
	case OpDeleteSheet:
		op = &DeleteSheet{}
	case OpFormatRange:
		op = &FormatRange{}
	default:
		return nil, fmt.Errorf("unknown operation type %q", kind)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(op); err != nil {
		return nil, fmt.Errorf("%s: %v", kind, err)
	}
	if err := opValidate.Struct(op); err != nil {
		return nil, fmt.Errorf("%s: %v", kind, err)
	}
	return op, nil
}

// UnmarshalJSON accepts "before" as a column number or column letters.
func (op *InsertCols) UnmarshalJSON(data []byte) error {
	type plain InsertCols
	aux := struct {
		*plain
		Before columnIndex `json:"before"`
	}{plain: (*plain)(op)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	op.Before = int(aux.Before)
	return nil
}

// UnmarshalJSON accepts "start" as a column number or column letters.
func (op *DeleteCols) UnmarshalJSON(data []byte) error {
	type plain DeleteCols
	aux := struct {
		*plain
		Start columnIndex `json:"start"`
	}{plain: (*plain)(op)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	op.Start = int(aux.Start)
	return nil
}

// columnIndex decodes 3, "3" or "C" to the same column number.
type columnIndex int

func (c *columnIndex) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if n, err := strconv.Atoi(s); err == nil {
			*c = columnIndex(n)
			return nil
		}
		n, err := ColumnNameToNumber(s)
		if err != nil {
			return err
		}
		*c = columnIndex(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = columnIndex(n)
	return nil
}
