// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package xlengine

import (
	"errors"
	"testing"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ sheetops.Engine = (*Engine)(nil)

func ref(t *testing.T, s string) sheetops.CellRef {
	t.Helper()
	r, err := sheetops.ParseCellRef(s)
	require.NoError(t, err)
	return r
}

func computed(t *testing.T, wb *sheetops.Workbook, s string) *sheetops.Computed {
	t.Helper()
	c := wb.CellAt(ref(t, s))
	require.NotNil(t, c, s)
	return c.Computed
}

func TestEngineSyncRecompute(t *testing.T) {
	wb := sheetops.NewWorkbook()
	engine := NewEngine()
	defer engine.Close()
	s := sheetops.NewSession(wb, engine, sheetops.Options{Recompute: sheetops.RecomputeSync})

	res, err := s.Apply([]sheetops.Operation{
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "A1", Value: 10},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "B1", Formula: "=A1*2"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, &sheetops.Computed{Value: 20.0, Type: sheetops.ValueTypeNumber, EngineVersion: DefaultVersion},
		computed(t, wb, "Sheet1!B1"))

	_, err = s.Apply([]sheetops.Operation{&sheetops.SetCell{Sheet: "Sheet1", Cell: "A1", Value: 50}})
	require.NoError(t, err)
	assert.Equal(t, 100.0, computed(t, wb, "Sheet1!B1").Value)
}

func TestEngineRecalculateDependents(t *testing.T) {
	wb := sheetops.NewWorkbook("Sheet1", "Data")
	_, err := sheetops.Apply(wb, []sheetops.Operation{
		&sheetops.SetCell{Sheet: "Data", Cell: "A1", Value: 2},
		&sheetops.SetCell{Sheet: "Data", Cell: "A2", Value: 3},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "A1", Formula: "=SUM(Data!A1:A2)"},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "B1", Formula: "=A1*A1"},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "C1", Value: "unrelated"},
	})
	require.NoError(t, err)

	engine := NewEngine()
	defer engine.Close()
	require.NoError(t, engine.Reset(wb))
	results, err := engine.Recalculate([]sheetops.CellRef{ref(t, "Data!A2")})
	require.NoError(t, err)
	assert.Equal(t, []sheetops.EvalResult{
		{Ref: ref(t, "Sheet1!A1"), Value: 5.0, Type: sheetops.ValueTypeNumber},
		{Ref: ref(t, "Sheet1!B1"), Value: 25.0, Type: sheetops.ValueTypeNumber},
	}, results)

	require.NoError(t, engine.Update([]sheetops.CellChange{{Ref: ref(t, "Data!A2"), Raw: 8.0}}))
	results, err = engine.Recalculate([]sheetops.CellRef{ref(t, "Data!A2")})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 100.0, results[1].Value)

	results, err = engine.Recalculate([]sheetops.CellRef{ref(t, "Sheet1!C1")})
	require.NoError(t, err)
	assert.Empty(t, results)

	err = engine.Update([]sheetops.CellChange{{Ref: ref(t, "Missing!A1"), Raw: 1.0}})
	assert.ErrorIs(t, err, sheetops.ErrSheetNotExist)
}

func TestEngineValueTypes(t *testing.T) {
	wb := sheetops.NewWorkbook()
	_, err := sheetops.Apply(wb, []sheetops.Operation{
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "A1", Value: "hello"},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "B1", Formula: `=A1&" world"`},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "B2", Formula: "=1/0"},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "B3", Formula: "=1=1"},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "B4", Formula: "=Z99"},
	})
	require.NoError(t, err)
	engine := NewEngineWithConfig(&Config{Version: "test"})
	defer engine.Close()
	require.NoError(t, sheetops.RecalculateAll(wb, engine))

	assert.Equal(t, &sheetops.Computed{Value: "hello world", Type: sheetops.ValueTypeString, EngineVersion: "test"},
		computed(t, wb, "Sheet1!B1"))
	assert.Equal(t, &sheetops.Computed{Value: "#DIV/0!", Type: sheetops.ValueTypeError, EngineVersion: "test"},
		computed(t, wb, "Sheet1!B2"))
	assert.Equal(t, true, computed(t, wb, "Sheet1!B3").Value)
	assert.Equal(t, sheetops.ValueTypeBoolean, computed(t, wb, "Sheet1!B3").Type)
	assert.NotNil(t, computed(t, wb, "Sheet1!B4"))
}

func TestEngineStructuralReset(t *testing.T) {
	wb := sheetops.NewWorkbook()
	engine := NewEngine()
	defer engine.Close()
	s := sheetops.NewSession(wb, engine, sheetops.Options{Recompute: sheetops.RecomputeSync})
	_, err := s.Apply([]sheetops.Operation{
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "A1", Value: 4},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "B1", Formula: "=Other!A1+A1"},
	})
	require.NoError(t, err)

	_, err = s.Apply([]sheetops.Operation{
		&sheetops.AddSheet{Name: "Other"},
		&sheetops.SetCell{Sheet: "Other", Cell: "A1", Value: 6},
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, computed(t, wb, "Sheet1!B1").Value)
}

func TestEngineSheetNamesDifferingByCase(t *testing.T) {
	wb := sheetops.NewWorkbook("Sheet1", "Data")
	engine := NewEngine()
	defer engine.Close()
	s := sheetops.NewSession(wb, engine, sheetops.Options{Recompute: sheetops.RecomputeSync})
	res, err := s.Apply([]sheetops.Operation{
		&sheetops.SetCell{Sheet: "Data", Cell: "A1", Value: 1},
		&sheetops.AddSheet{Name: "data"},
		&sheetops.SetCell{Sheet: "data", Cell: "A1", Value: 2},
		&sheetops.SetCell{Sheet: "Sheet1", Cell: "B1", Formula: "=Data!A1"},
	})
	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	assert.ErrorIs(t, &res.Errors[0], sheetops.ErrSheetExists)
	assert.ErrorIs(t, &res.Errors[1], sheetops.ErrSheetNotExist)
	assert.Equal(t, []string{"Sheet1", "Data"}, wb.SheetNames())
	assert.Equal(t, 1.0, computed(t, wb, "Sheet1!B1").Value)

	// A workbook built by hand never reaches excelize with colliding names.
	other := NewEngine()
	defer other.Close()
	assert.ErrorIs(t, other.Reset(sheetops.NewWorkbook("Data", "DATA")), sheetops.ErrSheetExists)
}

func TestTypedResult(t *testing.T) {
	r := ref(t, "S!A1")
	for _, c := range []struct {
		value  string
		err    error
		expect sheetops.EvalResult
	}{
		{"", nil, sheetops.EvalResult{Ref: r, Type: sheetops.ValueTypeEmpty}},
		{"1.5", nil, sheetops.EvalResult{Ref: r, Value: 1.5, Type: sheetops.ValueTypeNumber}},
		{"FALSE", nil, sheetops.EvalResult{Ref: r, Value: false, Type: sheetops.ValueTypeBoolean}},
		{"#N/A", nil, sheetops.EvalResult{Ref: r, Value: "#N/A", Type: sheetops.ValueTypeError}},
		{"#VALUE!", errors.New("#VALUE!"), sheetops.EvalResult{Ref: r, Value: "#VALUE!", Type: sheetops.ValueTypeError}},
		{"", errors.New("bad formula"), sheetops.EvalResult{Ref: r, Value: "bad formula", Type: sheetops.ValueTypeError}},
		{"NaN", nil, sheetops.EvalResult{Ref: r, Value: "NaN", Type: sheetops.ValueTypeString}},
		{"abc", nil, sheetops.EvalResult{Ref: r, Value: "abc", Type: sheetops.ValueTypeString}},
	} {
		assert.Equal(t, c.expect, typedResult(r, c.value, c.err), c.value)
	}
}

func TestEngineClosed(t *testing.T) {
	engine := NewEngine()
	require.NoError(t, engine.Reset(sheetops.NewWorkbook()))
	_, err := engine.Recalculate(nil)
	require.NoError(t, err)
	require.NoError(t, engine.Close())
	require.NoError(t, engine.Close())

	assert.ErrorIs(t, engine.Reset(sheetops.NewWorkbook()), ErrClosed)
	assert.ErrorIs(t, engine.Update(nil), ErrClosed)
	_, err = engine.Recalculate(nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, DefaultVersion, engine.Version())
}
