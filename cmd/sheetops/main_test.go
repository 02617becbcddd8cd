// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApplyCommand(t *testing.T) {
	dir := t.TempDir()
	wbPath := writeFile(t, dir, "wb.json", `{"sheets":[{"name":"Sheet1","cells":{"A1":{"raw":10}}}]}`)
	opsPath := writeFile(t, dir, "ops.json", `[
		{"type":"set_cell","sheet":"Sheet1","cell":"B1","formula":"=A1*2"},
		{"type":"set_cell","sheet":"Nope","cell":"B1","value":1}]`)
	outPath := filepath.Join(dir, "out.json")

	stdout, err := execute(t, "apply", "--workbook", wbPath, "--ops", opsPath, "-o", outPath)
	require.NoError(t, err)

	var res sheetops.BatchResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.False(t, res.Success)
	assert.Equal(t, 1, res.AppliedOps)
	assert.Equal(t, int64(1), res.Version)

	wb, err := readWorkbook(outPath)
	require.NoError(t, err)
	ref, err := sheetops.ParseCellRef("Sheet1!B1")
	require.NoError(t, err)
	require.NotNil(t, wb.CellAt(ref).Computed)
	assert.Equal(t, 20.0, wb.CellAt(ref).Computed.Value)
}

func TestApplyCommandErrors(t *testing.T) {
	dir := t.TempDir()
	wbPath := writeFile(t, dir, "wb.json", `{"sheets":[{"name":"Sheet1"}]}`)
	badOps := writeFile(t, dir, "bad.json", `{"type":"set_cell"}`)
	goodOps := writeFile(t, dir, "ops.json", `[]`)

	_, err := execute(t, "apply", "--workbook", wbPath, "--ops", badOps)
	assert.ErrorIs(t, err, sheetops.ErrMalformedBatch)

	_, err = execute(t, "apply", "--workbook", wbPath, "--ops", goodOps, "--recompute", "eager")
	assert.Error(t, err)

	_, err = execute(t, "apply", "--ops", goodOps)
	assert.Error(t, err)

	emptyWb := writeFile(t, dir, "empty.json", `{"sheets":[]}`)
	_, err = execute(t, "apply", "--workbook", emptyWb, "--ops", goodOps)
	assert.ErrorIs(t, err, sheetops.ErrInvalidWorkbook)
}

func TestDetectCommand(t *testing.T) {
	dir := t.TempDir()
	wbPath := writeFile(t, dir, "wb.json", `{"sheets":[{"name":"Sheet1","cells":{
		"A1":{"raw":null,"formula":"=SUM(B1:B3)"},
		"B2":{"raw":null,"formula":"=A1*2"}}}]}`)

	stdout, err := execute(t, "detect", "--workbook", wbPath)
	require.NoError(t, err)
	var report sheetops.CircularReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.HasCircularReferences)

	_, err = execute(t, "detect", "--workbook", wbPath, "--fail")
	assert.ErrorIs(t, err, errCircular)
}

func TestQueryCommand(t *testing.T) {
	dir := t.TempDir()
	wbPath := writeFile(t, dir, "wb.json", `{"sheets":[{"name":"Sheet1","cells":{
		"A1":{"raw":4},"A2":{"raw":6},"B1":{"raw":"x"}}}]}`)

	stdout, err := execute(t, "query", "--workbook", wbPath, "--threads", "1",
		"SELECT SUM(number) AS total, COUNT(*) AS n FROM cells")
	require.NoError(t, err)
	var res struct {
		Columns []string `json:"columns"`
		Rows    [][]any  `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, []string{"total", "n"}, res.Columns)
	assert.Equal(t, [][]any{{10.0, 3.0}}, res.Rows)

	_, err = execute(t, "query", "--workbook", wbPath, "SELECT * FROM nowhere")
	assert.Error(t, err)
	_, err = execute(t, "query", "--workbook", wbPath)
	assert.Error(t, err)
}

func TestReconcileCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sheetops.yaml")
	_, err := execute(t, "init-config", cfgPath)
	require.NoError(t, err)

	t.Setenv("SHEETOPS_STORE_PATH", filepath.Join(dir, "data"))
	stdout, err := execute(t, "reconcile", "--config", cfgPath)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, stdout)
}
