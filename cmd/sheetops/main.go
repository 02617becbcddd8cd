// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package main provides the sheetops command line. It applies operation
// batches to workbook documents, reports circular references, serves the
// HTTP API, reconciles stored workbooks against the running engine version
// and runs SQL over workbook content.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sheetops",
		Short: "Apply structured edits to spreadsheet documents",
		Long: `sheetops applies batches of structured operations to workbook documents,
keeps formula results in sync through an evaluation engine and reports
circular references.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
	rootCmd.AddCommand(
		newApplyCmd(),
		newDetectCmd(),
		newQueryCmd(),
		newServeCmd(),
		newReconcileCmd(),
		newInitConfigCmd(),
	)
	return rootCmd
}

// readWorkbook loads and validates a workbook document.
func readWorkbook(path string) (*sheetops.Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var wb sheetops.Workbook
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("parse workbook %s: %w", path, err)
	}
	if err := wb.Validate(); err != nil {
		return nil, fmt.Errorf("workbook %s: %w", path, err)
	}
	return &wb, nil
}

// writeJSON serializes v to path, or to w when path is empty.
func writeJSON(w io.Writer, path string, v any, pretty bool) error {
	var (
		data []byte
		err  error
	)
	if pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
