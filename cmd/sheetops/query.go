// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"github.com/OmniMCP-AI/sheetops/duckdb"
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var (
		workbook    string
		memoryLimit string
		threads     int
		pretty      bool
	)
	cmd := &cobra.Command{
		Use:   "query SQL",
		Short: "Run a SQL query over a workbook document",
		Long: `query loads a workbook document into an in-memory DuckDB database and runs
one SQL statement against it. The database holds the tables sheets, cells
and one sheet_<name> table per sheet with a column per sheet column.`,
		Example: `  sheetops query --workbook book.json "SELECT address, value FROM cells WHERE formula IS NOT NULL"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := readWorkbook(workbook)
			if err != nil {
				return err
			}
			engine, err := duckdb.NewEngineWithConfig(&duckdb.Config{
				MemoryLimit: memoryLimit,
				Threads:     threads,
				Logger:      commandLogger(cmd),
			})
			if err != nil {
				return err
			}
			defer engine.Close()

			ctx := cmd.Context()
			if err := engine.Load(ctx, wb); err != nil {
				return err
			}
			res, err := engine.Query(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), "", res, pretty)
		},
	}
	cmd.Flags().StringVar(&workbook, "workbook", "", "Workbook JSON document (required)")
	cmd.Flags().StringVar(&memoryLimit, "memory-limit", duckdb.DefaultConfig().MemoryLimit, "DuckDB memory limit")
	cmd.Flags().IntVar(&threads, "threads", 0, "DuckDB worker threads (0 = auto)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	_ = cmd.MarkFlagRequired("workbook")
	return cmd
}
