// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"errors"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/spf13/cobra"
)

// errCircular makes detect exit non-zero when --fail is set and cycles exist.
var errCircular = errors.New("circular references found")

func newDetectCmd() *cobra.Command {
	var (
		workbook  string
		maxSample int
		fail      bool
		pretty    bool
	)
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Report circular references in a workbook document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wb, err := readWorkbook(workbook)
			if err != nil {
				return err
			}
			report := sheetops.DetectCircularReferences(wb, sheetops.Options{
				MaxSampleCells: maxSample,
				Logger:         commandLogger(cmd),
			})
			if err := writeJSON(cmd.OutOrStdout(), "", report, pretty); err != nil {
				return err
			}
			if fail && report.HasCircularReferences {
				return errCircular
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workbook, "workbook", "", "Workbook JSON document (required)")
	cmd.Flags().IntVar(&maxSample, "max-sample", sheetops.DefaultMaxSampleCells, "Range expansion bound")
	cmd.Flags().BoolVar(&fail, "fail", false, "Exit non-zero when circular references are found")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	_ = cmd.MarkFlagRequired("workbook")
	return cmd
}
