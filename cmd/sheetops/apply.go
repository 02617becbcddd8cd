// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/OmniMCP-AI/sheetops/internal/logging"
	"github.com/OmniMCP-AI/sheetops/xlengine"
	"github.com/spf13/cobra"
)

type applyFlags struct {
	workbook   string
	ops        string
	recompute  string
	detect     bool
	maxSample  int
	output     string
	resultPath string
	pretty     bool
}

func newApplyCmd() *cobra.Command {
	var f applyFlags
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply an operation batch to a workbook document",
		Long: `apply reads a workbook JSON document and a JSON array of operations, applies
the batch and writes the batch result. The updated workbook is written to
--output when given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd, &f)
		},
	}
	cmd.Flags().StringVar(&f.workbook, "workbook", "", "Workbook JSON document (required)")
	cmd.Flags().StringVar(&f.ops, "ops", "", "JSON array of operations (required)")
	cmd.Flags().StringVar(&f.recompute, "recompute", string(sheetops.RecomputeSync), "Recompute mode: off, sync, deferred")
	cmd.Flags().BoolVar(&f.detect, "detect", false, "Run circular reference detection after the batch")
	cmd.Flags().IntVar(&f.maxSample, "max-sample", sheetops.DefaultMaxSampleCells, "Range expansion bound for dependency analysis")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the updated workbook to this file")
	cmd.Flags().StringVar(&f.resultPath, "result", "", "Write the batch result to this file (default: stdout)")
	cmd.Flags().BoolVar(&f.pretty, "pretty", false, "Pretty-print JSON output")
	_ = cmd.MarkFlagRequired("workbook")
	_ = cmd.MarkFlagRequired("ops")
	return cmd
}

func runApply(cmd *cobra.Command, f *applyFlags) error {
	logger := commandLogger(cmd)
	mode, err := sheetops.ParseRecomputeMode(f.recompute)
	if err != nil {
		return err
	}
	wb, err := readWorkbook(f.workbook)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(f.ops)
	if err != nil {
		return err
	}
	ops, err := sheetops.DecodeOperations(data)
	if err != nil {
		return err
	}

	opts := sheetops.Options{
		MaxSampleCells: f.maxSample,
		Recompute:      mode,
		DetectCircular: f.detect,
		Logger:         logger,
	}
	var engine sheetops.Engine
	if mode == sheetops.RecomputeSync {
		cfg := xlengine.DefaultConfig()
		cfg.Logger = logger
		engine = xlengine.NewEngineWithConfig(cfg)
	}
	session := sheetops.NewSession(wb, engine, opts)
	defer session.Close()

	res, err := session.Apply(ops)
	if err != nil {
		return fmt.Errorf("apply failed: %w", err)
	}
	if err := writeJSON(cmd.OutOrStdout(), f.resultPath, res, f.pretty); err != nil {
		return err
	}
	if f.output != "" {
		if err := writeJSON(cmd.OutOrStdout(), f.output, wb, f.pretty); err != nil {
			return err
		}
	}
	logger.Info("batch applied", "applied", res.AppliedOps, "errors", len(res.Errors), "version", res.Version)
	return nil
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")
	return logging.New(cmd.ErrOrStderr(), level, format)
}
