// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"github.com/OmniMCP-AI/sheetops/internal/config"
	"github.com/OmniMCP-AI/sheetops/store"
	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var (
		configPath string
		workers    int
		pretty     bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "List stored cells computed by another engine version",
		Long: `reconcile scans every stored workbook and reports the cells whose computed
value was stamped by an engine version other than the configured one. It does
not modify the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger := commandLogger(cmd)
			st, err := store.Open(cfg.StoreOptions(logger))
			if err != nil {
				return err
			}
			defer st.Close()

			reports, err := st.Reconcile(cmd.Context(), cfg.Engine.Version, workers)
			if err != nil {
				return err
			}
			if reports == nil {
				reports = []store.StaleReport{}
			}
			return writeJSON(cmd.OutOrStdout(), "", reports, pretty)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (default: built-in defaults)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel workbook scans (default: GOMAXPROCS)")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Pretty-print JSON output")
	return cmd
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config <path>",
		Short: "Write the default configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.WriteDefault(args[0])
		},
	}
}
