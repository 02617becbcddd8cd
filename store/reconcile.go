// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package store

import (
	"context"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/OmniMCP-AI/sheetops"
	"golang.org/x/sync/errgroup"
)

// StaleReport lists the cells of one stored workbook whose computed value was
// produced by a different engine version than the running one.
type StaleReport struct {
	ID      string   `json:"id"`
	Version int64    `json:"version"`
	Cells   []string `json:"cells"`
}

// Reconcile scans every stored workbook with up to workers goroutines and
// reports those holding computed values stamped by an engine version other
// than engineVersion. Workbooks are not modified. Reports are sorted by id.
func (s *Store) Reconcile(ctx context.Context, engineVersion string, workers int) ([]StaleReport, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	startTime := time.Now()
	ids, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var reports []StaleReport
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range ids {
		g.Go(func() error {
			wb, err := s.Get(gCtx, id)
			if err != nil {
				return err
			}
			stale := sheetops.StaleCells(wb, engineVersion)
			if len(stale) == 0 {
				return nil
			}
			report := StaleReport{ID: id, Version: wb.Version, Cells: make([]string, len(stale))}
			for i, ref := range stale {
				report.Cells[i] = ref.String()
			}
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slices.SortFunc(reports, func(a, b StaleReport) int { return strings.Compare(a.ID, b.ID) })
	s.logger.Info("reconcile finished",
		"workbooks", len(ids),
		"stale", len(reports),
		"engine", engineVersion,
		"duration", time.Since(startTime))
	return reports, nil
}
