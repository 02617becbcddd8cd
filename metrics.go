// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// operationsTotal counts applied operations by kind and outcome
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetops_operations_total",
		Help: "Total operations by kind and outcome",
	}, []string{"kind", "outcome"})

	// batchDuration tracks Apply latency
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sheetops_batch_duration_seconds",
		Help:    "Operation batch duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3s
	})

	// circularAnalysisDuration tracks circular reference analysis latency
	circularAnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sheetops_circular_analysis_seconds",
		Help:    "Circular reference analysis duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	// circularChainsTotal counts reported circular chains
	circularChainsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheetops_circular_chains_total",
		Help: "Total circular chains reported",
	})

	// recomputeCellsTotal counts refreshed or invalidated cells by mode
	recomputeCellsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheetops_recompute_cells_total",
		Help: "Total cells refreshed or invalidated by recompute mode",
	}, []string{"mode"})
)

func observeOperation(kind OpKind, err error) {
	outcome := "applied"
	if err != nil {
		outcome = "failed"
	}
	operationsTotal.WithLabelValues(string(kind), outcome).Inc()
}
