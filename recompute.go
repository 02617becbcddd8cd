// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"fmt"
	"slices"
	"time"
)

// CellChange is the new content of one cell pushed to an evaluation engine.
// A change with neither Raw nor Formula clears the cell.
type CellChange struct {
	Ref     CellRef
	Raw     any
	Formula string
}

// EvalResult is one value computed by an evaluation engine. Evaluation
// errors such as #DIV/0! are results of type ValueTypeError, not Go errors.
type EvalResult struct {
	Ref   CellRef
	Value any
	Type  ValueType
}

// Engine is an external formula evaluation engine bound to one workbook.
//
// Reset replaces the engine's view with the given workbook. Update applies
// incremental cell changes. Recalculate evaluates the given cells and every
// formula cell that depends on them, directly or transitively, and returns
// their values in an order where precedents come before dependents. A
// returned error means the engine itself failed.
type Engine interface {
	Version() string
	Reset(wb *Workbook) error
	Update(changes []CellChange) error
	Recalculate(cells []CellRef) ([]EvalResult, error)
}

// Sync provides a function to bring the computed values of the edited cells
// and their dependents up to date.
//
// In RecomputeSync mode the edited cells are pushed to the engine, which
// evaluates them together with all their transitive dependents; every formula
// cell it reports gets a fresh Computed stamped with engine.Version(). The
// engine must already hold the workbook (see RecalculateAll).
//
// In RecomputeDeferred mode the engine is not called and may be nil; the
// cached result of every edited cell and dependent is cleared instead, so no
// stale value is ever served. RecomputeOff does nothing.
func Sync(wb *Workbook, engine Engine, edited []CellRef, mode RecomputeMode, opts ...Options) error {
	o := getOptions(opts...)
	switch mode {
	case RecomputeOff, "":
		return nil
	case RecomputeDeferred:
		cells := slices.Concat(edited, NewDependencyIndex(wb).Dependents(edited))
		n := invalidate(wb, cells)
		recomputeCellsTotal.WithLabelValues(string(mode)).Add(float64(n))
		o.Logger.Debug("deferred recompute", "edited", len(edited), "invalidated", n)
		return nil
	case RecomputeSync:
	default:
		return fmt.Errorf("unknown recompute mode %q", mode)
	}
	if engine == nil {
		return ErrNoEngine
	}
	if len(edited) == 0 {
		return nil
	}
	startTime := time.Now()

	changes := make([]CellChange, 0, len(edited))
	for _, ref := range edited {
		change := CellChange{Ref: ref}
		if c := wb.CellAt(ref); c != nil {
			change.Raw, change.Formula = c.Raw, c.Formula
		}
		changes = append(changes, change)
	}
	if err := engine.Update(changes); err != nil {
		return fmt.Errorf("engine update: %w", err)
	}
	results, err := engine.Recalculate(edited)
	if err != nil {
		return fmt.Errorf("engine recalculate: %w", err)
	}
	n := storeResults(wb, engine.Version(), results)
	recomputeCellsTotal.WithLabelValues(string(mode)).Add(float64(n))
	o.Logger.Debug("sync recompute",
		"edited", len(edited),
		"refreshed", n,
		"engine", engine.Version(),
		"duration", time.Since(startTime))
	return nil
}

// RecalculateAll loads the whole workbook into the engine and refreshes the
// computed value of every formula cell.
func RecalculateAll(wb *Workbook, engine Engine, opts ...Options) error {
	o := getOptions(opts...)
	if engine == nil {
		return ErrNoEngine
	}
	startTime := time.Now()
	if err := engine.Reset(wb); err != nil {
		return fmt.Errorf("engine reset: %w", err)
	}
	formulas := wb.FormulaCells()
	if len(formulas) == 0 {
		return nil
	}
	results, err := engine.Recalculate(formulas)
	if err != nil {
		return fmt.Errorf("engine recalculate: %w", err)
	}
	n := storeResults(wb, engine.Version(), results)
	recomputeCellsTotal.WithLabelValues(string(RecomputeSync)).Add(float64(n))
	o.Logger.Debug("full recompute",
		"formulas", len(formulas),
		"refreshed", n,
		"engine", engine.Version(),
		"duration", time.Since(startTime))
	return nil
}

// InvalidateAll clears the computed value of every formula cell.
func InvalidateAll(wb *Workbook) int {
	return invalidate(wb, wb.FormulaCells())
}

func invalidate(wb *Workbook, cells []CellRef) int {
	n := 0
	for _, ref := range cells {
		if c := wb.CellAt(ref); c != nil && c.Computed != nil {
			c.Computed = nil
			n++
		}
	}
	return n
}

// storeResults writes engine results back to formula cells. Results for
// cells without a formula are dropped.
func storeResults(wb *Workbook, version string, results []EvalResult) int {
	n := 0
	for _, r := range results {
		c := wb.CellAt(r.Ref)
		if !c.HasFormula() {
			continue
		}
		c.Computed = &Computed{Value: r.Value, Type: r.Type, EngineVersion: version}
		n++
	}
	return n
}
