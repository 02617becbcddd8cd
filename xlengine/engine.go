// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package xlengine provides a formula evaluation engine for sheetops backed
// by the excelize calculation engine. One Engine serves one workbook.
package xlengine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/xuri/excelize/v2"
)

// DefaultVersion identifies the calculation engine build that stamps
// computed values.
const DefaultVersion = "excelize/v2.10.0"

// ErrClosed is returned by every method of a closed engine.
var ErrClosed = errors.New("xlengine: engine closed")

// Config holds configuration options for the engine.
type Config struct {
	// Version is the identifier stamped on computed values
	Version string
	// MaxCalcIterations bounds iterative calculation of circular formulas
	MaxCalcIterations uint
	// Logger receives timing output (nil = discard)
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration for the engine.
func DefaultConfig() *Config {
	return &Config{
		Version:           DefaultVersion,
		MaxCalcIterations: 100,
	}
}

// Engine keeps a mirror of a workbook's cells, a dependency index over its
// formulas and an excelize file built from the mirror. The file is rebuilt
// lazily after cell changes, so calculation never sees cached results from
// before an update.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	order  []string
	sheets map[string]map[sheetops.Address]mirrorCell
	index  *sheetops.DependencyIndex
	file   *excelize.File
	dirty  bool
	closed bool
}

type mirrorCell struct {
	raw     any
	formula string
}

// NewEngine creates an engine with the default configuration.
func NewEngine() *Engine {
	return NewEngineWithConfig(DefaultConfig())
}

// NewEngineWithConfig creates an engine with a custom configuration.
func NewEngineWithConfig(cfg *Config) *Engine {
	c := *DefaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		cfg:    c,
		sheets: make(map[string]map[sheetops.Address]mirrorCell),
		index:  sheetops.NewDependencyIndex(nil),
		dirty:  true,
	}
}

// Version returns the identifier stamped on computed values.
func (e *Engine) Version() string {
	return e.cfg.Version
}

// Reset replaces the mirrored workbook.
func (e *Engine) Reset(wb *sheetops.Workbook) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if wb == nil {
		return errors.New("xlengine: nil workbook")
	}
	// excelize resolves sheet names case-insensitively, so two mirrors
	// differing only by case would share one worksheet.
	seen := make(map[string]string, len(wb.Sheets))
	for _, name := range wb.SheetNames() {
		if prev, ok := seen[strings.ToLower(name)]; ok {
			return fmt.Errorf("xlengine: sheet %q collides with %q: %w", name, prev, sheetops.ErrSheetExists)
		}
		seen[strings.ToLower(name)] = name
	}
	e.order = wb.SheetNames()
	e.sheets = make(map[string]map[sheetops.Address]mirrorCell, len(wb.Sheets))
	for _, s := range wb.Sheets {
		cells := make(map[sheetops.Address]mirrorCell, len(s.Cells))
		for addr, c := range s.Cells {
			if c.Raw != nil || c.Formula != "" {
				cells[addr] = mirrorCell{raw: c.Raw, formula: c.Formula}
			}
		}
		e.sheets[s.Name] = cells
	}
	e.index = sheetops.NewDependencyIndex(wb)
	e.dirty = true
	return nil
}

// Update applies cell changes to the mirror.
func (e *Engine) Update(changes []sheetops.CellChange) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	for _, ch := range changes {
		cells, ok := e.sheets[ch.Ref.Sheet]
		if !ok {
			return fmt.Errorf("xlengine: update %s: %w", ch.Ref, sheetops.ErrSheetNotExist)
		}
		if ch.Raw == nil && ch.Formula == "" {
			delete(cells, ch.Ref.Addr)
		} else {
			cells[ch.Ref.Addr] = mirrorCell{raw: ch.Raw, formula: ch.Formula}
		}
		e.index.Set(ch.Ref, ch.Formula)
	}
	if len(changes) > 0 {
		e.dirty = true
	}
	return nil
}

// Recalculate evaluates the formula cells among cells together with every
// formula cell depending on them, level by level.
func (e *Engine) Recalculate(cells []sheetops.CellRef) ([]sheetops.EvalResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	startTime := time.Now()
	if e.dirty {
		if err := e.rebuild(); err != nil {
			return nil, err
		}
	}

	targets := make([]sheetops.CellRef, 0, len(cells))
	for _, ref := range cells {
		if e.isFormula(ref) {
			targets = append(targets, ref)
		}
	}
	targets = append(targets, e.index.Dependents(cells)...)
	levels := e.index.Levels(targets)

	opts := excelize.Options{RawCellValue: true, MaxCalcIterations: e.cfg.MaxCalcIterations}
	var results []sheetops.EvalResult
	for _, level := range levels {
		for _, ref := range level {
			if !e.isFormula(ref) {
				continue
			}
			value, err := e.file.CalcCellValue(ref.Sheet, ref.Addr.String(), opts)
			results = append(results, typedResult(ref, value, err))
		}
	}
	e.cfg.Logger.Debug("recalculated",
		"requested", len(cells),
		"evaluated", len(results),
		"levels", len(levels),
		"duration", time.Since(startTime))
	return results, nil
}

// Close releases the excelize file.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.file != nil {
		err := e.file.Close()
		e.file = nil
		return err
	}
	return nil
}

func (e *Engine) isFormula(ref sheetops.CellRef) bool {
	c, ok := e.sheets[ref.Sheet][ref.Addr]
	return ok && c.formula != ""
}

// rebuild writes the mirror into a fresh excelize file.
func (e *Engine) rebuild() error {
	if e.file != nil {
		_ = e.file.Close()
		e.file = nil
	}
	f := excelize.NewFile()
	for i, name := range e.order {
		var err error
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), name)
		} else {
			_, err = f.NewSheet(name)
		}
		if err != nil {
			_ = f.Close()
			return fmt.Errorf("xlengine: sheet %q: %w", name, err)
		}
		for addr, c := range e.sheets[name] {
			cell := addr.String()
			if c.formula != "" {
				err = f.SetCellFormula(name, cell, strings.TrimPrefix(c.formula, "="))
			} else {
				err = f.SetCellValue(name, cell, c.raw)
			}
			if err != nil {
				_ = f.Close()
				return fmt.Errorf("xlengine: %s!%s: %w", name, cell, err)
			}
		}
	}
	e.file = f
	e.dirty = false
	return nil
}

// typedResult classifies a raw calculation result. Formula errors reported
// by excelize become error values.
func typedResult(ref sheetops.CellRef, value string, err error) sheetops.EvalResult {
	res := sheetops.EvalResult{Ref: ref}
	switch {
	case err != nil:
		res.Type = sheetops.ValueTypeError
		res.Value = value
		if !strings.HasPrefix(value, "#") {
			res.Value = err.Error()
		}
	case value == "":
		res.Type = sheetops.ValueTypeEmpty
	case isErrorCode(value):
		res.Type, res.Value = sheetops.ValueTypeError, value
	case value == "TRUE" || value == "FALSE":
		res.Type, res.Value = sheetops.ValueTypeBoolean, value == "TRUE"
	default:
		if n, perr := strconv.ParseFloat(value, 64); perr == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			res.Type, res.Value = sheetops.ValueTypeNumber, n
		} else {
			res.Type, res.Value = sheetops.ValueTypeString, value
		}
	}
	return res
}

var errorCodes = map[string]struct{}{
	"#NULL!": {}, "#DIV/0!": {}, "#VALUE!": {}, "#REF!": {}, "#NAME?": {},
	"#NUM!": {}, "#N/A": {}, "#GETTING_DATA": {}, "#SPILL!": {}, "#CALC!": {},
}

func isErrorCode(s string) bool {
	_, ok := errorCodes[s]
	return ok
}
