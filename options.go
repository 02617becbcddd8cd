// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"fmt"
	"io"
	"log/slog"
)

// DefaultMaxFillCells bounds the number of cells a single fill_range or
// format_range may touch.
const DefaultMaxFillCells = MaxRows

// RecomputeMode selects what happens to computed values after a batch.
type RecomputeMode string

// Recompute modes.
const (
	// RecomputeOff leaves computed values alone. Cells whose raw value or
	// formula was rewritten still lose their cached result.
	RecomputeOff RecomputeMode = "off"
	// RecomputeSync refreshes edited cells and all their dependents through
	// the evaluation engine before returning.
	RecomputeSync RecomputeMode = "sync"
	// RecomputeDeferred performs no evaluation and clears the cached result
	// of edited cells and their dependents.
	RecomputeDeferred RecomputeMode = "deferred"
)

// ParseRecomputeMode converts a mode name, accepting "" as RecomputeOff.
func ParseRecomputeMode(s string) (RecomputeMode, error) {
	switch m := RecomputeMode(s); m {
	case "":
		return RecomputeOff, nil
	case RecomputeOff, RecomputeSync, RecomputeDeferred:
		return m, nil
	}
	return "", fmt.Errorf("unknown recompute mode %q", s)
}

// Options define the options for applying, analyzing and recomputing a
// workbook.
//
// MaxSampleCells specifies the expansion bound of the range expander used
// by dependency analysis. Ranges with more cells are sampled.
//
// MaxFillCells specifies the largest range a mutating range operation may
// touch. Larger ranges fail with ErrRangeTooLarge.
//
// Recompute specifies how Session.Apply refreshes computed values.
//
// DetectCircular specifies whether Apply runs the circular reference guard
// on the resulting workbook and attaches the report to the result.
//
// Logger receives debug and timing output. A nil Logger discards it.
type Options struct {
	MaxSampleCells int
	MaxFillCells   int
	Recompute      RecomputeMode
	DetectCircular bool
	Logger         *slog.Logger
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		MaxSampleCells: DefaultMaxSampleCells,
		MaxFillCells:   DefaultMaxFillCells,
		Recompute:      RecomputeOff,
	}
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// getOptions returns the first options value with zero fields replaced by
// defaults.
func getOptions(opts ...Options) Options {
	o := DefaultOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.MaxSampleCells <= 0 {
		o.MaxSampleCells = DefaultMaxSampleCells
	}
	if o.MaxFillCells <= 0 {
		o.MaxFillCells = DefaultMaxFillCells
	}
	if o.Recompute == "" {
		o.Recompute = RecomputeOff
	}
	if o.Logger == nil {
		o.Logger = discardLogger
	}
	return o
}
