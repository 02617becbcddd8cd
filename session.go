// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sheetops

import (
	"fmt"
	"io"
)

// Session is the runtime context of one workbook: the document, the
// evaluation engine bound to it and the options batches run with. Each
// workbook gets its own engine handle, so sessions for different workbooks
// can be used concurrently. A single Session is not safe for concurrent use.
type Session struct {
	Workbook *Workbook
	Engine   Engine
	Options  Options

	loaded bool
}

// NewSession binds a workbook to an engine. The engine may be nil when the
// options never ask for synchronous recomputation.
func NewSession(wb *Workbook, engine Engine, opts ...Options) *Session {
	return &Session{Workbook: wb, Engine: engine, Options: getOptions(opts...)}
}

// Apply applies a batch and then refreshes computed values according to
// Options.Recompute, so callers never issue an explicit recompute.
//
// A batch that moves, removes or renames cells or sheets reloads the whole
// workbook into the engine. An engine failure is returned together with the
// batch result: the edits are applied, only their computed values are
// missing.
func (s *Session) Apply(ops []Operation) (*BatchResult, error) {
	res, err := Apply(s.Workbook, ops, s.Options)
	if err != nil {
		return nil, err
	}
	if res.AppliedOps == 0 {
		return res, nil
	}
	if err := s.refresh(res.Diff); err != nil {
		return res, err
	}
	return res, nil
}

// Revert undoes a batch diff and refreshes computed values like Apply.
func (s *Session) Revert(diff []DiffEntry) error {
	if err := Revert(s.Workbook, diff); err != nil {
		return err
	}
	// Revert swaps in a rebuilt workbook, so the engine view is reloaded.
	s.loaded = false
	return s.refresh(diff)
}

// Recalculate reloads the workbook into the engine and refreshes every
// formula cell.
func (s *Session) Recalculate() error {
	if err := RecalculateAll(s.Workbook, s.Engine, s.Options); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

// DetectCircularReferences analyzes the session's workbook.
func (s *Session) DetectCircularReferences() *CircularReport {
	return DetectCircularReferences(s.Workbook, s.Options)
}

// Close releases the engine if it holds resources.
func (s *Session) Close() error {
	if c, ok := s.Engine.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Session) refresh(diff []DiffEntry) error {
	switch s.Options.Recompute {
	case RecomputeSync:
		if s.Engine == nil {
			return ErrNoEngine
		}
		if !s.loaded || StructuralChange(diff) {
			s.loaded = false
			return s.Recalculate()
		}
		if err := Sync(s.Workbook, s.Engine, EditedCells(diff), RecomputeSync, s.Options); err != nil {
			// The engine view may be half updated; reload it next time.
			s.loaded = false
			return err
		}
		return nil
	case RecomputeDeferred:
		if StructuralChange(diff) {
			InvalidateAll(s.Workbook)
			return nil
		}
		return Sync(s.Workbook, s.Engine, EditedCells(diff), RecomputeDeferred, s.Options)
	case RecomputeOff:
		return nil
	}
	return fmt.Errorf("unknown recompute mode %q", s.Options.Recompute)
}
