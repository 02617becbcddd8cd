// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/OmniMCP-AI/sheetops/internal/logging"
	"github.com/OmniMCP-AI/sheetops/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateRequest is the body of POST /workbooks. Workbook takes precedence
// over Sheets; an empty body creates a workbook with one sheet.
type CreateRequest struct {
	ID       string             `json:"id"`
	Sheets   []string           `json:"sheets"`
	Workbook *sheetops.Workbook `json:"workbook"`
}

// CreateResponse is the body returned by POST /workbooks.
type CreateResponse struct {
	ID       string             `json:"id"`
	Workbook *sheetops.Workbook `json:"workbook"`
}

// ApplyRequest is the body of POST /workbooks/{id}/operations. A bare JSON
// array is accepted as the operations alone.
//
// Recompute selects the mode ("off", "sync", "deferred"). Sync is the short
// form: true means "sync", false means "deferred". ExpectedVersion, when set,
// rejects the batch unless the stored workbook is at that version.
type ApplyRequest struct {
	Operations      json.RawMessage `json:"operations"`
	Recompute       string          `json:"recompute,omitempty"`
	Sync            *bool           `json:"sync,omitempty"`
	DetectCircular  *bool           `json:"detectCircular,omitempty"`
	ExpectedVersion *int64          `json:"expectedVersion,omitempty"`
}

// RevertRequest is the body of POST /workbooks/{id}/revert.
type RevertRequest struct {
	BatchID string `json:"batchId"`
}

// RecalculateResponse is the body returned by POST /workbooks/{id}/recalculate.
type RecalculateResponse struct {
	ID           string `json:"id"`
	Version      int64  `json:"version"`
	FormulaCells int    `json:"formulaCells"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListWorkbooks(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.List(r.Context())
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

func (s *Server) handleCreateWorkbook(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	var req CreateRequest
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.respondError(w, r, fmt.Errorf("%w: %w", errBadRequest, err), nil)
			return
		}
	}
	wb := req.Workbook
	if wb == nil {
		wb = sheetops.NewWorkbook(req.Sheets...)
	}
	if err := wb.Validate(); err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	opts := s.cfg.ApplyOptions(s.logger)
	if opts.Recompute == sheetops.RecomputeSync && len(wb.FormulaCells()) > 0 {
		session := sheetops.NewSession(wb, s.newEngine(), opts)
		err := session.Recalculate()
		_ = session.Close()
		if err != nil {
			s.respondError(w, r, fmt.Errorf("%w: %w", errEngine, err), nil)
			return
		}
	}

	unlock := s.locks.Lock(req.ID)
	defer unlock()
	if err := s.store.Create(r.Context(), req.ID, wb); err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	logging.FromContext(r.Context(), s.logger).Info("workbook created", "id", req.ID, "sheets", len(wb.Sheets))
	respondJSON(w, http.StatusCreated, CreateResponse{ID: req.ID, Workbook: wb})
}

func (s *Server) handleGetWorkbook(w http.ResponseWriter, r *http.Request) {
	wb, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, wb)
}

func (s *Server) handleDeleteWorkbook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	unlock := s.locks.Lock(id)
	defer unlock()
	if err := s.store.Delete(r.Context(), id); err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApply runs one operation batch against a stored workbook. Per
// operation failures are part of a 200 response; only unusable input,
// missing workbooks, version conflicts and engine failures are errors.
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := s.readBody(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	req, err := parseApplyRequest(body)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	opts, err := s.applyOptions(req)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	ops, err := sheetops.DecodeOperations(req.Operations)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	wb, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != wb.Version {
		s.respondError(w, r, fmt.Errorf("%w: %s is at version %d, expected %d",
			store.ErrVersionConflict, id, wb.Version, *req.ExpectedVersion), nil)
		return
	}
	loadedVersion := wb.Version

	session := sheetops.NewSession(wb, s.newEngine(), opts)
	defer session.Close()
	res, err := session.Apply(ops)
	if err != nil {
		if res != nil {
			err = fmt.Errorf("%w: %w", errEngine, err)
		}
		s.respondError(w, r, err, res)
		return
	}

	rec := store.NewAuditRecord(res)
	if res.AppliedOps > 0 {
		err = s.store.Commit(r.Context(), id, wb, loadedVersion, &rec)
	} else {
		err = s.store.AppendAudit(r.Context(), id, rec)
	}
	if err != nil {
		s.respondError(w, r, err, res)
		return
	}
	res.Version = wb.Version

	logging.WithFields(r.Context(), s.logger, "id", id, "batch_id", res.BatchID).Info("batch applied",
		"operations", len(ops),
		"applied", res.AppliedOps,
		"errors", len(res.Errors),
		"version", res.Version,
		"recompute", opts.Recompute)
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := s.readBody(w, r)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	var req RevertRequest
	if err := json.Unmarshal(body, &req); err != nil || req.BatchID == "" {
		s.respondError(w, r, fmt.Errorf("%w: a batchId is required", errBadRequest), nil)
		return
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	wb, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	target, err := s.store.RevertTarget(r.Context(), id, req.BatchID)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	loadedVersion := wb.Version

	session := sheetops.NewSession(wb, s.newEngine(), s.cfg.ApplyOptions(s.logger))
	defer session.Close()
	if err := session.Revert(target.Diff); err != nil {
		if !errors.Is(err, sheetops.ErrInvalidDiff) {
			err = fmt.Errorf("%w: %w", errEngine, err)
		}
		s.respondError(w, r, err, nil)
		return
	}

	rec := store.NewRevertRecord(target.BatchID)
	if err := s.store.Commit(r.Context(), id, wb, loadedVersion, &rec); err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	logging.WithFields(r.Context(), s.logger, "id", id, "batch_id", rec.BatchID).Info("batch reverted",
		"revert_of", target.BatchID,
		"version", rec.Version)
	respondJSON(w, http.StatusOK, rec)
}

// handleRecalculate reloads a workbook into a fresh engine and refreshes
// every formula cell, for example after an engine upgrade flagged by
// reconciliation.
func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	unlock := s.locks.Lock(id)
	defer unlock()

	wb, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	loadedVersion := wb.Version
	session := sheetops.NewSession(wb, s.newEngine(), s.cfg.ApplyOptions(s.logger))
	defer session.Close()
	if err := session.Recalculate(); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", errEngine, err), nil)
		return
	}
	if err := s.store.Save(r.Context(), id, wb, loadedVersion); err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, RecalculateResponse{
		ID:           id,
		Version:      wb.Version,
		FormulaCells: len(wb.FormulaCells()),
	})
}

func (s *Server) handleCircular(w http.ResponseWriter, r *http.Request) {
	opts := s.cfg.ApplyOptions(s.logger)
	if v := r.URL.Query().Get("maxSample"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.respondError(w, r, fmt.Errorf("%w: maxSample must be a positive integer", errBadRequest), nil)
			return
		}
		opts.MaxSampleCells = n
	}
	wb, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	respondJSON(w, http.StatusOK, sheetops.DetectCircularReferences(wb, opts))
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.Get(r.Context(), id); err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	records, err := s.store.Audit(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	if records == nil {
		records = []store.AuditRecord{}
	}
	respondJSON(w, http.StatusOK, map[string][]store.AuditRecord{"records": records})
}

// readBody reads the request body up to the configured limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", errBadRequest, err)
	}
	return body, nil
}

// parseApplyRequest accepts either an ApplyRequest object or a bare
// operations array.
func parseApplyRequest(body []byte) (*ApplyRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return &ApplyRequest{Operations: trimmed}, nil
	}
	var req ApplyRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, fmt.Errorf("%w: %w", sheetops.ErrMalformedBatch, err)
	}
	return &req, nil
}

// applyOptions overlays the request's recompute and detection flags on the
// configured defaults.
func (s *Server) applyOptions(req *ApplyRequest) (sheetops.Options, error) {
	opts := s.cfg.ApplyOptions(s.logger)
	if req.Recompute != "" {
		mode, err := sheetops.ParseRecomputeMode(req.Recompute)
		if err != nil {
			return opts, fmt.Errorf("%w: %w", errBadRequest, err)
		}
		opts.Recompute = mode
	} else if req.Sync != nil {
		opts.Recompute = sheetops.RecomputeDeferred
		if *req.Sync {
			opts.Recompute = sheetops.RecomputeSync
		}
	}
	if req.DetectCircular != nil {
		opts.DetectCircular = *req.DetectCircular
	}
	return opts, nil
}
