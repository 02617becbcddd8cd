// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/OmniMCP-AI/sheetops/internal/logging"
	"github.com/OmniMCP-AI/sheetops/store"
)

var (
	// errBadRequest marks request bodies and parameters that cannot be used.
	errBadRequest = errors.New("bad request")
	// errEngine marks evaluation engine failures.
	errEngine = errors.New("evaluation engine failure")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// Result is the batch result when the batch ran but could not be
	// committed.
	Result *sheetops.BatchResult `json:"result,omitempty"`
}

// classify maps an error to its HTTP status and machine-readable code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, sheetops.ErrMalformedBatch):
		return http.StatusBadRequest, "malformed_batch"
	case errors.Is(err, sheetops.ErrInvalidWorkbook):
		return http.StatusBadRequest, "invalid_workbook"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrExists):
		return http.StatusConflict, "exists"
	case errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict, "version_conflict"
	case errors.Is(err, store.ErrNotRevertible), errors.Is(err, sheetops.ErrInvalidDiff):
		return http.StatusConflict, "not_revertible"
	case errors.Is(err, errEngine):
		return http.StatusBadGateway, "engine_failure"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

// respondError logs err with the request context and writes it as JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, res *sheetops.BatchResult) {
	status, code := classify(err)
	logger := logging.FromContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request error", "path", r.URL.Path, "method", r.Method, "status", status, "error", err)
	} else {
		logger.Debug("request rejected", "path", r.URL.Path, "method", r.Method, "status", status, "error", err)
	}
	respondJSON(w, status, ErrorResponse{Error: err.Error(), Code: code, Result: res})
}

// respondJSON writes v as a JSON response.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
