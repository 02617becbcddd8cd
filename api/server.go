// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package api exposes stored sheetops workbooks over HTTP. It parses
// operation batches, serializes requests per workbook id, runs them through
// a per-request session with its own evaluation engine and persists the
// outcome with an optimistic version check.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/OmniMCP-AI/sheetops/internal/config"
	"github.com/OmniMCP-AI/sheetops/store"
	"github.com/OmniMCP-AI/sheetops/xlengine"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP server of the sheetops service.
type Server struct {
	store  *store.Store
	cfg    *config.Config
	logger *slog.Logger
	locks  *keyedMutex
	router *chi.Mux
	server *http.Server

	// newEngine builds the evaluation engine of one request.
	newEngine func() sheetops.Engine
}

// NewServer creates a Server backed by st. A nil cfg uses config.Default and
// a nil logger uses slog.Default.
func NewServer(st *store.Store, cfg *config.Config, logger *slog.Logger) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  st,
		cfg:    cfg,
		logger: logger,
		locks:  newKeyedMutex(),
		router: chi.NewRouter(),
	}
	engineCfg := cfg.EngineOptions(logger)
	s.newEngine = func() sheetops.Engine {
		return xlengine.NewEngineWithConfig(engineCfg)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/workbooks", func(r chi.Router) {
		r.Get("/", s.handleListWorkbooks)
		r.Post("/", s.handleCreateWorkbook)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkbook)
			r.Delete("/", s.handleDeleteWorkbook)
			r.Post("/operations", s.handleApply)
			r.Post("/revert", s.handleRevert)
			r.Post("/recalculate", s.handleRecalculate)
			r.Get("/circular", s.handleCircular)
			r.Get("/audit", s.handleAudit)
		})
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	s.logger.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// requestLogger logs one line per request through the server's logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startTime := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(startTime),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
