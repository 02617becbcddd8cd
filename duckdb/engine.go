// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package duckdb loads sheetops workbooks into an in-memory DuckDB database
// so their content can be inspected with SQL.
//
// A loaded workbook is exposed as three kinds of tables:
//
//	sheets           one row per sheet: name, position, row_count, col_count, cells
//	cells            one row per stored cell with its raw value split by type,
//	                 its formula and its cached computed value
//	sheet_<name>     one table per sheet: row_num plus one VARCHAR column per
//	                 sheet column (a, b, c, ...) holding the display value
//
// The display value of a formula cell is its computed value, or NULL when
// none is cached.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OmniMCP-AI/sheetops"
	_ "github.com/marcboeker/go-duckdb"
)

// ErrNotLoaded is returned by Query before any workbook was loaded.
var ErrNotLoaded = errors.New("duckdb: no workbook loaded")

// Config holds configuration options for the DuckDB engine.
type Config struct {
	// MemoryLimit sets the maximum memory DuckDB can use (e.g., "1GB")
	MemoryLimit string
	// Threads sets the number of threads DuckDB should use (0 = auto)
	Threads int
	// AllowExternalAccess keeps DuckDB's file and network readers enabled.
	// Queries from untrusted callers need it off.
	AllowExternalAccess bool
	// Logger receives load and query timing (nil = discard)
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration for the DuckDB engine.
func DefaultConfig() *Config {
	return &Config{
		MemoryLimit: "1GB",
	}
}

// Engine is an in-memory DuckDB database holding one workbook at a time.
// It is safe for concurrent use.
type Engine struct {
	db     *sql.DB
	mu     sync.RWMutex
	logger *slog.Logger
	tables map[string]string // sheet name -> table name
	loaded bool
}

// Result is the materialized outcome of a query.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// NewEngine creates a DuckDB engine with the default configuration.
func NewEngine() (*Engine, error) {
	return NewEngineWithConfig(DefaultConfig())
}

// NewEngineWithConfig creates a DuckDB engine with a custom configuration.
func NewEngineWithConfig(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	// A single connection keeps session settings and tables in one place.
	db.SetMaxOpenConns(1)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{
		db:     db,
		logger: logger,
		tables: make(map[string]string),
	}
	if err := e.applyConfig(cfg); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply config: %w", err)
	}
	return e, nil
}

// applyConfig applies configuration settings to the DuckDB database.
func (e *Engine) applyConfig(cfg *Config) error {
	if cfg.MemoryLimit != "" {
		if !memoryLimitRe.MatchString(cfg.MemoryLimit) {
			return fmt.Errorf("invalid memory limit %q", cfg.MemoryLimit)
		}
		if _, err := e.db.Exec(fmt.Sprintf("SET memory_limit = '%s'", cfg.MemoryLimit)); err != nil {
			return fmt.Errorf("failed to set memory_limit: %w", err)
		}
	}
	if cfg.Threads > 0 {
		if _, err := e.db.Exec(fmt.Sprintf("SET threads = %d", cfg.Threads)); err != nil {
			return fmt.Errorf("failed to set threads: %w", err)
		}
	}
	if !cfg.AllowExternalAccess {
		if _, err := e.db.Exec("SET enable_external_access = false"); err != nil {
			return fmt.Errorf("failed to disable external access: %w", err)
		}
	}
	return nil
}

var memoryLimitRe = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?\s*[KMGT]?i?B$`)

// Load replaces the database content with wb.
func (e *Engine) Load(ctx context.Context, wb *sheetops.Workbook) error {
	if wb == nil {
		return errors.New("duckdb: nil workbook")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	startTime := time.Now()

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range e.tables {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	if err := createSchema(ctx, tx); err != nil {
		return err
	}

	tables := make(map[string]string, len(wb.Sheets))
	used := map[string]struct{}{"sheets": {}, "cells": {}}
	cells := 0
	for pos, s := range wb.Sheets {
		if _, err := tx.ExecContext(ctx, "INSERT INTO sheets VALUES ($1, $2, $3, $4, $5)",
			s.Name, pos, s.RowCount, s.ColCount, len(s.Cells)); err != nil {
			return fmt.Errorf("failed to insert sheet %s: %w", s.Name, err)
		}
		if err := insertCells(ctx, tx, s); err != nil {
			return err
		}
		table := uniqueTableName(sanitizeTableName(s.Name), used)
		if err := loadSheetTable(ctx, tx, table, s); err != nil {
			return err
		}
		tables[s.Name] = table
		cells += len(s.Cells)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workbook: %w", err)
	}
	e.tables, e.loaded = tables, true
	e.logger.Debug("workbook loaded into duckdb",
		"sheets", len(wb.Sheets),
		"cells", cells,
		"duration", time.Since(startTime))
	return nil
}

func createSchema(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`CREATE OR REPLACE TABLE sheets (
			name VARCHAR, position INTEGER, row_count INTEGER, col_count INTEGER, cells INTEGER)`,
		`CREATE OR REPLACE TABLE cells (
			sheet VARCHAR, address VARCHAR, row_num INTEGER, col_num INTEGER,
			raw_type VARCHAR, number DOUBLE, text VARCHAR, flag BOOLEAN,
			formula VARCHAR, value VARCHAR, value_type VARCHAR, engine_version VARCHAR)`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

func insertCells(ctx context.Context, tx *sql.Tx, s *sheetops.Sheet) error {
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO cells VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, addr := range s.Addresses() {
		c := s.Cells[addr]
		var (
			rawType       string
			number        sql.NullFloat64
			text          sql.NullString
			flag          sql.NullBool
			formula       sql.NullString
			value         sql.NullString
			valueType     sql.NullString
			engineVersion sql.NullString
		)
		switch v := c.Raw.(type) {
		case nil:
			rawType = "empty"
		case float64:
			rawType, number = "number", sql.NullFloat64{Float64: v, Valid: true}
		case string:
			rawType, text = "string", sql.NullString{String: v, Valid: true}
		case bool:
			rawType, flag = "boolean", sql.NullBool{Bool: v, Valid: true}
		default:
			rawType, text = "other", sql.NullString{String: fmt.Sprint(v), Valid: true}
		}
		if c.HasFormula() {
			rawType = "formula"
			formula = sql.NullString{String: c.Formula, Valid: true}
		}
		if c.Computed != nil {
			value = nullString(c.Computed.Value)
			valueType = sql.NullString{String: string(c.Computed.Type), Valid: true}
			engineVersion = sql.NullString{String: c.Computed.EngineVersion, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.Name, addr.String(), addr.Row, addr.Col,
			rawType, number, text, flag, formula, value, valueType, engineVersion); err != nil {
			return fmt.Errorf("failed to insert cell %s!%s: %w", s.Name, addr, err)
		}
	}
	return nil
}

// loadSheetTable creates the wide table of one sheet, spanning the occupied
// columns.
func loadSheetTable(ctx context.Context, tx *sql.Tx, table string, s *sheetops.Sheet) error {
	addrs := s.Addresses()
	width := 0
	for _, addr := range addrs {
		width = max(width, addr.Col)
	}
	columns := make([]string, 0, width+1)
	columns = append(columns, "row_num INTEGER")
	for col := 1; col <= width; col++ {
		name, err := sheetops.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		columns = append(columns, fmt.Sprintf("%q VARCHAR", strings.ToLower(name)))
	}
	createQuery := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", table, strings.Join(columns, ", "))
	if _, err := tx.ExecContext(ctx, createQuery); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	if len(addrs) == 0 {
		return nil
	}

	placeholders := make([]string, width+1)
	for i := range placeholders {
		placeholders[i] = "$" + strconv.Itoa(i+1)
	}
	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s VALUES (%s)", table, strings.Join(placeholders, ", ")))
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	// Addresses are row-major, so each row is complete when the next starts.
	args := make([]any, width+1)
	flush := func() error {
		if args[0] == nil {
			return nil
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert row %v of %s: %w", args[0], table, err)
		}
		clear(args)
		return nil
	}
	for _, addr := range addrs {
		if args[0] != nil && args[0] != addr.Row {
			if err := flush(); err != nil {
				return err
			}
		}
		args[0] = addr.Row
		args[addr.Col] = displayValue(s.Cells[addr])
	}
	return flush()
}

func displayValue(c *sheetops.Cell) sql.NullString {
	if c.HasFormula() {
		if c.Computed == nil {
			return sql.NullString{}
		}
		return nullString(c.Computed.Value)
	}
	return nullString(c.Raw)
}

func nullString(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatResult(v), Valid: true}
}

// Query runs a SQL statement against the loaded workbook and materializes
// the result. DuckDB BLOB values are returned as strings.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*Result, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.loaded {
		return nil, ErrNotLoaded
	}
	startTime := time.Now()
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	e.logger.Debug("duckdb query",
		"rows", len(res.Rows),
		"duration", time.Since(startTime))
	return res, nil
}

// TableName returns the SQL table name of a loaded sheet.
func (e *Engine) TableName(sheet string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	table, ok := e.tables[sheet]
	return table, ok
}

// Close closes the DuckDB database connection and releases resources.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.db.Close()
}

var nonIdentRe = regexp.MustCompile(`[^a-z0-9_]+`)

// sanitizeTableName converts a sheet name to a valid SQL table name.
func sanitizeTableName(name string) string {
	sanitized := strings.Trim(nonIdentRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if sanitized == "" {
		sanitized = "sheet"
	}
	return "sheet_" + sanitized
}

// uniqueTableName appends a numeric suffix when name is taken.
func uniqueTableName(name string, used map[string]struct{}) string {
	candidate := name
	for i := 2; ; i++ {
		if _, ok := used[candidate]; !ok {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = name + "_" + strconv.Itoa(i)
	}
}

// formatResult formats a cell value as display text.
func formatResult(val any) string {
	switch v := val.(type) {
	case float64:
		return formatFloat(v)
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// formatFloat formats a float64 without trailing zeros.
func formatFloat(val float64) string {
	if val == float64(int64(val)) {
		return strconv.FormatInt(int64(val), 10)
	}
	return strconv.FormatFloat(val, 'f', -1, 64)
}
