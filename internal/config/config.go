// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package config loads the sheetops service configuration from a YAML file,
// applies SHEETOPS_* environment overrides and validates the result before
// anything is started.
package config

import (
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/OmniMCP-AI/sheetops"
	"github.com/OmniMCP-AI/sheetops/store"
	"github.com/OmniMCP-AI/sheetops/xlengine"
)

// Config holds all service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Logging LoggingConfig `yaml:"logging"`
	Engine  EngineConfig  `yaml:"engine"`
	Apply   ApplyConfig   `yaml:"apply"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host"`
	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port"`
	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// MaxBodyBytes caps request bodies (default: 32MiB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// StoreConfig holds BadgerDB settings.
type StoreConfig struct {
	Path           string        `yaml:"path"`
	InMemory       bool          `yaml:"in_memory"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level"`
	// Format is the log format: text or json (default: text)
	Format string `yaml:"format"`
}

// EngineConfig holds evaluation engine settings.
type EngineConfig struct {
	// Version overrides the identifier stamped on computed values.
	Version           string `yaml:"version"`
	MaxCalcIterations uint   `yaml:"max_calc_iterations"`
}

// ApplyConfig holds the defaults batches are applied with.
type ApplyConfig struct {
	MaxSampleCells int    `yaml:"max_sample_cells"`
	MaxFillCells   int    `yaml:"max_fill_cells"`
	Recompute      string `yaml:"recompute"`
	DetectCircular bool   `yaml:"detect_circular"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	storeCfg := store.DefaultConfig()
	engineCfg := xlengine.DefaultConfig()
	opts := sheetops.DefaultOptions()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    32 << 20,
		},
		Store: StoreConfig{
			Path:           storeCfg.Path,
			SyncWrites:     storeCfg.SyncWrites,
			GCInterval:     storeCfg.GCInterval,
			GCDiscardRatio: storeCfg.GCDiscardRatio,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Engine: EngineConfig{
			Version:           engineCfg.Version,
			MaxCalcIterations: engineCfg.MaxCalcIterations,
		},
		Apply: ApplyConfig{
			MaxSampleCells: opts.MaxSampleCells,
			MaxFillCells:   opts.MaxFillCells,
			Recompute:      string(sheetops.RecomputeSync),
			DetectCircular: true,
		},
	}
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// StoreOptions converts the store section for store.Open.
func (c *Config) StoreOptions(logger *slog.Logger) store.Config {
	return store.Config{
		Path:           c.Store.Path,
		InMemory:       c.Store.InMemory,
		SyncWrites:     c.Store.SyncWrites,
		GCInterval:     c.Store.GCInterval,
		GCDiscardRatio: c.Store.GCDiscardRatio,
		Logger:         logger,
	}
}

// EngineOptions converts the engine section for xlengine.NewEngineWithConfig.
func (c *Config) EngineOptions(logger *slog.Logger) *xlengine.Config {
	return &xlengine.Config{
		Version:           c.Engine.Version,
		MaxCalcIterations: c.Engine.MaxCalcIterations,
		Logger:            logger,
	}
}

// ApplyOptions converts the apply section into batch options. Validate must
// have accepted the recompute mode.
func (c *Config) ApplyOptions(logger *slog.Logger) sheetops.Options {
	mode, _ := sheetops.ParseRecomputeMode(c.Apply.Recompute)
	return sheetops.Options{
		MaxSampleCells: c.Apply.MaxSampleCells,
		MaxFillCells:   c.Apply.MaxFillCells,
		Recompute:      mode,
		DetectCircular: c.Apply.DetectCircular,
		Logger:         logger,
	}
}
