// Copyright 2016 - 2025 The excelize Authors. All rights reserved. Use of
// this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OmniMCP-AI/sheetops"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHEETOPS_"

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config load %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// WriteDefault writes the default configuration as YAML to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// envBinding binds one environment variable to a config field.
type envBinding struct {
	name string
	set  func(cfg *Config, value string) error
}

func stringVar(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		*field(cfg) = value
		return nil
	}
}

func intVar(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}
}

func boolVar(field func(*Config) *bool) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}
}

func durationVar(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(cfg *Config, value string) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}
}

var envBindings = []envBinding{
	{"SERVER_HOST", stringVar(func(c *Config) *string { return &c.Server.Host })},
	{"SERVER_PORT", intVar(func(c *Config) *int { return &c.Server.Port })},
	{"SERVER_REQUEST_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.RequestTimeout })},
	{"SERVER_SHUTDOWN_TIMEOUT", durationVar(func(c *Config) *time.Duration { return &c.Server.ShutdownTimeout })},
	{"STORE_PATH", stringVar(func(c *Config) *string { return &c.Store.Path })},
	{"STORE_IN_MEMORY", boolVar(func(c *Config) *bool { return &c.Store.InMemory })},
	{"STORE_SYNC_WRITES", boolVar(func(c *Config) *bool { return &c.Store.SyncWrites })},
	{"STORE_GC_INTERVAL", durationVar(func(c *Config) *time.Duration { return &c.Store.GCInterval })},
	{"LOG_LEVEL", stringVar(func(c *Config) *string { return &c.Logging.Level })},
	{"LOG_FORMAT", stringVar(func(c *Config) *string { return &c.Logging.Format })},
	{"ENGINE_VERSION", stringVar(func(c *Config) *string { return &c.Engine.Version })},
	{"APPLY_MAX_SAMPLE_CELLS", intVar(func(c *Config) *int { return &c.Apply.MaxSampleCells })},
	{"APPLY_MAX_FILL_CELLS", intVar(func(c *Config) *int { return &c.Apply.MaxFillCells })},
	{"APPLY_RECOMPUTE", stringVar(func(c *Config) *string { return &c.Apply.Recompute })},
	{"APPLY_DETECT_CIRCULAR", boolVar(func(c *Config) *bool { return &c.Apply.DetectCircular })},
}

// applyEnv overrides fields whose SHEETOPS_* variable is set and non-empty.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		value, ok := lookup(EnvPrefix + b.name)
		if !ok || value == "" {
			continue
		}
		if err := b.set(cfg, value); err != nil {
			return fmt.Errorf("%s%s=%q: %w", EnvPrefix, b.name, value, err)
		}
	}
	return nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be positive"))
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required unless store.in_memory is set"))
	}
	if c.Store.GCDiscardRatio < 0 || c.Store.GCDiscardRatio >= 1 {
		errs = append(errs, fmt.Errorf("store.gc_discard_ratio %v must be in [0, 1)", c.Store.GCDiscardRatio))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}
	if c.Apply.MaxSampleCells < 0 {
		errs = append(errs, errors.New("apply.max_sample_cells must not be negative"))
	}
	if c.Apply.MaxFillCells < 0 {
		errs = append(errs, errors.New("apply.max_fill_cells must not be negative"))
	}
	if _, err := sheetops.ParseRecomputeMode(c.Apply.Recompute); err != nil {
		errs = append(errs, fmt.Errorf("apply.recompute: %w", err))
	}
	return errors.Join(errs...)
}
